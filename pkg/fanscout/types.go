package fanscout

import "time"

// Health is the service health payload.
type Health struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	CandidateCount int    `json:"candidateCount"`
}

// Settings is the discovery settings document as served by the API.
type Settings struct {
	Key                            string     `json:"key"`
	Enabled                        bool       `json:"enabled"`
	Genres                         []string   `json:"genres"`
	ArtistTypes                    []string   `json:"artistTypes"`
	MaxResults                     int        `json:"maxResults"`
	MaxCombosPerRun                int        `json:"maxCombosPerRun"`
	IntervalMs                     int64      `json:"intervalMs"`
	IncludePlaylistExpansion       bool       `json:"includePlaylistExpansion"`
	ExpansionSeedLimit             int        `json:"expansionSeedLimit"`
	ExpansionPerUserPlaylistLimit  int        `json:"expansionPerUserPlaylistLimit"`
	ExpansionPerPlaylistTrackLimit int        `json:"expansionPerPlaylistTrackLimit"`
	ExpansionMaxNewUsers           int        `json:"expansionMaxNewUsers"`
	LastRunAt                      *time.Time `json:"lastRunAt,omitempty"`
	RunHistory                     []RunEntry `json:"runHistory"`
	CreatedAt                      time.Time  `json:"createdAt"`
	UpdatedAt                      time.Time  `json:"updatedAt"`
}

// SettingsUpdate is a partial settings edit; nil fields are left unchanged.
type SettingsUpdate struct {
	Enabled                  *bool     `json:"enabled,omitempty"`
	Genres                   *[]string `json:"genres,omitempty"`
	ArtistTypes              *[]string `json:"artistTypes,omitempty"`
	MaxResults               *int      `json:"maxResults,omitempty"`
	MaxCombosPerRun          *int      `json:"maxCombosPerRun,omitempty"`
	IntervalMs               *int64    `json:"intervalMs,omitempty"`
	IncludePlaylistExpansion *bool     `json:"includePlaylistExpansion,omitempty"`
	ExpansionSeedLimit       *int      `json:"expansionSeedLimit,omitempty"`
	ExpansionMaxNewUsers     *int      `json:"expansionMaxNewUsers,omitempty"`
}

// RunTotals aggregates one discovery cycle.
type RunTotals struct {
	Found  int `json:"found"`
	Saved  int `json:"saved"`
	Combos int `json:"combos"`
}

// ComboResult is the per-facet breakdown of one cycle.
type ComboResult struct {
	Genre      string `json:"genre"`
	ArtistType string `json:"artistType"`
	Found      int    `json:"found"`
	Saved      int    `json:"saved"`
}

// RunEntry is one run-history record.
type RunEntry struct {
	At         time.Time     `json:"at"`
	DurationMs int64         `json:"durationMs"`
	Totals     RunTotals     `json:"totals"`
	Results    []ComboResult `json:"results"`
}

// Candidate is one discovered profile as served by the API.
type Candidate struct {
	ID              string     `json:"id"`
	SourcePlatform  string     `json:"sourcePlatform"`
	SourceUserID    string     `json:"sourceUserId"`
	Kind            string     `json:"kind"`
	DisplayName     string     `json:"displayName"`
	ProfileURL      string     `json:"profileUrl"`
	AvatarURL       string     `json:"avatarUrl,omitempty"`
	FollowersCount  int        `json:"followersCount"`
	MatchScore      int        `json:"matchScore"`
	DiscoveryMethod string     `json:"discoveryMethod"`
	Evidence        Evidence   `json:"evidence"`
	SyncStatus      string     `json:"syncStatus"`
	LastSyncedAt    *time.Time `json:"lastSyncedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Evidence holds the genre and artist matches behind a candidate's score.
type Evidence struct {
	GenreMatches  []string `json:"genreMatches"`
	ArtistMatches []string `json:"artistMatches"`
}

// CandidatePage is one page of a candidate query.
type CandidatePage struct {
	Total int         `json:"total"`
	Items []Candidate `json:"items"`
}

// CandidateQuery narrows and pages a candidate listing. Zero values are
// omitted from the request.
type CandidateQuery struct {
	Genre      string
	ArtistType string
	Kind       string
	Method     string
	SyncStatus string
	MinScore   int
	Limit      int
	Offset     int
}

// Stats aggregates the candidate pool.
type Stats struct {
	Total        int64            `json:"total"`
	ByGenre      map[string]int64 `json:"byGenre"`
	ByArtistType map[string]int64 `json:"byArtistType"`
	BySyncStatus map[string]int64 `json:"bySyncStatus"`
	AverageScore float64          `json:"averageScore"`
}

// ExportResult reports the outcome of a manual export.
type ExportResult struct {
	Path       string `json:"path"`
	Candidates int    `json:"candidates"`
}

// Problem is an RFC 7807 error payload.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

// Error implements the error interface.
func (p *Problem) Error() string {
	if p.Detail != "" {
		return p.Title + ": " + p.Detail
	}
	return p.Title
}
