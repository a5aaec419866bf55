package candidate

import (
	"encoding/json"
	"time"
)

// Kind discriminates real user accounts from synthetic stand-ins.
type Kind string

const (
	// KindRealUser is a candidate backed by an actual platform account.
	KindRealUser Kind = "real_user"
	// KindArtistProxy is a synthetic "fans of artist X" entry. Proxy
	// candidates are never profile-enriched and never used as expansion seeds.
	KindArtistProxy Kind = "artist_proxy"
)

// DiscoveryMethod records how a candidate was found.
type DiscoveryMethod string

const (
	MethodPlaylistOwner       DiscoveryMethod = "playlist_owner"
	MethodPlaylistContributor DiscoveryMethod = "playlist_contributor"
	MethodArtistFollower      DiscoveryMethod = "artist_follower"
)

// SyncStatus is the enrichment state machine for persisted candidates.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// ValidTransition reports whether the sync state machine allows from -> to.
// pending -> syncing -> synced|failed; synced|failed -> pending (explicit
// re-enrichment only).
func ValidTransition(from, to SyncStatus) bool {
	switch from {
	case SyncPending:
		return to == SyncSyncing
	case SyncSyncing:
		return to == SyncSynced || to == SyncFailed
	case SyncSynced, SyncFailed:
		return to == SyncPending
	}
	return false
}

// Facet parameterizes one discovery query.
type Facet struct {
	Genre      string `json:"genre"`
	ArtistType string `json:"artistType"`
}

// Evidence holds the genre and artist matches supporting a candidate's score.
// Both fields are sets: merging unions them and they never shrink.
type Evidence struct {
	GenreMatches  []string `json:"genreMatches"`
	ArtistMatches []string `json:"artistMatches"`
}

// MarshalJSON ensures nil sets in Evidence marshal as [] not null.
func (e Evidence) MarshalJSON() ([]byte, error) {
	if e.GenreMatches == nil {
		e.GenreMatches = []string{}
	}
	if e.ArtistMatches == nil {
		e.ArtistMatches = []string{}
	}
	type Alias Evidence
	return json.Marshal(Alias(e))
}

// Union merges other into e, preserving first-seen order.
func (e *Evidence) Union(other Evidence) {
	e.GenreMatches = unionStrings(e.GenreMatches, other.GenreMatches)
	e.ArtistMatches = unionStrings(e.ArtistMatches, other.ArtistMatches)
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Candidate is a provisional discovered profile produced by one discovery or
// expansion pass, before persistence.
type Candidate struct {
	SourcePlatform  string          `json:"sourcePlatform"`
	SourceUserID    string          `json:"sourceUserId"`
	Kind            Kind            `json:"kind"`
	DisplayName     string          `json:"displayName"`
	ProfileURL      string          `json:"profileUrl"`
	AvatarURL       string          `json:"avatarUrl,omitempty"`
	FollowersCount  int             `json:"followersCount"`
	FollowingCount  int             `json:"followingCount"`
	MatchScore      int             `json:"matchScore"`
	DiscoveryMethod DiscoveryMethod `json:"discoveryMethod"`
	Evidence        Evidence        `json:"evidence"`
}

// Key returns the natural key for deduplication within and across runs.
func (c Candidate) Key() NaturalKey {
	return NaturalKey{Platform: c.SourcePlatform, UserID: c.SourceUserID}
}

// NaturalKey uniquely identifies a candidate across the store.
type NaturalKey struct {
	Platform string `json:"platform"`
	UserID   string `json:"userId"`
}

// SourceRef is a provenance edge linking a candidate to the playlist/track
// that produced it. Sources form an append-only log, not a set.
type SourceRef struct {
	PlaylistID   string    `json:"playlistId"`
	PlaylistName string    `json:"playlistName,omitempty"`
	OwnerID      string    `json:"ownerId,omitempty"`
	TrackID      string    `json:"trackId,omitempty"`
	AddedByID    string    `json:"addedById,omitempty"`
	DiscoveredAt time.Time `json:"discoveredAt"`
}

// DiscoveredVia records the facet that first produced a persisted candidate.
// It is set on insert and never changed by later merges.
type DiscoveredVia struct {
	FacetGenre      string    `json:"facetGenre"`
	FacetArtistType string    `json:"facetArtistType"`
	FirstSeenAt     time.Time `json:"firstSeenAt"`
}

// PersistedCandidate is a Candidate plus store-managed state.
type PersistedCandidate struct {
	ID string `json:"id"`
	Candidate
	SyncStatus    SyncStatus    `json:"syncStatus"`
	LastSyncedAt  *time.Time    `json:"lastSyncedAt,omitempty"`
	Sources       []SourceRef   `json:"sources"`
	DiscoveredVia DiscoveredVia `json:"discoveredVia"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// MarshalJSON ensures nil Sources marshal as [] not null.
func (p PersistedCandidate) MarshalJSON() ([]byte, error) {
	if p.Sources == nil {
		p.Sources = []SourceRef{}
	}
	type Alias PersistedCandidate
	return json.Marshal(Alias(p))
}

// Profile carries the fields filled in by public-profile enrichment.
// Empty fields never overwrite populated ones.
type Profile struct {
	DisplayName    string `json:"displayName,omitempty"`
	ProfileURL     string `json:"profileUrl,omitempty"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	FollowersCount *int   `json:"followersCount,omitempty"`
}

// ScoreWeights are the match-score tuning values. They are arbitrary tuning
// constants carried as configuration, not semantics.
type ScoreWeights struct {
	PlaylistOwner       int `yaml:"playlist_owner" json:"playlistOwner"`
	PlaylistContributor int `yaml:"playlist_contributor" json:"playlistContributor"`
	ArtistProxy         int `yaml:"artist_proxy" json:"artistProxy"`
	TrackAdder          int `yaml:"track_adder" json:"trackAdder"`
	RepeatBonus         int `yaml:"repeat_bonus" json:"repeatBonus"`
}

// DefaultScoreWeights returns the stock scoring constants.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		PlaylistOwner:       90,
		PlaylistContributor: 80,
		ArtistProxy:         70,
		TrackAdder:          65,
		RepeatBonus:         10,
	}
}

// MaxScore caps every match score.
const MaxScore = 100

// ClampScore bounds a score to [0, MaxScore].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// PlatformSpotify is the only source platform the current crawlers emit.
const PlatformSpotify = "spotify"

// ArtistProxyID builds the synthetic user id for an artist-proxy candidate.
func ArtistProxyID(artistID string) string {
	return "artist_" + artistID
}
