// Package settings models the mutable operator-controlled discovery
// configuration. It is persisted as a single document keyed "global" and is
// created lazily with defaults on first read. The field names are the
// on-disk contract and must stay stable.
package settings

import (
	"encoding/json"
	"time"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/validation"
)

// GlobalKey is the document key of the singleton settings record.
const GlobalKey = "global"

// RunHistoryCap bounds the run history ring buffer, most-recent-last.
const RunHistoryCap = 20

// MinIntervalMs is the floor for the scheduler interval.
const MinIntervalMs = 60_000

// DefaultGenres and DefaultArtistTypes seed the facet universes.
var (
	DefaultGenres = []string{
		"indie", "hip-hop", "pop", "electronic", "rock",
		"r&b", "country", "jazz", "metal", "latino",
	}
	DefaultArtistTypes = []string{"mainstream", "underground", "indie", "emerging"}
)

// Settings is the operator-controlled discovery configuration document.
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
	LastRunSummary                 *RunEntry  `json:"lastRunSummary,omitempty"`
	RunHistory                     []RunEntry `json:"runHistory"`
	CreatedAt                      time.Time  `json:"createdAt"`
	UpdatedAt                      time.Time  `json:"updatedAt"`
}

// ComboResult is the per-facet breakdown of one cycle.
type ComboResult struct {
	Genre      string `json:"genre"`
	ArtistType string `json:"artistType"`
	Found      int    `json:"found"`
	Saved      int    `json:"saved"`
}

// RunTotals aggregates one cycle.
type RunTotals struct {
	Found  int `json:"found"`
	Saved  int `json:"saved"`
	Combos int `json:"combos"`
}

// RunEntry is one run-history record.
type RunEntry struct {
	At         time.Time     `json:"at"`
	DurationMs int64         `json:"durationMs"`
	Totals     RunTotals     `json:"totals"`
	Results    []ComboResult `json:"results"`
}

// MarshalJSON ensures nil Results marshal as [] not null.
func (e RunEntry) MarshalJSON() ([]byte, error) {
	if e.Results == nil {
		e.Results = []ComboResult{}
	}
	type Alias RunEntry
	return json.Marshal(Alias(e))
}

// MarshalJSON ensures nil slices in Settings marshal as [] not null.
func (s Settings) MarshalJSON() ([]byte, error) {
	if s.Genres == nil {
		s.Genres = []string{}
	}
	if s.ArtistTypes == nil {
		s.ArtistTypes = []string{}
	}
	if s.RunHistory == nil {
		s.RunHistory = []RunEntry{}
	}
	type Alias Settings
	return json.Marshal(Alias(s))
}

// Default returns the settings document created on first read.
func Default(now time.Time) Settings {
	return Settings{
		Key:                            GlobalKey,
		Enabled:                        true,
		Genres:                         append([]string(nil), DefaultGenres...),
		ArtistTypes:                    append([]string(nil), DefaultArtistTypes...),
		MaxResults:                     100,
		MaxCombosPerRun:                6,
		IntervalMs:                     15 * 60 * 1000,
		IncludePlaylistExpansion:       false,
		ExpansionSeedLimit:             50,
		ExpansionPerUserPlaylistLimit:  5,
		ExpansionPerPlaylistTrackLimit: 100,
		ExpansionMaxNewUsers:           200,
		RunHistory:                     []RunEntry{},
		CreatedAt:                      now,
		UpdatedAt:                      now,
	}
}

// Interval returns the scheduler interval as a duration.
func (s Settings) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// Combos returns the genre × artist-type facet set in deterministic order.
// Callers control coverage by varying the universes, not by shuffling.
func (s Settings) Combos() []candidate.Facet {
	combos := make([]candidate.Facet, 0, len(s.Genres)*len(s.ArtistTypes))
	for _, g := range s.Genres {
		for _, t := range s.ArtistTypes {
			combos = append(combos, candidate.Facet{Genre: g, ArtistType: t})
		}
	}
	return combos
}

// ExpansionOptions returns the expansion sub-config as engine options.
func (s Settings) ExpansionOptions() (seedLimit, perSeedPlaylists, perPlaylistTracks, maxNew int) {
	return s.ExpansionSeedLimit, s.ExpansionPerUserPlaylistLimit,
		s.ExpansionPerPlaylistTrackLimit, s.ExpansionMaxNewUsers
}

// AppendRun records a run entry, capping the history at RunHistoryCap
// most-recent-last, and refreshes lastRunAt/lastRunSummary.
func (s *Settings) AppendRun(entry RunEntry) {
	s.RunHistory = append(s.RunHistory, entry)
	if excess := len(s.RunHistory) - RunHistoryCap; excess > 0 {
		s.RunHistory = append([]RunEntry(nil), s.RunHistory[excess:]...)
	}
	at := entry.At
	s.LastRunAt = &at
	summary := entry
	s.LastRunSummary = &summary
}

// Validate checks operator-supplied values.
func (s Settings) Validate() []validation.ValidationError {
	var c validation.Collector
	c.Add(validation.ValidateMin("intervalMs", s.IntervalMs, MinIntervalMs))
	c.Add(validation.ValidateMin("maxCombosPerRun", int64(s.MaxCombosPerRun), 1))
	c.Add(validation.ValidateMin("maxResults", int64(s.MaxResults), 1))
	if s.Enabled {
		c.Add(validation.ValidateNonEmptyList("genres", s.Genres))
		c.Add(validation.ValidateNonEmptyList("artistTypes", s.ArtistTypes))
	}
	if s.IncludePlaylistExpansion {
		c.Add(validation.ValidateMin("expansionSeedLimit", int64(s.ExpansionSeedLimit), 1))
		c.Add(validation.ValidateMin("expansionPerUserPlaylistLimit", int64(s.ExpansionPerUserPlaylistLimit), 1))
		c.Add(validation.ValidateMin("expansionPerPlaylistTrackLimit", int64(s.ExpansionPerPlaylistTrackLimit), 1))
		c.Add(validation.ValidateMin("expansionMaxNewUsers", int64(s.ExpansionMaxNewUsers), 1))
	}
	return c.Errors()
}

// Update carries a partial operator edit; nil fields are left unchanged.
type Update struct {
	Enabled                        *bool     `json:"enabled,omitempty"`
	Genres                         *[]string `json:"genres,omitempty"`
	ArtistTypes                    *[]string `json:"artistTypes,omitempty"`
	MaxResults                     *int      `json:"maxResults,omitempty"`
	MaxCombosPerRun                *int      `json:"maxCombosPerRun,omitempty"`
	IntervalMs                     *int64    `json:"intervalMs,omitempty"`
	IncludePlaylistExpansion       *bool     `json:"includePlaylistExpansion,omitempty"`
	ExpansionSeedLimit             *int      `json:"expansionSeedLimit,omitempty"`
	ExpansionPerUserPlaylistLimit  *int      `json:"expansionPerUserPlaylistLimit,omitempty"`
	ExpansionPerPlaylistTrackLimit *int      `json:"expansionPerPlaylistTrackLimit,omitempty"`
	ExpansionMaxNewUsers           *int      `json:"expansionMaxNewUsers,omitempty"`
}

// Apply merges the update into s.
func (u Update) Apply(s *Settings) {
	if u.Enabled != nil {
		s.Enabled = *u.Enabled
	}
	if u.Genres != nil {
		s.Genres = *u.Genres
	}
	if u.ArtistTypes != nil {
		s.ArtistTypes = *u.ArtistTypes
	}
	if u.MaxResults != nil {
		s.MaxResults = *u.MaxResults
	}
	if u.MaxCombosPerRun != nil {
		s.MaxCombosPerRun = *u.MaxCombosPerRun
	}
	if u.IntervalMs != nil {
		s.IntervalMs = *u.IntervalMs
	}
	if u.IncludePlaylistExpansion != nil {
		s.IncludePlaylistExpansion = *u.IncludePlaylistExpansion
	}
	if u.ExpansionSeedLimit != nil {
		s.ExpansionSeedLimit = *u.ExpansionSeedLimit
	}
	if u.ExpansionPerUserPlaylistLimit != nil {
		s.ExpansionPerUserPlaylistLimit = *u.ExpansionPerUserPlaylistLimit
	}
	if u.ExpansionPerPlaylistTrackLimit != nil {
		s.ExpansionPerPlaylistTrackLimit = *u.ExpansionPerPlaylistTrackLimit
	}
	if u.ExpansionMaxNewUsers != nil {
		s.ExpansionMaxNewUsers = *u.ExpansionMaxNewUsers
	}
}
