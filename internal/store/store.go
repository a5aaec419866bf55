// Package store persists discovered candidates and the discovery settings
// document in SQLite.
package store

import (
	"context"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/settings"
)

// Filter narrows a candidate query. Zero values mean "no constraint".
type Filter struct {
	Genre      string
	ArtistType string
	Kind       candidate.Kind
	Method     candidate.DiscoveryMethod
	SyncStatus candidate.SyncStatus
	MinScore   int
}

// Page bounds a candidate query. A Limit of zero falls back to DefaultPageLimit.
type Page struct {
	Limit  int
	Offset int
}

// DefaultPageLimit is used when a query supplies no limit.
const DefaultPageLimit = 50

// MaxPageLimit caps the page size a caller can request.
const MaxPageLimit = 200

// CandidatePage is one page of a candidate query, ordered by match score
// descending with creation time as the tiebreaker.
type CandidatePage struct {
	Total int                            `json:"total"`
	Items []candidate.PersistedCandidate `json:"items"`
}

// SaveResult summarizes a batch upsert.
type SaveResult struct {
	Saved   int `json:"saved"`
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Stats aggregates the candidate pool.
type Stats struct {
	Total        int64            `json:"total"`
	ByGenre      map[string]int64 `json:"byGenre"`
	ByArtistType map[string]int64 `json:"byArtistType"`
	BySyncStatus map[string]int64 `json:"bySyncStatus"`
	AverageScore float64          `json:"averageScore"`
}

// Store defines the interface contract for candidate and settings persistence.
type Store interface {
	UpsertCandidate(ctx context.Context, c candidate.Candidate, facet candidate.Facet) (*candidate.PersistedCandidate, bool, error)
	SaveBatch(ctx context.Context, cands []candidate.Candidate, facet candidate.Facet) (*SaveResult, error)
	AppendSources(ctx context.Context, key candidate.NaturalKey, refs []candidate.SourceRef) error
	GetCandidate(ctx context.Context, key candidate.NaturalKey) (*candidate.PersistedCandidate, error)
	QueryCandidates(ctx context.Context, filter Filter, page Page) (*CandidatePage, error)
	MarkEnrichment(ctx context.Context, userIDs []string, status candidate.SyncStatus) (int, error)
	RecordEnrichment(ctx context.Context, key candidate.NaturalKey, profile candidate.Profile, succeeded bool) (*candidate.PersistedCandidate, error)
	ExpansionSeeds(ctx context.Context, limit int) ([]candidate.PersistedCandidate, error)
	GetStats(ctx context.Context) (*Stats, error)
	Count(ctx context.Context) (int, error)
	GetSettings(ctx context.Context) (*settings.Settings, error)
	SaveSettings(ctx context.Context, doc settings.Settings) (*settings.Settings, error)
	RecordRun(ctx context.Context, entry settings.RunEntry) (*settings.Settings, error)
	Close() error
}
