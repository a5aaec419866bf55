// Package discovery turns (genre, artist type) facets into scored candidate
// profiles by searching playlists and mining their metadata and tracks.
package discovery

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/spotify"
)

// searchPlaylistLimit bounds how many playlists one facet search considers.
const searchPlaylistLimit = 10

// maxTrackFetch bounds the track page size requested per playlist.
const maxTrackFetch = 50

// API is the slice of the platform client the engine needs.
type API interface {
	SearchPlaylists(ctx context.Context, query string, limit int) ([]spotify.Playlist, error)
	GetPlaylist(ctx context.Context, id string) (*spotify.Playlist, error)
	GetPlaylistTracks(ctx context.Context, id string, limit int) ([]spotify.TrackItem, error)
	GetUser(ctx context.Context, id string) (*spotify.User, error)
	GetArtist(ctx context.Context, id string) (*spotify.Artist, error)
}

// Result is the outcome of one facet discovery pass.
type Result struct {
	Facet      candidate.Facet       `json:"facet"`
	Count      int                   `json:"count"`
	Candidates []candidate.Candidate `json:"candidates"`
	ExecutedAt time.Time             `json:"executedAt"`
}

// Engine orchestrates one discovery pass per facet.
type Engine struct {
	api       API
	extractor *Extractor
}

// NewEngine creates a discovery engine scoring with the given weights.
func NewEngine(api API, weights candidate.ScoreWeights) *Engine {
	return &Engine{
		api:       api,
		extractor: NewExtractor(api, weights, nil),
	}
}

// Discover searches playlists for the facet, extracts and merges candidates,
// and enriches real users with public profile data. Individual playlist
// failures are logged and skipped; only the initial search can fail the run.
// Candidates are ordered by match score descending, ties in discovery order.
func (e *Engine) Discover(ctx context.Context, facet candidate.Facet, maxResults int) (*Result, error) {
	query := BuildQuery(facet.Genre, facet.ArtistType)
	slog.Info("discovery started",
		"component", "discovery",
		"genre", facet.Genre,
		"artist_type", facet.ArtistType,
		"query", query,
	)

	playlists, err := e.api.SearchPlaylists(ctx, query, searchPlaylistLimit)
	if err != nil {
		return nil, err
	}

	merged := newMergeSet(e.extractor.weights.RepeatBonus)
	quota := perPlaylistQuota(maxResults, len(playlists))

	for _, pl := range playlists {
		cands, err := e.minePlaylist(ctx, pl.ID, quota)
		if err != nil {
			slog.Warn("playlist mining failed, skipping",
				"component", "discovery",
				"playlist_id", pl.ID,
				"error", err,
			)
			continue
		}
		merged.addAll(cands)
	}

	candidates := merged.sorted()
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	EnrichProfiles(ctx, e.api, candidates)

	slog.Info("discovery completed",
		"component", "discovery",
		"genre", facet.Genre,
		"artist_type", facet.ArtistType,
		"found", len(candidates),
	)

	return &Result{
		Facet:      facet,
		Count:      len(candidates),
		Candidates: candidates,
		ExecutedAt: time.Now().UTC(),
	}, nil
}

// minePlaylist fetches one playlist's detail and tracks and extracts
// candidates from them.
func (e *Engine) minePlaylist(ctx context.Context, id string, quota int) ([]candidate.Candidate, error) {
	detail, err := e.api.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}

	trackLimit := quota
	if trackLimit > maxTrackFetch {
		trackLimit = maxTrackFetch
	}
	tracks, err := e.api.GetPlaylistTracks(ctx, id, trackLimit)
	if err != nil {
		return nil, err
	}

	return e.extractor.Extract(ctx, detail, tracks, quota), nil
}

// perPlaylistQuota distributes maxResults evenly across playlists,
// rounding up.
func perPlaylistQuota(maxResults, playlistCount int) int {
	if playlistCount == 0 {
		return maxResults
	}
	return (maxResults + playlistCount - 1) / playlistCount
}

// mergeSet deduplicates candidates within one run by natural key. Repeat
// sightings raise the score by repeatBonus (capped) and union evidence.
type mergeSet struct {
	repeatBonus int
	index       map[candidate.NaturalKey]int
	items       []candidate.Candidate
}

func newMergeSet(repeatBonus int) *mergeSet {
	return &mergeSet{
		repeatBonus: repeatBonus,
		index:       make(map[candidate.NaturalKey]int),
	}
}

func (m *mergeSet) addAll(cands []candidate.Candidate) {
	for _, c := range cands {
		m.add(c)
	}
}

func (m *mergeSet) add(c candidate.Candidate) {
	if i, ok := m.index[c.Key()]; ok {
		existing := &m.items[i]
		existing.MatchScore = candidate.ClampScore(existing.MatchScore + m.repeatBonus)
		existing.Evidence.Union(c.Evidence)
		return
	}
	m.index[c.Key()] = len(m.items)
	m.items = append(m.items, c)
}

// sorted returns candidates by score descending; the sort is stable so ties
// keep their original discovery order.
func (m *mergeSet) sorted() []candidate.Candidate {
	out := make([]candidate.Candidate, len(m.items))
	copy(out, m.items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MatchScore > out[j].MatchScore
	})
	return out
}
