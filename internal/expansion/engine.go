// Package expansion grows the candidate graph a second degree out: it crawls
// the public playlists of already-discovered candidates and extracts playlist
// owners and track contributors as new candidates, with provenance edges
// recording which playlist/track produced each discovery.
package expansion

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/discovery"
	"github.com/soundreach/fanscout/internal/spotify"
)

// defaultSeedDelay paces requests between seeds. A policy knob, not a
// correctness requirement.
const defaultSeedDelay = 200 * time.Millisecond

// API is the slice of the platform client the expansion engine needs.
type API interface {
	GetUserPlaylists(ctx context.Context, id string, limit int) ([]spotify.Playlist, error)
	GetPlaylistTracks(ctx context.Context, id string, limit int) ([]spotify.TrackItem, error)
	GetUser(ctx context.Context, id string) (*spotify.User, error)
}

// SeedSource supplies expansion seeds: previously persisted real-user
// candidates, least recently updated first.
type SeedSource interface {
	ExpansionSeeds(ctx context.Context, limit int) ([]candidate.PersistedCandidate, error)
}

// Options bound one expansion pass.
type Options struct {
	SeedLimit             int `json:"seedLimit"`
	PerSeedPlaylistLimit  int `json:"perSeedPlaylistLimit"`
	PerPlaylistTrackLimit int `json:"perPlaylistTrackLimit"`
	MaxNewCandidates      int `json:"maxNewCandidates"`
}

// Result is the outcome of one expansion pass. Edges is keyed by source user
// id so callers can persist provenance without re-deriving it.
type Result struct {
	Count      int                                `json:"count"`
	Candidates []candidate.Candidate              `json:"candidates"`
	Edges      map[string][]candidate.SourceRef   `json:"edges"`
	ExecutedAt time.Time                          `json:"executedAt"`
}

// Engine crawls seed candidates' playlists for second-degree candidates.
type Engine struct {
	api       API
	seeds     SeedSource
	weights   candidate.ScoreWeights
	seedDelay time.Duration
	now       func() time.Time
}

// NewEngine creates an expansion engine.
func NewEngine(api API, seeds SeedSource, weights candidate.ScoreWeights) *Engine {
	return &Engine{
		api:       api,
		seeds:     seeds,
		weights:   weights,
		seedDelay: defaultSeedDelay,
		now:       time.Now,
	}
}

// SetSeedDelay overrides the inter-seed pacing delay. Tests use zero.
func (e *Engine) SetSeedDelay(d time.Duration) { e.seedDelay = d }

// Expand runs one expansion pass. Inaccessible playlists or track pages are
// skipped, never fatal; collection stops early once MaxNewCandidates is
// reached. Collected real users get best-effort profile enrichment.
func (e *Engine) Expand(ctx context.Context, opts Options) (*Result, error) {
	seeds, err := e.seeds.ExpansionSeeds(ctx, opts.SeedLimit)
	if err != nil {
		return nil, err
	}

	slog.Info("expansion started",
		"component", "expansion",
		"seeds", len(seeds),
		"max_new", opts.MaxNewCandidates,
	)

	col := &collector{
		index: make(map[string]int),
		edges: make(map[string][]candidate.SourceRef),
		max:   opts.MaxNewCandidates,
	}

	for _, seed := range seeds {
		if col.full() || ctx.Err() != nil {
			break
		}
		if err := e.expandSeed(ctx, seed, opts, col); err != nil {
			slog.Warn("seed expansion failed, skipping",
				"component", "expansion",
				"seed_id", seed.SourceUserID,
				"error", err,
			)
		}
		if e.seedDelay > 0 && !col.full() {
			select {
			case <-ctx.Done():
			case <-time.After(e.seedDelay):
			}
		}
	}

	discovery.EnrichProfiles(ctx, e.api, col.items)

	slog.Info("expansion completed",
		"component", "expansion",
		"found", len(col.items),
	)

	return &Result{
		Count:      len(col.items),
		Candidates: col.items,
		Edges:      col.edges,
		ExecutedAt: e.now().UTC(),
	}, nil
}

// expandSeed crawls one seed's public playlists.
func (e *Engine) expandSeed(ctx context.Context, seed candidate.PersistedCandidate, opts Options, col *collector) error {
	playlists, err := e.api.GetUserPlaylists(ctx, seed.SourceUserID, opts.PerSeedPlaylistLimit)
	if err != nil {
		return err
	}

	for _, pl := range playlists {
		if col.full() {
			return nil
		}
		if pl.ID == "" {
			continue
		}

		if pl.Owner != nil && pl.Owner.ID != "" && pl.Owner.ID != seed.SourceUserID {
			col.add(e.ownerCandidate(pl.Owner), candidate.SourceRef{
				PlaylistID:   pl.ID,
				PlaylistName: pl.Name,
				OwnerID:      pl.Owner.ID,
				DiscoveredAt: e.now().UTC(),
			})
		}

		tracks, err := e.api.GetPlaylistTracks(ctx, pl.ID, opts.PerPlaylistTrackLimit)
		if err != nil {
			// Some playlists are inaccessible with app credentials; skip.
			slog.Debug("playlist tracks unavailable",
				"component", "expansion",
				"playlist_id", pl.ID,
				"error", err,
			)
			continue
		}

		for _, item := range tracks {
			if col.full() {
				return nil
			}
			adder := item.AddedBy
			if adder == nil || adder.ID == "" {
				continue
			}
			ref := candidate.SourceRef{
				PlaylistID:   pl.ID,
				PlaylistName: pl.Name,
				AddedByID:    adder.ID,
				DiscoveredAt: e.now().UTC(),
			}
			if pl.Owner != nil {
				ref.OwnerID = pl.Owner.ID
			}
			if item.Track != nil {
				ref.TrackID = item.Track.ID
			}
			col.add(e.adderCandidate(adder), ref)
		}
	}
	return nil
}

func (e *Engine) ownerCandidate(owner *spotify.UserRef) candidate.Candidate {
	return e.newCandidate(owner, e.weights.PlaylistContributor)
}

func (e *Engine) adderCandidate(adder *spotify.UserRef) candidate.Candidate {
	return e.newCandidate(adder, e.weights.TrackAdder)
}

func (e *Engine) newCandidate(user *spotify.UserRef, score int) candidate.Candidate {
	name := user.DisplayName
	if name == "" {
		name = "Spotify User"
	}
	avatar := ""
	if len(user.Images) > 0 {
		avatar = user.Images[0].URL
	}
	return candidate.Candidate{
		SourcePlatform:  candidate.PlatformSpotify,
		SourceUserID:    user.ID,
		Kind:            candidate.KindRealUser,
		DisplayName:     name,
		ProfileURL:      user.ProfileURL(),
		AvatarURL:       avatar,
		MatchScore:      score,
		DiscoveryMethod: candidate.MethodPlaylistContributor,
		Evidence: candidate.Evidence{
			GenreMatches: []string{"unknown"},
		},
	}
}

// collector accumulates distinct candidates and their provenance edges.
// Every edge is recorded even when the candidate was already collected:
// provenance is a log, not a set.
type collector struct {
	index map[string]int
	items []candidate.Candidate
	edges map[string][]candidate.SourceRef
	max   int
}

func (c *collector) full() bool {
	return c.max > 0 && len(c.items) >= c.max
}

func (c *collector) add(cand candidate.Candidate, edge candidate.SourceRef) {
	if _, ok := c.index[cand.SourceUserID]; !ok {
		if c.full() {
			return
		}
		c.index[cand.SourceUserID] = len(c.items)
		c.items = append(c.items, cand)
	}
	c.edges[cand.SourceUserID] = append(c.edges[cand.SourceUserID], edge)
}
