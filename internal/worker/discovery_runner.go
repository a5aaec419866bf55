// Package worker contains the background loops: the scheduled discovery
// runner and the periodic export coordinator.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/discovery"
	"github.com/soundreach/fanscout/internal/expansion"
	"github.com/soundreach/fanscout/internal/settings"
	"github.com/soundreach/fanscout/internal/store"
)

// ErrRunInProgress is returned when a cycle is requested while one is running.
var ErrRunInProgress = errors.New("discovery run already in progress")

// ErrDisabled is returned when a scheduled cycle finds discovery disabled.
var ErrDisabled = errors.New("discovery is disabled")

// RunnerStore is the slice of the store the discovery runner needs.
type RunnerStore interface {
	GetSettings(ctx context.Context) (*settings.Settings, error)
	RecordRun(ctx context.Context, entry settings.RunEntry) (*settings.Settings, error)
	SaveBatch(ctx context.Context, cands []candidate.Candidate, facet candidate.Facet) (*store.SaveResult, error)
	AppendSources(ctx context.Context, key candidate.NaturalKey, refs []candidate.SourceRef) error
}

// Discoverer runs one facet discovery pass.
type Discoverer interface {
	Discover(ctx context.Context, facet candidate.Facet, maxResults int) (*discovery.Result, error)
}

// Expander runs one playlist-graph expansion pass.
type Expander interface {
	Expand(ctx context.Context, opts expansion.Options) (*expansion.Result, error)
}

// expansionFacet stamps candidates found through graph expansion rather than
// a faceted search.
var expansionFacet = candidate.Facet{Genre: "unknown", ArtistType: "expansion"}

// DiscoveryRunner runs discovery cycles on the interval from the settings
// document. Manual triggers and the timer share one cycle path and never
// overlap.
type DiscoveryRunner struct {
	store      RunnerStore
	discoverer Discoverer
	expander   Expander

	mu  sync.Mutex
	now func() time.Time
}

// NewDiscoveryRunner creates a runner. The expander is optional; when nil,
// cycles skip expansion regardless of settings.
func NewDiscoveryRunner(st RunnerStore, d Discoverer, e Expander) *DiscoveryRunner {
	return &DiscoveryRunner{
		store:      st,
		discoverer: d,
		expander:   e,
		now:        time.Now,
	}
}

// SetClock overrides the runner's clock. Tests use a fixed time.
func (r *DiscoveryRunner) SetClock(now func() time.Time) { r.now = now }

// Run starts the scheduler loop. The interval is re-read from settings after
// every wakeup so operator edits take effect without a restart.
func (r *DiscoveryRunner) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "discovery-runner",
		"action", "worker_started",
	)

	for {
		interval := r.currentInterval(ctx)

		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "discovery-runner",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-time.After(interval):
		}

		if _, err := r.RunOnce(ctx, false); err != nil {
			if errors.Is(err, ErrDisabled) || errors.Is(err, ErrRunInProgress) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			slog.Error("discovery cycle failed",
				"component", "worker",
				"worker", "discovery-runner",
				"action", "cycle_failed",
				"error", err,
			)
		}
	}
}

// currentInterval reads the scheduling interval from settings, falling back
// to the minimum when the document cannot be read.
func (r *DiscoveryRunner) currentInterval(ctx context.Context) time.Duration {
	doc, err := r.store.GetSettings(ctx)
	if err != nil {
		slog.Error("failed to read discovery settings",
			"component", "worker",
			"worker", "discovery-runner",
			"action", "read_settings_failed",
			"error", err,
		)
		return settings.MinIntervalMs * time.Millisecond
	}
	return doc.Interval()
}

// RunOnce executes one discovery cycle. Scheduled cycles respect the enabled
// flag; manual triggers (force) run regardless. Only one cycle runs at a
// time; a second request gets ErrRunInProgress.
func (r *DiscoveryRunner) RunOnce(ctx context.Context, force bool) (*settings.RunEntry, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	doc, err := r.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if !doc.Enabled && !force {
		return nil, ErrDisabled
	}

	start := r.now().UTC()
	combos := doc.Combos()
	if len(combos) > doc.MaxCombosPerRun {
		combos = combos[:doc.MaxCombosPerRun]
	}

	slog.Info("discovery cycle started",
		"component", "worker",
		"worker", "discovery-runner",
		"action", "cycle_started",
		"combos", len(combos),
		"forced", force,
	)

	entry := settings.RunEntry{At: start, Results: make([]settings.ComboResult, 0, len(combos))}
	for _, facet := range combos {
		if ctx.Err() != nil {
			break
		}
		entry.Results = append(entry.Results, r.runCombo(ctx, facet, doc.MaxResults))
	}

	if doc.IncludePlaylistExpansion && r.expander != nil && ctx.Err() == nil {
		entry.Results = append(entry.Results, r.runExpansion(ctx, doc))
	}

	for _, res := range entry.Results {
		entry.Totals.Found += res.Found
		entry.Totals.Saved += res.Saved
	}
	entry.Totals.Combos = len(entry.Results)
	entry.DurationMs = r.now().UTC().Sub(start).Milliseconds()

	if _, err := r.store.RecordRun(ctx, entry); err != nil {
		slog.Error("failed to record run history",
			"component", "worker",
			"worker", "discovery-runner",
			"action", "record_run_failed",
			"error", err,
		)
	}

	slog.Info("discovery cycle completed",
		"component", "worker",
		"worker", "discovery-runner",
		"action", "cycle_completed",
		"found", entry.Totals.Found,
		"saved", entry.Totals.Saved,
		"duration_ms", entry.DurationMs,
	)

	return &entry, nil
}

// ExpandOnce runs a single expansion pass outside the cycle, using the
// expansion bounds from the settings document. Shares the cycle lock so it
// never overlaps a running cycle.
func (r *DiscoveryRunner) ExpandOnce(ctx context.Context) (*settings.ComboResult, error) {
	if r.expander == nil {
		return nil, errors.New("expansion is not configured")
	}
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	doc, err := r.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	res := r.runExpansion(ctx, doc)
	return &res, nil
}

// runCombo runs one facet and persists its candidates. A failed combo is
// isolated: it reports zero found/saved and the cycle continues.
func (r *DiscoveryRunner) runCombo(ctx context.Context, facet candidate.Facet, maxResults int) settings.ComboResult {
	res := settings.ComboResult{Genre: facet.Genre, ArtistType: facet.ArtistType}

	result, err := r.discoverer.Discover(ctx, facet, maxResults)
	if err != nil {
		slog.Error("combo discovery failed",
			"component", "worker",
			"worker", "discovery-runner",
			"action", "combo_failed",
			"genre", facet.Genre,
			"artist_type", facet.ArtistType,
			"error", err,
		)
		return res
	}
	res.Found = result.Count

	saved, err := r.store.SaveBatch(ctx, result.Candidates, facet)
	if err != nil {
		slog.Error("combo save failed",
			"component", "worker",
			"worker", "discovery-runner",
			"action", "combo_save_failed",
			"genre", facet.Genre,
			"artist_type", facet.ArtistType,
			"error", err,
		)
		return res
	}
	res.Saved = saved.Saved
	return res
}

// runExpansion runs one expansion pass and persists candidates plus their
// provenance edges. Reported under a synthetic combo so it shows up in run
// history alongside the facets.
func (r *DiscoveryRunner) runExpansion(ctx context.Context, doc *settings.Settings) settings.ComboResult {
	res := settings.ComboResult{Genre: expansionFacet.Genre, ArtistType: expansionFacet.ArtistType}

	seedLimit, perSeed, perPlaylist, maxNew := doc.ExpansionOptions()
	result, err := r.expander.Expand(ctx, expansion.Options{
		SeedLimit:             seedLimit,
		PerSeedPlaylistLimit:  perSeed,
		PerPlaylistTrackLimit: perPlaylist,
		MaxNewCandidates:      maxNew,
	})
	if err != nil {
		slog.Error("expansion failed",
			"component", "worker",
			"worker", "discovery-runner",
			"action", "expansion_failed",
			"error", err,
		)
		return res
	}
	res.Found = result.Count

	saved, err := r.store.SaveBatch(ctx, result.Candidates, expansionFacet)
	if err != nil {
		slog.Error("expansion save failed",
			"component", "worker",
			"worker", "discovery-runner",
			"action", "expansion_save_failed",
			"error", err,
		)
		return res
	}
	res.Saved = saved.Saved

	for userID, refs := range result.Edges {
		key := candidate.NaturalKey{Platform: candidate.PlatformSpotify, UserID: userID}
		if err := r.store.AppendSources(ctx, key, refs); err != nil {
			slog.Warn("failed to append provenance",
				"component", "worker",
				"worker", "discovery-runner",
				"user_id", userID,
				"error", err,
			)
		}
	}
	return res
}
