// Package api exposes the HTTP control surface: settings, manual run
// triggers, candidate queries, and stats.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/settings"
	"github.com/soundreach/fanscout/internal/store"
	"github.com/soundreach/fanscout/internal/validation"
	"github.com/soundreach/fanscout/internal/worker"
)

// Runner triggers discovery work outside the scheduler.
type Runner interface {
	RunOnce(ctx context.Context, force bool) (*settings.RunEntry, error)
	ExpandOnce(ctx context.Context) (*settings.ComboResult, error)
}

// Exporter triggers a candidate export outside the export schedule.
type Exporter interface {
	ExportNow(ctx context.Context) (string, int, error)
}

// Handler implements the API handlers
type Handler struct {
	store    store.Store
	runner   Runner
	exporter Exporter
	apiKey   string
	version  string
}

// NewHandler creates a new Handler. Runner and exporter may be nil in
// read-only deployments; the corresponding endpoints then return 503.
func NewHandler(s store.Store, runner Runner, exporter Exporter, apiKey, version string) *Handler {
	return &Handler{
		store:    s,
		runner:   runner,
		exporter: exporter,
		apiKey:   apiKey,
		version:  version,
	}
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	CandidateCount int    `json:"candidateCount"`
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		Version:        h.version,
		CandidateCount: count,
	})
}

// GetSettings handles GET /api/v1/discovery/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	doc, err := h.store.GetSettings(r.Context())
	if err != nil {
		slog.Error("failed to load settings", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// UpdateSettings handles PUT /api/v1/discovery/settings. The body is a
// partial update; omitted fields keep their stored values.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update settings.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	doc, err := h.store.GetSettings(r.Context())
	if err != nil {
		slog.Error("failed to load settings", "error", err)
		MapStoreError(w, r, err)
		return
	}

	update.Apply(doc)
	if errs := doc.Validate(); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Settings contain invalid fields", errs)
		return
	}

	saved, err := h.store.SaveSettings(r.Context(), *doc)
	if err != nil {
		slog.Error("failed to save settings", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// TriggerRun handles POST /api/v1/discovery/run. Manual runs bypass the
// enabled flag; an in-flight cycle yields 409.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		WriteProblem(w, r, http.StatusServiceUnavailable, "Discovery runner not available")
		return
	}

	entry, err := h.runner.RunOnce(r.Context(), true)
	if err != nil {
		if !errors.Is(err, worker.ErrRunInProgress) {
			slog.Error("manual discovery run failed", "error", err)
		}
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// TriggerExpansion handles POST /api/v1/discovery/expand.
func (h *Handler) TriggerExpansion(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		WriteProblem(w, r, http.StatusServiceUnavailable, "Discovery runner not available")
		return
	}

	result, err := h.runner.ExpandOnce(r.Context())
	if err != nil {
		if !errors.Is(err, worker.ErrRunInProgress) {
			slog.Error("manual expansion failed", "error", err)
		}
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListCandidates handles GET /api/v1/candidates
func (h *Handler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	filter, page, errs := parseCandidateQuery(r)
	if len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Query contains invalid parameters", errs)
		return
	}

	result, err := h.store.QueryCandidates(r.Context(), filter, page)
	if err != nil {
		slog.Error("candidate query failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ReenrichRequest asks for candidates to be queued for re-enrichment.
type ReenrichRequest struct {
	UserIDs []string `json:"userIds"`
}

// ReenrichResponse reports how many candidates moved back to pending.
type ReenrichResponse struct {
	Updated int `json:"updated"`
}

// Reenrich handles POST /api/v1/candidates/reenrich. Only synced or failed
// candidates move back to pending; others are left untouched.
func (h *Handler) Reenrich(w http.ResponseWriter, r *http.Request) {
	var req ReenrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if len(req.UserIDs) == 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
			{Field: "userIds", Message: "is required"},
		})
		return
	}

	updated, err := h.store.MarkEnrichment(r.Context(), req.UserIDs, candidate.SyncPending)
	if err != nil {
		slog.Error("reenrich failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReenrichResponse{Updated: updated})
}

// Stats handles GET /api/v1/discovery/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		slog.Error("stats query failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ExportResponse reports the outcome of a manual export.
type ExportResponse struct {
	Path       string `json:"path"`
	Candidates int    `json:"candidates"`
}

// TriggerExport handles POST /api/v1/export
func (h *Handler) TriggerExport(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		WriteProblem(w, r, http.StatusServiceUnavailable, "Export not available")
		return
	}

	path, count, err := h.exporter.ExportNow(r.Context())
	if err != nil {
		slog.Error("manual export failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExportResponse{Path: path, Candidates: count})
}

func parseCandidateQuery(r *http.Request) (store.Filter, store.Page, []validation.ValidationError) {
	var c validation.Collector
	q := r.URL.Query()

	filter := store.Filter{
		Genre:      q.Get("genre"),
		ArtistType: q.Get("artistType"),
	}

	if v := q.Get("kind"); v != "" {
		c.Add(validation.ValidateEnum("kind", v, []string{
			string(candidate.KindRealUser), string(candidate.KindArtistProxy),
		}))
		filter.Kind = candidate.Kind(v)
	}
	if v := q.Get("method"); v != "" {
		c.Add(validation.ValidateEnum("method", v, []string{
			string(candidate.MethodPlaylistOwner),
			string(candidate.MethodPlaylistContributor),
			string(candidate.MethodArtistFollower),
		}))
		filter.Method = candidate.DiscoveryMethod(v)
	}
	if v := q.Get("syncStatus"); v != "" {
		c.Add(validation.ValidateEnum("syncStatus", v, []string{
			string(candidate.SyncPending), string(candidate.SyncSyncing),
			string(candidate.SyncSynced), string(candidate.SyncFailed),
		}))
		filter.SyncStatus = candidate.SyncStatus(v)
	}
	if v := q.Get("minScore"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.Add(&validation.ValidationError{Field: "minScore", Message: "must be an integer"})
		} else {
			c.Add(validation.ValidateRange("minScore", float64(n), 0, candidate.MaxScore))
			filter.MinScore = n
		}
	}

	var page store.Page
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.Add(&validation.ValidationError{Field: "limit", Message: "must be a positive integer"})
		} else {
			page.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.Add(&validation.ValidationError{Field: "offset", Message: "must be a non-negative integer"})
		} else {
			page.Offset = n
		}
	}

	return filter, page, c.Errors()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
