package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/settings"
	"github.com/soundreach/fanscout/internal/store"
	"github.com/soundreach/fanscout/internal/worker"
)

const testAPIKey = "test-api-key"

type mockStore struct {
	doc        *settings.Settings
	saved      *settings.Settings
	candidates []candidate.PersistedCandidate
	lastFilter store.Filter
	lastPage   store.Page
	marked     []string
	markStatus candidate.SyncStatus
	count      int
	err        error
}

func newMockStore() *mockStore {
	doc := settings.Default(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	return &mockStore{doc: &doc}
}

func (m *mockStore) UpsertCandidate(ctx context.Context, c candidate.Candidate, facet candidate.Facet) (*candidate.PersistedCandidate, bool, error) {
	return nil, false, m.err
}

func (m *mockStore) SaveBatch(ctx context.Context, cands []candidate.Candidate, facet candidate.Facet) (*store.SaveResult, error) {
	return &store.SaveResult{}, m.err
}

func (m *mockStore) AppendSources(ctx context.Context, key candidate.NaturalKey, refs []candidate.SourceRef) error {
	return m.err
}

func (m *mockStore) GetCandidate(ctx context.Context, key candidate.NaturalKey) (*candidate.PersistedCandidate, error) {
	return nil, store.ErrNotFound
}

func (m *mockStore) QueryCandidates(ctx context.Context, filter store.Filter, page store.Page) (*store.CandidatePage, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.lastFilter = filter
	m.lastPage = page
	return &store.CandidatePage{Total: len(m.candidates), Items: m.candidates}, nil
}

func (m *mockStore) MarkEnrichment(ctx context.Context, userIDs []string, status candidate.SyncStatus) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.marked = userIDs
	m.markStatus = status
	return len(userIDs), nil
}

func (m *mockStore) RecordEnrichment(ctx context.Context, key candidate.NaturalKey, profile candidate.Profile, succeeded bool) (*candidate.PersistedCandidate, error) {
	return nil, m.err
}

func (m *mockStore) ExpansionSeeds(ctx context.Context, limit int) ([]candidate.PersistedCandidate, error) {
	return nil, m.err
}

func (m *mockStore) GetStats(ctx context.Context) (*store.Stats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &store.Stats{
		Total:        2,
		ByGenre:      map[string]int64{"indie": 2},
		ByArtistType: map[string]int64{"mainstream": 2},
		BySyncStatus: map[string]int64{"pending": 2},
		AverageScore: 85,
	}, nil
}

func (m *mockStore) Count(ctx context.Context) (int, error) {
	return m.count, m.err
}

func (m *mockStore) GetSettings(ctx context.Context) (*settings.Settings, error) {
	if m.err != nil {
		return nil, m.err
	}
	doc := *m.doc
	return &doc, nil
}

func (m *mockStore) SaveSettings(ctx context.Context, doc settings.Settings) (*settings.Settings, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.saved = &doc
	return &doc, nil
}

func (m *mockStore) RecordRun(ctx context.Context, entry settings.RunEntry) (*settings.Settings, error) {
	return m.doc, m.err
}

func (m *mockStore) Close() error { return nil }

type mockRunner struct {
	entry     *settings.RunEntry
	expansion *settings.ComboResult
	err       error
	forced    bool
}

func (m *mockRunner) RunOnce(ctx context.Context, force bool) (*settings.RunEntry, error) {
	m.forced = force
	if m.err != nil {
		return nil, m.err
	}
	return m.entry, nil
}

func (m *mockRunner) ExpandOnce(ctx context.Context) (*settings.ComboResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.expansion, nil
}

type mockExporter struct {
	path  string
	count int
	err   error
}

func (m *mockExporter) ExportNow(ctx context.Context) (string, int, error) {
	return m.path, m.count, m.err
}

func newTestServer(t *testing.T, st store.Store, runner Runner, exporter Exporter) *httptest.Server {
	t.Helper()
	h := NewHandler(st, runner, exporter, testAPIKey, "test")
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, body string, authed bool) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestHealth_NoAuthRequired(t *testing.T) {
	st := newMockStore()
	st.count = 7
	srv := newTestServer(t, st, nil, nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/health", "", false)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	health := decodeBody[HealthResponse](t, resp)
	if health.Status != "healthy" || health.CandidateCount != 7 {
		t.Errorf("Unexpected health payload: %+v", health)
	}
}

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil, nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/discovery/settings", "", false)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Expected problem+json, got %s", ct)
	}

	problem := decodeBody[Problem](t, resp)
	if problem.Status != http.StatusUnauthorized {
		t.Errorf("Unexpected problem: %+v", problem)
	}
	if strings.Contains(problem.Detail, testAPIKey) {
		t.Error("API key must never appear in responses")
	}
}

func TestGetSettings(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil, nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/discovery/settings", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	doc := decodeBody[settings.Settings](t, resp)
	if doc.Key != settings.GlobalKey {
		t.Errorf("Unexpected settings doc: %+v", doc)
	}
}

func TestUpdateSettings_PartialUpdate(t *testing.T) {
	st := newMockStore()
	srv := newTestServer(t, st, nil, nil)

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/v1/discovery/settings",
		`{"intervalMs": 120000, "maxResults": 25}`, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	if st.saved == nil {
		t.Fatal("Expected settings saved")
	}
	if st.saved.IntervalMs != 120000 || st.saved.MaxResults != 25 {
		t.Errorf("Expected edits applied, got %+v", st.saved)
	}
	if !st.saved.Enabled {
		t.Error("Expected omitted fields to keep stored values")
	}
}

func TestUpdateSettings_ValidationError(t *testing.T) {
	st := newMockStore()
	srv := newTestServer(t, st, nil, nil)

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/v1/discovery/settings",
		`{"intervalMs": 1000}`, true)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", resp.StatusCode)
	}

	problem := decodeBody[ProblemWithErrors](t, resp)
	if len(problem.Errors) == 0 || problem.Errors[0].Field != "intervalMs" {
		t.Errorf("Expected intervalMs field error, got %+v", problem.Errors)
	}
	if st.saved != nil {
		t.Error("Expected invalid settings not saved")
	}
}

func TestUpdateSettings_InvalidJSON(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil, nil)

	resp := doRequest(t, http.MethodPut, srv.URL+"/api/v1/discovery/settings", `{not json`, true)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestTriggerRun(t *testing.T) {
	runner := &mockRunner{entry: &settings.RunEntry{
		At:     time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		Totals: settings.RunTotals{Found: 12, Saved: 9, Combos: 3},
	}}
	srv := newTestServer(t, newMockStore(), runner, nil)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/discovery/run", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	if !runner.forced {
		t.Error("Expected manual trigger to force the run")
	}
	entry := decodeBody[settings.RunEntry](t, resp)
	if entry.Totals.Found != 12 {
		t.Errorf("Unexpected run entry: %+v", entry)
	}
}

func TestTriggerRun_Conflict(t *testing.T) {
	runner := &mockRunner{err: worker.ErrRunInProgress}
	srv := newTestServer(t, newMockStore(), runner, nil)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/discovery/run", "", true)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected 409 while a run is in progress, got %d", resp.StatusCode)
	}
}

func TestTriggerRun_NoRunner(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil, nil)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/discovery/run", "", true)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 without a runner, got %d", resp.StatusCode)
	}
}

func TestTriggerExpansion(t *testing.T) {
	runner := &mockRunner{expansion: &settings.ComboResult{
		Genre: "unknown", ArtistType: "expansion", Found: 4, Saved: 3,
	}}
	srv := newTestServer(t, newMockStore(), runner, nil)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/discovery/expand", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	result := decodeBody[settings.ComboResult](t, resp)
	if result.Found != 4 || result.Saved != 3 {
		t.Errorf("Unexpected expansion result: %+v", result)
	}
}

func TestListCandidates_Filters(t *testing.T) {
	st := newMockStore()
	srv := newTestServer(t, st, nil, nil)

	resp := doRequest(t, http.MethodGet,
		srv.URL+"/api/v1/candidates?genre=indie&kind=real_user&minScore=80&limit=10&offset=20", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	if st.lastFilter.Genre != "indie" || st.lastFilter.Kind != candidate.KindRealUser || st.lastFilter.MinScore != 80 {
		t.Errorf("Unexpected filter: %+v", st.lastFilter)
	}
	if st.lastPage.Limit != 10 || st.lastPage.Offset != 20 {
		t.Errorf("Unexpected page: %+v", st.lastPage)
	}
}

func TestListCandidates_InvalidParams(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil, nil)

	cases := []struct {
		name  string
		query string
		field string
	}{
		{"bogus kind", "kind=robot", "kind"},
		{"bogus sync status", "syncStatus=done", "syncStatus"},
		{"score out of range", "minScore=500", "minScore"},
		{"non-numeric score", "minScore=abc", "minScore"},
		{"negative limit", "limit=-1", "limit"},
	}

	for _, c := range cases {
		resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/candidates?"+c.query, "", true)
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d", c.name, resp.StatusCode)
			continue
		}
		problem := decodeBody[ProblemWithErrors](t, resp)
		found := false
		for _, e := range problem.Errors {
			if e.Field == c.field {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: expected error on %s, got %+v", c.name, c.field, problem.Errors)
		}
	}
}

func TestReenrich(t *testing.T) {
	st := newMockStore()
	srv := newTestServer(t, st, nil, nil)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/candidates/reenrich",
		`{"userIds": ["u1", "u2"]}`, true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	out := decodeBody[ReenrichResponse](t, resp)
	if out.Updated != 2 {
		t.Errorf("Expected 2 updated, got %d", out.Updated)
	}
	if st.markStatus != candidate.SyncPending {
		t.Errorf("Expected candidates moved to pending, got %s", st.markStatus)
	}
}

func TestReenrich_EmptyIDs(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil, nil)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/candidates/reenrich",
		`{"userIds": []}`, true)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("Expected 422, got %d", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	srv := newTestServer(t, newMockStore(), nil, nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/discovery/stats", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	stats := decodeBody[store.Stats](t, resp)
	if stats.Total != 2 || stats.AverageScore != 85 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestTriggerExport(t *testing.T) {
	exporter := &mockExporter{path: "/data/exports/candidates-x.csv", count: 42}
	srv := newTestServer(t, newMockStore(), nil, exporter)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/export", "", true)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	out := decodeBody[ExportResponse](t, resp)
	if out.Candidates != 42 || out.Path != exporter.path {
		t.Errorf("Unexpected export response: %+v", out)
	}
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	st := newMockStore()
	st.err = context.DeadlineExceeded
	srv := newTestServer(t, st, nil, nil)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/discovery/stats", "", true)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", resp.StatusCode)
	}

	problem := decodeBody[Problem](t, resp)
	if strings.Contains(problem.Detail, "deadline") {
		t.Error("Internal error details must not leak to clients")
	}
}
