package fanscout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, APIKey: "key"})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestClient_Health(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/health" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Health{Status: "healthy", CandidateCount: 3})
	})

	health, err := c.Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" || health.CandidateCount != 3 {
		t.Errorf("Unexpected health: %+v", health)
	}
}

func TestClient_SendsBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("Expected bearer auth, got %q", got)
		}
		json.NewEncoder(w).Encode(Stats{})
	})

	if _, err := c.Stats(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestClient_ListCandidates_QueryParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("genre") != "indie" || q.Get("minScore") != "80" || q.Get("limit") != "10" {
			t.Errorf("Unexpected query: %s", r.URL.RawQuery)
		}
		if q.Has("kind") {
			t.Error("Expected zero-value filters omitted")
		}
		json.NewEncoder(w).Encode(CandidatePage{Total: 1, Items: []Candidate{{ID: "c1"}}})
	})

	page, err := c.ListCandidates(context.Background(), CandidateQuery{
		Genre:    "indie",
		MinScore: 80,
		Limit:    10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].ID != "c1" {
		t.Errorf("Unexpected page: %+v", page)
	}
}

func TestClient_UpdateSettings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("Expected PUT, got %s", r.Method)
		}
		var update SettingsUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			t.Fatal(err)
		}
		if update.IntervalMs == nil || *update.IntervalMs != 120000 {
			t.Errorf("Unexpected update body: %+v", update)
		}
		json.NewEncoder(w).Encode(Settings{Key: "global", IntervalMs: 120000})
	})

	interval := int64(120000)
	doc, err := c.UpdateSettings(context.Background(), SettingsUpdate{IntervalMs: &interval})
	if err != nil {
		t.Fatal(err)
	}
	if doc.IntervalMs != 120000 {
		t.Errorf("Unexpected settings: %+v", doc)
	}
}

func TestClient_Reenrich(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string][]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req["userIds"]) != 2 {
			t.Errorf("Unexpected request: %v", req)
		}
		json.NewEncoder(w).Encode(map[string]int{"updated": 2})
	})

	updated, err := c.Reenrich(context.Background(), []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}
	if updated != 2 {
		t.Errorf("Expected 2 updated, got %d", updated)
	}
}

func TestClient_ProblemResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(Problem{
			Type:   "https://fanscout.dev/errors/conflict",
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: "A discovery run is already in progress",
		})
	})

	_, err := c.TriggerRun(context.Background())
	if err == nil {
		t.Fatal("Expected error for conflict response")
	}

	var problem *Problem
	if !errors.As(err, &problem) {
		t.Fatalf("Expected Problem error, got %T: %v", err, err)
	}
	if problem.Status != http.StatusConflict {
		t.Errorf("Unexpected problem: %+v", problem)
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("Expected error for missing BaseURL")
	}
}
