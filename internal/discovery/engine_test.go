package discovery

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/spotify"
)

// mockAPI is an in-memory platform API for engine tests.
type mockAPI struct {
	searchResults []spotify.Playlist
	searchErr     error
	playlists     map[string]*spotify.Playlist
	tracks        map[string][]spotify.TrackItem
	users         map[string]*spotify.User
	artists       map[string]*spotify.Artist

	playlistErrs map[string]error
	userCalls    []string
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		playlists:    make(map[string]*spotify.Playlist),
		tracks:       make(map[string][]spotify.TrackItem),
		users:        make(map[string]*spotify.User),
		artists:      make(map[string]*spotify.Artist),
		playlistErrs: make(map[string]error),
	}
}

func (m *mockAPI) SearchPlaylists(ctx context.Context, query string, limit int) ([]spotify.Playlist, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if len(m.searchResults) > limit {
		return m.searchResults[:limit], nil
	}
	return m.searchResults, nil
}

func (m *mockAPI) GetPlaylist(ctx context.Context, id string) (*spotify.Playlist, error) {
	if err := m.playlistErrs[id]; err != nil {
		return nil, err
	}
	pl, ok := m.playlists[id]
	if !ok {
		return nil, spotify.ErrNotFound
	}
	return pl, nil
}

func (m *mockAPI) GetPlaylistTracks(ctx context.Context, id string, limit int) ([]spotify.TrackItem, error) {
	items := m.tracks[id]
	if len(items) > limit {
		return items[:limit], nil
	}
	return items, nil
}

func (m *mockAPI) GetUser(ctx context.Context, id string) (*spotify.User, error) {
	m.userCalls = append(m.userCalls, id)
	u, ok := m.users[id]
	if !ok {
		return nil, spotify.ErrNotFound
	}
	return u, nil
}

func (m *mockAPI) GetUserPlaylists(ctx context.Context, id string, limit int) ([]spotify.Playlist, error) {
	return nil, spotify.ErrNotFound
}

func (m *mockAPI) GetArtist(ctx context.Context, id string) (*spotify.Artist, error) {
	a, ok := m.artists[id]
	if !ok {
		return nil, spotify.ErrNotFound
	}
	return a, nil
}

func (m *mockAPI) addPlaylist(id, name, ownerID, ownerName string) {
	pl := spotify.Playlist{
		ID:    id,
		Name:  name,
		Owner: &spotify.UserRef{ID: ownerID, DisplayName: ownerName},
	}
	m.playlists[id] = &pl
	m.searchResults = append(m.searchResults, pl)
}

func TestEngine_Discover(t *testing.T) {
	api := newMockAPI()
	api.addPlaylist("pl1", "indie mix", "owner1", "Owner One")
	api.addPlaylist("pl2", "fresh rock", "owner2", "Owner Two")

	engine := NewEngine(api, candidate.DefaultScoreWeights())

	result, err := engine.Discover(context.Background(), candidate.Facet{Genre: "indie", ArtistType: "mainstream"}, 50)
	if err != nil {
		t.Fatal(err)
	}

	if result.Count != 2 {
		t.Fatalf("Expected 2 candidates, got %d", result.Count)
	}
	for _, c := range result.Candidates {
		if c.MatchScore != 90 {
			t.Errorf("Expected owner score 90, got %d", c.MatchScore)
		}
		if c.DiscoveryMethod != candidate.MethodPlaylistOwner {
			t.Errorf("Expected playlist_owner method, got %s", c.DiscoveryMethod)
		}
	}
}

func TestEngine_Discover_SearchFailureIsFatal(t *testing.T) {
	api := newMockAPI()
	api.searchErr = errors.New("upstream down")

	engine := NewEngine(api, candidate.DefaultScoreWeights())

	_, err := engine.Discover(context.Background(), candidate.Facet{Genre: "indie", ArtistType: "mainstream"}, 50)
	if err == nil {
		t.Fatal("Expected error when search fails")
	}
}

func TestEngine_Discover_PlaylistFailureIsSkipped(t *testing.T) {
	api := newMockAPI()
	api.addPlaylist("pl1", "indie mix", "owner1", "Owner One")
	api.addPlaylist("pl2", "broken", "owner2", "Owner Two")
	api.playlistErrs["pl2"] = errors.New("boom")

	engine := NewEngine(api, candidate.DefaultScoreWeights())

	result, err := engine.Discover(context.Background(), candidate.Facet{Genre: "indie", ArtistType: "mainstream"}, 50)
	if err != nil {
		t.Fatal(err)
	}

	if result.Count != 1 {
		t.Fatalf("Expected 1 candidate after skipping broken playlist, got %d", result.Count)
	}
	if result.Candidates[0].SourceUserID != "owner1" {
		t.Errorf("Expected owner1, got %s", result.Candidates[0].SourceUserID)
	}
}

func TestEngine_Discover_RepeatSightingRaisesScore(t *testing.T) {
	api := newMockAPI()
	// Same owner behind two playlists: 90 + 10 repeat bonus = 100
	api.addPlaylist("pl1", "indie mix", "owner1", "Owner One")
	api.addPlaylist("pl2", "more indie", "owner1", "Owner One")

	engine := NewEngine(api, candidate.DefaultScoreWeights())

	result, err := engine.Discover(context.Background(), candidate.Facet{Genre: "indie", ArtistType: "mainstream"}, 50)
	if err != nil {
		t.Fatal(err)
	}

	if result.Count != 1 {
		t.Fatalf("Expected 1 deduplicated candidate, got %d", result.Count)
	}
	if result.Candidates[0].MatchScore != 100 {
		t.Errorf("Expected repeat-boosted score 100, got %d", result.Candidates[0].MatchScore)
	}
}

func TestEngine_Discover_RepeatScoreNeverExceedsCap(t *testing.T) {
	api := newMockAPI()
	for i := 0; i < 5; i++ {
		api.addPlaylist(fmt.Sprintf("pl%d", i), "indie mix", "owner1", "Owner One")
	}

	engine := NewEngine(api, candidate.DefaultScoreWeights())

	result, err := engine.Discover(context.Background(), candidate.Facet{Genre: "indie", ArtistType: "mainstream"}, 50)
	if err != nil {
		t.Fatal(err)
	}

	if result.Candidates[0].MatchScore != candidate.MaxScore {
		t.Errorf("Expected score capped at %d, got %d", candidate.MaxScore, result.Candidates[0].MatchScore)
	}
}

func TestEngine_Discover_OrderedByScoreDescending(t *testing.T) {
	api := newMockAPI()
	api.addPlaylist("pl1", "indie mix", "owner1", "Owner One")
	api.addPlaylist("pl2", "more indie", "owner2", "Owner Two")
	api.addPlaylist("pl3", "yet more indie", "owner2", "Owner Two")

	engine := NewEngine(api, candidate.DefaultScoreWeights())

	result, err := engine.Discover(context.Background(), candidate.Facet{Genre: "indie", ArtistType: "mainstream"}, 50)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i < len(result.Candidates); i++ {
		if result.Candidates[i-1].MatchScore < result.Candidates[i].MatchScore {
			t.Errorf("Candidates not ordered by score: %d before %d",
				result.Candidates[i-1].MatchScore, result.Candidates[i].MatchScore)
		}
	}
	if result.Candidates[0].SourceUserID != "owner2" {
		t.Errorf("Expected repeat-boosted owner2 first, got %s", result.Candidates[0].SourceUserID)
	}
}

func TestEngine_Discover_TruncatesToMaxResults(t *testing.T) {
	api := newMockAPI()
	for i := 0; i < 5; i++ {
		api.addPlaylist(fmt.Sprintf("pl%d", i), "indie mix", fmt.Sprintf("owner%d", i), "Owner")
	}

	engine := NewEngine(api, candidate.DefaultScoreWeights())

	result, err := engine.Discover(context.Background(), candidate.Facet{Genre: "indie", ArtistType: "mainstream"}, 3)
	if err != nil {
		t.Fatal(err)
	}

	if result.Count != 3 {
		t.Errorf("Expected truncation to 3 candidates, got %d", result.Count)
	}
}

func TestPerPlaylistQuota(t *testing.T) {
	cases := []struct {
		maxResults, playlists, want int
	}{
		{50, 10, 5},
		{50, 0, 50},
		{10, 3, 4},
		{1, 10, 1},
	}
	for _, c := range cases {
		if got := perPlaylistQuota(c.maxResults, c.playlists); got != c.want {
			t.Errorf("perPlaylistQuota(%d, %d) = %d, want %d", c.maxResults, c.playlists, got, c.want)
		}
	}
}
