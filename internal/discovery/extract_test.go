package discovery

import (
	"context"
	"strings"
	"testing"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/spotify"
)

func trackBy(artists ...spotify.ArtistRef) spotify.TrackItem {
	return spotify.TrackItem{Track: &spotify.Track{ID: "t", Artists: artists}}
}

func TestExtractor_OwnerCandidate(t *testing.T) {
	api := newMockAPI()
	e := NewExtractor(api, candidate.DefaultScoreWeights(), nil)

	pl := &spotify.Playlist{
		ID:          "pl1",
		Name:        "Best indie and rock",
		Description: "a jazz adjacent mix",
		Owner:       &spotify.UserRef{ID: "owner1", DisplayName: "Owner One"},
	}
	tracks := []spotify.TrackItem{
		trackBy(spotify.ArtistRef{ID: "a1", Name: "Artist One"}),
	}

	out := e.Extract(context.Background(), pl, tracks, 10)
	if len(out) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(out))
	}

	c := out[0]
	if c.SourceUserID != "owner1" || c.Kind != candidate.KindRealUser {
		t.Errorf("Unexpected owner candidate: %+v", c)
	}
	if c.MatchScore != 90 {
		t.Errorf("Expected score 90, got %d", c.MatchScore)
	}
	if got := strings.Join(c.Evidence.GenreMatches, ","); got != "indie,rock,jazz" {
		t.Errorf("Expected genre evidence from name+description, got %s", got)
	}
	if len(c.Evidence.ArtistMatches) != 1 || c.Evidence.ArtistMatches[0] != "Artist One" {
		t.Errorf("Expected artist evidence, got %v", c.Evidence.ArtistMatches)
	}
	if c.ProfileURL != "https://open.spotify.com/user/owner1" {
		t.Errorf("Expected fallback profile URL, got %s", c.ProfileURL)
	}
}

func TestExtractor_OwnerWithoutIDSkipped(t *testing.T) {
	api := newMockAPI()
	e := NewExtractor(api, candidate.DefaultScoreWeights(), nil)

	pl := &spotify.Playlist{ID: "pl1", Name: "mix", Owner: &spotify.UserRef{DisplayName: "ghost"}}
	out := e.Extract(context.Background(), pl, nil, 10)
	if len(out) != 0 {
		t.Errorf("Expected no candidates for owner without id, got %d", len(out))
	}
}

func TestExtractor_GenreScanFallsBackToUnknown(t *testing.T) {
	api := newMockAPI()
	e := NewExtractor(api, candidate.DefaultScoreWeights(), nil)

	pl := &spotify.Playlist{
		ID:    "pl1",
		Name:  "gym bangers",
		Owner: &spotify.UserRef{ID: "owner1"},
	}
	out := e.Extract(context.Background(), pl, nil, 10)
	if len(out) != 1 {
		t.Fatal("Expected owner candidate")
	}
	if len(out[0].Evidence.GenreMatches) != 1 || out[0].Evidence.GenreMatches[0] != "unknown" {
		t.Errorf("Expected [unknown] fallback, got %v", out[0].Evidence.GenreMatches)
	}
}

func TestExtractor_ArtistProxies(t *testing.T) {
	api := newMockAPI()
	api.artists["a1"] = &spotify.Artist{ID: "a1", Name: "Artist One", Genres: []string{"indie rock"}}
	api.artists["a2"] = &spotify.Artist{ID: "a2", Name: "Artist Two"}
	e := NewExtractor(api, candidate.DefaultScoreWeights(), nil)

	pl := &spotify.Playlist{ID: "pl1", Name: "mix", Owner: &spotify.UserRef{ID: "owner1"}}
	tracks := []spotify.TrackItem{
		trackBy(spotify.ArtistRef{ID: "a1", Name: "Artist One"}),
		trackBy(spotify.ArtistRef{ID: "a2", Name: "Artist Two"}),
	}

	out := e.Extract(context.Background(), pl, tracks, 10)
	if len(out) != 3 {
		t.Fatalf("Expected owner + 2 proxies, got %d", len(out))
	}

	proxy := out[1]
	if proxy.Kind != candidate.KindArtistProxy {
		t.Errorf("Expected artist_proxy kind, got %s", proxy.Kind)
	}
	if proxy.SourceUserID != "artist_a1" {
		t.Errorf("Expected synthetic id artist_a1, got %s", proxy.SourceUserID)
	}
	if proxy.DisplayName != "Fans of Artist One" {
		t.Errorf("Unexpected proxy display name: %s", proxy.DisplayName)
	}
	if proxy.MatchScore != 70 || proxy.DiscoveryMethod != candidate.MethodArtistFollower {
		t.Errorf("Unexpected proxy scoring: %+v", proxy)
	}

	// Artist without genres degrades to ["unknown"]
	if got := out[2].Evidence.GenreMatches; len(got) != 1 || got[0] != "unknown" {
		t.Errorf("Expected [unknown] genres for a2 proxy, got %v", got)
	}
}

func TestExtractor_ArtistLookupFailureSkipsProxy(t *testing.T) {
	api := newMockAPI()
	// a1 exists, a2 does not
	api.artists["a1"] = &spotify.Artist{ID: "a1", Name: "Artist One"}
	e := NewExtractor(api, candidate.DefaultScoreWeights(), nil)

	pl := &spotify.Playlist{ID: "pl1", Name: "mix", Owner: &spotify.UserRef{ID: "owner1"}}
	tracks := []spotify.TrackItem{
		trackBy(spotify.ArtistRef{ID: "a1", Name: "Artist One"}, spotify.ArtistRef{ID: "a2", Name: "Gone"}),
	}

	out := e.Extract(context.Background(), pl, tracks, 10)
	if len(out) != 2 {
		t.Fatalf("Expected owner + 1 proxy, got %d", len(out))
	}
}

func TestExtractor_ProxyCap(t *testing.T) {
	api := newMockAPI()
	var artists []spotify.ArtistRef
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7"} {
		api.artists[id] = &spotify.Artist{ID: id, Name: "Artist " + id}
		artists = append(artists, spotify.ArtistRef{ID: id, Name: "Artist " + id})
	}
	e := NewExtractor(api, candidate.DefaultScoreWeights(), nil)

	pl := &spotify.Playlist{ID: "pl1", Name: "mix", Owner: &spotify.UserRef{ID: "owner1"}}
	out := e.Extract(context.Background(), pl, []spotify.TrackItem{trackBy(artists...)}, 100)

	// owner + at most 5 proxies
	if len(out) != 6 {
		t.Errorf("Expected 6 candidates with proxy cap, got %d", len(out))
	}
}

func TestExtractor_LimitTruncates(t *testing.T) {
	api := newMockAPI()
	api.artists["a1"] = &spotify.Artist{ID: "a1", Name: "Artist One"}
	e := NewExtractor(api, candidate.DefaultScoreWeights(), nil)

	pl := &spotify.Playlist{ID: "pl1", Name: "mix", Owner: &spotify.UserRef{ID: "owner1"}}
	out := e.Extract(context.Background(), pl, []spotify.TrackItem{trackBy(spotify.ArtistRef{ID: "a1", Name: "x"})}, 1)

	if len(out) != 1 {
		t.Fatalf("Expected limit 1 to truncate, got %d", len(out))
	}
	if out[0].DiscoveryMethod != candidate.MethodPlaylistOwner {
		t.Errorf("Expected owner kept under truncation, got %s", out[0].DiscoveryMethod)
	}
}

func TestExtractor_MissingDisplayNameDefaults(t *testing.T) {
	api := newMockAPI()
	e := NewExtractor(api, candidate.DefaultScoreWeights(), nil)

	pl := &spotify.Playlist{ID: "pl1", Name: "mix", Owner: &spotify.UserRef{ID: "owner1"}}
	out := e.Extract(context.Background(), pl, nil, 10)
	if out[0].DisplayName != "Spotify User" {
		t.Errorf("Expected default display name, got %s", out[0].DisplayName)
	}
}

func TestArtistEvidence_WindowAndCap(t *testing.T) {
	var tracks []spotify.TrackItem
	// 12 tracks each with a distinct artist; only the first 10 are scanned
	// and at most 5 names kept.
	names := []string{"n1", "n2", "n3", "n4", "n5", "n6", "n7", "n8", "n9", "n10", "n11", "n12"}
	for i, n := range names {
		tracks = append(tracks, trackBy(spotify.ArtistRef{ID: n, Name: names[i]}))
	}

	got := artistEvidence(tracks)
	if len(got) != 5 {
		t.Fatalf("Expected 5 artist names, got %d", len(got))
	}
	if got[0] != "n1" || got[4] != "n5" {
		t.Errorf("Expected first five names in order, got %v", got)
	}
}
