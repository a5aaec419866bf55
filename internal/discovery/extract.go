package discovery

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/spotify"
)

const (
	// evidenceTrackWindow is how many leading tracks contribute artist evidence.
	evidenceTrackWindow = 10
	// evidenceArtistCap bounds artist names kept as evidence per playlist.
	evidenceArtistCap = 5
	// artistProxyCap bounds artist-proxy candidates emitted per playlist.
	artistProxyCap = 5
)

// ArtistGetter is the slice of the API client the extractor needs.
type ArtistGetter interface {
	GetArtist(ctx context.Context, id string) (*spotify.Artist, error)
}

// Extractor derives candidates from a playlist's metadata and track list.
type Extractor struct {
	api        ArtistGetter
	weights    candidate.ScoreWeights
	vocabulary []string
}

// NewExtractor creates an Extractor scoring with the given weights and
// scanning the given genre vocabulary. A nil vocabulary uses GenreVocabulary.
func NewExtractor(api ArtistGetter, weights candidate.ScoreWeights, vocabulary []string) *Extractor {
	if vocabulary == nil {
		vocabulary = GenreVocabulary
	}
	return &Extractor{api: api, weights: weights, vocabulary: vocabulary}
}

// Extract emits zero or more candidates for one playlist: the playlist owner
// (when it has a stable id) and up to artistProxyCap "fans of X" proxies for
// artists referenced by the tracks. The result is truncated to limit.
func (e *Extractor) Extract(ctx context.Context, playlist *spotify.Playlist, tracks []spotify.TrackItem, limit int) []candidate.Candidate {
	var out []candidate.Candidate

	if playlist.Owner != nil && playlist.Owner.ID != "" {
		owner := playlist.Owner
		out = append(out, candidate.Candidate{
			SourcePlatform:  candidate.PlatformSpotify,
			SourceUserID:    owner.ID,
			Kind:            candidate.KindRealUser,
			DisplayName:     displayNameOrDefault(owner.DisplayName),
			ProfileURL:      owner.ProfileURL(),
			AvatarURL:       firstImageURL(owner.Images),
			MatchScore:      e.weights.PlaylistOwner,
			DiscoveryMethod: candidate.MethodPlaylistOwner,
			Evidence: candidate.Evidence{
				GenreMatches:  e.scanGenres(playlist.Name + " " + playlist.Description),
				ArtistMatches: artistEvidence(tracks),
			},
		})
	}

	for _, artistID := range referencedArtistIDs(tracks, artistProxyCap) {
		artist, err := e.api.GetArtist(ctx, artistID)
		if err != nil {
			if !errors.Is(err, spotify.ErrNotFound) {
				slog.Warn("artist lookup failed",
					"component", "discovery",
					"artist_id", artistID,
					"error", err,
				)
			}
			continue
		}
		genres := artist.Genres
		if len(genres) == 0 {
			genres = []string{"unknown"}
		}
		out = append(out, candidate.Candidate{
			SourcePlatform:  candidate.PlatformSpotify,
			SourceUserID:    candidate.ArtistProxyID(artistID),
			Kind:            candidate.KindArtistProxy,
			DisplayName:     "Fans of " + artist.Name,
			ProfileURL:      artist.ExternalURLs["spotify"],
			AvatarURL:       firstImageURL(artist.Images),
			FollowersCount:  artist.Followers.Total,
			MatchScore:      e.weights.ArtistProxy,
			DiscoveryMethod: candidate.MethodArtistFollower,
			Evidence: candidate.Evidence{
				GenreMatches:  genres,
				ArtistMatches: []string{artist.Name},
			},
		})
	}

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// scanGenres case-insensitively matches the vocabulary against text.
// An empty match set degrades to ["unknown"] so evidence is never empty.
func (e *Extractor) scanGenres(text string) []string {
	lowered := strings.ToLower(text)
	var genres []string
	for _, g := range e.vocabulary {
		if strings.Contains(lowered, g) {
			genres = append(genres, g)
		}
	}
	if len(genres) == 0 {
		return []string{"unknown"}
	}
	return genres
}

// artistEvidence collects up to evidenceArtistCap distinct artist names from
// the first evidenceTrackWindow tracks.
func artistEvidence(tracks []spotify.TrackItem) []string {
	seen := make(map[string]struct{})
	var names []string
	window := tracks
	if len(window) > evidenceTrackWindow {
		window = window[:evidenceTrackWindow]
	}
	for _, item := range window {
		if item.Track == nil {
			continue
		}
		for _, a := range item.Track.Artists {
			if a.Name == "" {
				continue
			}
			if _, ok := seen[a.Name]; ok {
				continue
			}
			seen[a.Name] = struct{}{}
			names = append(names, a.Name)
			if len(names) == evidenceArtistCap {
				return names
			}
		}
	}
	return names
}

// referencedArtistIDs collects up to max distinct artist ids across tracks.
func referencedArtistIDs(tracks []spotify.TrackItem, max int) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, item := range tracks {
		if item.Track == nil {
			continue
		}
		for _, a := range item.Track.Artists {
			if a.ID == "" {
				continue
			}
			if _, ok := seen[a.ID]; ok {
				continue
			}
			seen[a.ID] = struct{}{}
			ids = append(ids, a.ID)
			if len(ids) == max {
				return ids
			}
		}
	}
	return ids
}

func displayNameOrDefault(name string) string {
	if name == "" {
		return "Spotify User"
	}
	return name
}

func firstImageURL(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
