package discovery

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/spotify"
)

// UserGetter is the slice of the API client profile enrichment needs.
type UserGetter interface {
	GetUser(ctx context.Context, id string) (*spotify.User, error)
}

// EnrichProfiles fills in follower count, avatar, display name, and canonical
// profile URL for real-user candidates in place. Enrichment is best-effort:
// failures are skipped per candidate and populated fields are never
// overwritten with empty ones. Artist proxies are not real accounts and are
// skipped entirely.
func EnrichProfiles(ctx context.Context, api UserGetter, cands []candidate.Candidate) {
	for i := range cands {
		c := &cands[i]
		if c.Kind != candidate.KindRealUser {
			continue
		}
		user, err := api.GetUser(ctx, c.SourceUserID)
		if err != nil {
			if !errors.Is(err, spotify.ErrNotFound) {
				slog.Debug("profile enrichment failed",
					"component", "discovery",
					"user_id", c.SourceUserID,
					"error", err,
				)
			}
			continue
		}
		applyProfile(c, user)
	}
}

func applyProfile(c *candidate.Candidate, user *spotify.User) {
	if user.Followers.Total > 0 {
		c.FollowersCount = user.Followers.Total
	}
	if url := firstImageURL(user.Images); url != "" && c.AvatarURL == "" {
		c.AvatarURL = url
	}
	if user.DisplayName != "" && (c.DisplayName == "" || c.DisplayName == "Spotify User") {
		c.DisplayName = user.DisplayName
	}
	if u := user.ExternalURLs["spotify"]; u != "" && c.ProfileURL == "" {
		c.ProfileURL = u
	}
}
