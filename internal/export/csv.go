package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/store"
)

// pageSize is how many candidates one export page pulls from the store.
const pageSize = 200

// Source is the slice of the store the exporter reads from.
type Source interface {
	QueryCandidates(ctx context.Context, filter store.Filter, page store.Page) (*store.CandidatePage, error)
}

var header = []string{
	"id", "source_platform", "source_user_id", "kind", "display_name",
	"profile_url", "followers_count", "match_score", "discovery_method",
	"genre_matches", "artist_matches", "sync_status", "facet_genre",
	"facet_artist_type", "first_seen_at", "updated_at",
}

// WriteCSV streams the full candidate pool to w as CSV, ordered by match
// score descending. Evidence sets are joined with "|".
func WriteCSV(ctx context.Context, src Source, w io.Writer) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	written := 0
	for offset := 0; ; offset += pageSize {
		page, err := src.QueryCandidates(ctx, store.Filter{}, store.Page{Limit: pageSize, Offset: offset})
		if err != nil {
			return written, fmt.Errorf("query candidates: %w", err)
		}
		for _, c := range page.Items {
			if err := cw.Write(record(c)); err != nil {
				return written, fmt.Errorf("write record: %w", err)
			}
			written++
		}
		if len(page.Items) < pageSize {
			break
		}
	}

	cw.Flush()
	return written, cw.Error()
}

func record(c candidate.PersistedCandidate) []string {
	return []string{
		c.ID,
		c.SourcePlatform,
		c.SourceUserID,
		string(c.Kind),
		c.DisplayName,
		c.ProfileURL,
		strconv.Itoa(c.FollowersCount),
		strconv.Itoa(c.MatchScore),
		string(c.DiscoveryMethod),
		strings.Join(c.Evidence.GenreMatches, "|"),
		strings.Join(c.Evidence.ArtistMatches, "|"),
		string(c.SyncStatus),
		c.DiscoveredVia.FacetGenre,
		c.DiscoveredVia.FacetArtistType,
		c.DiscoveredVia.FirstSeenAt.Format(time.RFC3339),
		c.UpdatedAt.Format(time.RFC3339),
	}
}

// WriteFile writes a timestamped CSV export under dir and returns its path
// and the number of candidates written.
func WriteFile(ctx context.Context, src Source, dir string, now time.Time) (string, int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("create export directory: %w", err)
	}

	name := ObjectName(now)
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create export file: %w", err)
	}

	written, err := WriteCSV(ctx, src, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return path, written, nil
}

// ObjectName returns the export file name for a given time.
// Convention: candidates-20060102T150405Z.csv
func ObjectName(now time.Time) string {
	return "candidates-" + now.UTC().Format("20060102T150405Z") + ".csv"
}
