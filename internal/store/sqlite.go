package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/soundreach/fanscout/internal/candidate"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite-backed candidate database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the candidate database at dbPath.
// It enables WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SetClock overrides the store's clock. Tests use a fixed time.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

const candidateColumns = `id, source_platform, source_user_id, kind, display_name,
	profile_url, avatar_url, followers_count, following_count, match_score,
	discovery_method, genre_matches, artist_matches, sync_status, last_synced_at,
	sources, facet_genre, facet_artist_type, first_seen_at, created_at, updated_at`

// UpsertCandidate saves one candidate under its natural key. Inserts create a
// pending record stamped with the facet; merges keep the higher match score,
// union evidence, fill still-empty profile fields, and never touch the
// discovery facet or sync status. The returned bool reports whether a new
// record was created.
func (s *SQLiteStore) UpsertCandidate(ctx context.Context, c candidate.Candidate, facet candidate.Facet) (*candidate.PersistedCandidate, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	existing, err := getCandidateTx(ctx, tx, c.Key())
	if err != nil && err != ErrNotFound {
		return nil, false, err
	}

	now := s.now().UTC()

	if existing == nil {
		inserted, err := insertCandidateTx(ctx, tx, c, facet, now)
		if err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		return inserted, true, nil
	}

	merged := mergeCandidate(existing, c, now)
	if err := updateMergedTx(ctx, tx, merged); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return merged, false, nil
}

// SaveBatch upserts a slice of candidates under one facet and reports how
// many were created versus merged. Each candidate is its own transaction so a
// bad record cannot take the batch down.
func (s *SQLiteStore) SaveBatch(ctx context.Context, cands []candidate.Candidate, facet candidate.Facet) (*SaveResult, error) {
	result := &SaveResult{}
	for _, c := range cands {
		if c.SourcePlatform == "" || c.SourceUserID == "" {
			continue
		}
		_, created, err := s.UpsertCandidate(ctx, c, facet)
		if err != nil {
			return result, fmt.Errorf("upsert candidate %s: %w", c.SourceUserID, err)
		}
		result.Saved++
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

func insertCandidateTx(ctx context.Context, tx *sql.Tx, c candidate.Candidate, facet candidate.Facet, now time.Time) (*candidate.PersistedCandidate, error) {
	p := &candidate.PersistedCandidate{
		ID:         ulid.Make().String(),
		Candidate:  c,
		SyncStatus: candidate.SyncPending,
		Sources:    []candidate.SourceRef{},
		DiscoveredVia: candidate.DiscoveredVia{
			FacetGenre:      facet.Genre,
			FacetArtistType: facet.ArtistType,
			FirstSeenAt:     now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.MatchScore = candidate.ClampScore(p.MatchScore)

	genres, artists, sources, err := encodeJSONColumns(p)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO candidates (`+candidateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.SourcePlatform, p.SourceUserID, string(p.Kind), p.DisplayName,
		p.ProfileURL, p.AvatarURL, p.FollowersCount, p.FollowingCount, p.MatchScore,
		string(p.DiscoveryMethod), genres, artists, string(p.SyncStatus), nil,
		sources, p.DiscoveredVia.FacetGenre, p.DiscoveredVia.FacetArtistType,
		p.DiscoveredVia.FirstSeenAt.Format(time.RFC3339),
		p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// mergeCandidate applies re-discovery onto an existing record. Match score is
// monotone (max of old and new, capped), evidence only grows, and empty
// incoming profile fields never erase populated ones.
func mergeCandidate(existing *candidate.PersistedCandidate, incoming candidate.Candidate, now time.Time) *candidate.PersistedCandidate {
	merged := *existing

	if score := candidate.ClampScore(incoming.MatchScore); score > merged.MatchScore {
		merged.MatchScore = score
	}
	merged.Evidence.Union(incoming.Evidence)

	if merged.DisplayName == "" || merged.DisplayName == "Spotify User" {
		if incoming.DisplayName != "" {
			merged.DisplayName = incoming.DisplayName
		}
	}
	if merged.ProfileURL == "" {
		merged.ProfileURL = incoming.ProfileURL
	}
	if merged.AvatarURL == "" {
		merged.AvatarURL = incoming.AvatarURL
	}
	if merged.FollowersCount == 0 {
		merged.FollowersCount = incoming.FollowersCount
	}

	merged.UpdatedAt = now
	return &merged
}

func updateMergedTx(ctx context.Context, tx *sql.Tx, p *candidate.PersistedCandidate) error {
	genres, artists, _, err := encodeJSONColumns(p)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE candidates
		SET match_score = ?, genre_matches = ?, artist_matches = ?,
		    display_name = ?, profile_url = ?, avatar_url = ?, followers_count = ?,
		    updated_at = ?
		WHERE id = ?
	`,
		p.MatchScore, genres, artists,
		p.DisplayName, p.ProfileURL, p.AvatarURL, p.FollowersCount,
		p.UpdatedAt.Format(time.RFC3339), p.ID,
	)
	return err
}

// AppendSources appends provenance edges to a candidate's source log.
func (s *SQLiteStore) AppendSources(ctx context.Context, key candidate.NaturalKey, refs []candidate.SourceRef) error {
	if len(refs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p, err := getCandidateTx(ctx, tx, key)
	if err != nil {
		return err
	}

	p.Sources = append(p.Sources, refs...)
	sources, err := json.Marshal(p.Sources)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE candidates SET sources = ?, updated_at = ? WHERE id = ?
	`, string(sources), s.now().UTC().Format(time.RFC3339), p.ID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetCandidate fetches one candidate by natural key.
func (s *SQLiteStore) GetCandidate(ctx context.Context, key candidate.NaturalKey) (*candidate.PersistedCandidate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+candidateColumns+` FROM candidates
		WHERE source_platform = ? AND source_user_id = ?
	`, key.Platform, key.UserID)
	return scanCandidate(row)
}

func getCandidateTx(ctx context.Context, tx *sql.Tx, key candidate.NaturalKey) (*candidate.PersistedCandidate, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+candidateColumns+` FROM candidates
		WHERE source_platform = ? AND source_user_id = ?
	`, key.Platform, key.UserID)
	return scanCandidate(row)
}

// QueryCandidates returns one page of candidates matching the filter, ordered
// by match score descending with creation time then id as tiebreakers.
func (s *SQLiteStore) QueryCandidates(ctx context.Context, filter Filter, page Page) (*CandidatePage, error) {
	where, args := buildFilter(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM candidates"+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT " + candidateColumns + " FROM candidates" + where +
		" ORDER BY match_score DESC, created_at ASC, id ASC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []candidate.PersistedCandidate{}
	for rows.Next() {
		p, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &CandidatePage{Total: total, Items: items}, nil
}

func buildFilter(f Filter) (string, []any) {
	var clauses []string
	var args []any

	if f.Genre != "" {
		clauses = append(clauses, "facet_genre = ?")
		args = append(args, f.Genre)
	}
	if f.ArtistType != "" {
		clauses = append(clauses, "facet_artist_type = ?")
		args = append(args, f.ArtistType)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Method != "" {
		clauses = append(clauses, "discovery_method = ?")
		args = append(args, string(f.Method))
	}
	if f.SyncStatus != "" {
		clauses = append(clauses, "sync_status = ?")
		args = append(args, string(f.SyncStatus))
	}
	if f.MinScore > 0 {
		clauses = append(clauses, "match_score >= ?")
		args = append(args, f.MinScore)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// MarkEnrichment moves candidates to the given sync status. Only legal state
// machine transitions are applied; rows in other states and unknown ids are
// skipped. Returns how many rows changed.
func (s *SQLiteStore) MarkEnrichment(ctx context.Context, userIDs []string, status candidate.SyncStatus) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := s.now().UTC().Format(time.RFC3339)
	changed := 0
	for _, id := range userIDs {
		var current string
		err := tx.QueryRowContext(ctx, `
			SELECT sync_status FROM candidates
			WHERE source_platform = ? AND source_user_id = ?
		`, candidate.PlatformSpotify, id).Scan(&current)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !candidate.ValidTransition(candidate.SyncStatus(current), status) {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE candidates SET sync_status = ?, updated_at = ?
			WHERE source_platform = ? AND source_user_id = ?
		`, string(status), now, candidate.PlatformSpotify, id); err != nil {
			return 0, err
		}
		changed++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return changed, nil
}

// RecordEnrichment completes an in-flight enrichment for one candidate. The
// record must be in the syncing state or ErrInvalidTransition is returned. On
// success the profile fields are applied (empty fields never overwrite
// populated ones) and lastSyncedAt is stamped; on failure only the status
// moves to failed.
func (s *SQLiteStore) RecordEnrichment(ctx context.Context, key candidate.NaturalKey, profile candidate.Profile, succeeded bool) (*candidate.PersistedCandidate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	p, err := getCandidateTx(ctx, tx, key)
	if err != nil {
		return nil, err
	}

	target := candidate.SyncSynced
	if !succeeded {
		target = candidate.SyncFailed
	}
	if !candidate.ValidTransition(p.SyncStatus, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.SyncStatus, target)
	}

	now := s.now().UTC()
	p.SyncStatus = target
	p.UpdatedAt = now
	if succeeded {
		p.LastSyncedAt = &now
		applyEnrichment(p, profile)
	}

	var lastSynced any
	if p.LastSyncedAt != nil {
		lastSynced = p.LastSyncedAt.Format(time.RFC3339)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE candidates
		SET sync_status = ?, last_synced_at = ?, display_name = ?, profile_url = ?,
		    avatar_url = ?, followers_count = ?, updated_at = ?
		WHERE id = ?
	`,
		string(p.SyncStatus), lastSynced, p.DisplayName, p.ProfileURL,
		p.AvatarURL, p.FollowersCount, p.UpdatedAt.Format(time.RFC3339), p.ID,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

func applyEnrichment(p *candidate.PersistedCandidate, profile candidate.Profile) {
	if profile.DisplayName != "" {
		p.DisplayName = profile.DisplayName
	}
	if profile.ProfileURL != "" && p.ProfileURL == "" {
		p.ProfileURL = profile.ProfileURL
	}
	if profile.AvatarURL != "" && p.AvatarURL == "" {
		p.AvatarURL = profile.AvatarURL
	}
	if profile.FollowersCount != nil {
		p.FollowersCount = *profile.FollowersCount
	}
}

// ExpansionSeeds returns real-user candidates least recently updated first.
// Artist proxies are synthetic and never seed expansion.
func (s *SQLiteStore) ExpansionSeeds(ctx context.Context, limit int) ([]candidate.PersistedCandidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+candidateColumns+` FROM candidates
		WHERE kind = ?
		ORDER BY updated_at ASC, id ASC
		LIMIT ?
	`, string(candidate.KindRealUser), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seeds []candidate.PersistedCandidate
	for rows.Next() {
		p, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, *p)
	}
	return seeds, rows.Err()
}

// GetStats aggregates the candidate pool.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByGenre:      make(map[string]int64),
		ByArtistType: make(map[string]int64),
		BySyncStatus: make(map[string]int64),
	}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(match_score), 0) FROM candidates",
	).Scan(&stats.Total, &stats.AverageScore)
	if err != nil {
		return nil, err
	}

	groups := []struct {
		column string
		dest   map[string]int64
	}{
		{"facet_genre", stats.ByGenre},
		{"facet_artist_type", stats.ByArtistType},
		{"sync_status", stats.BySyncStatus},
	}
	for _, g := range groups {
		rows, err := s.db.QueryContext(ctx,
			"SELECT "+g.column+", COUNT(*) FROM candidates GROUP BY "+g.column)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var key string
			var count int64
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, err
			}
			if key != "" {
				g.dest[key] = count
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return stats, nil
}

// Count returns the number of stored candidates.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM candidates").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*candidate.PersistedCandidate, error) {
	var p candidate.PersistedCandidate
	var kind, method, status string
	var genres, artists, sources string
	var lastSynced sql.NullString
	var firstSeen, created, updated string

	err := row.Scan(
		&p.ID, &p.SourcePlatform, &p.SourceUserID, &kind, &p.DisplayName,
		&p.ProfileURL, &p.AvatarURL, &p.FollowersCount, &p.FollowingCount, &p.MatchScore,
		&method, &genres, &artists, &status, &lastSynced,
		&sources, &p.DiscoveredVia.FacetGenre, &p.DiscoveredVia.FacetArtistType,
		&firstSeen, &created, &updated,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Kind = candidate.Kind(kind)
	p.DiscoveryMethod = candidate.DiscoveryMethod(method)
	p.SyncStatus = candidate.SyncStatus(status)

	if err := json.Unmarshal([]byte(genres), &p.Evidence.GenreMatches); err != nil {
		return nil, fmt.Errorf("decode genre matches: %w", err)
	}
	if err := json.Unmarshal([]byte(artists), &p.Evidence.ArtistMatches); err != nil {
		return nil, fmt.Errorf("decode artist matches: %w", err)
	}
	if err := json.Unmarshal([]byte(sources), &p.Sources); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}

	if p.DiscoveredVia.FirstSeenAt, err = time.Parse(time.RFC3339, firstSeen); err != nil {
		return nil, fmt.Errorf("parse first_seen_at: %w", err)
	}
	if p.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if lastSynced.Valid {
		ts, err := time.Parse(time.RFC3339, lastSynced.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_synced_at: %w", err)
		}
		p.LastSyncedAt = &ts
	}

	return &p, nil
}

func encodeJSONColumns(p *candidate.PersistedCandidate) (genres, artists, sources string, err error) {
	if p.Evidence.GenreMatches == nil {
		p.Evidence.GenreMatches = []string{}
	}
	if p.Evidence.ArtistMatches == nil {
		p.Evidence.ArtistMatches = []string{}
	}
	if p.Sources == nil {
		p.Sources = []candidate.SourceRef{}
	}

	g, err := json.Marshal(p.Evidence.GenreMatches)
	if err != nil {
		return "", "", "", err
	}
	a, err := json.Marshal(p.Evidence.ArtistMatches)
	if err != nil {
		return "", "", "", err
	}
	src, err := json.Marshal(p.Sources)
	if err != nil {
		return "", "", "", err
	}
	return string(g), string(a), string(src), nil
}
