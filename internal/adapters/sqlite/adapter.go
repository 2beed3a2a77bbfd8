// Package sqlite provides a SQLite-backed implementation of the track repository port.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/vibereco/internal/core/domain"
	"github.com/ewilliams-labs/vibereco/internal/core/ports"
)

// Adapter implements the track repository port for SQLite
type Adapter struct {
	db *sql.DB
}

var _ ports.TrackRepository = (*Adapter)(nil)

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	if dir := filepath.Dir(storagePath); storagePath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	adapter := &Adapter{db: db}

	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

const trackColumns = `external_id, title, artist, lyrics, lyrics_status, lyrics_source, profile, vibe_text, embedding`

// SaveTracks upserts every track keyed by its catalog id. Tracks without an
// id cannot be addressed again and are rejected.
func (a *Adapter) SaveTracks(ctx context.Context, tracks []domain.Track) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tracks (`+trackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			title=excluded.title,
			artist=excluded.artist,
			lyrics=excluded.lyrics,
			lyrics_status=excluded.lyrics_status,
			lyrics_source=excluded.lyrics_source,
			profile=excluded.profile,
			vibe_text=excluded.vibe_text,
			embedding=excluded.embedding,
			updated_at=CURRENT_TIMESTAMP;
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		if t.ExternalID == "" {
			return fmt.Errorf("track %q has no external id", t.Label())
		}
		var profile []byte
		if t.Profile != nil {
			if profile, err = json.Marshal(t.Profile); err != nil {
				return fmt.Errorf("failed to encode profile of %s: %w", t.ExternalID, err)
			}
		}
		if _, err := stmt.ExecContext(
			ctx,
			t.ExternalID,
			t.Title,
			t.Artist,
			nullString(t.Lyrics),
			nullString(string(t.LyricsStatus)),
			nullString(string(t.LyricsSource)),
			profile,
			nullString(t.VibeText),
			encodeEmbedding(t.Embedding),
		); err != nil {
			return fmt.Errorf("failed to save track %s: %w", t.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// ListTracks returns every stored track in insertion order.
func (a *Adapter) ListTracks(ctx context.Context) ([]domain.Track, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT `+trackColumns+` FROM tracks ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	defer rows.Close()

	var tracks []domain.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracks: %w", err)
	}
	return tracks, nil
}

// FindByTitle looks a track up by title, ignoring ASCII case. The earliest
// stored match wins.
func (a *Adapter) FindByTitle(ctx context.Context, title string) (domain.Track, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT `+trackColumns+` FROM tracks
		WHERE title = ? COLLATE NOCASE
		ORDER BY rowid ASC
		LIMIT 1
	`, strings.TrimSpace(title))
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Track{}, fmt.Errorf("track %q: %w", title, domain.ErrNotFound)
	}
	return t, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(s scanner) (domain.Track, error) {
	var (
		t                            domain.Track
		lyrics, status, source, vibe sql.NullString
		profile, embedding           []byte
	)
	if err := s.Scan(&t.ExternalID, &t.Title, &t.Artist, &lyrics, &status, &source, &profile, &vibe, &embedding); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Track{}, err
		}
		return domain.Track{}, fmt.Errorf("failed to scan track: %w", err)
	}
	t.Lyrics = lyrics.String
	t.LyricsStatus = domain.LyricsStatus(status.String)
	t.LyricsSource = domain.LyricsSource(source.String)
	t.VibeText = vibe.String

	if len(profile) > 0 {
		var p domain.Profile
		if err := json.Unmarshal(profile, &p); err != nil {
			return domain.Track{}, fmt.Errorf("failed to decode profile of %s: %w", t.ExternalID, err)
		}
		t.Profile = &p
	}

	vec, err := decodeEmbedding(embedding)
	if err != nil {
		return domain.Track{}, fmt.Errorf("failed to decode embedding of %s: %w", t.ExternalID, err)
	}
	t.Embedding = vec
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// encodeEmbedding stores vectors as little-endian float32s; nil stays NULL.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	var buf bytes.Buffer
	buf.Grow(4 * len(v))
	_ = binary.Write(&buf, binary.LittleEndian, v)
	return buf.Bytes()
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		external_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		lyrics TEXT,
		lyrics_status TEXT,
		profile BLOB,
		vibe_text TEXT,
		embedding BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tracks_title ON tracks(title COLLATE NOCASE);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}

	// Columns added after the first schema; existing databases gain them here.
	for _, column := range []string{
		"lyrics_source TEXT",
		"updated_at DATETIME",
	} {
		if _, err := a.db.Exec("ALTER TABLE tracks ADD COLUMN " + column); err != nil {
			if !isDuplicateColumnError(err) {
				return err
			}
		}
	}

	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate column") || strings.Contains(err.Error(), "already exists"))
}
