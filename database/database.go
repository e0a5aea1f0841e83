package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SessionLifetime is how long a stored session token stays valid.
const SessionLifetime = 10 * 365 * 24 * time.Hour

type Database struct {
	db *sql.DB
}

type PlayRecord struct {
	ID              int64
	PlaylistName    string
	TrackID         string
	Title           string
	Artist          string
	Link            string
	PlayedAt        time.Time
	DurationSeconds int
}

type MostPlayedRecord struct {
	TrackID    string
	Title      string
	Artist     string
	Link       string
	PlayCount  int
	LastPlayed time.Time
}

// New opens (creating if needed) the sqlite file at dbPath.
func New(dbPath string) (*Database, error) {
	if dbPath == "" {
		dbPath = "/app/data/billy.db"
	}

	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	d := &Database{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Infof("Database initialized at %s", dbPath)
	return d, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			name TEXT PRIMARY KEY,
			token TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS play_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			playlist_name TEXT NOT NULL DEFAULT '',
			track_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			artist TEXT NOT NULL DEFAULT '',
			link TEXT NOT NULL DEFAULT '',
			played_at TEXT NOT NULL,
			duration_seconds INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_play_history_played_at ON play_history(played_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_play_history_track_id ON play_history(track_id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	return nil
}

// GetSession returns the token stored under name. Expired entries read as
// missing.
func (d *Database) GetSession(name string) (string, bool, error) {
	var token string
	var expiresAt int64
	err := d.db.QueryRow(`SELECT token, expires_at FROM sessions WHERE name = ?`, name).Scan(&token, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session: %w", err)
	}
	if time.Now().Unix() >= expiresAt {
		return "", false, nil
	}
	return token, true, nil
}

// SaveSession stores token under name until expires.
func (d *Database) SaveSession(name, token string, expires time.Time) error {
	_, err := d.db.Exec(
		`INSERT INTO sessions (name, token, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at`,
		name, token, expires.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (d *Database) DeleteSession(name string) error {
	if _, err := d.db.Exec(`DELETE FROM sessions WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// RecordPlay inserts a play record. PlayedAt defaults to now.
func (d *Database) RecordPlay(r PlayRecord) error {
	if r.PlayedAt.IsZero() {
		r.PlayedAt = time.Now()
	}
	_, err := d.db.Exec(
		`INSERT INTO play_history (playlist_name, track_id, title, artist, link, played_at, duration_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.PlaylistName, r.TrackID, r.Title, r.Artist, r.Link, r.PlayedAt.UTC().Format(time.RFC3339Nano), r.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to record play: %w", err)
	}
	return nil
}

// GetHistory returns the most recent plays.
func (d *Database) GetHistory(limit int) ([]PlayRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.Query(
		`SELECT id, playlist_name, track_id, title, artist, link, played_at, duration_seconds
		 FROM play_history
		 ORDER BY played_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []PlayRecord
	for rows.Next() {
		var r PlayRecord
		var playedAt string
		if err := rows.Scan(&r.ID, &r.PlaylistName, &r.TrackID, &r.Title, &r.Artist, &r.Link,
			&playedAt, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.PlayedAt = parseTimestamp(playedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetMostPlayed returns the most played tracks.
func (d *Database) GetMostPlayed(limit int) ([]MostPlayedRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := d.db.Query(
		`SELECT track_id, MAX(title), MAX(artist), MAX(link), COUNT(*) as play_count, MAX(played_at) as last_played
		 FROM play_history
		 GROUP BY track_id
		 ORDER BY play_count DESC, last_played DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query most played: %w", err)
	}
	defer rows.Close()

	var records []MostPlayedRecord
	for rows.Next() {
		var r MostPlayedRecord
		var lastPlayed string
		if err := rows.Scan(&r.TrackID, &r.Title, &r.Artist, &r.Link, &r.PlayCount, &lastPlayed); err != nil {
			return nil, fmt.Errorf("failed to scan most played row: %w", err)
		}
		r.LastPlayed = parseTimestamp(lastPlayed)
		records = append(records, r)
	}
	return records, rows.Err()
}

func parseTimestamp(value string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, layout := range formats {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	log.Warnf("failed to parse timestamp '%s' with all known formats", value)
	return time.Time{}
}
