package sidecar

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
)

// Migration mirrors the teacher's forward-only schema migration shape: a
// numbered, checksummed SQL statement applied at most once.
type Migration struct {
	Version     int
	Description string
	Up          string
}

func checksum(sql string) string {
	h := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(h[:])
}

// allMigrations defines the sidecar schema. Sidecars are pure derivations of
// the authoritative log, so there is no Down migration: a broken sidecar is
// simply deleted and rebuilt from the log rather than rolled back.
func allMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "messages_runs and per-kind indexes",
			Up: `
CREATE TABLE IF NOT EXISTS messages_runs (
	continuity_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	ts_ms INTEGER NOT NULL,
	actor_id TEXT NOT NULL,
	origin TEXT NOT NULL,
	PRIMARY KEY (continuity_id, seq)
);

CREATE TABLE IF NOT EXISTS seek_index (
	continuity_id TEXT NOT NULL,
	message_ordinal INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	message_id TEXT NOT NULL,
	PRIMARY KEY (continuity_id, message_ordinal)
);

CREATE TABLE IF NOT EXISTS checkpoints_index (
	continuity_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	summary_artifact_id TEXT NOT NULL,
	to_seq INTEGER NOT NULL,
	to_message_id TEXT NOT NULL,
	PRIMARY KEY (continuity_id, seq)
);

CREATE TABLE IF NOT EXISTS jobs_index (
	continuity_id TEXT NOT NULL,
	job_id TEXT NOT NULL,
	spawned_seq INTEGER NOT NULL,
	ended_seq INTEGER,
	status TEXT,
	PRIMARY KEY (continuity_id, job_id)
);

CREATE TABLE IF NOT EXISTS sidecar_cursor (
	continuity_id TEXT PRIMARY KEY,
	last_seq INTEGER NOT NULL
);
`,
		},
		{
			Version:     2,
			Description: "full_sidecar: unfiltered per-continuity frame mirror",
			Up: `
CREATE TABLE IF NOT EXISTS full_sidecar (
	continuity_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	stream_kind TEXT NOT NULL,
	stream_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	ts_ms INTEGER NOT NULL,
	actor_id TEXT NOT NULL,
	origin TEXT NOT NULL,
	PRIMARY KEY (continuity_id, stream_kind, stream_id, seq)
);
`,
		},
	}
}

func initMigrationTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at INTEGER NOT NULL,
		checksum TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("sidecar: init migration table: %w", err)
	}
	return nil
}

func currentVersion(db *sql.DB) (int, error) {
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	var v int
	if err := row.Scan(&v); err != nil {
		return 0, fmt.Errorf("sidecar: current version: %w", err)
	}
	return v, nil
}

func migrateUp(db *sql.DB) error {
	if err := initMigrationTable(db); err != nil {
		return err
	}
	cur, err := currentVersion(db)
	if err != nil {
		return err
	}

	migrations := allMigrations()
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })

	for _, m := range migrations {
		if m.Version <= cur {
			continue
		}
		if _, err := db.Exec(m.Up); err != nil {
			return fmt.Errorf("sidecar: migration %d (%s): %w", m.Version, m.Description, err)
		}
		_, err := db.Exec(
			`INSERT INTO schema_migrations (version, description, applied_at, checksum) VALUES (?, ?, strftime('%s','now'), ?)`,
			m.Version, m.Description, checksum(m.Up),
		)
		if err != nil {
			return fmt.Errorf("sidecar: record migration %d: %w", m.Version, err)
		}
	}
	return nil
}
