// Package sidecar implements per-continuity derived caches: a messages+runs
// index (excluding high-frequency side-effect frames) that serves windowed
// message reads, a seek index of message ordinals, plus per-kind
// indexes for compaction checkpoints and jobs. Every table here is a pure
// derivation of the authoritative log — if the sidecar is missing or stale,
// callers must fall back to a full log scan and get the identical answer.
package sidecar

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/rip-dev/rip/internal/frame"
)

// excludedFromMessagesRuns lists high-frequency kinds that would blow up the
// messages+runs sidecar without helping recent_messages_v1-style reads.
var excludedFromMessagesRuns = map[frame.Kind]bool{
	frame.KindContinuityToolSideEffects: true,
}

// Index owns the store-wide sidecar database.
type Index struct {
	db *sql.DB
}

// Open opens (creating and migrating if necessary) the sidecar database at
// <storeDir>/sidecars/index.db.
func Open(storeDir string) (*Index, error) {
	dir := filepath.Join(storeDir, "sidecars")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sidecar: mkdir: %w", err)
	}
	path := filepath.Join(dir, "index.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sidecar: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("sidecar: wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("sidecar: busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("sidecar: foreign_keys: %w", err)
	}
	if err := migrateUp(db); err != nil {
		return nil, err
	}

	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Cursor returns the last seq this sidecar has indexed for a continuity,
// and whether it has indexed anything at all.
func (ix *Index) Cursor(continuityID string) (uint64, bool, error) {
	row := ix.db.QueryRow(`SELECT last_seq FROM sidecar_cursor WHERE continuity_id = ?`, continuityID)
	var seq int64
	if err := row.Scan(&seq); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("sidecar: cursor: %w", err)
	}
	return uint64(seq), true, nil
}

// IndexFrame ingests one frame already known to belong to a continuity stream
// (or to reference one, for run-spawn link frames), updating every derived
// table it affects. It is safe to call out of order only in the sense that
// callers must always feed frames in seq order — the cursor assumes that.
func (ix *Index) IndexFrame(continuityID string, env frame.Envelope) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("sidecar: index: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO full_sidecar (continuity_id, seq, stream_kind, stream_id, kind, payload_json, ts_ms, actor_id, origin)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		continuityID, env.Seq, string(env.StreamKind), env.StreamID, string(env.Kind), string(env.Payload), env.TsMs, env.ActorID, env.Origin,
	); err != nil {
		return fmt.Errorf("sidecar: index full_sidecar: %w", err)
	}

	if !excludedFromMessagesRuns[env.Kind] {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO messages_runs (continuity_id, seq, kind, payload_json, ts_ms, actor_id, origin)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			continuityID, env.Seq, string(env.Kind), string(env.Payload), env.TsMs, env.ActorID, env.Origin,
		); err != nil {
			return fmt.Errorf("sidecar: index messages_runs: %w", err)
		}
	}

	switch env.Kind {
	case frame.KindContinuityMessageAppended:
		var p frame.MessageAppendedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("sidecar: decode message payload: %w", err)
		}
		var ordinal int64
		row := tx.QueryRow(`SELECT COALESCE(MAX(message_ordinal), 0) + 1 FROM seek_index WHERE continuity_id = ?`, continuityID)
		if err := row.Scan(&ordinal); err != nil {
			return fmt.Errorf("sidecar: next ordinal: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO seek_index (continuity_id, message_ordinal, seq, message_id) VALUES (?, ?, ?, ?)`,
			continuityID, ordinal, env.Seq, p.MessageID,
		); err != nil {
			return fmt.Errorf("sidecar: index seek_index: %w", err)
		}

	case frame.KindContinuityCompactionCheckpoint:
		var p frame.CompactionCheckpointCreatedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("sidecar: decode checkpoint payload: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO checkpoints_index (continuity_id, seq, summary_artifact_id, to_seq, to_message_id) VALUES (?, ?, ?, ?, ?)`,
			continuityID, env.Seq, p.SummaryArtifactID, p.ToSeq, p.ToMessageID,
		); err != nil {
			return fmt.Errorf("sidecar: index checkpoints_index: %w", err)
		}

	case frame.KindContinuityJobSpawned:
		var p frame.JobSpawnedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("sidecar: decode job spawn payload: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO jobs_index (continuity_id, job_id, spawned_seq, ended_seq, status) VALUES (?, ?, ?, NULL, 'running')`,
			continuityID, p.JobID, env.Seq,
		); err != nil {
			return fmt.Errorf("sidecar: index jobs_index spawn: %w", err)
		}

	case frame.KindContinuityJobEnded:
		var p frame.JobEndedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return fmt.Errorf("sidecar: decode job end payload: %w", err)
		}
		if _, err := tx.Exec(
			`UPDATE jobs_index SET ended_seq = ?, status = ? WHERE continuity_id = ? AND job_id = ?`,
			env.Seq, p.Status, continuityID, p.JobID,
		); err != nil {
			return fmt.Errorf("sidecar: index jobs_index end: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO sidecar_cursor (continuity_id, last_seq) VALUES (?, ?)
		 ON CONFLICT(continuity_id) DO UPDATE SET last_seq = excluded.last_seq`,
		continuityID, env.Seq,
	); err != nil {
		return fmt.Errorf("sidecar: update cursor: %w", err)
	}

	return tx.Commit()
}

// RecentMessages returns up to n continuity_message_appended frames with
// seq < beforeSeq (or all of them, if beforeSeq is 0), oldest first, read
// from the messages_runs table by (continuity_id, seq) instead of a full log
// scan. The seek index is not consulted here.
func (ix *Index) RecentMessages(continuityID string, beforeSeq uint64, n int) ([]frame.Envelope, error) {
	var rows *sql.Rows
	var err error
	if beforeSeq == 0 {
		rows, err = ix.db.Query(
			`SELECT seq, payload_json, ts_ms, actor_id, origin FROM messages_runs
			 WHERE continuity_id = ? AND kind = ? ORDER BY seq DESC LIMIT ?`,
			continuityID, string(frame.KindContinuityMessageAppended), n,
		)
	} else {
		rows, err = ix.db.Query(
			`SELECT seq, payload_json, ts_ms, actor_id, origin FROM messages_runs
			 WHERE continuity_id = ? AND kind = ? AND seq < ? ORDER BY seq DESC LIMIT ?`,
			continuityID, string(frame.KindContinuityMessageAppended), beforeSeq, n,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("sidecar: recent messages: %w", err)
	}
	defer rows.Close()

	var out []frame.Envelope
	for rows.Next() {
		var seq uint64
		var payload string
		var ts uint64
		var actor, origin string
		if err := rows.Scan(&seq, &payload, &ts, &actor, &origin); err != nil {
			return nil, fmt.Errorf("sidecar: scan recent message: %w", err)
		}
		out = append(out, frame.Envelope{
			Seq:        seq,
			StreamKind: frame.StreamContinuity,
			StreamID:   continuityID,
			Kind:       frame.KindContinuityMessageAppended,
			TsMs:       ts,
			ActorID:    actor,
			Origin:     origin,
			Payload:    []byte(payload),
		})
	}
	// Reverse to oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// AllFrames returns every frame indexed for a continuity, oldest first,
// regardless of kind — the one sidecar table that is a complete mirror of
// the log rather than a purpose-built projection, used by replay and
// validation paths that need the whole stream without a second log scan.
func (ix *Index) AllFrames(continuityID string) ([]frame.Envelope, error) {
	rows, err := ix.db.Query(
		`SELECT seq, stream_kind, stream_id, kind, payload_json, ts_ms, actor_id, origin
		 FROM full_sidecar WHERE continuity_id = ? ORDER BY seq ASC`,
		continuityID,
	)
	if err != nil {
		return nil, fmt.Errorf("sidecar: all frames: %w", err)
	}
	defer rows.Close()

	var out []frame.Envelope
	for rows.Next() {
		var seq uint64
		var streamKind, streamID, kind, payload string
		var ts uint64
		var actor, origin string
		if err := rows.Scan(&seq, &streamKind, &streamID, &kind, &payload, &ts, &actor, &origin); err != nil {
			return nil, fmt.Errorf("sidecar: scan frame: %w", err)
		}
		out = append(out, frame.Envelope{
			Seq:        seq,
			StreamKind: frame.StreamKind(streamKind),
			StreamID:   streamID,
			Kind:       frame.Kind(kind),
			TsMs:       ts,
			ActorID:    actor,
			Origin:     origin,
			Payload:    []byte(payload),
		})
	}
	return out, rows.Err()
}

// MessageCount returns the number of continuity_message_appended frames
// indexed for a continuity. Used only as an accelerator: compaction cut
// points must still be verifiable against a direct log scan (see
// internal/compaction), since this value must never change the result.
func (ix *Index) MessageCount(continuityID string) (int, error) {
	row := ix.db.QueryRow(`SELECT COUNT(*) FROM seek_index WHERE continuity_id = ?`, continuityID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("sidecar: message count: %w", err)
	}
	return n, nil
}

// LatestCheckpoint returns the most recent compaction checkpoint for a
// continuity, or ok=false if none exists.
func (ix *Index) LatestCheckpoint(continuityID string) (summaryArtifactID string, toSeq uint64, ok bool, err error) {
	row := ix.db.QueryRow(
		`SELECT summary_artifact_id, to_seq FROM checkpoints_index WHERE continuity_id = ? ORDER BY seq DESC LIMIT 1`,
		continuityID,
	)
	if scanErr := row.Scan(&summaryArtifactID, &toSeq); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", 0, false, nil
		}
		return "", 0, false, fmt.Errorf("sidecar: latest checkpoint: %w", scanErr)
	}
	return summaryArtifactID, toSeq, true, nil
}

// HasInflightJob reports whether a compaction job has been spawned but not
// yet ended for this continuity (used by the scheduler's block_on_inflight policy).
func (ix *Index) HasInflightJob(continuityID string) (bool, error) {
	row := ix.db.QueryRow(
		`SELECT COUNT(*) FROM jobs_index WHERE continuity_id = ? AND ended_seq IS NULL`,
		continuityID,
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("sidecar: inflight job: %w", err)
	}
	return n > 0, nil
}

// Rebuild drops every row belonging to a continuity and re-derives it from
// frames, in seq order. Callers use this to recover from a sidecar that is
// missing, corrupt, or behind a log that was truncated and replayed
// (the sidecar is a pure cache; it never has to agree with the log, it only
// has to converge to it).
func (ix *Index) Rebuild(continuityID string, frames []frame.Envelope) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("sidecar: rebuild: begin: %w", err)
	}
	for _, table := range []string{"messages_runs", "seek_index", "checkpoints_index", "jobs_index", "sidecar_cursor", "full_sidecar"} {
		if _, err := tx.Exec(fmt.Sprintf(`DELETE FROM %s WHERE continuity_id = ?`, table), continuityID); err != nil {
			tx.Rollback()
			return fmt.Errorf("sidecar: rebuild: clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sidecar: rebuild: commit clear: %w", err)
	}

	for _, env := range frames {
		if err := ix.IndexFrame(continuityID, env); err != nil {
			return fmt.Errorf("sidecar: rebuild: %w", err)
		}
	}
	return nil
}
