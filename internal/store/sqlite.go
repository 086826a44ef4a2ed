package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/saferoute/internal/classify"
	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/scoring"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	computed_at TEXT NOT NULL,
	p25         REAL NOT NULL,
	p75         REAL NOT NULL,
	p90         REAL NOT NULL,
	mean        REAL NOT NULL,
	min         REAL NOT NULL,
	max         REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS node_scores (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	context     TEXT NOT NULL,
	area        INTEGER NOT NULL,
	node_id     INTEGER NOT NULL,
	score       REAL NOT NULL,
	PRIMARY KEY (snapshot_id, context, area, node_id)
);

CREATE TABLE IF NOT EXISTS area_hotspots (
	area        INTEGER PRIMARY KEY,
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	node_id     INTEGER NOT NULL,
	score       REAL NOT NULL,
	lat         REAL NOT NULL,
	lng         REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_node_scores_context ON node_scores(snapshot_id, context);
`

// Migrate creates the snapshot tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSnapshot writes the whole snapshot in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if err := validate(snap); err != nil {
		return err
	}
	id := snap.ID.String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin snapshot")
	}
	defer tx.Rollback() //nolint:errcheck

	th := snap.Thresholds
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, computed_at, p25, p75, p90, mean, min, max) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, snap.ComputedAt.UTC().Format(time.RFC3339Nano), th.P25, th.P75, th.P90, th.Mean, th.Min, th.Max,
	); err != nil {
		return eris.Wrapf(err, "sqlite: insert snapshot %s", id)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO node_scores (snapshot_id, context, area, node_id, score) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare node scores")
	}
	defer stmt.Close()
	for _, r := range scoreRows(snap) {
		if _, err := stmt.ExecContext(ctx, id, r.Context, r.Area, r.NodeID, r.Score); err != nil {
			return eris.Wrapf(err, "sqlite: insert score %s/%d/%d", r.Context, r.Area, r.NodeID)
		}
	}

	for _, h := range snap.Hotspots {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO area_hotspots (area, snapshot_id, node_id, score, lat, lng) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(area) DO UPDATE SET snapshot_id = excluded.snapshot_id, node_id = excluded.node_id,
				score = excluded.score, lat = excluded.lat, lng = excluded.lng`,
			h.Area, id, h.NodeID, h.Score, h.Location.Lat, h.Location.Lng,
		); err != nil {
			return eris.Wrapf(err, "sqlite: upsert hotspot %d", h.Area)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM area_hotspots WHERE snapshot_id <> ?`, id); err != nil {
		return eris.Wrap(err, "sqlite: prune hotspots")
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit snapshot")
}

// LatestThresholds returns the most recently saved thresholds.
func (s *SQLiteStore) LatestThresholds(ctx context.Context) (*ThresholdsRecord, error) {
	var (
		rec      ThresholdsRecord
		computed string
	)
	th := &rec.Thresholds
	err := s.db.QueryRowContext(ctx,
		`SELECT id, computed_at, p25, p75, p90, mean, min, max FROM snapshots ORDER BY seq DESC LIMIT 1`,
	).Scan(&rec.SnapshotID, &computed, &th.P25, &th.P75, &th.P90, &th.Mean, &th.Min, &th.Max)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest thresholds")
	}
	if rec.ComputedAt, err = time.Parse(time.RFC3339Nano, computed); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse computed_at %q", computed)
	}
	return &rec, nil
}

// LoadScores returns the latest snapshot's score map for c.
func (s *SQLiteStore) LoadScores(ctx context.Context, c model.Context) (scoring.ScoreMap, error) {
	rec, err := s.LatestThresholds(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT area, node_id, score FROM node_scores WHERE snapshot_id = ? AND context = ?`,
		rec.SnapshotID, c.String(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load scores %s", c)
	}
	defer rows.Close()

	out := make(scoring.ScoreMap)
	for rows.Next() {
		var (
			area  int
			node  int64
			score float64
		)
		if err := rows.Scan(&area, &node, &score); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		addScore(out, area, node, score)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate scores")
}

// LatestHotspots returns the current hotspot of every area.
func (s *SQLiteStore) LatestHotspots(ctx context.Context) ([]classify.Hotspot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT area, node_id, score, lat, lng FROM area_hotspots ORDER BY area`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list hotspots")
	}
	defer rows.Close()

	var out []classify.Hotspot
	for rows.Next() {
		var h classify.Hotspot
		if err := rows.Scan(&h.Area, &h.NodeID, &h.Score, &h.Location.Lat, &h.Location.Lng); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan hotspot")
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate hotspots")
}
