package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/saferoute/internal/classify"
	"github.com/sells-group/saferoute/internal/db"
	"github.com/sells-group/saferoute/internal/graph"
	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/scoring"
)

// PostgresStore implements Store on PostGIS through pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS snapshots (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	computed_at TIMESTAMPTZ NOT NULL,
	p25         DOUBLE PRECISION NOT NULL,
	p75         DOUBLE PRECISION NOT NULL,
	p90         DOUBLE PRECISION NOT NULL,
	mean        DOUBLE PRECISION NOT NULL,
	min         DOUBLE PRECISION NOT NULL,
	max         DOUBLE PRECISION NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS node_scores (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	context     TEXT NOT NULL,
	area        INTEGER NOT NULL,
	node_id     BIGINT NOT NULL,
	score       DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (snapshot_id, context, area, node_id)
);

CREATE TABLE IF NOT EXISTS area_hotspots (
	area        INTEGER PRIMARY KEY,
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	node_id     BIGINT NOT NULL,
	score       DOUBLE PRECISION NOT NULL,
	geom        geometry(Point, 4326) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_node_scores_context ON node_scores(snapshot_id, context);
CREATE INDEX IF NOT EXISTS idx_area_hotspots_geom ON area_hotspots USING GIST (geom);
`

var scoreColumns = []string{"snapshot_id", "context", "area", "node_id", "score"}

var hotspotUpsert = db.UpsertConfig{
	Table:        "area_hotspots",
	Columns:      []string{"area", "snapshot_id", "node_id", "score", "geom"},
	ConflictKeys: []string{"area"},
}

// Migrate creates the snapshot tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveSnapshot writes the snapshot row, bulk-copies node scores and replaces
// the per-area hotspots in one transaction.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if err := validate(snap); err != nil {
		return err
	}
	id := snap.ID.String()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin snapshot")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	th := snap.Thresholds
	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshots (id, computed_at, p25, p75, p90, mean, min, max) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, snap.ComputedAt.UTC(), th.P25, th.P75, th.P90, th.Mean, th.Min, th.Max,
	); err != nil {
		return eris.Wrapf(err, "postgres: insert snapshot %s", id)
	}

	scores := scoreRows(snap)
	rows := make([][]any, len(scores))
	for i, r := range scores {
		rows[i] = []any{id, r.Context, r.Area, r.NodeID, r.Score}
	}
	if _, err := db.CopyFrom(ctx, tx, "node_scores", scoreColumns, rows); err != nil {
		return eris.Wrap(err, "postgres: copy node scores")
	}

	hot := make([][]any, 0, len(snap.Hotspots))
	for _, h := range snap.Hotspots {
		point, err := graph.EncodePoint(graph.Node{ID: h.NodeID, Lat: h.Location.Lat, Lng: h.Location.Lng})
		if err != nil {
			return err
		}
		hot = append(hot, []any{h.Area, id, h.NodeID, h.Score, point})
	}
	if _, err := db.BulkUpsert(ctx, tx, hotspotUpsert, hot); err != nil {
		return eris.Wrap(err, "postgres: upsert hotspots")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM area_hotspots WHERE snapshot_id <> $1`, id); err != nil {
		return eris.Wrap(err, "postgres: prune hotspots")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit snapshot")
	}
	return nil
}

// LatestThresholds returns the most recently saved thresholds.
func (s *PostgresStore) LatestThresholds(ctx context.Context) (*ThresholdsRecord, error) {
	var rec ThresholdsRecord
	th := &rec.Thresholds
	err := s.pool.QueryRow(ctx,
		`SELECT id, computed_at, p25, p75, p90, mean, min, max FROM snapshots ORDER BY seq DESC LIMIT 1`,
	).Scan(&rec.SnapshotID, &rec.ComputedAt, &th.P25, &th.P75, &th.P90, &th.Mean, &th.Min, &th.Max)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest thresholds")
	}
	return &rec, nil
}

// LoadScores returns the latest snapshot's score map for c.
func (s *PostgresStore) LoadScores(ctx context.Context, c model.Context) (scoring.ScoreMap, error) {
	rec, err := s.LatestThresholds(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT area, node_id, score FROM node_scores WHERE snapshot_id = $1 AND context = $2`,
		rec.SnapshotID, c.String(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load scores %s", c)
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
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		addScore(out, area, node, score)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate scores")
}

// LatestHotspots returns the current hotspot of every area.
func (s *PostgresStore) LatestHotspots(ctx context.Context) ([]classify.Hotspot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT area, node_id, score, ST_Y(geom), ST_X(geom) FROM area_hotspots ORDER BY area`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list hotspots")
	}
	defer rows.Close()

	var out []classify.Hotspot
	for rows.Next() {
		var h classify.Hotspot
		if err := rows.Scan(&h.Area, &h.NodeID, &h.Score, &h.Location.Lat, &h.Location.Lng); err != nil {
			return nil, eris.Wrap(err, "postgres: scan hotspot")
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate hotspots")
}
