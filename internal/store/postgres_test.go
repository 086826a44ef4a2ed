package store

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/saferoute/internal/scoring"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE EXTENSION IF NOT EXISTS postgis`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	snap := sampleSnapshot(time.Date(2024, 7, 1, 22, 0, 0, 0, time.UTC))
	id := snap.ID.String()
	th := snap.Thresholds

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO snapshots`).
		WithArgs(id, pgxmock.AnyArg(), th.P25, th.P75, th.P90, th.Mean, th.Min, th.Max).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"node_scores"}, scoreColumns).WillReturnResult(4)
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_area_hotspots"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_area_hotspots"}, hotspotUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "area_hotspots"`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectExec(`DELETE FROM area_hotspots WHERE snapshot_id <> \$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCommit()

	require.NoError(t, s.SaveSnapshot(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSnapshot_RollsBackOnCopyError(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	snap := sampleSnapshot(time.Now())

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO snapshots`).
		WithArgs(snap.ID.String(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"node_scores"}, scoreColumns).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err := s.SaveSnapshot(context.Background(), snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy node scores")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestThresholds(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2024, 7, 1, 22, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, computed_at, p25, p75, p90, mean, min, max FROM snapshots ORDER BY seq DESC LIMIT 1`).
		WillReturnRows(mock.NewRows([]string{"id", "computed_at", "p25", "p75", "p90", "mean", "min", "max"}).
			AddRow("snap-1", at, 0.4, 1.2, 5.0, 2.1, 0.2, 9.64))

	rec, err := s.LatestThresholds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snap-1", rec.SnapshotID)
	assert.Equal(t, at, rec.ComputedAt)
	assert.Equal(t, 5.0, rec.Thresholds.P90)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestThresholds_None(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM snapshots`).WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestThresholds(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadScores(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM snapshots`).
		WillReturnRows(mock.NewRows([]string{"id", "computed_at", "p25", "p75", "p90", "mean", "min", "max"}).
			AddRow("snap-1", time.Now(), 0.4, 1.2, 5.0, 2.1, 0.2, 9.64))
	mock.ExpectQuery(`SELECT area, node_id, score FROM node_scores WHERE snapshot_id = \$1 AND context = \$2`).
		WithArgs("snap-1", "summer/night").
		WillReturnRows(mock.NewRows([]string{"area", "node_id", "score"}).
			AddRow(1, int64(10), 9.64).
			AddRow(1, int64(11), 0.5).
			AddRow(2, int64(20), 1.25))

	scores, err := s.LoadScores(context.Background(), summerNight)
	require.NoError(t, err)
	assert.Equal(t, scoring.ScoreMap{1: {10: 9.64, 11: 0.5}, 2: {20: 1.25}}, scores)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestHotspots(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT area, node_id, score, ST_Y\(geom\), ST_X\(geom\) FROM area_hotspots ORDER BY area`).
		WillReturnRows(mock.NewRows([]string{"area", "node_id", "score", "lat", "lng"}).
			AddRow(1, int64(10), 5.01, 41.88, -87.63))

	hs, err := s.LatestHotspots(context.Background())
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, int64(10), hs[0].NodeID)
	assert.Equal(t, -87.63, hs[0].Location.Lng)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	closed := false
	s := &PostgresStore{closeFn: func() { closed = true }}
	assert.NoError(t, s.Close())
	assert.True(t, closed)
}
