// Package store persists refresh snapshots: per-context score maps, the
// threshold summary and the current hotspot per area.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/saferoute/internal/classify"
	"github.com/sells-group/saferoute/internal/model"
	"github.com/sells-group/saferoute/internal/scoring"
)

// ErrNoSnapshot is returned when nothing has been persisted yet.
var ErrNoSnapshot = eris.New("store: no snapshot")

// Snapshot is the complete output of one successful refresh.
type Snapshot struct {
	ID         uuid.UUID
	ComputedAt time.Time
	Scores     map[model.Context]scoring.ScoreMap
	Thresholds classify.Thresholds
	Hotspots   []classify.Hotspot
}

// ThresholdsRecord is a persisted threshold summary.
type ThresholdsRecord struct {
	SnapshotID string              `json:"snapshot_id"`
	ComputedAt time.Time           `json:"computed_at"`
	Thresholds classify.Thresholds `json:"thresholds"`
}

// Store defines the persistence interface for refresh snapshots. A snapshot
// is written atomically; readers always see the most recently saved one.
type Store interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LoadScores(ctx context.Context, c model.Context) (scoring.ScoreMap, error)
	LatestThresholds(ctx context.Context) (*ThresholdsRecord, error)
	LatestHotspots(ctx context.Context) ([]classify.Hotspot, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver ("postgres" or "sqlite").
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "saferoute.db"
		}
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}

// scoreRow is one (context, area, node) score.
type scoreRow struct {
	Context string
	Area    int
	NodeID  int64
	Score   float64
}

// scoreRows flattens snap.Scores in a stable order.
func scoreRows(snap *Snapshot) []scoreRow {
	contexts := make([]model.Context, 0, len(snap.Scores))
	for c := range snap.Scores {
		contexts = append(contexts, c)
	}
	sort.Slice(contexts, func(i, j int) bool { return contexts[i].String() < contexts[j].String() })

	var rows []scoreRow
	for _, c := range contexts {
		m := snap.Scores[c]
		for _, a := range m.Areas() {
			for _, id := range m[a].IDs() {
				rows = append(rows, scoreRow{Context: c.String(), Area: a, NodeID: id, Score: m[a][id]})
			}
		}
	}
	return rows
}

func validate(snap *Snapshot) error {
	if snap == nil {
		return eris.New("store: nil snapshot")
	}
	if snap.ID == uuid.Nil {
		return eris.New("store: snapshot has no id")
	}
	return nil
}

// addScore inserts one row into m.
func addScore(m scoring.ScoreMap, area int, node int64, score float64) {
	nodes, ok := m[area]
	if !ok {
		nodes = make(scoring.NodeScores)
		m[area] = nodes
	}
	nodes[node] = score
}
