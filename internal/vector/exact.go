package vector

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	pkgch "EventCast/pkg/clickhouse"
	applogger "EventCast/pkg/logger"
	"EventCast/pkg/util"
)

// CHExactIndex is the exact nearest-neighbor backend: a linear-scan
// cosineDistance query over the events table. O(n) per query but always
// correct and always available; it doubles as the fallback for the
// approximate backend.
type CHExactIndex struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHExactIndex(ch *pkgch.Client, database string) *CHExactIndex {
	return &CHExactIndex{db: ch.DB(), table: database + ".events"}
}

// SetLogger injects a structured logger.
func (x *CHExactIndex) SetLogger(l *applogger.Logger) { x.l = l }

func (x *CHExactIndex) Name() string { return "exact" }

func (x *CHExactIndex) Insert(ctx context.Context, ev *models.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if err := util.EnsureUTC("event.timestamp", ev.Timestamp); err != nil {
		return err
	}
	q := fmt.Sprintf("INSERT INTO %s (id, ts, target, embedding, text_digest) VALUES (?, ?, ?, ?, ?)", x.table)
	if _, err := x.db.ExecContext(ctx, q, ev.ID, ev.Timestamp, ev.Target, ev.Embedding, ev.TextDigest); err != nil {
		return fmt.Errorf("exact index insert: %w", err)
	}
	return nil
}

// QueryKNearest scans every event strictly before the cutoff and orders
// by cosine distance. The cutoff predicate lives in SQL so a
// causally-invalid row can never be returned.
func (x *CHExactIndex) QueryKNearest(ctx context.Context, vec []float64, k int, before time.Time, target string) ([]models.Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("query vector is empty")
	}
	if err := util.EnsureUTC("before", before); err != nil {
		return nil, err
	}
	start := time.Now()
	q := fmt.Sprintf(`SELECT id, ts, cosineDistance(embedding, %s) AS dist
        FROM %s FINAL
        WHERE ts < ? AND (? = '' OR target = ?)
        ORDER BY dist ASC
        LIMIT ?`, vectorLiteral(vec), x.table)
	rows, err := x.db.QueryContext(ctx, q, before, target, target, k)
	if err != nil {
		if x.l != nil {
			x.l.Error("exact index query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("exact index query: %w", err)
	}
	defer rows.Close()

	out := make([]models.Neighbor, 0, k)
	for rows.Next() {
		var n models.Neighbor
		if err := rows.Scan(&n.EventID, &n.EventTimestamp, &n.Distance); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		n.EventTimestamp = n.EventTimestamp.UTC()
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if x.l != nil {
		x.l.Debug("exact index query ok",
			applogger.Int("k", k),
			applogger.Int("hits", len(out)),
			applogger.Duration("duration", time.Since(start)),
		)
	}
	return out, nil
}

// vectorLiteral renders a ClickHouse Array(Float64) literal. Values are
// numeric only, so inlining is injection-safe; the driver cannot bind
// array parameters through database/sql placeholders.
func vectorLiteral(vec []float64) string {
	buf := make([]byte, 0, len(vec)*12+2)
	buf = append(buf, '[')
	for i, v := range vec {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
	}
	buf = append(buf, ']')
	return string(buf)
}

var _ domrepo.VectorIndex = (*CHExactIndex)(nil)
