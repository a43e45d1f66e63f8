package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	pkgch "EventCast/pkg/clickhouse"
	applogger "EventCast/pkg/logger"
	"EventCast/pkg/util"
)

// CHOutcomeStore implements OutcomeStore backed by ClickHouse.
// All temporal reads carry the strict before-cutoff predicate in SQL;
// the forecast path never sees a row at or after its as-of time.
type CHOutcomeStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHOutcomeStore(ch *pkgch.Client, database string) *CHOutcomeStore {
	return &CHOutcomeStore{db: ch.DB(), table: database + ".outcomes"}
}

// SetLogger injects a structured logger.
func (s *CHOutcomeStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHOutcomeStore) Upsert(ctx context.Context, o *models.Outcome) error {
	if o.TargetID == "" {
		return fmt.Errorf("outcome target_id is required")
	}
	if err := util.EnsureUTC("outcome.as_of", o.AsOf); err != nil {
		return err
	}
	if !domrepo.IsValidHorizon(domrepo.Horizon(o.Horizon)) {
		return fmt.Errorf("outcome horizon %q is not supported", o.Horizon)
	}
	q := fmt.Sprintf("INSERT INTO %s (target_id, as_of, horizon, realized_delta) VALUES (?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q, o.TargetID, o.AsOf, o.Horizon, o.RealizedDelta)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse outcome upsert error",
				applogger.String("target_id", o.TargetID),
				applogger.String("horizon", o.Horizon),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("upsert outcome: %w", err)
	}
	return nil
}

func (s *CHOutcomeStore) GetAt(ctx context.Context, targetID string, asOf time.Time, horizon domrepo.Horizon) (*models.Outcome, error) {
	if err := util.EnsureUTC("as_of", asOf); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT target_id, as_of, horizon, realized_delta FROM %s FINAL
        WHERE target_id = ? AND as_of = ? AND horizon = ? LIMIT 1`, s.table)
	var o models.Outcome
	err := s.db.QueryRowContext(ctx, q, targetID, asOf, string(horizon)).
		Scan(&o.TargetID, &o.AsOf, &o.Horizon, &o.RealizedDelta)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse outcome get_at error",
				applogger.String("target_id", targetID),
				applogger.String("horizon", string(horizon)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get outcome: %w", err)
	}
	o.AsOf = o.AsOf.UTC()
	return &o, nil
}

func (s *CHOutcomeStore) History(ctx context.Context, targetID string, before time.Time, horizon domrepo.Horizon, limit int) ([]models.Outcome, error) {
	if err := util.EnsureUTC("before", before); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("history limit must be positive, got %d", limit)
	}
	start := time.Now()
	q := fmt.Sprintf(`SELECT target_id, as_of, horizon, realized_delta FROM %s FINAL
        WHERE target_id = ? AND horizon = ? AND as_of < ?
        ORDER BY as_of DESC
        LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, targetID, string(horizon), before, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse outcome history query error",
				applogger.String("target_id", targetID),
				applogger.String("horizon", string(horizon)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("outcome history: %w", err)
	}
	defer rows.Close()

	out := make([]models.Outcome, 0, limit)
	for rows.Next() {
		var o models.Outcome
		if err := rows.Scan(&o.TargetID, &o.AsOf, &o.Horizon, &o.RealizedDelta); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.AsOf = o.AsOf.UTC()
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse outcome history ok",
			applogger.String("target_id", targetID),
			applogger.String("horizon", string(horizon)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHOutcomeStore) KnownTarget(ctx context.Context, targetID string) (bool, error) {
	q := fmt.Sprintf("SELECT 1 FROM %s WHERE target_id = ? LIMIT 1", s.table)
	var one uint8
	err := s.db.QueryRowContext(ctx, q, targetID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("known target: %w", err)
	}
	return true, nil
}

func (s *CHOutcomeStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ domrepo.OutcomeStore = (*CHOutcomeStore)(nil)
