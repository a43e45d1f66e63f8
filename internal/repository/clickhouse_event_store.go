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

// CHEventStore implements EventStore backed by ClickHouse.
type CHEventStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHEventStore(ch *pkgch.Client, database string) *CHEventStore {
	return &CHEventStore{db: ch.DB(), table: database + ".events"}
}

// SetLogger injects a structured logger.
func (s *CHEventStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHEventStore) Upsert(ctx context.Context, ev *models.Event) error {
	if ev.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if err := util.EnsureUTC("event.timestamp", ev.Timestamp); err != nil {
		return err
	}
	if len(ev.Embedding) == 0 {
		return fmt.Errorf("event embedding is required")
	}
	q := fmt.Sprintf("INSERT INTO %s (id, ts, target, embedding, text_digest) VALUES (?, ?, ?, ?, ?)", s.table)
	_, err := s.db.ExecContext(ctx, q, ev.ID, ev.Timestamp, ev.Target, ev.Embedding, ev.TextDigest)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse event upsert error",
				applogger.String("event_id", ev.ID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("upsert event: %w", err)
	}
	return nil
}

func (s *CHEventStore) Get(ctx context.Context, id string) (*models.Event, error) {
	q := fmt.Sprintf(`SELECT id, ts, target, embedding, text_digest FROM %s FINAL WHERE id = ? LIMIT 1`, s.table)
	var ev models.Event
	err := s.db.QueryRowContext(ctx, q, id).Scan(&ev.ID, &ev.Timestamp, &ev.Target, &ev.Embedding, &ev.TextDigest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrEventNotFound
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse event get error",
				applogger.String("event_id", id),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	ev.Timestamp = ev.Timestamp.UTC()
	return &ev, nil
}

func (s *CHEventStore) LatestBefore(ctx context.Context, target string, before time.Time) (*models.Event, error) {
	if err := util.EnsureUTC("before", before); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT id, ts, target, embedding, text_digest FROM %s FINAL
        WHERE ts < ? AND (? = '' OR target = ?)
        ORDER BY ts DESC
        LIMIT 1`, s.table)
	var ev models.Event
	err := s.db.QueryRowContext(ctx, q, before, target, target).
		Scan(&ev.ID, &ev.Timestamp, &ev.Target, &ev.Embedding, &ev.TextDigest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest event before: %w", err)
	}
	ev.Timestamp = ev.Timestamp.UTC()
	return &ev, nil
}

func (s *CHEventStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ domrepo.EventStore = (*CHEventStore)(nil)
