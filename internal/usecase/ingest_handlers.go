package usecase

import (
	"context"
	"encoding/json"
	"time"

	"EventCast/internal/domain/models"
	domrepo "EventCast/internal/domain/repository"
	pkgkafka "EventCast/pkg/kafka"
)

// EventIngestHandler consumes event messages and writes them to the
// event store and the vector index. Upserts are idempotent on event ID,
// so redelivery is safe.
type EventIngestHandler struct {
	topic   string
	events  domrepo.EventStore
	index   domrepo.VectorIndex
	metrics domrepo.Metrics
}

func NewEventIngestHandler(topic string, events domrepo.EventStore, index domrepo.VectorIndex, metrics domrepo.Metrics) *EventIngestHandler {
	return &EventIngestHandler{topic: topic, events: events, index: index, metrics: metrics}
}

func (h *EventIngestHandler) Topic() string { return h.topic }

// incoming message schema: {id, ts, target?, embedding, text_digest}
func (h *EventIngestHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		ID         string    `json:"id"`
		TS         int64     `json:"ts"` // unix seconds
		Target     string    `json:"target"`
		Embedding  []float64 `json:"embedding"`
		TextDigest string    `json:"text_digest"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("event_unmarshal")
		return err
	}
	ev := &models.Event{
		ID:         m.ID,
		Timestamp:  time.Unix(m.TS, 0).UTC(),
		Target:     m.Target,
		Embedding:  m.Embedding,
		TextDigest: m.TextDigest,
	}

	start := time.Now()
	if err := h.events.Upsert(ctx, ev); err != nil {
		h.metrics.RecordError("event_store")
		return err
	}
	if err := h.index.Insert(ctx, ev); err != nil {
		h.metrics.RecordError("event_index")
		return err
	}
	h.metrics.RecordLatency("event_ingest", time.Since(start).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*EventIngestHandler)(nil)

// OutcomeIngestHandler consumes realized outcomes. The store keys rows
// by (target_id, as_of, horizon) with last-write-wins, so re-ingestion
// replaces rather than duplicates.
type OutcomeIngestHandler struct {
	topic    string
	outcomes domrepo.OutcomeStore
	metrics  domrepo.Metrics
}

func NewOutcomeIngestHandler(topic string, outcomes domrepo.OutcomeStore, metrics domrepo.Metrics) *OutcomeIngestHandler {
	return &OutcomeIngestHandler{topic: topic, outcomes: outcomes, metrics: metrics}
}

func (h *OutcomeIngestHandler) Topic() string { return h.topic }

// incoming message schema: {target_id, as_of, horizon, realized_delta}
func (h *OutcomeIngestHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		TargetID      string  `json:"target_id"`
		AsOf          int64   `json:"as_of"` // unix seconds
		Horizon       string  `json:"horizon"`
		RealizedDelta float64 `json:"realized_delta"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("outcome_unmarshal")
		return err
	}

	start := time.Now()
	err := h.outcomes.Upsert(ctx, &models.Outcome{
		TargetID:      m.TargetID,
		AsOf:          time.Unix(m.AsOf, 0).UTC(),
		Horizon:       m.Horizon,
		RealizedDelta: m.RealizedDelta,
	})
	if err != nil {
		h.metrics.RecordError("outcome_store")
		return err
	}
	h.metrics.RecordLatency("outcome_ingest", time.Since(start).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*OutcomeIngestHandler)(nil)
