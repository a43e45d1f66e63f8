package di

import (
	"context"
	"fmt"
	"time"

	"EventCast/internal/domain/repository"
	"EventCast/internal/forecast"
	internalrepo "EventCast/internal/repository"
	"EventCast/internal/usecase"
	"EventCast/internal/vector"
	pkgch "EventCast/pkg/clickhouse"
	"EventCast/pkg/config"
	pkgkafka "EventCast/pkg/kafka"
	"EventCast/pkg/metrics"
	"EventCast/pkg/server"
)

// ProvideClickHouseClient creates a ClickHouse client and bootstraps the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideEventStore creates the ClickHouse-backed event store.
func ProvideEventStore(chClient *pkgch.Client, cfg *config.Config) repository.EventStore {
	return internalrepo.NewCHEventStore(chClient, cfg.ClickHouse.Database)
}

// ProvideOutcomeStore creates the ClickHouse-backed outcome store.
func ProvideOutcomeStore(chClient *pkgch.Client, cfg *config.Config) repository.OutcomeStore {
	return internalrepo.NewCHOutcomeStore(chClient, cfg.ClickHouse.Database)
}

// ProvideVectorIndex selects the neighbor-search backend. The exact
// ClickHouse scan is always constructed; with the approximate backend
// enabled it becomes the fallback behind a failover wrapper.
func ProvideVectorIndex(chClient *pkgch.Client, m repository.Metrics, cfg *config.Config) repository.VectorIndex {
	exact := vector.NewCHExactIndex(chClient, cfg.ClickHouse.Database)
	if cfg.Vector.Backend != "ann" {
		return exact
	}
	ann := vector.NewANNIndex(cfg)
	return vector.NewFailoverIndex(ann, exact, cfg.Vector.ANNTimeout, nil, m)
}

// ProvideAggregator creates the neighbor aggregator.
func ProvideAggregator(index repository.VectorIndex, outcomes repository.OutcomeStore, cfg *config.Config) *forecast.NeighborAggregator {
	return forecast.NewNeighborAggregator(index, outcomes, cfg.Forecast.Alpha, cfg.Forecast.EpsilonDistance)
}

// ProvideBaseline creates the unconditional fallback forecaster.
func ProvideBaseline(outcomes repository.OutcomeStore, cfg *config.Config) *forecast.BaselineForecaster {
	return forecast.NewBaselineForecaster(outcomes, cfg.Forecast.BaselineLookback)
}

// ProvideCalibrator creates the confidence calibrator.
func ProvideCalibrator(cfg *config.Config) *forecast.Calibrator {
	return forecast.NewCalibrator(cfg)
}

// ProvideRegimeClassifier creates the regime classifier.
func ProvideRegimeClassifier(cfg *config.Config) *forecast.RegimeClassifier {
	return forecast.NewRegimeClassifier(cfg)
}

// ProvideForecaster creates the forecast orchestration use case.
func ProvideForecaster(
	events repository.EventStore,
	outcomes repository.OutcomeStore,
	aggregator *forecast.NeighborAggregator,
	baseline *forecast.BaselineForecaster,
	calibrator *forecast.Calibrator,
	regime *forecast.RegimeClassifier,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.Forecaster {
	return usecase.NewForecaster(events, outcomes, aggregator, baseline, calibrator, regime, m, cfg)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideEventIngestHandler registers the handler for the event topic.
func ProvideEventIngestHandler(
	events repository.EventStore,
	index repository.VectorIndex,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.EventIngestHandler {
	return usecase.NewEventIngestHandler(cfg.Kafka.EventTopic, events, index, m)
}

// ProvideOutcomeIngestHandler registers the handler for the outcome topic.
func ProvideOutcomeIngestHandler(
	outcomes repository.OutcomeStore,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.OutcomeIngestHandler {
	return usecase.NewOutcomeIngestHandler(cfg.Kafka.OutcomeTopic, outcomes, m)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	fc *usecase.Forecaster,
	consumer *pkgkafka.Consumer,
	evh *usecase.EventIngestHandler,
	och *usecase.OutcomeIngestHandler,
	chClient *pkgch.Client,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, fc, consumer, []pkgkafka.MessageHandler{evh, och}, chClient)
}
