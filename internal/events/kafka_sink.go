package events

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
)

// KafkaSink forwards pipeline events to a Kafka topic, best-effort. Publish
// failures are logged and swallowed: the pipeline never depends on the sink.
type KafkaSink struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaSink creates the sink, or nil when no brokers are configured.
func NewKafkaSink(cfg config.KafkaConfig, logger *zap.Logger) *KafkaSink {
	if len(cfg.Brokers) == 0 {
		return nil
	}
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logger,
	}
}

// RegisterAll subscribes the sink to every pipeline event type.
func (s *KafkaSink) RegisterAll(dispatcher Dispatcher) {
	if s == nil {
		return
	}
	for _, eventType := range []EventType{
		EventTicketsIngested,
		EventAnalysisRecorded,
		EventDraftCreated,
		EventDraftStatusChanged,
		EventDraftPromoted,
		EventDraftDeleted,
		EventBatchRunFinished,
	} {
		dispatcher.Subscribe(eventType, s.handle)
	}
}

func (s *KafkaSink) handle(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to encode event for kafka", zap.Error(err))
		return nil
	}
	msg := kafka.Message{
		Key:   []byte(string(event.Type) + ":" + strconv.FormatInt(event.TicketID, 10)),
		Value: data,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.logger.Warn("failed to publish event to kafka",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
	return nil
}

// Close closes the Kafka writer.
func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
