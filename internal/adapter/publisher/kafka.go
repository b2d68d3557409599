package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaSender keys messages by document id so one document always lands on
// the same partition.
type kafkaSender struct {
	topic  string
	writer kafkaWriter
	log    logger.Logger
}

func newKafkaSender(cfg *KafkaConfig, log logger.Logger) (queueSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("kafka configuration is missing")
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		Balancer:    &kafka.Hash{},
		MaxAttempts: 3,
	})

	return &kafkaSender{
		topic:  cfg.Topic,
		writer: writer,
		log:    logger.Ensure(log),
	}, nil
}

func (s *kafkaSender) Send(ctx context.Context, evt domain.ArticleEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.DocumentID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "keyword", Value: []byte(evt.Keyword)},
			{Key: "run_id", Value: []byte(evt.RunID)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.log.ErrorObj("kafka publisher send failed", "publisher_kafka_error", map[string]any{
			"topic": s.topic,
			"error": err.Error(),
		})
		return fmt.Errorf("write message to kafka: %w", err)
	}

	s.log.DebugObj("kafka publisher delivered event", "publisher_kafka_delivery", map[string]any{
		"topic":       s.topic,
		"document_id": evt.DocumentID,
	})
	return nil
}

func (s *kafkaSender) Close() error {
	return s.writer.Close()
}
