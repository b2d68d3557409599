package publisher

import (
	"context"
	"fmt"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
)

// queueSender abstracts provider-specific queue senders.
type queueSender interface {
	Send(ctx context.Context, evt domain.ArticleEvent) error
	Close() error
}

// queuePublisher dispatches events to a cloud queue or broker.
type queuePublisher struct {
	id       string
	provider string
	sender   queueSender
	log      logger.Logger
}

func newQueuePublisher(ctx context.Context, cfg Config, log logger.Logger) (Publisher, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("publisher %q missing queue configuration", cfg.ID)
	}

	var (
		sender queueSender
		err    error
	)
	switch cfg.Queue.Provider {
	case QueueProviderAWSSQS:
		sender, err = newSQSSender(ctx, cfg.Queue.AWS, log)
	case QueueProviderAWSSNS:
		sender, err = newSNSSender(ctx, cfg.Queue.SNS, log)
	case QueueProviderGCP:
		sender, err = newPubSubSender(ctx, cfg.Queue.GCP, log)
	case QueueProviderKafka:
		sender, err = newKafkaSender(cfg.Queue.Kafka, log)
	default:
		err = fmt.Errorf("queue provider %q is not supported", cfg.Queue.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &queuePublisher{
		id:       cfg.ID,
		provider: cfg.Queue.Provider,
		sender:   sender,
		log:      logger.Ensure(log),
	}, nil
}

func (p *queuePublisher) ID() string { return p.id }

// Publish forwards the event to the configured provider.
func (p *queuePublisher) Publish(ctx context.Context, evt domain.ArticleEvent) error {
	if err := p.sender.Send(ctx, evt); err != nil {
		return fmt.Errorf("queue provider %s send failed: %w", p.provider, err)
	}
	return nil
}

func (p *queuePublisher) Close() error {
	return p.sender.Close()
}
