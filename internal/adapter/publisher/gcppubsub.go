package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
)

type pubSubSender struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	log    logger.Logger
}

func newPubSubSender(ctx context.Context, cfg *GCPConfig, log logger.Logger) (queueSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gcp queue configuration is missing")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &pubSubSender{
		client: client,
		topic:  client.Topic(cfg.Topic),
		log:    logger.Ensure(log),
	}, nil
}

func (s *pubSubSender) Send(ctx context.Context, evt domain.ArticleEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	res := s.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"keyword": evt.Keyword},
	})
	msgID, err := res.Get(ctx)
	if err != nil {
		s.log.ErrorObj("gcp pubsub publisher send failed", "publisher_gcp_pubsub_error", map[string]any{
			"error": err.Error(),
		})
		return fmt.Errorf("send message to pubsub: %w", err)
	}

	s.log.DebugObj("gcp pubsub publisher delivered event", "publisher_gcp_pubsub_delivery", map[string]any{
		"message_id": msgID,
	})
	return nil
}

func (s *pubSubSender) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
