package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"wisenews_scraper/internal/adapter/httpclient"
	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
)

// httpPublisher posts each event as JSON to a webhook.
type httpPublisher struct {
	id     string
	cfg    HTTPConfig
	client *resty.Client
	log    logger.Logger
}

func newHTTPPublisher(_ context.Context, cfg Config, log logger.Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	return &httpPublisher{
		id:     cfg.ID,
		cfg:    *cfg.HTTP,
		client: httpclient.NewHTTPClient(timeout),
		log:    logger.Ensure(log),
	}, nil
}

func (p *httpPublisher) ID() string { return p.id }

func (p *httpPublisher) Publish(ctx context.Context, evt domain.ArticleEvent) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeaders(p.cfg.Headers).
		SetHeader("Content-Type", "application/json").
		SetBody(evt).
		Post(p.cfg.URL)
	if err != nil {
		p.log.ErrorObj("http publisher send failed", "publisher_http_error", map[string]any{
			"id":    p.id,
			"error": err.Error(),
		})
		return fmt.Errorf("http publisher %s: %w", p.id, err)
	}
	if resp.IsError() {
		return fmt.Errorf("http publisher %s: unexpected status %d", p.id, resp.StatusCode())
	}

	p.log.DebugObj("http publisher delivered event", "publisher_http_delivery", map[string]any{
		"id":          p.id,
		"status":      resp.StatusCode(),
		"document_id": evt.DocumentID,
	})
	return nil
}
