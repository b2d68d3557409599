package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
)

// Publisher sends article events to one external sink.
type Publisher interface {
	ID() string
	Publish(ctx context.Context, evt domain.ArticleEvent) error
}

// Builder creates a Publisher from a config entry.
type Builder func(ctx context.Context, cfg Config, log logger.Logger) (Publisher, error)

// Registry maps publisher types to builders. It is fixed once built.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry returns a registry over builders keyed by lower-case type.
func NewRegistry(builders map[string]Builder) *Registry {
	r := &Registry{builders: make(map[string]Builder, len(builders))}
	for typ, b := range builders {
		if typ = strings.TrimSpace(strings.ToLower(typ)); typ != "" && b != nil {
			r.builders[typ] = b
		}
	}
	return r
}

// PublisherFor builds the publisher for cfg.Type.
func (r *Registry) PublisherFor(ctx context.Context, cfg Config, log logger.Logger) (Publisher, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("publisher %q has no type configured", cfg.ID)
	}

	builder := r.builders[strings.ToLower(cfg.Type)]
	if builder == nil {
		return nil, fmt.Errorf("no publisher registered for type %q", cfg.Type)
	}
	return builder(ctx, cfg, log)
}

// DefaultRegistry wires up the http and queue publishers.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]Builder{
		TypeHTTP:  newHTTPPublisher,
		TypeQueue: newQueuePublisher,
	})
}

// BuildAll instantiates publishers for the enabled configs. Publishers built
// before a failure are closed.
func BuildAll(ctx context.Context, reg *Registry, cfgs []Config, log logger.Logger) ([]Publisher, error) {
	if reg == nil || len(cfgs) == 0 {
		return nil, nil
	}
	log = logger.Ensure(log)

	var pubs []Publisher
	for _, cfg := range Enabled(cfgs) {
		pub, err := reg.PublisherFor(ctx, cfg, log)
		if err != nil {
			_ = CloseAll(pubs)
			return nil, err
		}
		pubs = append(pubs, pub)
	}
	return pubs, nil
}

// CloseAll closes every publisher holding a connection.
func CloseAll(pubs []Publisher) error {
	var errs []error
	for _, p := range pubs {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close publisher %s: %w", p.ID(), err))
			}
		}
	}
	return errors.Join(errs...)
}
