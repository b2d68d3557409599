package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
)

type stubPublisher struct {
	id     string
	closed bool
}

func (s *stubPublisher) ID() string { return s.id }
func (s *stubPublisher) Publish(context.Context, domain.ArticleEvent) error {
	return nil
}
func (s *stubPublisher) Close() error {
	s.closed = true
	return nil
}

func TestRegistryBuildAll(t *testing.T) {
	var built []*stubPublisher
	reg := NewRegistry(map[string]Builder{
		"stub": func(_ context.Context, cfg Config, _ logger.Logger) (Publisher, error) {
			p := &stubPublisher{id: cfg.ID}
			built = append(built, p)
			return p, nil
		},
	})

	off := false
	cfgs := []Config{
		{ID: "a", Type: "stub"},
		{ID: "b", Type: "STUB", Enabled: &off},
		{ID: "c", Type: "stub"},
	}

	pubs, err := BuildAll(context.Background(), reg, cfgs, nil)
	require.NoError(t, err)
	require.Len(t, pubs, 2)
	assert.Equal(t, "a", pubs[0].ID())
	assert.Equal(t, "c", pubs[1].ID())

	require.NoError(t, CloseAll(pubs))
	for _, p := range built {
		assert.True(t, p.closed)
	}
}

func TestRegistryBuildAllClosesOnFailure(t *testing.T) {
	var first *stubPublisher
	reg := NewRegistry(map[string]Builder{
		"stub": func(_ context.Context, cfg Config, _ logger.Logger) (Publisher, error) {
			first = &stubPublisher{id: cfg.ID}
			return first, nil
		},
		"broken": func(context.Context, Config, logger.Logger) (Publisher, error) {
			return nil, errors.New("boom")
		},
	})

	_, err := BuildAll(context.Background(), reg, []Config{
		{ID: "a", Type: "stub"},
		{ID: "b", Type: "broken"},
	}, nil)
	require.ErrorContains(t, err, "boom")
	require.NotNil(t, first)
	assert.True(t, first.closed)
}

func TestRegistryUnknownType(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.PublisherFor(context.Background(), Config{ID: "x", Type: "nope"}, nil)
	require.ErrorContains(t, err, "no publisher registered")

	_, err = reg.PublisherFor(context.Background(), Config{ID: "x"}, nil)
	require.ErrorContains(t, err, "no type")

	pubs, err := BuildAll(context.Background(), reg, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, pubs)
}

func TestQueuePublisherRejectsUnknownProvider(t *testing.T) {
	_, err := newQueuePublisher(context.Background(), Config{ID: "q", Type: TypeQueue, Queue: &QueueConfig{Provider: "azure"}}, nil)
	require.ErrorContains(t, err, "not supported")

	_, err = newQueuePublisher(context.Background(), Config{ID: "q", Type: TypeQueue}, nil)
	require.ErrorContains(t, err, "missing queue configuration")
}
