package publisher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
)

func sampleEvent() domain.ArticleEvent {
	return domain.ArticleEvent{
		ID:         "evt-1",
		RunID:      "run-1",
		Keyword:    "suicide",
		Collection: "suicide_news",
		DocumentID: "20200720MB0001",
		Heading:    "少女墮樓亡",
		Source:     "明報",
		PubDate:    time.Date(2020, 7, 20, 0, 0, 0, 0, domain.HongKong),
	}
}

func TestHTTPPublisherPostsJSON(t *testing.T) {
	var (
		mu     sync.Mutex
		got    domain.ArticleEvent
		method string
		auth   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method = r.Method
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := sanitizeConfig(Config{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPConfig{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer t"}},
	})
	pub, err := DefaultRegistry().PublisherFor(context.Background(), cfg, logger.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, "hook", pub.ID())

	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "Bearer t", auth)
	assert.Equal(t, "20200720MB0001", got.DocumentID)
	assert.Equal(t, "suicide", got.Keyword)
	assert.True(t, got.PubDate.Equal(sampleEvent().PubDate))
}

func TestHTTPPublisherRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := sanitizeConfig(Config{ID: "hook", Type: TypeHTTP, HTTP: &HTTPConfig{URL: srv.URL}})
	pub, err := newHTTPPublisher(context.Background(), cfg, nil)
	require.NoError(t, err)

	err = pub.Publish(context.Background(), sampleEvent())
	require.ErrorContains(t, err, "400")
}
