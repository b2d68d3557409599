package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisenews_scraper/internal/adapter/wisenews"
	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
	"wisenews_scraper/internal/repository"
	"wisenews_scraper/internal/usecase"
)

type fakeRunner struct {
	got     []usecase.RunRequest
	report  *usecase.Report
	err     error
	running bool
}

func (f *fakeRunner) Execute(_ context.Context, req usecase.RunRequest) (*usecase.Report, error) {
	f.got = append(f.got, req)
	return f.report, f.err
}

func (f *fakeRunner) Running() bool { return f.running }

type fakeStore struct {
	collection string
	limit      int
	articles   []domain.Article
	err        error
}

func (s *fakeStore) Save(context.Context, string, []domain.Article) (repository.SaveResult, error) {
	return repository.SaveResult{}, nil
}

func (s *fakeStore) List(_ context.Context, collection string, limit int) ([]domain.Article, error) {
	s.collection, s.limit = collection, limit
	return s.articles, s.err
}

func testDefaults() Defaults {
	return Defaults{
		Keywords:   domain.DefaultKeywords(),
		Sections:   []string{"港聞"},
		DateRange:  domain.DateRangeThreeDays,
		Delivery:   domain.DeliveryPortal,
		Persist:    true,
		EmailTitle: "Suicide News",
	}
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewScrapeHandler(&fakeRunner{running: true}, nil, testDefaults(), logger.NopLogger{})

	rec := do(t, h.Routes(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","running":true}`, rec.Body.String())
}

func TestHandleScrapeAppliesDefaults(t *testing.T) {
	runner := &fakeRunner{report: &usecase.Report{RunID: "r1"}}
	h := NewScrapeHandler(runner, nil, testDefaults(), nil)

	rec := do(t, h.Routes(), http.MethodPost, "/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, runner.got, 1)
	got := runner.got[0]
	assert.Len(t, got.Keywords, 3)
	assert.Equal(t, domain.DateRangeThreeDays, got.DateRange)
	assert.Equal(t, domain.DeliveryPortal, got.Delivery)
	assert.Equal(t, []string{"港聞"}, got.Sections)
	assert.True(t, got.Persist)
	assert.Equal(t, "Suicide News", got.EmailTitle)

	var report usecase.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "r1", report.RunID)
}

func TestHandleScrapeOverrides(t *testing.T) {
	runner := &fakeRunner{report: &usecase.Report{}}
	h := NewScrapeHandler(runner, nil, testDefaults(), nil)

	body := `{"keywords":["CSRP"],"date_range":"2019","sections":["要聞"],"persist":false,
		"deliver":"none","skip_seen":true,"email_title":"Weekly","include_articles":true}`
	rec := do(t, h.Routes(), http.MethodPost, "/runs", body)
	require.Equal(t, http.StatusOK, rec.Code)

	got := runner.got[0]
	require.Len(t, got.Keywords, 1)
	assert.Equal(t, "csrp", got.Keywords[0].Name)
	assert.Equal(t, domain.DateRange2019, got.DateRange)
	assert.Equal(t, []string{"要聞"}, got.Sections)
	assert.False(t, got.Persist)
	assert.Equal(t, domain.DeliveryNone, got.Delivery)
	assert.True(t, got.SkipSeen)
	assert.True(t, got.IncludeArticles)
	assert.Equal(t, "Weekly", got.EmailTitle)
}

func TestHandleScrapeBadRequests(t *testing.T) {
	cases := map[string]string{
		"malformed json":     `{"keywords":`,
		"unknown keyword":    `{"keywords":["weather"]}`,
		"unknown date range": `{"date_range":"yesterday"}`,
		"unknown delivery":   `{"deliver":"fax"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			runner := &fakeRunner{}
			h := NewScrapeHandler(runner, nil, testDefaults(), nil)

			rec := do(t, h.Routes(), http.MethodPost, "/runs", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, runner.got)
		})
	}
}

func TestHandleScrapeMapsRunErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{usecase.ErrStoreUnavailable, http.StatusBadRequest},
		{fmt.Errorf("%w: SENDER is required", usecase.ErrInvalidRequest), http.StatusBadRequest},
		{usecase.ErrRunInProgress, http.StatusConflict},
		{fmt.Errorf("%w: %w", usecase.ErrLogin, errors.New("bad password")), http.StatusInternalServerError},
		{usecase.ErrLedgerUnavailable, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		// run deadline hit while the portal was still logging in
		{fmt.Errorf("%w: %w", usecase.ErrLogin,
			fmt.Errorf("%w: submit credentials: %w", wisenews.ErrLogin, context.DeadlineExceeded)), http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			h := NewScrapeHandler(&fakeRunner{err: tc.err}, nil, testDefaults(), nil)

			rec := do(t, h.Routes(), http.MethodPost, "/runs", `{}`)
			assert.Equal(t, tc.status, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.err.Error(), resp.Error)
		})
	}
}

func TestHandleArticles(t *testing.T) {
	store := &fakeStore{articles: []domain.Article{{DocumentID: "20200720MB0001", Heading: "少女墮樓亡"}}}
	h := NewScrapeHandler(&fakeRunner{}, store, testDefaults(), nil)

	rec := do(t, h.Routes(), http.MethodGet, "/articles/suicide_news", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "suicide_news", store.collection)
	assert.Equal(t, defaultListLimit, store.limit)

	var articles []domain.Article
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &articles))
	require.Len(t, articles, 1)
	assert.Equal(t, "少女墮樓亡", articles[0].Heading)

	do(t, h.Routes(), http.MethodGet, "/articles/suicide_news?limit=5000", "")
	assert.Equal(t, maxListLimit, store.limit)

	do(t, h.Routes(), http.MethodGet, "/articles/suicide_news?limit=abc", "")
	assert.Equal(t, defaultListLimit, store.limit)

	rec = do(t, h.Routes(), http.MethodGet, "/articles/system.users", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store.err = errors.New("connection refused")
	rec = do(t, h.Routes(), http.MethodGet, "/articles/helium_news", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleArticlesWithoutStore(t *testing.T) {
	h := NewScrapeHandler(&fakeRunner{}, nil, testDefaults(), nil)

	rec := do(t, h.Routes(), http.MethodGet, "/articles/suicide_news", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
