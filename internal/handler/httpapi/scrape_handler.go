package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
	"wisenews_scraper/internal/repository"
	"wisenews_scraper/internal/usecase"
)

const (
	RunTimeout = 30 * time.Minute

	defaultListLimit = 20
	maxListLimit     = 200
)

// Runner executes scrape runs.
type Runner interface {
	Execute(ctx context.Context, req usecase.RunRequest) (*usecase.Report, error)
	Running() bool
}

// Defaults fill in whatever a run request leaves out.
type Defaults struct {
	Keywords   []domain.Keyword
	Sections   []string
	DateRange  domain.DateRange
	Delivery   domain.Delivery
	Persist    bool
	EmailTitle string
}

// ScrapeRequest is the JSON body of POST /runs. Omitted fields take the
// configured defaults.
type ScrapeRequest struct {
	Keywords        []string `json:"keywords"`
	DateRange       string   `json:"date_range"`
	Sections        []string `json:"sections"`
	Persist         *bool    `json:"persist"`
	Deliver         string   `json:"deliver"`
	SkipSeen        bool     `json:"skip_seen"`
	EmailTitle      string   `json:"email_title"`
	IncludeArticles bool     `json:"include_articles"`
}

type errorResponse struct {
	Error  string          `json:"error"`
	Report *usecase.Report `json:"report,omitempty"`
}

// ScrapeHandler serves the run trigger and read-only article listing.
type ScrapeHandler struct {
	runner   Runner
	store    repository.ArticleStore
	defaults Defaults
	log      logger.Logger
	timeout  time.Duration
}

// NewScrapeHandler wires the handler. store may be nil when persistence is
// disabled; the article listing then answers 503.
func NewScrapeHandler(runner Runner, store repository.ArticleStore, defaults Defaults, log logger.Logger) *ScrapeHandler {
	return &ScrapeHandler{
		runner:   runner,
		store:    store,
		defaults: defaults,
		log:      logger.Ensure(log),
		timeout:  RunTimeout,
	}
}

// Routes builds the chi router.
func (h *ScrapeHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HandleHealth)
	r.Post("/runs", h.HandleScrape)
	r.Get("/articles/{collection}", h.HandleArticles)
	return r
}

func (h *ScrapeHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"running": h.runner.Running(),
	})
}

// HandleScrape runs the pipeline synchronously and answers with its report.
func (h *ScrapeHandler) HandleScrape(w http.ResponseWriter, r *http.Request) {
	var body ScrapeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}

	req, err := h.runRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.log.InfoObj("run requested", "http_run", map[string]any{
		"request_id": middleware.GetReqID(r.Context()),
		"keywords":   len(req.Keywords),
		"delivery":   string(req.Delivery),
	})

	report, err := h.runner.Execute(ctx, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case usecase.IsRequestError(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Error: err.Error(), Report: report})
	default:
		h.log.ErrorObj("run failed", "http_run", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Report: report})
	}
}

func (h *ScrapeHandler) runRequest(body ScrapeRequest) (usecase.RunRequest, error) {
	keywords, err := domain.SelectKeywords(h.defaults.Keywords, body.Keywords)
	if err != nil {
		return usecase.RunRequest{}, err
	}

	dateRange := h.defaults.DateRange
	if strings.TrimSpace(body.DateRange) != "" {
		if dateRange, err = domain.ParseDateRange(body.DateRange); err != nil {
			return usecase.RunRequest{}, err
		}
	}

	delivery := h.defaults.Delivery
	if strings.TrimSpace(body.Deliver) != "" {
		if delivery, err = domain.ParseDelivery(body.Deliver); err != nil {
			return usecase.RunRequest{}, err
		}
	}

	sections := h.defaults.Sections
	if len(body.Sections) > 0 {
		sections = body.Sections
	}

	persist := h.defaults.Persist
	if body.Persist != nil {
		persist = *body.Persist
	}

	title := h.defaults.EmailTitle
	if t := strings.TrimSpace(body.EmailTitle); t != "" {
		title = t
	}

	return usecase.RunRequest{
		Keywords:        keywords,
		Sections:        sections,
		DateRange:       dateRange,
		Persist:         persist,
		Delivery:        delivery,
		SkipSeen:        body.SkipSeen,
		EmailTitle:      title,
		IncludeArticles: body.IncludeArticles,
	}, nil
}

// HandleArticles lists the most recent articles stored for a keyword's collection.
func (h *ScrapeHandler) HandleArticles(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "article store is disabled"})
		return
	}

	collection := chi.URLParam(r, "collection")
	if !h.knownCollection(collection) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown collection " + strconv.Quote(collection)})
		return
	}

	limit := clampInt(r.URL.Query().Get("limit"), defaultListLimit, maxListLimit)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	articles, err := h.store.List(ctx, collection, limit)
	if err != nil {
		h.log.ErrorObj("listing articles failed", "http_articles", map[string]any{
			"collection": collection,
			"error":      err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

func (h *ScrapeHandler) knownCollection(name string) bool {
	for _, k := range h.defaults.Keywords {
		if k.Collection == name {
			return true
		}
	}
	return false
}

func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
