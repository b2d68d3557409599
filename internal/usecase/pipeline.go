package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
	"wisenews_scraper/internal/repository"
)

// RunRequest selects what one run searches and what it does with the results.
type RunRequest struct {
	Keywords  []domain.Keyword
	Sections  []string
	DateRange domain.DateRange
	Persist   bool
	Delivery  domain.Delivery
	// SkipSeen drops articles already delivered for the keyword before
	// storing and sending. Portal delivery still emails the portal's whole
	// result list; the skip only decides whether anything is sent.
	// Requires a ledger.
	SkipSeen        bool
	EmailTitle      string
	IncludeArticles bool
}

// Settings are the run-independent knobs of a Pipeline.
type Settings struct {
	Attempts    int
	RetryDelay  time.Duration
	Credentials domain.Credentials
	EmailTitle  string
}

// Option wires an optional backend into a Pipeline.
type Option func(*Pipeline)

func WithStore(store repository.ArticleStore) Option {
	return func(p *Pipeline) { p.store = store }
}

func WithNotifier(n repository.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

func WithLedger(l repository.SeenLedger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

func WithPublishers(pubs ...repository.Publisher) Option {
	return func(p *Pipeline) { p.publishers = append(p.publishers, pubs...) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDs replaces the uuid generator used for run and event ids.
func WithIDs(next func() string) Option {
	return func(p *Pipeline) { p.newID = next }
}

// Pipeline runs the search, collect, store and deliver loop over a single
// portal session. Only one run may be active at a time.
type Pipeline struct {
	portals    repository.PortalFactory
	store      repository.ArticleStore
	notifier   repository.Notifier
	ledger     repository.SeenLedger
	publishers []repository.Publisher

	settings Settings
	log      logger.Logger
	now      func() time.Time
	newID    func() string
	sleep    func(ctx context.Context, d time.Duration) error

	running atomic.Bool
}

func NewPipeline(portals repository.PortalFactory, settings Settings, log logger.Logger, opts ...Option) *Pipeline {
	if settings.Attempts <= 0 {
		settings.Attempts = 1
	}
	p := &Pipeline{
		portals:  portals,
		settings: settings,
		log:      logger.Ensure(log),
		now:      time.Now,
		newID:    uuid.NewString,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Running reports whether a run is in progress.
func (p *Pipeline) Running() bool { return p.running.Load() }

// Validate checks req against the wired backends without running anything.
func (p *Pipeline) Validate(req RunRequest) error {
	if len(req.Keywords) == 0 {
		return ErrNoKeywords
	}
	for _, k := range req.Keywords {
		if err := k.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	switch req.Delivery {
	case "", domain.DeliveryPortal:
		if err := p.settings.Credentials.ValidateMail(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	case domain.DeliverySMTP:
		if p.notifier == nil {
			return ErrNotifierUnavailable
		}
	case domain.DeliveryNone:
	default:
		return fmt.Errorf("%w %q", ErrUnknownDelivery, req.Delivery)
	}

	if req.Persist && p.store == nil {
		return ErrStoreUnavailable
	}
	if req.SkipSeen && p.ledger == nil {
		return ErrLedgerUnavailable
	}
	return nil
}

// Execute performs one run. Keyword failures are recorded in the report;
// an error is returned only when the run could not start or was cancelled.
func (p *Pipeline) Execute(ctx context.Context, req RunRequest) (*Report, error) {
	if err := p.Validate(req); err != nil {
		return nil, err
	}
	if req.Delivery == "" {
		req.Delivery = domain.DeliveryPortal
	}
	if strings.TrimSpace(req.EmailTitle) == "" {
		req.EmailTitle = p.settings.EmailTitle
	}

	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer p.running.Store(false)

	report := &Report{
		RunID:     p.newID(),
		Delivery:  req.Delivery,
		StartedAt: p.now(),
	}
	log := p.log
	log.InfoObj("run started", "run", map[string]any{
		"run_id":     report.RunID,
		"keywords":   keywordNames(req.Keywords),
		"date_range": req.DateRange.String(),
		"delivery":   string(req.Delivery),
		"persist":    req.Persist,
	})

	portal, err := p.portals.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSession, err)
	}
	defer func() {
		if err := portal.Close(ctx); err != nil {
			log.WarnObj("closing portal failed", "run", map[string]any{"error": err.Error()})
		}
	}()

	if err := portal.Login(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLogin, err)
	}
	if err := portal.Open(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPortal, err)
	}

	r := &run{Pipeline: p, portal: portal, req: req, report: report, fresh: true}
	for _, kw := range req.Keywords {
		if ctx.Err() != nil {
			break
		}
		report.Keywords = append(report.Keywords, r.keyword(ctx, kw))
	}

	report.FinishedAt = p.now()
	totals := report.Totals()
	log.InfoObj("run finished", "run", map[string]any{
		"run_id":     report.RunID,
		"found":      totals.Found,
		"stored":     totals.Stored,
		"emailed":    totals.Emailed,
		"published":  totals.Published,
		"failed":     report.Failed(),
		"duration_s": report.Duration().Seconds(),
	})

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// run carries the state of one Execute call across keywords.
type run struct {
	*Pipeline
	portal repository.Portal
	req    RunRequest
	report *Report

	// fresh means the search form has not been submitted since the portal
	// was (re)opened, so the full Search is needed instead of Refine.
	fresh bool
}

func (r *run) keyword(ctx context.Context, kw domain.Keyword) KeywordResult {
	res := KeywordResult{Keyword: kw.Name, Collection: kw.Collection}
	query := domain.SearchQuery{Terms: kw.Terms, Sections: r.req.Sections, DateRange: r.req.DateRange}

	articles, err := r.collect(ctx, query)
	if err != nil {
		res.Error = err.Error()
		r.log.ErrorObj("keyword failed", "run_keyword", map[string]any{
			"keyword": kw.Name,
			"error":   err.Error(),
		})
		return res
	}

	scrapedAt := r.now()
	for i := range articles {
		articles[i].Keyword = kw.Name
		articles[i].ScrapedAt = scrapedAt
	}
	res.Found = len(articles)

	if r.req.SkipSeen {
		articles, res.Skipped = r.unseen(kw, articles)
	}

	var problems []string
	if r.req.Persist {
		saved, err := r.store.Save(ctx, kw.Collection, articles)
		res.Stored, res.Duplicates = saved.Inserted, saved.Duplicates
		if err != nil {
			problems = append(problems, "store: "+err.Error())
		}
	}

	if len(articles) > 0 {
		if err := r.deliver(ctx, kw, articles); err != nil {
			problems = append(problems, "deliver: "+err.Error())
		} else if r.req.Delivery != domain.DeliveryNone {
			res.Emailed = len(articles)
		}
		res.Published, res.PublishErrors = r.publish(ctx, kw, articles)
	}

	// only articles that reached the recipient count as seen
	if res.Emailed > 0 && r.ledger != nil {
		if err := r.ledger.Mark(kw.Name, documentIDs(articles)...); err != nil {
			r.log.WarnObj("marking delivered articles failed", "run_keyword", map[string]any{
				"keyword": kw.Name,
				"error":   err.Error(),
			})
		}
	}

	if r.req.IncludeArticles {
		res.Articles = articles
	}
	res.Error = strings.Join(problems, "; ")

	r.log.InfoObj("keyword done", "run_keyword", map[string]any{
		"keyword":    kw.Name,
		"found":      res.Found,
		"skipped":    res.Skipped,
		"stored":     res.Stored,
		"duplicates": res.Duplicates,
		"emailed":    res.Emailed,
		"published":  res.Published,
	})
	return res
}

// collect searches and collects with retries. A failed attempt reopens the
// portal so the next one starts from a clean search form.
func (r *run) collect(ctx context.Context, q domain.SearchQuery) ([]domain.Article, error) {
	sections := q.Sections
	if len(sections) == 0 {
		sections = domain.DefaultSections
	}

	var lastErr error
	for attempt := 1; attempt <= r.settings.Attempts; attempt++ {
		if attempt > 1 {
			if err := r.sleep(ctx, r.settings.RetryDelay); err != nil {
				return nil, err
			}
			if err := r.portal.Open(ctx); err != nil {
				lastErr = err
				r.log.WarnObj("reopening portal failed", "run_retry", map[string]any{
					"attempt": attempt,
					"error":   err.Error(),
				})
				continue
			}
			r.fresh = true
		}

		articles, err := r.searchAndCollect(ctx, q, sections)
		if err == nil {
			return articles, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
		r.log.WarnObj("attempt failed", "run_retry", map[string]any{
			"attempt":  attempt,
			"attempts": r.settings.Attempts,
			"terms":    q.Terms,
			"error":    err.Error(),
		})
	}
	return nil, fmt.Errorf("after %d attempt(s): %w", r.settings.Attempts, lastErr)
}

func (r *run) searchAndCollect(ctx context.Context, q domain.SearchQuery, sections []string) ([]domain.Article, error) {
	if r.fresh {
		if err := r.portal.Search(ctx, q); err != nil {
			return nil, err
		}
		r.fresh = false
	} else if err := r.portal.Refine(ctx, q); err != nil {
		r.fresh = true
		return nil, err
	}
	return r.portal.Collect(ctx, sections)
}

func (r *run) unseen(kw domain.Keyword, articles []domain.Article) ([]domain.Article, int) {
	out := articles[:0:0]
	skipped := 0
	for _, a := range articles {
		seen, err := r.ledger.Seen(kw.Name, a.DocumentID)
		if err != nil {
			r.log.WarnObj("ledger lookup failed", "run_keyword", map[string]any{
				"keyword":     kw.Name,
				"document_id": a.DocumentID,
				"error":       err.Error(),
			})
		}
		if seen {
			skipped++
			continue
		}
		out = append(out, a)
	}
	return out, skipped
}

func (r *run) deliver(ctx context.Context, kw domain.Keyword, articles []domain.Article) error {
	switch r.req.Delivery {
	case domain.DeliveryPortal:
		form := r.settings.Credentials.EmailForm(subject(r.req.EmailTitle, kw.Name))
		return r.portal.Email(ctx, form)
	case domain.DeliverySMTP:
		return r.notifier.Notify(ctx, domain.Digest{
			Title:    r.req.EmailTitle,
			Keyword:  kw.Name,
			Articles: articles,
		})
	default:
		return nil
	}
}

func (r *run) publish(ctx context.Context, kw domain.Keyword, articles []domain.Article) (published, failed int) {
	for _, pub := range r.publishers {
		for _, a := range articles {
			evt := domain.NewArticleEvent(r.newID(), r.report.RunID, kw, a)
			if err := pub.Publish(ctx, evt); err != nil {
				failed++
				r.log.WarnObj("publish failed", "run_publish", map[string]any{
					"publisher":   pub.ID(),
					"document_id": a.DocumentID,
					"error":       err.Error(),
				})
				continue
			}
			published++
		}
	}
	return published, failed
}

func subject(title, keyword string) string {
	if keyword == "" {
		return title
	}
	return title + " - " + keyword
}

func documentIDs(articles []domain.Article) []string {
	ids := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.DocumentID
	}
	return ids
}

func keywordNames(ks []domain.Keyword) []string {
	names := make([]string, len(ks))
	for i, k := range ks {
		names[i] = k.Name
	}
	return names
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
