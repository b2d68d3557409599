package wisenews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"wisenews_scraper/internal/adapter/browser"
	"wisenews_scraper/internal/domain"
	"wisenews_scraper/internal/logger"
	"wisenews_scraper/internal/repository"
)

const (
	LibraryURL  = "https://lib.hku.hk/index.html"
	WiseNewsURL = "http://libwisenews.wisers.net.eproxy.lib.hku.hk/?gid=HKU&user=ipaccess&pwd=ipaccess"

	// optional notices are given less time than regular steps
	noticeTimeout = 10 * time.Second
)

var (
	ErrLogin   = errors.New("wisenews: unable to log in to HKU library")
	ErrPortal  = errors.New("wisenews: unable to open the Wisers Information Portal")
	ErrSearch  = errors.New("wisenews: unable to send search parameters")
	ErrCollect = errors.New("wisenews: unable to collect articles")
	ErrEmail   = errors.New("wisenews: unable to email articles")
)

// page elements
const (
	libraryNotice  = `#popup_this > span`
	libraryLogin   = `.button.green`
	authUserID     = `[name="userid"]`
	authPassword   = `[name="password"]`
	authSubmit     = `/html/body/main/div/form/div/div/div[3]/button[1]`
	authMenu       = `.menu-arrow`
	authSignOut    = `#signOutButton`
	portalLink     = "Wisers Information Portal"
	logoutLink     = `//a[normalize-space(.)="Logout"]`
	alertClose     = `#popup_alert_layer > div:nth-of-type(3) > a`
	regionAll      = `#regionSelectAll`
	regionHK       = `#hk`
	sectionField   = `#ShowSection`
	dateRangeField = `#DateRangePeriod`
	termsField     = `#searchTxt`
	editSearch     = `#edit_search`
	viewButton     = `#Imageview`
	emailButton    = `#Imageemail`
	viewAllButton  = `//*[@id="ToolForm"]/table/tbody/tr[3]/td/input`
	formSenderName = `//*[@id="ToolForm"]/table[1]/tbody/tr[6]/td[2]/input`
	formSenderAddr = `//*[@id="sender-address-id"]/td[2]/table/tbody/tr/td[1]/input`
	formRecipient  = `#email-addr`
	formSubject    = `//*[@id="ToolForm"]/table[1]/tbody/tr[9]/td[2]/input`
	formSubmit     = `//*[@id="emailContent"]/input`
)

// frames
const (
	frameHeader  = "header"
	frameContent = "ws5-content"
	frameResults = "result-list"
)

// Options configure a portal session.
type Options struct {
	Browser     browser.Options
	Credentials domain.Credentials
	SettleDelay time.Duration
	LibraryURL  string
	WiseNewsURL string
}

// Factory starts one browser per portal session.
type Factory struct {
	opts Options
	log  logger.Logger
}

func NewFactory(opts Options, log logger.Logger) *Factory {
	if opts.LibraryURL == "" {
		opts.LibraryURL = LibraryURL
	}
	if opts.WiseNewsURL == "" {
		opts.WiseNewsURL = WiseNewsURL
	}
	return &Factory{opts: opts, log: logger.Ensure(log)}
}

// Start launches Chrome and returns a portal that has not logged in yet.
func (f *Factory) Start(ctx context.Context) (repository.Portal, error) {
	bopts := f.opts.Browser
	if bopts.Logf == nil {
		bopts.Logf = f.log.Debugf
	}
	session, err := browser.Start(ctx, bopts)
	if err != nil {
		return nil, err
	}
	return &Portal{opts: f.opts, log: f.log, session: session}, nil
}

// Portal drives the WiseNews web interface through the HKU library proxy.
type Portal struct {
	opts    Options
	log     logger.Logger
	session *browser.Session

	// window the HKU authentication page lives in, kept for logout
	auth       context.Context
	authCancel context.CancelFunc
	loggedIn   bool
}

func (p *Portal) main() context.Context { return p.session.Main() }

// Login signs in to the HKU library, which sets up the proxy session.
func (p *Portal) Login(ctx context.Context) error {
	if err := p.opts.Credentials.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrLogin, err)
	}
	tab := p.main()
	if err := p.session.Run(tab, chromedp.Navigate(p.opts.LibraryURL)); err != nil {
		return fmt.Errorf("%w: open library page: %w", ErrLogin, err)
	}

	if !p.session.TryClick(tab, noticeTimeout, libraryNotice, chromedp.ByQuery) {
		p.log.DebugObj("no library notice shown", "wisenews_login", map[string]any{
			"url": p.opts.LibraryURL,
		})
	}

	if err := p.session.WaitTitle(tab, "HKU Libraries"); err != nil {
		return fmt.Errorf("%w: %w", ErrLogin, err)
	}

	auth, cancel, err := p.session.Popup(tab, chromedp.Click(libraryLogin, chromedp.ByQuery, chromedp.NodeVisible))
	if err != nil {
		return fmt.Errorf("%w: open login window: %w", ErrLogin, err)
	}
	p.auth, p.authCancel = auth, cancel

	if err := p.session.WaitTitle(auth, "HKUL Authentication"); err != nil {
		return fmt.Errorf("%w: %w", ErrLogin, err)
	}

	creds := p.opts.Credentials
	if err := p.session.Run(auth,
		chromedp.SendKeys(authUserID, creds.Login, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.SendKeys(authPassword, creds.Password, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.Click(authSubmit, chromedp.BySearch, chromedp.NodeVisible),
	); err != nil {
		return fmt.Errorf("%w: submit credentials: %w", ErrLogin, err)
	}

	p.loggedIn = true
	p.log.InfoObj("logged in to HKU library", "wisenews_login", map[string]any{
		"login": creds.Login,
	})
	return nil
}

// Open loads WiseNews on the main window and enters the information portal.
func (p *Portal) Open(ctx context.Context) error {
	tab := p.main()
	if err := p.session.Run(tab, chromedp.Navigate(p.opts.WiseNewsURL)); err != nil {
		return fmt.Errorf("%w: %w", ErrPortal, err)
	}
	if err := p.session.WaitTitle(tab, "WiseNews"); err != nil {
		return fmt.Errorf("%w: %w", ErrPortal, err)
	}
	if err := p.session.ClickLinkText(tab, frameHeader, portalLink); err != nil {
		return fmt.Errorf("%w: %w", ErrPortal, err)
	}
	if err := p.session.WaitTitle(tab, portalLink); err != nil {
		return fmt.Errorf("%w: %w", ErrPortal, err)
	}

	p.log.InfoObj("opened wisers information portal", "wisenews_portal", map[string]any{
		"url": p.opts.WiseNewsURL,
	})
	return nil
}

// Search fills the full search form: region, sections, date range and terms.
func (p *Portal) Search(ctx context.Context, q domain.SearchQuery) error {
	tab := p.main()
	content, err := p.session.FramePath(tab, frameContent)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSearch, err)
	}
	in := []chromedp.QueryOption{chromedp.ByQuery, chromedp.FromNode(content)}

	if err := p.session.Run(tab, chromedp.Sleep(p.opts.SettleDelay)); err != nil {
		return fmt.Errorf("%w: %w", ErrSearch, err)
	}

	if !p.session.TryClick(tab, noticeTimeout, alertClose, in...) {
		p.log.DebugObj("no portal alert shown", "wisenews_search", nil)
	}

	actions := []chromedp.Action{
		chromedp.Click(regionAll, visible(in)...),
		chromedp.Click(regionHK, visible(in)...),
	}
	if len(q.Sections) > 0 {
		actions = append(actions, chromedp.SendKeys(sectionField, strings.Join(q.Sections, ","), visible(in)...))
	}
	actions = append(actions,
		chromedp.SendKeys(dateRangeField, strings.Repeat(kb.ArrowDown, int(q.DateRange)), visible(in)...),
		chromedp.SendKeys(termsField, q.Terms+kb.Enter, visible(in)...),
	)

	if err := p.session.Run(tab, actions...); err != nil {
		return fmt.Errorf("%w: %w", ErrSearch, err)
	}

	p.log.InfoObj("set search parameters", "wisenews_search", queryFields(q))
	return nil
}

// Refine edits the current result list's search. Region and date range are
// left as they were.
func (p *Portal) Refine(ctx context.Context, q domain.SearchQuery) error {
	tab := p.main()
	results, err := p.resultList(tab)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSearch, err)
	}
	in := []chromedp.QueryOption{chromedp.ByQuery, chromedp.FromNode(results)}

	actions := []chromedp.Action{
		chromedp.Sleep(p.opts.SettleDelay),
		chromedp.Click(editSearch, visible(in)...),
		chromedp.Clear(sectionField, visible(in)...),
	}
	if len(q.Sections) > 0 {
		actions = append(actions, chromedp.SendKeys(sectionField, strings.Join(q.Sections, ","), visible(in)...))
	}
	actions = append(actions,
		chromedp.Clear(termsField, visible(in)...),
		chromedp.SendKeys(termsField, q.Terms+kb.Enter, visible(in)...),
	)

	if err := p.session.Run(tab, actions...); err != nil {
		return fmt.Errorf("%w: %w", ErrSearch, err)
	}

	p.log.InfoObj("updated search parameters", "wisenews_search", queryFields(q))
	return nil
}

// Collect opens every article of the current result list on one page and
// parses it. sections limits which section names are kept in the metadata.
func (p *Portal) Collect(ctx context.Context, sections []string) ([]domain.Article, error) {
	tab := p.main()
	results, err := p.resultList(tab)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollect, err)
	}

	tool, closeTool, err := p.session.Popup(tab,
		chromedp.Click(viewButton, chromedp.ByQuery, chromedp.FromNode(results), chromedp.NodeVisible))
	if err != nil {
		return nil, fmt.Errorf("%w: open view window: %w", ErrCollect, err)
	}
	defer closeTool()

	view, closeView, err := p.session.Popup(tool, chromedp.Click(viewAllButton, chromedp.BySearch, chromedp.NodeVisible))
	if err != nil {
		return nil, fmt.Errorf("%w: open article window: %w", ErrCollect, err)
	}
	defer closeView()

	var html string
	if err := p.session.Run(view,
		chromedp.WaitReady(headingSelector, chromedp.ByQuery),
		chromedp.Sleep(p.opts.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("%w: read article window: %w", ErrCollect, err)
	}

	articles, err := ParseArticles(html, sections)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCollect, err)
	}

	p.log.InfoObj("collected articles", "wisenews_collect", map[string]any{
		"count": len(articles),
	})
	return articles, nil
}

// Email sends the current result list through the portal's email tool.
func (p *Portal) Email(ctx context.Context, form domain.EmailForm) error {
	tab := p.main()
	results, err := p.resultList(tab)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmail, err)
	}

	popup, closePopup, err := p.session.Popup(tab,
		chromedp.Click(emailButton, chromedp.ByQuery, chromedp.FromNode(results), chromedp.NodeVisible))
	if err != nil {
		return fmt.Errorf("%w: open email window: %w", ErrEmail, err)
	}
	defer closePopup()

	accepted := browser.AcceptDialogs(popup)

	field := []chromedp.QueryOption{chromedp.BySearch, chromedp.NodeVisible}
	if err := p.session.Run(popup,
		chromedp.SendKeys(formSenderName, form.SenderName, field...),
		chromedp.SendKeys(formSenderAddr, form.SenderEmail, field...),
		chromedp.SendKeys(formRecipient, form.Recipient, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.SendKeys(formSubject, form.Subject, field...),
		chromedp.Click(formSubmit, field...),
	); err != nil {
		return fmt.Errorf("%w: fill email form: %w", ErrEmail, err)
	}

	timer := time.NewTimer(p.session.Wait())
	defer timer.Stop()
	select {
	case <-accepted:
	case <-timer.C:
		return fmt.Errorf("%w: no confirmation after sending", ErrEmail)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrEmail, ctx.Err())
	}

	p.log.InfoObj("emailed articles", "wisenews_email", map[string]any{
		"recipient": form.Recipient,
		"subject":   form.Subject,
	})
	return nil
}

// Close logs out where it can and shuts the browser down. Problems are
// logged, never returned as a failure of the run.
func (p *Portal) Close(ctx context.Context) error {
	if p.loggedIn && ctx.Err() == nil {
		p.logout()
	}
	if p.authCancel != nil {
		p.authCancel()
	}
	if err := p.session.Close(); err != nil {
		p.log.WarnObj("browser did not shut down cleanly", "wisenews_close", map[string]any{
			"error": err.Error(),
		})
	}
	p.log.InfoObj("portal session closed", "wisenews_close", nil)
	return nil
}

func (p *Portal) logout() {
	if err := p.session.RunWithin(p.main(), noticeTimeout,
		chromedp.SendKeys(logoutLink, kb.Enter, chromedp.BySearch),
	); err != nil {
		p.log.WarnObj("wisenews logout failed", "wisenews_close", map[string]any{
			"error": err.Error(),
		})
	}

	if p.auth == nil {
		return
	}
	if err := p.session.RunWithin(p.auth, noticeTimeout,
		chromedp.Click(authMenu, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.Click(authSignOut, chromedp.ByQuery, chromedp.NodeVisible),
	); err != nil {
		p.log.WarnObj("library sign out failed", "wisenews_close", map[string]any{
			"error": err.Error(),
		})
	}
}

// resultList finds the result frame inside the content frame.
func (p *Portal) resultList(tab context.Context) (*cdp.Node, error) {
	return p.session.FramePath(tab, frameContent, frameResults)
}

func visible(in []chromedp.QueryOption) []chromedp.QueryOption {
	return append(append([]chromedp.QueryOption{}, in...), chromedp.NodeVisible)
}

func queryFields(q domain.SearchQuery) map[string]any {
	return map[string]any{
		"terms":      q.Terms,
		"sections":   q.Sections,
		"date_range": q.DateRange.String(),
	}
}
