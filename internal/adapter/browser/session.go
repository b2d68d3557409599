package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// ErrNoWindow is returned when an action was expected to open a window and did not.
var ErrNoWindow = errors.New("browser: no new window opened")

// Options configure the Chrome instance.
type Options struct {
	ExecPath    string
	Headless    bool
	WaitTimeout time.Duration
	Logf        func(format string, args ...any)
}

// FindFirstExecutable returns the first of executables found on PATH.
func FindFirstExecutable(executables ...string) string {
	for _, executable := range executables {
		path, err := exec.LookPath(executable)
		if err == nil {
			return path
		}
	}
	return ""
}

// ResolveExecPath returns configured, or the first known Chrome-compatible
// browser on PATH. Empty means chromedp's own lookup.
func ResolveExecPath(configured string) string {
	if configured != "" {
		return configured
	}
	return FindFirstExecutable("google-chrome", "chromium", "chromium-browser", "brave", "brave-browser")
}

// AllocatorOptions builds the exec allocator flags for opts.
func AllocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("incognito", true),
		chromedp.Flag("disable-gpu", true),
	)
	if execPath := ResolveExecPath(opts.ExecPath); execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}
	return allocOpts
}

// Session owns one Chrome process and its first tab.
type Session struct {
	main        context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	wait        time.Duration
}

// Start launches Chrome. The browser lives until Close or until parent is done.
func Start(parent context.Context, opts Options) (*Session, error) {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 60 * time.Second
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, AllocatorOptions(opts)...)

	var ctxOpts []chromedp.ContextOption
	if opts.Logf != nil {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(opts.Logf))
	}
	ctx, cancel := chromedp.NewContext(allocCtx, ctxOpts...)

	// the first Run allocates the browser and must not carry a timeout
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Session{
		main:        ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		wait:        opts.WaitTimeout,
	}, nil
}

// Main returns the first tab.
func (s *Session) Main() context.Context { return s.main }

// Wait is the per-step timeout.
func (s *Session) Wait() time.Duration { return s.wait }

// Run executes actions on tab, bounded by the session wait timeout.
func (s *Session) Run(tab context.Context, actions ...chromedp.Action) error {
	return s.RunWithin(tab, s.wait, actions...)
}

// RunWithin executes actions on tab, bounded by d.
func (s *Session) RunWithin(tab context.Context, d time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(tab, d)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// Popup runs trigger on tab and attaches to the window it opens. The
// returned cancel func closes that window.
func (s *Session) Popup(tab context.Context, trigger ...chromedp.Action) (context.Context, context.CancelFunc, error) {
	current := chromedp.FromContext(tab).Target.TargetID
	ch := chromedp.WaitNewTarget(tab, func(info *target.Info) bool {
		return info.Type == "page" && info.TargetID != current
	})

	if err := s.Run(tab, trigger...); err != nil {
		return nil, nil, err
	}

	timer := time.NewTimer(s.wait)
	defer timer.Stop()

	select {
	case id, ok := <-ch:
		if !ok {
			return nil, nil, ErrNoWindow
		}
		popup, cancel := chromedp.NewContext(tab, chromedp.WithTargetID(id))
		if err := chromedp.Run(popup); err != nil {
			cancel()
			return nil, nil, fmt.Errorf("attach window: %w", err)
		}
		return popup, cancel, nil
	case <-timer.C:
		return nil, nil, ErrNoWindow
	case <-tab.Done():
		return nil, nil, tab.Err()
	}
}

// Frame returns the frame element called name, looked up inside parent when
// parent is not nil. Pass the result to chromedp.FromNode to query inside it.
func (s *Session) Frame(tab context.Context, parent *cdp.Node, name string) (*cdp.Node, error) {
	sel := fmt.Sprintf(`iframe[name=%q], frame[name=%q]`, name, name)
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if parent != nil {
		opts = append(opts, chromedp.FromNode(parent))
	}

	var nodes []*cdp.Node
	if err := s.Run(tab, chromedp.Nodes(sel, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("frame %s: %w", name, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("frame %s: not found", name)
	}
	return nodes[0], nil
}

// FramePath resolves nested frames from the top document, outermost first.
func (s *Session) FramePath(tab context.Context, names ...string) (*cdp.Node, error) {
	var node *cdp.Node
	for _, name := range names {
		next, err := s.Frame(tab, node, name)
		if err != nil {
			return nil, err
		}
		node = next
	}
	return node, nil
}

// WaitTitle blocks until the document title of tab contains fragment.
func (s *Session) WaitTitle(tab context.Context, fragment string) error {
	quoted, err := json.Marshal(fragment)
	if err != nil {
		return err
	}
	var ok bool
	expr := fmt.Sprintf(`document.title.includes(%s)`, quoted)
	if err := s.Run(tab, chromedp.Poll(expr, &ok,
		chromedp.WithPollingInterval(500*time.Millisecond),
		chromedp.WithPollingTimeout(s.wait),
	)); err != nil {
		return fmt.Errorf("wait for title %q: %w", fragment, err)
	}
	return nil
}

// TryClick clicks sel if it becomes visible within d. It reports whether it did.
func (s *Session) TryClick(tab context.Context, d time.Duration, sel string, opts ...chromedp.QueryOption) bool {
	all := append([]chromedp.QueryOption{chromedp.NodeVisible}, opts...)
	return s.RunWithin(tab, d, chromedp.Click(sel, all...)) == nil
}

// ClickLinkText clicks the anchor whose text is text inside the named frame
// of the top document.
func (s *Session) ClickLinkText(tab context.Context, frame, text string) error {
	f, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	t, err := json.Marshal(text)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`(() => {
  const name = %s, text = %s;
  const frame = document.querySelector('frame[name="' + name + '"], iframe[name="' + name + '"]');
  const doc = frame ? frame.contentDocument : document;
  if (!doc) return false;
  const link = Array.from(doc.querySelectorAll('a')).find(a => a.textContent.trim() === text);
  if (!link) return false;
  link.click();
  return true;
})()`, f, t)

	var ok bool
	if err := s.Run(tab, chromedp.Poll(script, &ok,
		chromedp.WithPollingInterval(time.Second),
		chromedp.WithPollingTimeout(s.wait),
	)); err != nil {
		return fmt.Errorf("click link %q: %w", text, err)
	}
	return nil
}

// AcceptDialogs accepts every JavaScript dialog tab opens. The returned
// channel receives once per accepted dialog.
func AcceptDialogs(tab context.Context) <-chan struct{} {
	accepted := make(chan struct{}, 1)
	chromedp.ListenTarget(tab, func(ev any) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); !ok {
			return
		}
		go func() {
			if err := chromedp.Run(tab, page.HandleJavaScriptDialog(true)); err != nil {
				return
			}
			select {
			case accepted <- struct{}{}:
			default:
			}
		}()
	})
	return accepted
}

// Close shuts the browser down.
func (s *Session) Close() error {
	err := chromedp.Cancel(s.main)
	s.cancel()
	s.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
