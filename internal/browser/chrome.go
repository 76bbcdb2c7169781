package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Chrome drives a Chrome/Chromium process over CDP via chromedp.
type Chrome struct {
	ctx     context.Context
	cancel  context.CancelFunc
	dialogs chan string
}

// NewChrome launches a browser process. Callers must Stop it on every exit
// path; Session.Close takes care of that.
func NewChrome(parent context.Context, headless bool) (*Chrome, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.WindowSize(1600, 1000),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	// Force the process to start now so allocation failures surface here
	// rather than on the first action.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	c := &Chrome{
		ctx:     tabCtx,
		cancel:  cancel,
		dialogs: make(chan string, 8),
	}

	// NetSuite raises confirm/alert dialogs mid-form (location changes,
	// save warnings). Accept them automatically and buffer the text so the
	// state machine can record it as a remote message.
	chromedp.ListenTarget(tabCtx, func(ev any) {
		if d, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			select {
			case c.dialogs <- d.Message:
			default:
			}
			go func() {
				_ = chromedp.Run(tabCtx, page.HandleJavaScriptDialog(true))
			}()
		}
	})

	return c, nil
}

// Stop tears the browser process down. Safe to call more than once.
func (c *Chrome) Stop() {
	c.cancel()
}

// run executes chromedp actions against the tab, honoring the caller's
// cancellation and deadline.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := c.ctx
	if dl, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(c.ctx, dl)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

func (c *Chrome) Click(ctx context.Context, sel string) error {
	return c.run(ctx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
}

func (c *Chrome) Fill(ctx context.Context, sel, value string) error {
	return c.run(ctx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
}

func (c *Chrome) Press(ctx context.Context, sel, key string) error {
	return c.run(ctx, chromedp.SendKeys(sel, key, chromedp.ByQuery))
}

func (c *Chrome) Text(ctx context.Context, sel string) (string, error) {
	var out string
	// Form fields carry their content in value, not innerText.
	js := fmt.Sprintf(
		`(function(){var el=document.querySelector(%q);`+
			`if(!el) return ""; return ('value' in el && el.value) ? el.value : el.innerText;})()`, sel)
	if err := c.run(ctx, chromedp.Evaluate(js, &out)); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Chrome) Visible(ctx context.Context, sel string) (bool, error) {
	var out bool
	js := fmt.Sprintf(
		`(function(){var el=document.querySelector(%q);`+
			`return !!(el && (el.offsetWidth || el.offsetHeight || el.getClientRects().length));})()`, sel)
	if err := c.run(ctx, chromedp.Evaluate(js, &out)); err != nil {
		return false, err
	}
	return out, nil
}

func (c *Chrome) Title(ctx context.Context) (string, error) {
	var title string
	if err := c.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (c *Chrome) AcceptAlert(ctx context.Context) (string, bool) {
	select {
	case text := <-c.dialogs:
		return text, true
	default:
		return "", false
	}
}

func (c *Chrome) Healthy() bool {
	return c.ctx.Err() == nil
}
