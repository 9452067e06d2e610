package agent

import (
	"context"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"pagegrab/internal/metrics"
	"pagegrab/pkg/config"
	"pagegrab/pkg/errors"
	"pagegrab/pkg/logger"
	"pagegrab/pkg/protocol"
)

// readyStatePollInterval is how often the agent re-checks document.readyState
// while waiting for a page load to finish.
const readyStatePollInterval = 500 * time.Millisecond

// ChromeAgent drives a headless Chrome tab via chromedp.
type ChromeAgent struct {
	cfg      *config.Config
	startURL string
	logger   logger.Logger
	metrics  *metrics.Metrics
}

// NewChromeAgent creates an agent that will navigate to startURL when the
// first begin directive arrives.
func NewChromeAgent(cfg *config.Config, startURL string, log logger.Logger, m *metrics.Metrics) *ChromeAgent {
	if log == nil {
		log = logger.GetLogger()
	}
	return &ChromeAgent{
		cfg:      cfg,
		startURL: startURL,
		logger:   log,
		metrics:  m,
	}
}

// Run starts a browser, then serves directives until the channel closes or
// the cycle completes.
func (a *ChromeAgent) Run(ctx context.Context, directives <-chan protocol.Directive, events chan<- protocol.Event) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("window-size", "1920,1080"),
	)
	if a.cfg.Browser.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if a.cfg.Browser.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(a.cfg.Browser.UserAgent))
	}
	if a.cfg.Browser.NoSandbox {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	if a.cfg.Browser.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(a.cfg.Browser.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case directive, ok := <-directives:
			if !ok {
				return nil
			}

			switch directive.Kind {
			case protocol.DirectiveBegin:
				if err := a.navigate(browserCtx, a.startURL); err != nil {
					return err
				}
				payload, err := a.scrapeCurrentPage(browserCtx)
				if err != nil {
					return err
				}
				if err := emit(ctx, events, protocol.Event{Kind: protocol.EventScrapedData, Payload: payload}); err != nil {
					return err
				}

			case protocol.DirectiveAdvance:
				selector, found, err := a.findNextControl(browserCtx)
				if err != nil {
					return err
				}
				if !found {
					a.logger.Info("No next page control found, scrape complete")
					return emit(ctx, events, protocol.Event{Kind: protocol.EventScrapeComplete})
				}

				a.logger.WithField("selector", selector).Debug("Clicking next page control")
				if err := chromedp.Run(browserCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
					return errors.Wrap(errors.ErrorTypeNavigation, "failed to activate pagination control", err)
				}

				payload, err := a.scrapeCurrentPage(browserCtx)
				if err != nil {
					return err
				}
				if err := emit(ctx, events, protocol.Event{Kind: protocol.EventScrapedData, Payload: payload}); err != nil {
					return err
				}
			}
		}
	}
}

// scrapeCurrentPage waits for the document to settle, runs the lazy-load
// loop, and extracts the payload from the rendered HTML.
func (a *ChromeAgent) scrapeCurrentPage(browserCtx context.Context) (protocol.Payload, error) {
	if err := a.waitForReady(browserCtx); err != nil {
		return protocol.Payload{}, err
	}

	iterations, err := Stabilize(browserCtx, scrollToBottom, measureHeight,
		a.cfg.Scrape.ScrollDelay, a.cfg.Scrape.MaxScrollIterations)
	if err != nil {
		return protocol.Payload{}, errors.Wrap(errors.ErrorTypeNavigation, "lazy-load loop failed", err)
	}
	if a.metrics != nil {
		a.metrics.ScrollIterations.Observe(float64(iterations))
	}
	if iterations >= a.cfg.Scrape.MaxScrollIterations {
		a.logger.WithField("iterations", iterations).Warn("Lazy-load loop hit iteration cap before stabilizing")
	}

	var html, location string
	if err := chromedp.Run(browserCtx,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return protocol.Payload{}, errors.Wrap(errors.ErrorTypeNavigation, "HTML extraction failed", err)
	}

	base, err := url.Parse(location)
	if err != nil {
		base = nil
	}

	payload, err := ExtractPayload(html, base)
	if err != nil {
		return protocol.Payload{}, errors.Wrap(errors.ErrorTypeNavigation, "failed to parse page HTML", err)
	}

	a.logger.InfoWithFields("Page scraped", map[string]interface{}{
		"url":               location,
		"images":            payload.Len(),
		"scroll_iterations": iterations,
	})

	return payload, nil
}

// waitForReady polls document.readyState until the page reports complete,
// then sleeps the configured settle delay so deferred scripts can populate
// content. Best-effort timing heuristic, bounded by the page load timeout.
func (a *ChromeAgent) waitForReady(browserCtx context.Context) error {
	deadline := time.Now().Add(a.cfg.Scrape.PageLoadTimeout)

	for {
		var readyState string
		if err := chromedp.Run(browserCtx,
			chromedp.Evaluate(`document.readyState`, &readyState),
		); err != nil {
			return errors.Wrap(errors.ErrorTypeNavigation, "readyState check failed", err)
		}
		if readyState == "complete" {
			break
		}
		if time.Now().After(deadline) {
			return errors.New(errors.ErrorTypeNavigation, "page load timed out")
		}

		select {
		case <-browserCtx.Done():
			return browserCtx.Err()
		case <-time.After(readyStatePollInterval):
		}
	}

	if a.cfg.Scrape.SettleDelay > 0 {
		if err := chromedp.Run(browserCtx, chromedp.Sleep(a.cfg.Scrape.SettleDelay)); err != nil {
			return errors.Wrap(errors.ErrorTypeNavigation, "settle wait failed", err)
		}
	}

	return nil
}

// navigate issues a raw CDP navigation. chromedp.Navigate waits for the load
// event on its own schedule; the agent does its readiness polling itself, the
// same way it does after a pagination click, so the raw command keeps both
// paths consistent.
func (a *ChromeAgent) navigate(browserCtx context.Context, rawURL string) error {
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, _, err := page.Navigate(rawURL).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return errors.New(errors.ErrorTypeNavigation, errorText)
		}
		return nil
	}))
	if err != nil {
		return errors.Wrap(errors.ErrorTypeNavigation, "navigation failed", err)
	}
	return nil
}

// findNextControl inspects the rendered HTML for a pagination control.
func (a *ChromeAgent) findNextControl(browserCtx context.Context) (string, bool, error) {
	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", false, errors.Wrap(errors.ErrorTypeNavigation, "HTML extraction failed", err)
	}

	selector, found := FindNextSelector(html)
	return selector, found, nil
}

func scrollToBottom(ctx context.Context) error {
	return chromedp.Run(ctx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil))
}

func measureHeight(ctx context.Context) (float64, error) {
	var height float64
	err := chromedp.Run(ctx,
		chromedp.Evaluate(`document.body.scrollHeight`, &height))
	return height, err
}

// emit sends an event without blocking past context cancellation.
func emit(ctx context.Context, events chan<- protocol.Event, ev protocol.Event) error {
	select {
	case events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
