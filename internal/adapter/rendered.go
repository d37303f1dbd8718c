package adapter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
)

const defaultRenderWait = 5 * time.Second

// RenderFunc loads a page in a browser and returns the rendered markup.
// Injectable so extraction can be exercised without a Chrome binary.
type RenderFunc func(ctx context.Context, url string, wait time.Duration) (string, error)

// RenderedOptions parameterise a browser-driven fetch adapter.
type RenderedOptions struct {
	EntityID    string
	EntityName  string
	Product     rates.ProductType
	URL         string
	Terms       []int
	Timeout     time.Duration
	UserAgent   string
	Mode        ExtractMode
	RatePattern string
	RenderWait  time.Duration
}

// Rendered fetches JavaScript-rendered pages through a headless browser and
// converges on the same extraction path as the direct adapter.
type Rendered struct {
	opts   RenderedOptions
	logger zerolog.Logger
	render RenderFunc
}

// NewRendered constructs a rendered-fetch adapter backed by chromedp.
func NewRendered(opts RenderedOptions, logger zerolog.Logger) *Rendered {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultFetchTimeout
	}
	if opts.RenderWait <= 0 {
		opts.RenderWait = defaultRenderWait
	}
	if opts.Mode == "" {
		opts.Mode = ExtractTable
	}

	r := &Rendered{
		opts:   opts,
		logger: logger.With().Str("component", "adapter").Str("entity", opts.EntityID).Logger(),
	}
	r.render = r.renderWithBrowser
	return r
}

// Fetch renders and parses the configured page.
func (r *Rendered) Fetch(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	html, err := r.render(ctx, r.opts.URL, r.opts.RenderWait)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Failuref(ReasonTimeout, "render timed out: %v", err)
		}
		return Failuref(ReasonNetwork, "render failed: %v", err)
	}

	return buildOutcome(strings.NewReader(html), pageMeta{
		entityID:   r.opts.EntityID,
		entityName: r.opts.EntityName,
		product:    r.opts.Product,
		url:        r.opts.URL,
		terms:      r.opts.Terms,
		mode:       r.opts.Mode,
		pattern:    r.opts.RatePattern,
	})
}

// renderWithBrowser drives a headless Chrome tab. The browser lifecycle is
// scoped to one fetch; cleanup runs regardless of the caller's deadline.
func (r *Rendered) renderWithBrowser(ctx context.Context, url string, wait time.Duration) (string, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(1920, 1080),
	)
	if ua := strings.TrimSpace(r.opts.UserAgent); ua != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(ua))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(wait),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}

var _ Adapter = (*Rendered)(nil)
