package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
)

const defaultFetchTimeout = 30 * time.Second

// ExtractMode selects how a fetched document is interpreted.
type ExtractMode string

const (
	// ExtractTable walks HTML rate tables, one record per term.
	ExtractTable ExtractMode = "table"
	// ExtractText regex-matches a single flat rate, emitted as term 0.
	ExtractText ExtractMode = "text"
)

// DirectOptions parameterise a plain-document fetch adapter.
type DirectOptions struct {
	EntityID    string
	EntityName  string
	Product     rates.ProductType
	URL         string
	Terms       []int
	Timeout     time.Duration
	UserAgent   string
	Mode        ExtractMode
	RatePattern string
}

// Direct fetches a static page over HTTP and extracts rates from its markup.
type Direct struct {
	opts    DirectOptions
	logger  zerolog.Logger
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewDirect constructs a direct-fetch adapter. Each adapter owns its own
// HTTP client and circuit breaker; nothing is shared across entities.
func NewDirect(opts DirectOptions, logger zerolog.Logger) *Direct {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	opts.Timeout = timeout
	if opts.Mode == "" {
		opts.Mode = ExtractTable
	}

	return &Direct{
		opts:    opts,
		logger:  logger.With().Str("component", "adapter").Str("entity", opts.EntityID).Logger(),
		client:  &http.Client{Timeout: timeout},
		breaker: newSourceBreaker(opts.EntityID),
	}
}

// newSourceBreaker guards a flaky source: three consecutive failures open
// the circuit and later runs short-circuit without touching the network.
func newSourceBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: time.Minute,
		Timeout:  time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}

// Fetch retrieves and parses the configured page.
func (d *Direct) Fetch(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	body, err := d.download(ctx)
	if err != nil {
		return classifyFetchError(err)
	}

	return buildOutcome(bytes.NewReader(body), pageMeta{
		entityID:   d.opts.EntityID,
		entityName: d.opts.EntityName,
		product:    d.opts.Product,
		url:        d.opts.URL,
		terms:      d.opts.Terms,
		mode:       d.opts.Mode,
		pattern:    d.opts.RatePattern,
	})
}

func (d *Direct) download(ctx context.Context) ([]byte, error) {
	res, err := d.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.opts.URL, nil)
		if err != nil {
			return nil, err
		}
		if ua := strings.TrimSpace(d.opts.UserAgent); ua != "" {
			req.Header.Set("User-Agent", ua)
		}
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		req.Header.Set("Accept-Language", "es-CO,es;q=0.9,en;q=0.8")

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, d.opts.URL)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

// pageMeta carries the static identity stamped onto every extracted record.
type pageMeta struct {
	entityID   string
	entityName string
	product    rates.ProductType
	url        string
	terms      []int
	mode       ExtractMode
	pattern    string
}

// buildOutcome converges both fetch strategies on the shared outcome
// contract: parse the document, stamp entity identity, report missing terms.
func buildOutcome(body io.Reader, meta pageMeta) Outcome {
	if meta.mode == ExtractText {
		rate, err := ExtractFlatRate(body, meta.pattern)
		if err != nil {
			return Failure(ReasonParse, err.Error())
		}
		return Success([]rates.Record{newRecord(meta, 0, rate)}, nil)
	}

	byTerm, warnings, err := ExtractTermRates(body)
	if err != nil {
		return Failure(ReasonParse, err.Error())
	}

	terms := make([]int, 0, len(byTerm))
	for term := range byTerm {
		terms = append(terms, term)
	}
	sort.Ints(terms)

	records := make([]rates.Record, 0, len(terms))
	for _, term := range terms {
		records = append(records, newRecord(meta, term, byTerm[term]))
	}

	var missing []int
	for _, want := range meta.terms {
		if _, ok := byTerm[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return Partial(records, missing, warnings)
	}
	return Success(records, warnings)
}

func newRecord(meta pageMeta, term int, rate decimal.Decimal) rates.Record {
	return rates.Record{
		EntityID:      meta.entityID,
		EntityName:    meta.entityName,
		ProductType:   meta.product,
		TermDays:      term,
		AnnualRatePct: rate,
		SourceURL:     meta.url,
	}
}

// classifyFetchError maps transport errors onto the failure taxonomy.
func classifyFetchError(err error) Outcome {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Failuref(ReasonTimeout, "fetch timed out: %v", err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return Failuref(ReasonNetwork, "circuit open: %v", err)
	default:
		return Failuref(ReasonNetwork, "fetch failed: %v", err)
	}
}
