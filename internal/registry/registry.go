package registry

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hectronix2005/Mejor-Inversion/internal/adapter"
	"github.com/hectronix2005/Mejor-Inversion/internal/config"
	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
)

// Entry pairs an adapter with the display metadata stamped onto its records.
type Entry struct {
	EntityID    string
	DisplayName string
	Product     rates.ProductType
	SourceURL   string
	Terms       []int
	Adapter     adapter.Adapter
}

// Registry is the static, ordered table of registered sources. Registration
// order is preserved so output ordering is reproducible across runs.
type Registry struct {
	entries []Entry
	index   map[string]int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register appends an entry, rejecting duplicate entity IDs.
func (r *Registry) Register(e Entry) error {
	if e.EntityID == "" {
		return fmt.Errorf("registry: entity_id is required")
	}
	if e.Adapter == nil {
		return fmt.Errorf("registry: %s: adapter is required", e.EntityID)
	}
	if _, exists := r.index[e.EntityID]; exists {
		return fmt.Errorf("registry: duplicate entity_id %q", e.EntityID)
	}
	r.index[e.EntityID] = len(r.entries)
	r.entries = append(r.entries, e)
	return nil
}

// List returns all entries in registration order.
func (r *Registry) List() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Lookup finds an entry by entity ID.
func (r *Registry) Lookup(entityID string) (Entry, bool) {
	i, ok := r.index[entityID]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Len reports the number of registered sources.
func (r *Registry) Len() int {
	return len(r.entries)
}

// BuildOptions tune adapter construction across the whole catalog.
type BuildOptions struct {
	DefaultTimeout time.Duration
	UserAgent      string
}

// Build constructs a registry from the configured source catalog, wiring
// each source to its declared fetch strategy.
func Build(sources []config.Source, opts BuildOptions, logger zerolog.Logger) (*Registry, error) {
	reg := New()
	for _, src := range sources {
		entry, err := buildEntry(src, opts, logger)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(entry); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildEntry(src config.Source, opts BuildOptions, logger zerolog.Logger) (Entry, error) {
	product, err := parseProduct(src.ProductType)
	if err != nil {
		return Entry{}, fmt.Errorf("source %s: %w", src.EntityID, err)
	}

	timeout := src.Timeout
	if timeout <= 0 {
		timeout = opts.DefaultTimeout
	}

	entry := Entry{
		EntityID:    src.EntityID,
		DisplayName: src.DisplayName,
		Product:     product,
		SourceURL:   src.SourceURL,
		Terms:       src.TermDays,
	}

	switch src.FetchStrategy {
	case "direct":
		entry.Adapter = adapter.NewDirect(adapter.DirectOptions{
			EntityID:    src.EntityID,
			EntityName:  src.DisplayName,
			Product:     product,
			URL:         src.SourceURL,
			Terms:       src.TermDays,
			Timeout:     timeout,
			UserAgent:   opts.UserAgent,
			Mode:        adapter.ExtractMode(src.Extract),
			RatePattern: src.RatePattern,
		}, logger)
	case "rendered":
		entry.Adapter = adapter.NewRendered(adapter.RenderedOptions{
			EntityID:    src.EntityID,
			EntityName:  src.DisplayName,
			Product:     product,
			URL:         src.SourceURL,
			Terms:       src.TermDays,
			Timeout:     timeout,
			UserAgent:   opts.UserAgent,
			Mode:        adapter.ExtractMode(src.Extract),
			RatePattern: src.RatePattern,
			RenderWait:  src.RenderWait,
		}, logger)
	case "derived":
		entry.Adapter = adapter.NewDerived(adapter.DerivedOptions{
			EntityID:        src.EntityID,
			EntityName:      src.DisplayName,
			Product:         product,
			URL:             src.SourceURL,
			Terms:           src.TermDays,
			MonthlyYieldPct: src.MonthlyYieldPct,
			AnnualRatePct:   src.AnnualRatePct,
		}, logger)
	default:
		return Entry{}, fmt.Errorf("source %s: unknown fetch_strategy %q", src.EntityID, src.FetchStrategy)
	}

	return entry, nil
}

func parseProduct(s string) (rates.ProductType, error) {
	switch rates.ProductType(s) {
	case rates.ProductCDT, rates.ProductSavings, rates.ProductFiduciary, rates.ProductRealEstate:
		return rates.ProductType(s), nil
	default:
		return "", fmt.Errorf("unknown product_type %q", s)
	}
}
