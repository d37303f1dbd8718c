package adapter

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
)

// DerivedOptions parameterise a formula-derived adapter. Exactly one of
// MonthlyYieldPct or AnnualRatePct must be set; a monthly figure is
// annualized as monthly × 12.
type DerivedOptions struct {
	EntityID        string
	EntityName      string
	Product         rates.ProductType
	URL             string
	Terms           []int
	MonthlyYieldPct float64
	AnnualRatePct   float64
}

// Derived computes a rate from a configured yield estimate instead of
// scraping it, used for real-estate and fiduciary products where no page
// publishes a comparable annual figure.
type Derived struct {
	opts   DerivedOptions
	logger zerolog.Logger
}

// NewDerived constructs a derived adapter.
func NewDerived(opts DerivedOptions, logger zerolog.Logger) *Derived {
	return &Derived{
		opts:   opts,
		logger: logger.With().Str("component", "adapter").Str("entity", opts.EntityID).Logger(),
	}
}

// Fetch computes the annualized records without touching the network.
func (d *Derived) Fetch(ctx context.Context) Outcome {
	var annual decimal.Decimal
	switch {
	case d.opts.MonthlyYieldPct > 0:
		annual = decimal.NewFromFloat(d.opts.MonthlyYieldPct).Mul(decimal.NewFromInt(12))
	case d.opts.AnnualRatePct > 0:
		annual = decimal.NewFromFloat(d.opts.AnnualRatePct)
	default:
		return Failure(ReasonValidation, "no yield figure configured for derived source")
	}

	terms := d.opts.Terms
	if len(terms) == 0 {
		terms = []int{0}
	}

	records := make([]rates.Record, 0, len(terms))
	for _, term := range terms {
		records = append(records, rates.Record{
			EntityID:      d.opts.EntityID,
			EntityName:    d.opts.EntityName,
			ProductType:   d.opts.Product,
			TermDays:      term,
			AnnualRatePct: annual,
			SourceURL:     d.opts.URL,
		})
	}
	return Success(records, nil)
}

var (
	_ Adapter = (*Direct)(nil)
	_ Adapter = (*Derived)(nil)
)
