package rates

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProductType classifies the financial product a rate belongs to.
type ProductType string

const (
	ProductCDT        ProductType = "CDT"
	ProductSavings    ProductType = "SAVINGS"
	ProductFiduciary  ProductType = "FIDUCIARY"
	ProductRealEstate ProductType = "REAL_ESTATE"
)

// SourceStatus reports how a record made it into a snapshot.
type SourceStatus string

const (
	// StatusOK marks records freshly fetched in the current run.
	StatusOK SourceStatus = "OK"
	// StatusStale marks records carried over from the previous snapshot.
	StatusStale SourceStatus = "STALE"
	// StatusFailed is never stored; it only appears in run reports.
	StatusFailed SourceStatus = "FAILED"
)

// DefaultRateCeilingPct caps annual rates accepted during validation.
var DefaultRateCeilingPct = decimal.NewFromInt(100)

// Record is one normalized rate quote for one entity at one term.
// TermDays of zero denotes a flat, term-independent rate.
type Record struct {
	EntityID      string          `json:"entity_id"`
	EntityName    string          `json:"entity_name"`
	ProductType   ProductType     `json:"product_type"`
	TermDays      int             `json:"term_days"`
	AnnualRatePct decimal.Decimal `json:"annual_rate_pct"`
	ObservedAt    time.Time       `json:"observed_at"`
	SourceStatus  SourceStatus    `json:"source_status"`
	SourceURL     string          `json:"source_url,omitempty"`
}

// Key identifies a record within a snapshot.
type Key struct {
	EntityID string
	TermDays int
}

// Key returns the merge key used for snapshot deduplication.
func (r Record) Key() Key {
	return Key{EntityID: r.EntityID, TermDays: r.TermDays}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%dd", k.EntityID, k.TermDays)
}

var (
	ErrNegativeTerm     = errors.New("term_days must not be negative")
	ErrNonPositiveRate  = errors.New("annual_rate_pct must be positive")
	ErrRateAboveCeiling = errors.New("annual_rate_pct exceeds sanity ceiling")
	ErrMissingEntity    = errors.New("entity_id is required")
)

// Validate rejects candidate records that fail sanity checks. A zero
// ceiling falls back to DefaultRateCeilingPct.
func Validate(r Record, ceiling decimal.Decimal) error {
	if r.EntityID == "" {
		return ErrMissingEntity
	}
	if r.TermDays < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeTerm, r.TermDays)
	}
	if !r.AnnualRatePct.IsPositive() {
		return fmt.Errorf("%w: %s", ErrNonPositiveRate, r.AnnualRatePct)
	}
	if ceiling.IsZero() {
		ceiling = DefaultRateCeilingPct
	}
	if r.AnnualRatePct.GreaterThan(ceiling) {
		return fmt.Errorf("%w: %s > %s", ErrRateAboveCeiling, r.AnnualRatePct, ceiling)
	}
	return nil
}

// Snapshot holds the complete deduplicated record set of one run.
type Snapshot struct {
	Records []Record `json:"records"`
}

// Empty reports whether the snapshot carries no records.
func (s Snapshot) Empty() bool {
	return len(s.Records) == 0
}

// Lookup returns the record stored under key, if any.
func (s Snapshot) Lookup(key Key) (Record, bool) {
	for _, r := range s.Records {
		if r.Key() == key {
			return r, true
		}
	}
	return Record{}, false
}

// ByEntity returns the records of a single entity in snapshot order.
func (s Snapshot) ByEntity(entityID string) []Record {
	out := make([]Record, 0, 4)
	for _, r := range s.Records {
		if r.EntityID == entityID {
			out = append(out, r)
		}
	}
	return out
}

// ByTerm returns the records quoted for a single term in snapshot order.
func (s Snapshot) ByTerm(termDays int) []Record {
	out := make([]Record, 0, len(s.Records))
	for _, r := range s.Records {
		if r.TermDays == termDays {
			out = append(out, r)
		}
	}
	return out
}
