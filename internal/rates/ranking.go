package rates

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Statistics summarise the rate distribution of a snapshot.
type Statistics struct {
	AverageRatePct decimal.Decimal `json:"average_rate_pct"`
	MaxRatePct     decimal.Decimal `json:"max_rate_pct"`
	MinRatePct     decimal.Decimal `json:"min_rate_pct"`
}

// Ranking is the read-side projection served by the API: records ordered
// by descending rate, overall and per term.
type Ranking struct {
	GeneratedAt   time.Time        `json:"generated_at"`
	TotalEntities int              `json:"total_entities"`
	TotalRates    int              `json:"total_rates"`
	Statistics    Statistics       `json:"statistics"`
	Top           []Record         `json:"top"`
	ByTerm        map[int][]Record `json:"by_term"`
}

// BuildRanking computes the ranking projection over a snapshot. topN bounds
// the overall leaderboard; per-term groups are returned in full.
func BuildRanking(snap Snapshot, topN int, now time.Time) Ranking {
	ranked := make([]Record, len(snap.Records))
	copy(ranked, snap.Records)
	SortByRateDesc(ranked)

	entities := make(map[string]struct{}, len(ranked))
	byTerm := make(map[int][]Record)
	for _, r := range ranked {
		entities[r.EntityID] = struct{}{}
		byTerm[r.TermDays] = append(byTerm[r.TermDays], r)
	}

	top := ranked
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}

	return Ranking{
		GeneratedAt:   now.UTC(),
		TotalEntities: len(entities),
		TotalRates:    len(ranked),
		Statistics:    computeStatistics(ranked),
		Top:           top,
		ByTerm:        byTerm,
	}
}

func computeStatistics(records []Record) Statistics {
	if len(records) == 0 {
		return Statistics{}
	}

	sum := decimal.Zero
	max := records[0].AnnualRatePct
	min := records[0].AnnualRatePct
	for _, r := range records {
		sum = sum.Add(r.AnnualRatePct)
		if r.AnnualRatePct.GreaterThan(max) {
			max = r.AnnualRatePct
		}
		if r.AnnualRatePct.LessThan(min) {
			min = r.AnnualRatePct
		}
	}

	avg := sum.Div(decimal.NewFromInt(int64(len(records)))).Round(2)
	return Statistics{AverageRatePct: avg, MaxRatePct: max, MinRatePct: min}
}

// SortByRateDesc orders records by descending rate, breaking ties by
// entity then term so the output is reproducible.
func SortByRateDesc(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if cmp := records[i].AnnualRatePct.Cmp(records[j].AnnualRatePct); cmp != 0 {
			return cmp > 0
		}
		if records[i].EntityID != records[j].EntityID {
			return records[i].EntityID < records[j].EntityID
		}
		return records[i].TermDays < records[j].TermDays
	})
}
