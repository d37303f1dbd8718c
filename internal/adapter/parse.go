package adapter

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	dayPattern   = regexp.MustCompile(`(\d+)\s*d[ií]as?`)
	monthPattern = regexp.MustCompile(`(\d+)\s*mes(?:es)?`)
	yearPattern  = regexp.MustCompile(`(\d+)\s*a[ñn]os?`)
	barePattern  = regexp.MustCompile(`(\d+)`)
)

// ParseRate normalizes a quoted rate text ("9,50 % E.A.") into an annual
// percentage. Values at or below 1 are assumed to be fractions and scaled.
func ParseRate(text string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return decimal.Decimal{}, false
	}

	cleaned = strings.NewReplacer(
		"%", "",
		",", ".",
		" ", "",
		"E.A.", "",
		"e.a.", "",
		"EA", "",
		"ea", "",
	).Replace(cleaned)

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}

	// Pages quote either "9.5%" or "0.095"; both normalize to 9.5.
	if value.LessThanOrEqual(decimal.NewFromInt(1)) {
		value = value.Mul(decimal.NewFromInt(100))
	}
	return value.Round(2), true
}

// ParseTerm converts a quoted investment horizon ("90 días", "3 meses",
// "2 años") into days. Bare numbers up to 36 are read as months.
func ParseTerm(text string) (int, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	if cleaned == "" {
		return 0, false
	}

	if m := dayPattern.FindStringSubmatch(cleaned); m != nil {
		return atoiOr(m[1])
	}
	if m := monthPattern.FindStringSubmatch(cleaned); m != nil {
		if n, ok := atoiOr(m[1]); ok {
			return n * 30, true
		}
		return 0, false
	}
	if m := yearPattern.FindStringSubmatch(cleaned); m != nil {
		if n, ok := atoiOr(m[1]); ok {
			return n * 365, true
		}
		return 0, false
	}
	if m := barePattern.FindStringSubmatch(cleaned); m != nil {
		n, ok := atoiOr(m[1])
		if !ok {
			return 0, false
		}
		if n <= 36 {
			return n * 30, true
		}
		return n, true
	}
	return 0, false
}

func atoiOr(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
