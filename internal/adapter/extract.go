package adapter

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// Column and table keyword heuristics for Colombian bank pages. Extraction
// tolerates header-less tables by sniffing cell contents instead.
var (
	tableKeywords = []string{"cdt", "tasa", "plazo", "inversión", "inversion", "depósito", "deposito", "rendimiento"}
	termKeywords  = []string{"plazo", "días", "dias", "meses", "term", "periodo"}
	rateKeywords  = []string{"tasa", "e.a", "ea", "rendimiento", "interés", "interes", "%"}

	rateCellPattern = regexp.MustCompile(`\d+[.,]\d*\s*(?:%|e\.?a\.?)`)
	termCellPattern = regexp.MustCompile(`\d+\s*(?:d[ií]as?|mes(?:es)?)`)

	defaultFlatRatePattern = `(?i)(\d{1,2}(?:[.,]\d+)?)\s*%(?:\s*e\.?\s*a\.?)?`
)

// ExtractTermRates pulls a rate-per-term table out of an HTML document.
// Later rows override earlier ones for a repeated term, mirroring how the
// orchestrator breaks duplicate-key ties.
func ExtractTermRates(r io.Reader) (map[int]decimal.Decimal, []string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parse document: %w", err)
	}

	found := make(map[int]decimal.Decimal)
	var warnings []string

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if !tableLooksRelevant(table) {
			return
		}

		termCol, rateCol := locateColumns(table)
		if rateCol < 0 {
			warnings = append(warnings, "rate table matched keywords but no rate column was identified")
			return
		}

		// Header rows fall out naturally: their cells never parse as a
		// term/rate pair.
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("th, td")
			if cells.Length() < 2 {
				return
			}

			termText := cellText(cells, termCol)
			rateText := cellText(cells, rateCol)

			term, okTerm := ParseTerm(termText)
			rate, okRate := ParseRate(rateText)
			if !okTerm || !okRate {
				return
			}

			if prev, dup := found[term]; dup && !prev.Equal(rate) {
				warnings = append(warnings, fmt.Sprintf("term %dd listed twice (%s then %s), keeping the later figure", term, prev, rate))
			}
			found[term] = rate
		})
	})

	if len(found) == 0 {
		return nil, warnings, errors.New("no rate table matched the expected structure")
	}
	return found, warnings, nil
}

// ExtractFlatRate finds a single flat percentage in the document text, used
// for savings pages that quote one rate without a term structure.
func ExtractFlatRate(r io.Reader, pattern string) (decimal.Decimal, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse document: %w", err)
	}

	if pattern == "" {
		pattern = defaultFlatRatePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("compile rate pattern: %w", err)
	}

	match := re.FindStringSubmatch(doc.Text())
	if match == nil {
		return decimal.Decimal{}, errors.New("no rate figure matched the pattern")
	}

	candidate := match[0]
	if len(match) > 1 {
		candidate = match[1]
	}
	rate, ok := ParseRate(candidate)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("matched %q but could not parse a rate from it", match[0])
	}
	return rate, nil
}

func tableLooksRelevant(table *goquery.Selection) bool {
	context := strings.ToLower(table.Text())
	parent := table.Parent()
	for depth := 0; depth < 3 && parent.Length() > 0; depth++ {
		text := parent.Text()
		if len(text) > 500 {
			text = text[:500]
		}
		context += strings.ToLower(text)
		parent = parent.Parent()
	}

	for _, kw := range tableKeywords {
		if strings.Contains(context, kw) {
			return true
		}
	}
	return false
}

// locateColumns returns the term and rate column indexes, preferring header
// keywords and falling back to content sniffing on the first data row.
func locateColumns(table *goquery.Selection) (termCol, rateCol int) {
	termCol, rateCol = -1, -1

	rows := table.Find("tr")
	if rows.Length() == 0 {
		return termCol, rateCol
	}

	rows.First().Find("th, td").Each(func(i int, cell *goquery.Selection) {
		header := strings.ToLower(strings.TrimSpace(cell.Text()))
		for _, kw := range termKeywords {
			if strings.Contains(header, kw) && termCol < 0 {
				termCol = i
			}
		}
		for _, kw := range rateKeywords {
			if strings.Contains(header, kw) && rateCol < 0 {
				rateCol = i
			}
		}
	})

	if (termCol < 0 || rateCol < 0) && rows.Length() > 1 {
		rows.Eq(1).Find("th, td").Each(func(i int, cell *goquery.Selection) {
			text := strings.ToLower(cell.Text())
			if termCol < 0 && termCellPattern.MatchString(text) {
				termCol = i
			}
			if rateCol < 0 && i != termCol && rateCellPattern.MatchString(text) {
				rateCol = i
			}
		})
	}

	return termCol, rateCol
}

func cellText(cells *goquery.Selection, idx int) string {
	if idx < 0 || idx >= cells.Length() {
		return ""
	}
	return strings.TrimSpace(cells.Eq(idx).Text())
}
