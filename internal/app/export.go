package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/hectronix2005/Mejor-Inversion/internal/store"
)

// ExportOptions control the history export window and output targets.
type ExportOptions struct {
	CSVPath   string
	PNGPath   string
	From      *time.Time
	To        *time.Time
	MaxPoints int
	TermDays  int
	Entity    string
}

// Export renders historical snapshots as CSV and/or a PNG rate chart.
// The chart plots one series per entity for the selected term.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	entries, err := st.ListHistory(ctx, from, to)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.Logger.Info().Msg("no history entries found for export window")
		return nil
	}

	downsampled := downsampleEntries(entries, opts.MaxPoints)
	a.Logger.Info().Int("total", len(entries)).Int("exported", len(downsampled)).Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, downsampled, opts); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, downsampled, opts); err != nil {
			return err
		}
	}

	return nil
}

func downsampleEntries(entries []store.HistoryEntry, max int) []store.HistoryEntry {
	if max <= 0 || len(entries) <= max {
		return entries
	}

	result := make([]store.HistoryEntry, 0, max)
	step := float64(len(entries)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(entries) {
			idx = len(entries) - 1
		}
		result = append(result, entries[idx])
	}
	return result
}

func matchesExportFilter(opts ExportOptions, entityID string, termDays int) bool {
	if opts.Entity != "" && entityID != opts.Entity {
		return false
	}
	if opts.TermDays >= 0 && termDays != opts.TermDays {
		return false
	}
	return true
}

func writeHistoryCSV(path string, entries []store.HistoryEntry, opts ExportOptions) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"run_at", "entity_id", "entity_name", "product_type", "term_days", "annual_rate_pct", "observed_at", "source_status"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, entry := range entries {
		for _, rec := range entry.Snapshot.Records {
			if !matchesExportFilter(opts, rec.EntityID, rec.TermDays) {
				continue
			}
			row := []string{
				entry.RunAt.UTC().Format(time.RFC3339),
				rec.EntityID,
				rec.EntityName,
				string(rec.ProductType),
				strconv.Itoa(rec.TermDays),
				rec.AnnualRatePct.String(),
				rec.ObservedAt.UTC().Format(time.RFC3339),
				string(rec.SourceStatus),
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}

	return writer.Error()
}

func writeHistoryPNG(path string, entries []store.HistoryEntry, opts ExportOptions) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	type series struct {
		name string
		x    []time.Time
		y    []float64
	}
	byEntity := make(map[string]*series)
	var order []string

	for _, entry := range entries {
		for _, rec := range entry.Snapshot.Records {
			if !matchesExportFilter(opts, rec.EntityID, rec.TermDays) {
				continue
			}
			s, ok := byEntity[rec.EntityID]
			if !ok {
				s = &series{name: rec.EntityName}
				byEntity[rec.EntityID] = s
				order = append(order, rec.EntityID)
			}
			s.x = append(s.x, entry.RunAt)
			s.y = append(s.y, rec.AnnualRatePct.InexactFloat64())
		}
	}
	if len(order) == 0 {
		return errors.New("no records match the export filters")
	}

	rateFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Annual rate (% E.A.)",
			ValueFormatter: rateFormatter,
		},
	}
	for _, id := range order {
		s := byEntity[id]
		if len(s.x) < 2 {
			// go-chart cannot render a single-point time series.
			continue
		}
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    s.name,
			XValues: s.x,
			YValues: s.y,
		})
	}
	if len(graph.Series) == 0 {
		return errors.New("not enough history to chart, need at least two runs")
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
