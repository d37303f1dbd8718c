package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
)

// ShowOptions filter the printed snapshot.
type ShowOptions struct {
	Entity     string
	TermDays   int
	SortByRate bool
}

// Show prints the current snapshot as a table.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	snap, err := st.ReadCurrent(ctx)
	if err != nil {
		return err
	}

	records := snap.Records
	if opts.Entity != "" {
		records = snap.ByEntity(opts.Entity)
	}
	if opts.TermDays >= 0 {
		filtered := records[:0:0]
		for _, rec := range records {
			if rec.TermDays == opts.TermDays {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no rates found")
		return nil
	}

	if opts.SortByRate {
		records = append([]rates.Record(nil), records...)
		rates.SortByRateDesc(records)
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Entity\tProduct\tTerm\tRate %\tObserved (UTC)\tStatus")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.EntityName,
			rec.ProductType,
			formatTerm(rec.TermDays),
			rec.AnnualRatePct.StringFixed(2),
			rec.ObservedAt.UTC().Format(time.RFC3339),
			rec.SourceStatus,
		)
	}

	return writer.Flush()
}

func formatTerm(days int) string {
	if days == 0 {
		return "flat"
	}
	return fmt.Sprintf("%dd", days)
}
