package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const timePrecision = 10 * time.Millisecond

// ScrapeOptions control a one-shot collection run.
type ScrapeOptions struct {
	DryRun  bool
	AsJSON  bool
	Verbose bool
}

// Scrape executes a single collection run and prints the run report. With
// DryRun the snapshot is computed but never persisted.
func (a *App) Scrape(ctx context.Context, opts ScrapeOptions) error {
	var closeStore func()
	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	reg, err := a.buildRegistry()
	if err != nil {
		return err
	}

	previous, err := st.ReadCurrent(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("could not read previous snapshot")
	}

	runStore := st
	if opts.DryRun {
		runStore = nil
	}

	orc := a.newOrchestrator(reg, runStore)
	_, report, err := orc.Run(ctx, previous, 0)
	if err != nil {
		return err
	}

	if opts.AsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(os.Stdout, "run %s: %d records (%d ok / %d stale / %d failed sources) in %s\n",
			report.RunID, report.TotalRecords, report.OKEntities, report.StaleEntities,
			report.FailedEntities, report.Elapsed.Round(timePrecision))
		if opts.Verbose {
			for _, er := range report.Entities {
				fmt.Fprintf(os.Stdout, "  %-16s %-8s fresh=%d stale=%d rejected=%d\n",
					er.EntityID, er.Kind, er.Fresh, er.Stale, er.Rejected)
				for _, w := range er.Warnings {
					fmt.Fprintf(os.Stdout, "    warning: %s\n", w)
				}
			}
		}
	}

	if report.StoreError != "" {
		return fmt.Errorf("snapshot computed but persistence failed: %s", report.StoreError)
	}
	if report.Failed {
		return errors.New("run produced no usable records")
	}

	return nil
}
