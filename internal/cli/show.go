package cli

import (
	"github.com/spf13/cobra"

	"github.com/hectronix2005/Mejor-Inversion/internal/app"
)

var (
	showEntity string
	showTerm   int
	showByRate bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the current rate snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			Entity:     showEntity,
			TermDays:   showTerm,
			SortByRate: showByRate,
		}
		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showEntity, "entity", "", "Only show rates for this entity id")
	showCmd.Flags().IntVar(&showTerm, "term", -1, "Only show rates for this term in days (0 = flat products)")
	showCmd.Flags().BoolVar(&showByRate, "sort-rate", false, "Sort by annual rate descending")
}
