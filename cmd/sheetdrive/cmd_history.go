package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sheetdrive/internal/config"
	"sheetdrive/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the run ledger",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	history, err := store.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer history.Close()

	runs, err := history.Recent(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("%s  %s  total=%d completed=%d failed=%d success=%.1f%%  took %s\n",
			r.StartedAt.Format("2006-01-02 15:04"),
			r.ID,
			r.Total, r.Completed, r.Failed,
			r.SuccessRate()*100,
			r.EndedAt.Sub(r.StartedAt).Round(time.Second))
	}
	return nil
}
