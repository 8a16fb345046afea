package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sheetdrive/internal/config"
	"sheetdrive/internal/sheet"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the per-column AI configuration",
	Long: `Checks every column entry in the configuration file: column keys must be
letters or positive numbers, each entry needs a known service, and a
missing model is flagged as a warning. The command exits non-zero when
the configuration is not usable for a run.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	report := sheet.ValidateColumnSettings(cfg.Columns)
	fmt.Print(report.String())

	errors, warnings, infos := report.Counts()
	fmt.Printf("%d errors, %d warnings, %d notes\n", errors, warnings, infos)

	if !report.Usable() {
		return fmt.Errorf("column configuration is not usable")
	}
	fmt.Println("Column configuration is usable.")
	return nil
}
