package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sheetdrive/internal/config"
	"sheetdrive/internal/sheet"
	"sheetdrive/internal/xlsx"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the workbook's parsed structure and pending work units",
	Long: `Parses the workbook without touching the browser and prints the header
row, the detected work columns with their satellite positions, and the
work units that a run would process.`,
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	wb, err := xlsx.Open(cfg.Workbook, cfg.Sheet)
	if err != nil {
		return err
	}
	defer wb.Close()

	rows, err := wb.Rows()
	if err != nil {
		return err
	}

	structure, err := sheet.NewParser(cfg.Markers).Parse(rows)
	if err != nil {
		return err
	}

	fmt.Printf("Workbook: %s (sheet %q)\n", cfg.Workbook, wb.SheetName())
	fmt.Printf("Header row: %d, data starts at row %d\n", structure.HeaderRow, structure.DataStartRow)
	fmt.Printf("Work columns (%d):\n", len(structure.WorkColumns))
	for _, pos := range structure.WorkColumns {
		statusLetter, _ := sheet.IndexToLetter(pos.Status)
		errorLetter, _ := sheet.IndexToLetter(pos.Error)
		resultLetter, _ := sheet.IndexToLetter(pos.Result)
		fmt.Printf("  %s  status=%s error=%s result=%s\n", pos.Letter(), statusLetter, errorLetter, resultLetter)
	}

	if problems := sheet.ValidateStructure(structure); len(problems) > 0 {
		fmt.Println("Problems:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
	}

	runCfg, _, err := cfg.RunConfig()
	if err != nil {
		return err
	}
	units := sheet.NewExtractor(runCfg).Extract(structure, rows)
	fmt.Printf("Pending work units: %d\n", len(units))
	for _, u := range units {
		text := u.SourceText
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		fmt.Printf("  row %d column %s via %s: %q\n", u.Row, u.Position.Letter(), u.Config.Service, text)
	}
	return nil
}
