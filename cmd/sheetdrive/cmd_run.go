package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sheetdrive/internal/automation"
	"sheetdrive/internal/browser"
	"sheetdrive/internal/config"
	"sheetdrive/internal/retry"
	"sheetdrive/internal/session"
	"sheetdrive/internal/sheet"
	"sheetdrive/internal/store"
	"sheetdrive/internal/xlsx"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every pending work unit in the workbook",
	Long: `Parses the workbook's structure, extracts the pending work units, and
drives each one through its configured AI service. Status, error, and
result cells are written back as units progress, and the workbook is
saved when the run ends.

Ctrl-C requests a cooperative stop: the unit in flight finishes, its
outcome is written back, and the run halts.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "extract and list units without driving the browser")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	wb, err := xlsx.Open(cfg.Workbook, cfg.Sheet)
	if err != nil {
		return err
	}
	defer wb.Close()

	units, runCfg, err := extractUnits(cfg, wb)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		fmt.Println("No pending work units found.")
		return nil
	}

	if runDryRun {
		fmt.Printf("Would process %d units:\n", len(units))
		for _, u := range units {
			fmt.Printf("  %s  row %d column %s  via %s\n", u.ID(), u.Row, u.Position.Letter(), u.Config.Service)
		}
		return nil
	}

	profiles, err := browser.LoadProfiles(cfg.Profiles)
	if err != nil {
		return err
	}

	manager := browser.NewManager(cfg.Browser)
	defer manager.Close()
	provider := browser.NewProvider(manager, profiles)

	sessions, err := session.NewStore(cfg.Session.Dir, cfg.Session.Validity())
	if err != nil {
		return err
	}
	bridge := browser.NewSessionBridge(sessions)

	var recorder automation.RunRecorder
	history, err := store.Open(cfg.History.Path)
	if err != nil {
		logger.Warn("run history unavailable", zap.Error(err))
	} else {
		defer history.Close()
		recorder = history
	}

	controller, err := automation.NewController(automation.ControllerConfig{
		RunConfig: runCfg,
		Provider:  provider,
		Sessions:  bridge,
		Writer:    wb,
		Recorder:  recorder,
		Retry: retry.Config{
			MaxAttempts:   cfg.Automation.MaxAttempts,
			BaseDelay:     cfg.Automation.BaseDelay(),
			BackoffFactor: 2.0,
		},
		AwaitTimeout: cfg.Automation.AwaitTimeout(),
		UnitDelay:    cfg.Automation.UnitDelay(),
		OnProgress: func(current, total int, message string) {
			fmt.Printf("[%d/%d] %s\n", current, total, message)
		},
		OnLog: func(level, message string) {
			if level == "error" {
				fmt.Fprintln(os.Stderr, message)
			}
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nStop requested, finishing the unit in flight...")
		controller.Stop()
	}()

	stats, runErr := controller.Run(ctx, units)

	if err := wb.Save(); err != nil {
		logger.Error("workbook save failed", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	fmt.Println(stats.Summary())
	return runErr
}

// extractUnits runs the parse-validate-extract pipeline shared by run and
// its dry-run mode.
func extractUnits(cfg *config.Config, wb *xlsx.Workbook) ([]*sheet.WorkUnit, *sheet.RunConfig, error) {
	rows, err := wb.Rows()
	if err != nil {
		return nil, nil, err
	}

	parser := sheet.NewParser(cfg.Markers)
	structure, err := parser.Parse(rows)
	if err != nil {
		return nil, nil, err
	}

	runCfg, report, err := cfg.RunConfig()
	if err != nil {
		if report != nil {
			fmt.Fprint(os.Stderr, report.String())
		}
		return nil, nil, err
	}
	if _, warnings, _ := report.Counts(); warnings > 0 {
		fmt.Fprint(os.Stderr, report.String())
	}

	units := sheet.NewExtractor(runCfg).Extract(structure, rows)
	return units, runCfg, nil
}
