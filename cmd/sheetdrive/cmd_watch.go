package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sheetdrive/internal/config"
	"sheetdrive/internal/sheet"
	"sheetdrive/internal/xlsx"
)

// watchDebounce coalesces the burst of write events a spreadsheet
// application emits on save into one re-inspection.
const watchDebounce = 500 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-inspect the workbook whenever it changes on disk",
	Long: `Watches the workbook's directory and reports the pending work unit count
after every save. Useful while filling in a sheet: keep watch running in
a terminal and see immediately whether the rows you add are extractable.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors save via rename and the
	// watch on the old inode would go stale.
	dir := filepath.Dir(cfg.Workbook)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target, err := filepath.Abs(cfg.Workbook)
	if err != nil {
		return err
	}

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", cfg.Workbook)
	reportPending(cfg)

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || abs != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case <-pending:
			reportPending(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}

// reportPending parses the workbook and prints the current unit count.
// Failures are reported and watching continues; a half-written save is
// expected to fail to open.
func reportPending(cfg *config.Config) {
	wb, err := xlsx.Open(cfg.Workbook, cfg.Sheet)
	if err != nil {
		fmt.Printf("%s  open failed: %v\n", time.Now().Format("15:04:05"), err)
		return
	}
	defer wb.Close()

	rows, err := wb.Rows()
	if err != nil {
		fmt.Printf("%s  read failed: %v\n", time.Now().Format("15:04:05"), err)
		return
	}

	structure, err := sheet.NewParser(cfg.Markers).Parse(rows)
	if err != nil {
		fmt.Printf("%s  parse failed: %v\n", time.Now().Format("15:04:05"), err)
		return
	}

	runCfg, _, err := cfg.RunConfig()
	if err != nil {
		fmt.Printf("%s  config: %v\n", time.Now().Format("15:04:05"), err)
		return
	}

	units := sheet.NewExtractor(runCfg).Extract(structure, rows)
	fmt.Printf("%s  %d work columns, %d pending units\n",
		time.Now().Format("15:04:05"), len(structure.WorkColumns), len(units))
}
