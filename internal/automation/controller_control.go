package automation

import (
	"fmt"

	"sheetdrive/internal/sheet"
)

// Stop requests a cooperative halt. The flag is checked between units, never
// mid-unit; a unit already in progress finishes before the run stops.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning && c.state != StateInitializing {
		return
	}
	c.log.Info("stop requested")
	c.stopFlag = true
	c.state = StateStopping
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() RunState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Statistics returns a snapshot of the current (or last) run's counters.
func (c *Controller) Statistics() RunStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Controller) stopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopFlag
}

func (c *Controller) setState(s RunState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Controller) bumpCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Completed++
}

func (c *Controller) bumpFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Failed++
}

// emitProgress calls the progress sink, recovering any panic so a broken
// front end cannot abort the run.
func (c *Controller) emitProgress(current, total int, message string) {
	if c.cfg.OnProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("progress sink panicked: %v", r)
		}
	}()
	c.cfg.OnProgress(current, total, message)
}

// emitLog mirrors a log line to the log sink with the same protection.
func (c *Controller) emitLog(level, message string) {
	if c.cfg.OnLog == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("log sink panicked: %v", r)
		}
	}()
	c.cfg.OnLog(level, message)
}

// writeStatus pushes a status marker to the sheet, logging write failures.
func (c *Controller) writeStatus(row, column int, text string) {
	if c.cfg.Writer == nil {
		return
	}
	if err := c.cfg.Writer.WriteStatus(row, column, text); err != nil {
		c.log.Error("status write r%dc%d: %v", row, column, err)
	}
}

// writeResult pushes a completed unit's result to its result column.
func (c *Controller) writeResult(unit *sheet.WorkUnit) {
	if c.cfg.Writer == nil {
		return
	}
	if err := c.cfg.Writer.WriteResult(unit.Row, unit.Position.Result, unit.Result); err != nil {
		c.log.Error("result write %s: %v", unit.ID(), err)
	}
}

// writeError pushes a failed unit's message to its error column.
func (c *Controller) writeError(unit *sheet.WorkUnit) {
	if c.cfg.Writer == nil {
		return
	}
	message := unit.ErrorMessage
	if message == "" {
		message = fmt.Sprintf("failed after %d retries", unit.RetryCount)
	}
	if err := c.cfg.Writer.WriteResult(unit.Row, unit.Position.Error, message); err != nil {
		c.log.Error("error write %s: %v", unit.ID(), err)
	}
}
