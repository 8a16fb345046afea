// Package automation drives a batch of work units to completion across the
// configured AI services. Service groups run strictly sequentially, and units
// within a group run in extraction order; each service is one authenticated
// browser session and cannot safely be driven concurrently.
package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sheetdrive/internal/logging"
	"sheetdrive/internal/retry"
	"sheetdrive/internal/sheet"
)

// ControllerConfig wires a Controller's collaborators.
type ControllerConfig struct {
	RunConfig *sheet.RunConfig
	Provider  HandlerProvider
	Sessions  SessionStore // optional
	Writer    SheetWriter  // optional; nil skips write-back
	Recorder  RunRecorder  // optional

	Retry        retry.Config
	AwaitTimeout time.Duration // per await-response step
	UnitDelay    time.Duration // pacing between units, separate from retry backoff

	OnProgress ProgressFunc
	OnLog      LogFunc
}

// Controller is the top-level run coordinator.
type Controller struct {
	cfg    ControllerConfig
	policy *retry.Policy
	log    *logging.Logger

	mu       sync.Mutex
	state    RunState
	stopFlag bool
	stats    RunStatistics
}

// NewController builds a controller. Session expiry is classified
// non-retryable at the policy level.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.RunConfig == nil {
		return nil, &sheet.ConfigurationError{Field: "run_config", Reason: "required"}
	}
	if cfg.Provider == nil {
		return nil, &sheet.ConfigurationError{Field: "provider", Reason: "required"}
	}
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = 2 * time.Minute
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}

	retryCfg := cfg.Retry
	retryCfg.NonRetryable = func(err error) bool {
		var expired *SessionExpiredError
		return errors.As(err, &expired)
	}

	return &Controller{
		cfg:    cfg,
		policy: retry.New(retryCfg),
		log:    logging.Get(logging.CategoryAutomation),
		state:  StateIdle,
	}, nil
}

// Run drives the batch to completion and returns the final statistics.
// A second Run while one is active is rejected.
func (c *Controller) Run(ctx context.Context, units []*sheet.WorkUnit) (RunStatistics, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		c.log.Warn("run rejected: controller is %s", c.state)
		return RunStatistics{}, fmt.Errorf("a run is already in progress (state %s)", c.state)
	}
	c.state = StateInitializing
	c.stopFlag = false
	c.stats = RunStatistics{
		RunID:     uuid.NewString(),
		Total:     len(units),
		StartTime: time.Now(),
	}
	c.mu.Unlock()

	defer c.setState(StateIdle)

	c.log.Info("run %s starting: %d units", c.stats.RunID, len(units))

	if c.cfg.Sessions != nil {
		if n := c.cfg.Sessions.CleanupExpired(); n > 0 {
			c.log.Info("removed %d expired sessions", n)
		}
	}

	order, groups := groupByService(units)
	handlers := c.setupHandlers(ctx, order, groups)

	var runErr error
	if len(handlers) == 0 && len(units) > 0 {
		// Nothing left to drive; every group was failed during setup.
		runErr = errors.New("no service handler could be acquired")
	} else {
		c.setState(StateRunning)
		processed := 0
		for _, service := range order {
			h, ok := handlers[service]
			if !ok {
				processed += len(groups[service])
				continue
			}
			processed = c.processGroup(ctx, h, groups[service], processed)
			if c.stopRequested() || ctx.Err() != nil {
				c.log.Info("run %s halting after current group", c.stats.RunID)
				break
			}
		}
	}

	c.teardown(ctx, order, handlers)

	c.mu.Lock()
	c.stats.EndTime = time.Now()
	stats := c.stats
	c.mu.Unlock()

	if c.cfg.Recorder != nil {
		if err := c.cfg.Recorder.RecordRun(stats); err != nil {
			c.log.Error("failed to record run: %v", err)
		}
	}

	c.emitProgress(stats.Total, stats.Total, "run finished: "+stats.Summary())
	c.log.Info("run %s finished: %s", stats.RunID, stats.Summary())
	c.log.Info("retry policy: %s", c.policy.Stats())

	return stats, runErr
}

// setupHandlers acquires and authenticates one handler per distinct service.
// A service whose setup fails has its whole group marked failed; the rest of
// the batch is unaffected.
func (c *Controller) setupHandlers(ctx context.Context, order []sheet.AIService, groups map[sheet.AIService][]*sheet.WorkUnit) map[sheet.AIService]Handler {
	handlers := make(map[sheet.AIService]Handler, len(order))

	for _, service := range order {
		h, err := c.cfg.Provider.Acquire(ctx, service)
		if err != nil {
			c.log.Error("setup failed for %s: %v", service, err)
			c.failGroup(groups[service], fmt.Sprintf("service setup failed: %v", err))
			continue
		}

		if c.cfg.Sessions != nil {
			if err := c.cfg.Sessions.Restore(ctx, h); err != nil {
				c.log.Warn("session restore for %s: %v", service, err)
			}
		}

		if !h.EnsureAuthenticated(ctx) {
			c.log.Error("%s is not authenticated", service)
			c.failGroup(groups[service], fmt.Sprintf("%s: not authenticated", service))
			c.cfg.Provider.Release(h)
			continue
		}

		handlers[service] = h
		c.emitLog("info", fmt.Sprintf("%s handler ready (%d units)", service, len(groups[service])))
	}

	return handlers
}

// processGroup runs one service's units strictly in extraction order.
// processed is the batch-wide count of units handled so far.
func (c *Controller) processGroup(ctx context.Context, h Handler, units []*sheet.WorkUnit, processed int) int {
	for _, unit := range units {
		if c.stopRequested() || ctx.Err() != nil {
			return processed
		}

		c.processUnit(ctx, h, unit, processed)
		processed++

		// Inter-unit pacing for the remote service's rate limits. Not part
		// of the retry backoff.
		if c.cfg.UnitDelay > 0 && processed < c.stats.Total {
			select {
			case <-ctx.Done():
				return processed
			case <-time.After(c.cfg.UnitDelay):
			}
		}
	}
	return processed
}

// processUnit drives one unit through send, await, and collect.
func (c *Controller) processUnit(ctx context.Context, h Handler, unit *sheet.WorkUnit, processed int) {
	unit.Start()
	c.emitProgress(processed+1, c.stats.Total,
		fmt.Sprintf("processing %s via %s", unit.ID(), unit.Config.Service))
	c.writeStatus(unit.Row, unit.Position.Status, c.cfg.RunConfig.Markers.StatusInProgress)

	c.applyConfig(h, unit.Config)

	op := func(ctx context.Context) (string, error) {
		if !h.CheckSession(ctx) {
			return "", &SessionExpiredError{Service: h.Service()}
		}
		if err := h.Submit(ctx, unit.SourceText); err != nil {
			return "", err
		}
		if !h.AwaitCompletion(ctx, c.cfg.AwaitTimeout) {
			return "", &AwaitTimeoutError{Service: h.Service(), Timeout: c.cfg.AwaitTimeout.String()}
		}
		return h.CollectResult(ctx)
	}

	result, attempts, err := retry.Do(ctx, c.policy, "unit "+unit.ID(), op)
	unit.RetryCount = attempts - 1

	if err != nil {
		unit.Fail(err.Error())
		c.writeError(unit)
		c.bumpFailed()
		c.emitLog("error", fmt.Sprintf("%s failed: %v", unit.ID(), err))
		return
	}

	unit.Complete(result)
	c.writeStatus(unit.Row, unit.Position.Status, c.cfg.RunConfig.Markers.StatusDone)
	c.writeResult(unit)
	c.bumpCompleted()
	c.emitLog("info", fmt.Sprintf("%s completed", unit.ID()))
}

// applyConfig pushes the unit's knobs to the handler. Every knob is
// best-effort; the handler logs what it cannot honor.
func (c *Controller) applyConfig(h Handler, cfg sheet.ColumnAIConfig) {
	if cfg.Model != "" {
		h.ApplyModel(cfg.Model)
	}
	if cfg.Mode != "" {
		h.ApplyMode(cfg.Mode)
	}
	if len(cfg.Features) > 0 {
		h.ApplyFeatures(cfg.Features)
	}
	if len(cfg.Settings) > 0 {
		h.ApplySettings(cfg.Settings)
	}
}

// failGroup marks every unit of a group failed with the same message and
// writes the outcome back. Used when a service's setup fails.
func (c *Controller) failGroup(units []*sheet.WorkUnit, message string) {
	for _, unit := range units {
		unit.Fail(message)
		c.writeError(unit)
		c.bumpFailed()
	}
}

// teardown saves sessions and releases every acquired handler.
func (c *Controller) teardown(ctx context.Context, order []sheet.AIService, handlers map[sheet.AIService]Handler) {
	for _, service := range order {
		h, ok := handlers[service]
		if !ok {
			continue
		}
		if c.cfg.Sessions != nil {
			if err := c.cfg.Sessions.Save(ctx, h); err != nil {
				c.log.Warn("session save for %s: %v", service, err)
			}
		}
		c.cfg.Provider.Release(h)
	}
}

// groupByService partitions units by target service, preserving the
// extractor's relative order inside each group and the order in which
// services first appear across groups.
func groupByService(units []*sheet.WorkUnit) ([]sheet.AIService, map[sheet.AIService][]*sheet.WorkUnit) {
	var order []sheet.AIService
	groups := make(map[sheet.AIService][]*sheet.WorkUnit)
	for _, unit := range units {
		service := unit.Config.Service
		if _, seen := groups[service]; !seen {
			order = append(order, service)
		}
		groups[service] = append(groups[service], unit)
	}
	return order, groups
}
