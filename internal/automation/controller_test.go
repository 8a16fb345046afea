package automation

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"sheetdrive/internal/retry"
	"sheetdrive/internal/sheet"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		BackoffFactor: 2.0,
	}
}

func testRunConfig() *sheet.RunConfig {
	cfg := sheet.NewRunConfig("test.xlsx", sheet.ColumnAIConfig{Service: sheet.ServiceChatGPT, Model: "gpt-4"})
	cfg.UseColumnConfigs = true
	cfg.SetColumnConfig(3, sheet.ColumnAIConfig{Service: sheet.ServiceChatGPT, Model: "gpt-4"})
	cfg.SetColumnConfig(6, sheet.ColumnAIConfig{Service: sheet.ServiceClaude, Model: "claude-3"})
	return cfg
}

// twoServiceUnits builds rows 6 and 7 of a two-work-column sheet: C drives
// chatgpt and F drives claude, four units total.
func twoServiceUnits(t *testing.T, cfg *sheet.RunConfig) []*sheet.WorkUnit {
	t.Helper()
	posC, err := sheet.NewColumnPosition(3)
	if err != nil {
		t.Fatal(err)
	}
	posF, err := sheet.NewColumnPosition(6)
	if err != nil {
		t.Fatal(err)
	}
	var units []*sheet.WorkUnit
	for _, row := range []int{6, 7} {
		units = append(units,
			sheet.NewWorkUnit(row, posC, "text C", cfg.ConfigFor(3)),
			sheet.NewWorkUnit(row, posF, "text F", cfg.ConfigFor(6)),
		)
	}
	return units
}

func newTestController(t *testing.T, cfg ControllerConfig) *Controller {
	t.Helper()
	if cfg.RunConfig == nil {
		cfg.RunConfig = testRunConfig()
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = fastRetry()
	}
	c, err := NewController(cfg)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return c
}

func TestRunProcessesAllUnits(t *testing.T) {
	provider := newMockProvider()
	chatgpt := &mockHandler{result: "gpt says"}
	claude := &mockHandler{result: "claude says"}
	provider.register(sheet.ServiceChatGPT, chatgpt)
	provider.register(sheet.ServiceClaude, claude)

	writer := newMockWriter()
	sessions := &mockSessions{}
	recorder := &mockRecorder{}

	runCfg := testRunConfig()
	c := newTestController(t, ControllerConfig{
		RunConfig: runCfg,
		Provider:  provider,
		Sessions:  sessions,
		Writer:    writer,
		Recorder:  recorder,
	})

	units := twoServiceUnits(t, runCfg)
	stats, err := c.Run(context.Background(), units)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Total != 4 || stats.Completed != 4 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 4/4/0", stats)
	}
	if stats.RunID == "" || stats.EndTime.IsZero() {
		t.Errorf("stats missing run identity: %+v", stats)
	}

	// Intra-service sequencing: each handler got its units in row order.
	if got := chatgpt.submitted(); len(got) != 2 {
		t.Errorf("chatgpt submits = %v, want 2", got)
	}
	if got := claude.submitted(); len(got) != 2 {
		t.Errorf("claude submits = %v, want 2", got)
	}

	// Write-back: status done and result text for row 6 column C
	// (status column 1, result column 4).
	if got := writer.cell(6, 1); got != runCfg.Markers.StatusDone {
		t.Errorf("status cell = %q, want done marker", got)
	}
	if got := writer.cell(6, 4); got != "gpt says" {
		t.Errorf("result cell = %q, want gpt says", got)
	}

	// Sessions restored before and saved after, both services released.
	if len(sessions.restored) != 2 || len(sessions.saved) != 2 {
		t.Errorf("sessions restored=%v saved=%v", sessions.restored, sessions.saved)
	}
	if len(provider.released) != 2 {
		t.Errorf("released = %v, want both services", provider.released)
	}

	if len(recorder.stats) != 1 || recorder.stats[0].Completed != 4 {
		t.Errorf("recorder = %+v", recorder.stats)
	}

	if chatgpt.appliedModel != "gpt-4" {
		t.Errorf("applied model = %q, want gpt-4", chatgpt.appliedModel)
	}
}

func TestRunGroupSetupFailureIsolated(t *testing.T) {
	provider := newMockProvider()
	provider.register(sheet.ServiceChatGPT, &mockHandler{})
	claude := &mockHandler{authFail: true}
	provider.register(sheet.ServiceClaude, claude)

	writer := newMockWriter()
	runCfg := testRunConfig()
	c := newTestController(t, ControllerConfig{
		RunConfig: runCfg,
		Provider:  provider,
		Writer:    writer,
	})

	units := twoServiceUnits(t, runCfg)
	stats, err := c.Run(context.Background(), units)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Completed != 2 || stats.Failed != 2 {
		t.Errorf("stats = %+v, want 2 completed, 2 failed", stats)
	}

	// The failed group's error cells carry the setup failure. Work column
	// F has error column 5.
	if got := writer.cell(6, 5); !strings.Contains(got, "not authenticated") {
		t.Errorf("error cell = %q, want authentication failure", got)
	}

	// An unauthenticated handler is still released.
	found := false
	for _, s := range provider.released {
		if s == sheet.ServiceClaude {
			found = true
		}
	}
	if !found {
		t.Error("claude handler was not released after auth failure")
	}
}

func TestRunNoHandlersAcquired(t *testing.T) {
	provider := newMockProvider() // nothing registered
	runCfg := testRunConfig()
	c := newTestController(t, ControllerConfig{
		RunConfig: runCfg,
		Provider:  provider,
	})

	units := twoServiceUnits(t, runCfg)
	stats, err := c.Run(context.Background(), units)
	if err == nil {
		t.Fatal("expected an error when no handler could be acquired")
	}
	if stats.Failed != 4 {
		t.Errorf("stats = %+v, want all 4 failed", stats)
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s, want idle after the run", c.State())
	}
}

func TestRunRetriesTransientFailures(t *testing.T) {
	provider := newMockProvider()
	h := &mockHandler{submitErrs: 2, result: "eventually"}
	provider.register(sheet.ServiceChatGPT, h)

	runCfg := sheet.NewRunConfig("test.xlsx", sheet.ColumnAIConfig{Service: sheet.ServiceChatGPT, Model: "gpt-4"})
	c := newTestController(t, ControllerConfig{
		RunConfig: runCfg,
		Provider:  provider,
	})

	pos, _ := sheet.NewColumnPosition(3)
	unit := sheet.NewWorkUnit(6, pos, "text", runCfg.Default)

	stats, err := c.Run(context.Background(), []*sheet.WorkUnit{unit})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Completed != 1 {
		t.Errorf("stats = %+v, want 1 completed", stats)
	}
	if unit.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", unit.RetryCount)
	}
	if unit.Result != "eventually" {
		t.Errorf("Result = %q", unit.Result)
	}
}

func TestRunSessionExpiryIsNotRetried(t *testing.T) {
	provider := newMockProvider()
	h := &mockHandler{sessionDead: true}
	provider.register(sheet.ServiceChatGPT, h)

	runCfg := sheet.NewRunConfig("test.xlsx", sheet.ColumnAIConfig{Service: sheet.ServiceChatGPT, Model: "gpt-4"})
	c := newTestController(t, ControllerConfig{
		RunConfig: runCfg,
		Provider:  provider,
		Retry: retry.Config{
			MaxAttempts:   5,
			BaseDelay:     time.Millisecond,
			BackoffFactor: 2.0,
		},
	})

	pos, _ := sheet.NewColumnPosition(3)
	unit := sheet.NewWorkUnit(6, pos, "text", runCfg.Default)

	stats, err := c.Run(context.Background(), []*sheet.WorkUnit{unit})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 failed", stats)
	}
	// A dead session consumes exactly one attempt, not the whole budget.
	if unit.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", unit.RetryCount)
	}
	if len(h.submitted()) != 0 {
		t.Errorf("submits = %v, want none after a dead session check", h.submitted())
	}
}

func TestRunAwaitTimeoutFailsUnit(t *testing.T) {
	provider := newMockProvider()
	h := &mockHandler{awaitTimesOut: true}
	provider.register(sheet.ServiceChatGPT, h)

	runCfg := sheet.NewRunConfig("test.xlsx", sheet.ColumnAIConfig{Service: sheet.ServiceChatGPT, Model: "gpt-4"})
	writer := newMockWriter()
	c := newTestController(t, ControllerConfig{
		RunConfig: runCfg,
		Provider:  provider,
		Writer:    writer,
	})

	pos, _ := sheet.NewColumnPosition(3)
	unit := sheet.NewWorkUnit(6, pos, "text", runCfg.Default)

	stats, err := c.Run(context.Background(), []*sheet.WorkUnit{unit})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("stats = %+v, want 1 failed", stats)
	}
	// The whole retry budget is consumed; the error lands in the error
	// column (column 2 for work column C).
	if unit.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", unit.RetryCount)
	}
	if got := writer.cell(6, 2); got == "" {
		t.Error("error cell is empty, want the timeout message")
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	provider := newMockProvider()
	provider.register(sheet.ServiceChatGPT, &mockHandler{})

	c := newTestController(t, ControllerConfig{
		RunConfig: testRunConfig(),
		Provider:  provider,
	})

	c.setState(StateRunning)
	defer c.setState(StateIdle)

	_, err := c.Run(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "already in progress") {
		t.Fatalf("err = %v, want an already-in-progress rejection", err)
	}
}

func TestRunStopBetweenUnits(t *testing.T) {
	provider := newMockProvider()
	h := &mockHandler{}
	provider.register(sheet.ServiceChatGPT, h)

	runCfg := sheet.NewRunConfig("test.xlsx", sheet.ColumnAIConfig{Service: sheet.ServiceChatGPT, Model: "gpt-4"})

	var c *Controller
	c = newTestController(t, ControllerConfig{
		RunConfig: runCfg,
		Provider:  provider,
		OnProgress: func(current, total int, message string) {
			// Request the stop while the first unit is in flight.
			if current == 1 && strings.Contains(message, "processing") {
				c.Stop()
			}
		},
	})

	pos, _ := sheet.NewColumnPosition(3)
	var units []*sheet.WorkUnit
	for row := 6; row <= 9; row++ {
		units = append(units, sheet.NewWorkUnit(row, pos, "text", runCfg.Default))
	}

	stats, err := c.Run(context.Background(), units)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The unit in flight finishes; the rest are never started.
	if stats.Completed != 1 {
		t.Errorf("stats = %+v, want exactly 1 completed", stats)
	}
	if len(h.submitted()) != 1 {
		t.Errorf("submits = %v, want 1", h.submitted())
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s, want idle", c.State())
	}
}

func TestRunEmptyBatch(t *testing.T) {
	provider := newMockProvider()
	c := newTestController(t, ControllerConfig{
		RunConfig: testRunConfig(),
		Provider:  provider,
	})

	stats, err := c.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Total != 0 || stats.Completed != 0 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want an empty run", stats)
	}
}

func TestRunContextCancelHaltsBetweenGroups(t *testing.T) {
	provider := newMockProvider()
	chatgpt := &mockHandler{}
	claude := &mockHandler{}
	provider.register(sheet.ServiceChatGPT, chatgpt)
	provider.register(sheet.ServiceClaude, claude)

	ctx, cancel := context.WithCancel(context.Background())

	runCfg := testRunConfig()
	var c *Controller
	c = newTestController(t, ControllerConfig{
		RunConfig: runCfg,
		Provider:  provider,
		OnProgress: func(current, total int, message string) {
			if current == 2 {
				cancel()
			}
		},
	})

	units := twoServiceUnits(t, runCfg)
	stats, err := c.Run(ctx, units)
	cancel()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Completed >= 4 {
		t.Errorf("stats = %+v, expected the cancel to cut the run short", stats)
	}
}

func TestNewControllerValidation(t *testing.T) {
	if _, err := NewController(ControllerConfig{}); err == nil {
		t.Error("expected an error without a run config")
	}
	if _, err := NewController(ControllerConfig{RunConfig: testRunConfig()}); err == nil {
		t.Error("expected an error without a provider")
	}
}
