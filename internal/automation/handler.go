package automation

import (
	"context"
	"time"

	"sheetdrive/internal/sheet"
)

// Handler is the capability contract every service adapter implements. The
// run controller holds only this interface; which DOM heuristics locate a
// send button or response region is the adapter's business.
//
// The Apply* knobs are best-effort: an adapter that does not support a knob
// logs and continues rather than failing the unit. Adapters embed BaseHandler
// to inherit no-op knob implementations.
type Handler interface {
	// Service identifies which remote service this handler drives.
	Service() sheet.AIService

	// EnsureAuthenticated brings the handler to an authenticated state,
	// restoring or prompting as needed, and reports whether it got there.
	EnsureAuthenticated(ctx context.Context) bool

	// Best-effort configuration knobs.
	ApplyModel(name string)
	ApplyMode(mode string)
	ApplyFeatures(features []string)
	ApplySettings(settings map[string]any)

	// Submit delivers text to the service. Fails with *SubmissionError.
	Submit(ctx context.Context, text string) error

	// AwaitCompletion waits for the reply to finish, false on timeout.
	AwaitCompletion(ctx context.Context, timeout time.Duration) bool

	// CollectResult harvests the finished reply. Fails with
	// *NoResponseError when nothing is present.
	CollectResult(ctx context.Context) (string, error)

	// CheckSession reports whether the authenticated session is still live.
	CheckSession(ctx context.Context) bool
}

// BaseHandler provides no-op knob implementations so adapters only override
// what their service supports.
type BaseHandler struct{}

func (BaseHandler) ApplyModel(string)            {}
func (BaseHandler) ApplyMode(string)             {}
func (BaseHandler) ApplyFeatures([]string)       {}
func (BaseHandler) ApplySettings(map[string]any) {}

// HandlerProvider acquires and releases handlers per service. One run never
// shares a handler across services or callers; each handler owns its page
// state exclusively.
type HandlerProvider interface {
	Acquire(ctx context.Context, service sheet.AIService) (Handler, error)
	Release(h Handler)
}

// SessionStore persists and restores a handler's authenticated state across
// runs. Implementations are best-effort; the controller logs failures and
// proceeds.
type SessionStore interface {
	Restore(ctx context.Context, h Handler) error
	Save(ctx context.Context, h Handler) error
	CleanupExpired() int
}

// SheetWriter pushes per-unit outcomes back to the spreadsheet. The
// controller writes each cell coordinate at most once at a time.
type SheetWriter interface {
	WriteResult(row, column int, text string) error
	WriteStatus(row, column int, text string) error
}

// RunRecorder persists the statistics of a finished run.
type RunRecorder interface {
	RecordRun(stats RunStatistics) error
}

// ProgressFunc receives progress updates. Fire-and-forget; panics inside the
// sink are recovered and logged, never allowed to abort the run.
type ProgressFunc func(current, total int, message string)

// LogFunc receives log lines destined for a front end.
type LogFunc func(level, message string)
