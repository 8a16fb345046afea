package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sheetdrive/internal/sheet"
)

// mockHandler is a scriptable Handler. Zero value succeeds at everything.
type mockHandler struct {
	BaseHandler
	service sheet.AIService

	authFail      bool
	sessionDead   bool
	submitErrs    int // first N submits fail with SubmissionError
	awaitTimesOut bool
	result        string
	resultErr     error

	mu           sync.Mutex
	submits      []string
	appliedModel string
}

func (h *mockHandler) Service() sheet.AIService { return h.service }

func (h *mockHandler) EnsureAuthenticated(ctx context.Context) bool { return !h.authFail }

func (h *mockHandler) CheckSession(ctx context.Context) bool { return !h.sessionDead }

func (h *mockHandler) ApplyModel(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appliedModel = name
}

func (h *mockHandler) Submit(ctx context.Context, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.submits = append(h.submits, text)
	if h.submitErrs > 0 {
		h.submitErrs--
		return &SubmissionError{Service: h.service, Err: fmt.Errorf("injected submit failure")}
	}
	return nil
}

func (h *mockHandler) AwaitCompletion(ctx context.Context, timeout time.Duration) bool {
	return !h.awaitTimesOut
}

func (h *mockHandler) CollectResult(ctx context.Context) (string, error) {
	if h.resultErr != nil {
		return "", h.resultErr
	}
	if h.result == "" {
		return "mock result", nil
	}
	return h.result, nil
}

func (h *mockHandler) submitted() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.submits...)
}

// mockProvider hands out pre-registered handlers and records releases.
type mockProvider struct {
	mu       sync.Mutex
	handlers map[sheet.AIService]*mockHandler
	failFor  map[sheet.AIService]error
	released []sheet.AIService
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		handlers: make(map[sheet.AIService]*mockHandler),
		failFor:  make(map[sheet.AIService]error),
	}
}

func (p *mockProvider) register(service sheet.AIService, h *mockHandler) {
	h.service = service
	p.handlers[service] = h
}

func (p *mockProvider) Acquire(ctx context.Context, service sheet.AIService) (Handler, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failFor[service]; ok {
		return nil, err
	}
	h, ok := p.handlers[service]
	if !ok {
		return nil, fmt.Errorf("no handler registered for %s", service)
	}
	return h, nil
}

func (p *mockProvider) Release(h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, h.Service())
}

// mockWriter records every cell write keyed by coordinate.
type mockWriter struct {
	mu    sync.Mutex
	cells map[string]string
}

func newMockWriter() *mockWriter {
	return &mockWriter{cells: make(map[string]string)}
}

func (w *mockWriter) WriteResult(row, column int, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cells[fmt.Sprintf("r%dc%d", row, column)] = text
	return nil
}

func (w *mockWriter) WriteStatus(row, column int, text string) error {
	return w.WriteResult(row, column, text)
}

func (w *mockWriter) cell(row, column int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cells[fmt.Sprintf("r%dc%d", row, column)]
}

// mockSessions counts calls; restore and save always succeed.
type mockSessions struct {
	mu       sync.Mutex
	restored []sheet.AIService
	saved    []sheet.AIService
	expired  int
}

func (s *mockSessions) Restore(ctx context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restored = append(s.restored, h.Service())
	return nil
}

func (s *mockSessions) Save(ctx context.Context, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, h.Service())
	return nil
}

func (s *mockSessions) CleanupExpired() int { return s.expired }

// mockRecorder captures the recorded statistics.
type mockRecorder struct {
	mu    sync.Mutex
	stats []RunStatistics
}

func (r *mockRecorder) RecordRun(stats RunStatistics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, stats)
	return nil
}
