package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"sheetdrive/internal/automation"
	"sheetdrive/internal/logging"
	"sheetdrive/internal/sheet"
)

const (
	elementTimeout = 10 * time.Second
	probeTimeout   = 3 * time.Second
	pollInterval   = 500 * time.Millisecond
)

// WebHandler drives one service's chat UI through a selector profile. It
// implements the run controller's capability contract; knobs the profile has
// no selectors for are logged and skipped.
type WebHandler struct {
	automation.BaseHandler

	service sheet.AIService
	profile Profile
	page    *rod.Page
	log     *logging.Logger
}

// NewWebHandler binds a handler to an open page.
func NewWebHandler(service sheet.AIService, profile Profile, page *rod.Page) *WebHandler {
	return &WebHandler{
		service: service,
		profile: profile,
		page:    page,
		log:     logging.Get(logging.CategoryBrowser),
	}
}

// Service identifies the remote service this handler drives.
func (h *WebHandler) Service() sheet.AIService { return h.service }

// Page exposes the underlying page for session persistence.
func (h *WebHandler) Page() *rod.Page { return h.page }

// EnsureAuthenticated navigates to the service and probes for the logged-in
// UI. Restoring cookies happens before this via the session store; a false
// return means a manual login is needed.
func (h *WebHandler) EnsureAuthenticated(ctx context.Context) bool {
	if err := h.page.Context(ctx).Navigate(h.profile.URL); err != nil {
		h.log.Error("%s: navigate %s: %v", h.service, h.profile.URL, err)
		return false
	}
	if err := h.page.Context(ctx).WaitLoad(); err != nil {
		h.log.Warn("%s: page load: %v", h.service, err)
	}

	ok := h.probe(ctx, h.profile.LoginProbe, elementTimeout)
	if !ok {
		h.log.Warn("%s: login probe %q not found, not authenticated", h.service, h.profile.LoginProbe)
	}
	return ok
}

// CheckSession re-probes the logged-in UI without navigating.
func (h *WebHandler) CheckSession(ctx context.Context) bool {
	return h.probe(ctx, h.profile.LoginProbe, probeTimeout)
}

// ApplyModel picks a model through the profile's menu selectors, best-effort.
func (h *WebHandler) ApplyModel(name string) {
	if h.profile.ModelMenu == "" || h.profile.ModelOption == "" {
		h.log.Debug("%s: no model menu selectors, keeping current model", h.service)
		return
	}

	menu, err := h.page.Timeout(elementTimeout).Element(h.profile.ModelMenu)
	if err != nil {
		h.log.Warn("%s: model menu not found: %v", h.service, err)
		return
	}
	if err := menu.Click(proto.InputMouseButtonLeft, 1); err != nil {
		h.log.Warn("%s: model menu click: %v", h.service, err)
		return
	}

	option, err := h.page.Timeout(elementTimeout).Element(fmt.Sprintf(h.profile.ModelOption, name))
	if err != nil {
		h.log.Warn("%s: model %q not in menu: %v", h.service, name, err)
		return
	}
	if err := option.Click(proto.InputMouseButtonLeft, 1); err != nil {
		h.log.Warn("%s: model option click: %v", h.service, err)
		return
	}
	h.log.Info("%s: model set to %s", h.service, name)
}

// ApplyMode is not selector-driven for any current profile; logged and
// skipped. Feature and setting knobs fall through to the embedded no-ops.
func (h *WebHandler) ApplyMode(mode string) {
	h.log.Debug("%s: mode %q not supported by the web handler, skipping", h.service, mode)
}

// Submit types the text into the input box and clicks send.
func (h *WebHandler) Submit(ctx context.Context, text string) error {
	input, err := h.page.Context(ctx).Timeout(elementTimeout).Element(h.profile.Input)
	if err != nil {
		return &automation.SubmissionError{Service: h.service, Err: fmt.Errorf("input box: %w", err)}
	}
	if err := input.Input(text); err != nil {
		return &automation.SubmissionError{Service: h.service, Err: fmt.Errorf("type text: %w", err)}
	}

	send, err := h.page.Context(ctx).Timeout(elementTimeout).Element(h.profile.SendButton)
	if err != nil {
		return &automation.SubmissionError{Service: h.service, Err: fmt.Errorf("send button: %w", err)}
	}
	if err := send.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &automation.SubmissionError{Service: h.service, Err: fmt.Errorf("send click: %w", err)}
	}

	h.log.Debug("%s: submitted %d chars", h.service, len(text))
	return nil
}

// AwaitCompletion waits for the reply to finish, false on timeout. With a
// busy selector the handler waits for it to disappear; without one it waits
// for the last response's text to stop changing between polls.
func (h *WebHandler) AwaitCompletion(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	lastText := ""
	sawResponse := false

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(pollInterval):
		}

		if h.profile.Busy != "" {
			busy, _, err := h.page.Has(h.profile.Busy)
			if err != nil {
				h.log.Debug("%s: busy probe: %v", h.service, err)
				continue
			}
			if busy {
				sawResponse = true
				continue
			}
			if sawResponse {
				return true
			}
			// Not busy yet: the request may still be in flight.
			if present, _, _ := h.page.Has(h.profile.Response); present {
				return true
			}
			continue
		}

		text, ok := h.lastResponseText()
		if !ok {
			continue
		}
		if sawResponse && text == lastText {
			return true
		}
		sawResponse = true
		lastText = text
	}

	h.log.Warn("%s: response not complete within %s", h.service, timeout)
	return false
}

// CollectResult harvests the newest reply.
func (h *WebHandler) CollectResult(ctx context.Context) (string, error) {
	_ = ctx
	text, ok := h.lastResponseText()
	if !ok || strings.TrimSpace(text) == "" {
		return "", &automation.NoResponseError{Service: h.service}
	}
	return strings.TrimSpace(text), nil
}

// lastResponseText reads the text of the newest response region.
func (h *WebHandler) lastResponseText() (string, bool) {
	elements, err := h.page.Elements(h.profile.Response)
	if err != nil || len(elements) == 0 {
		return "", false
	}
	text, err := elements[len(elements)-1].Text()
	if err != nil {
		return "", false
	}
	return text, true
}

// probe reports whether selector resolves within the timeout.
func (h *WebHandler) probe(ctx context.Context, selector string, timeout time.Duration) bool {
	_, err := h.page.Context(ctx).Timeout(timeout).Element(selector)
	return err == nil
}
