package browser

import (
	"context"
	"fmt"

	"sheetdrive/internal/automation"
	"sheetdrive/internal/logging"
	"sheetdrive/internal/session"
)

// SessionBridge adapts the cookie store to the run controller's session
// contract by pulling cookies through a handler's page.
type SessionBridge struct {
	store *session.Store
	log   *logging.Logger
}

// NewSessionBridge wraps a session store.
func NewSessionBridge(store *session.Store) *SessionBridge {
	return &SessionBridge{
		store: store,
		log:   logging.Get(logging.CategorySession),
	}
}

// Restore loads saved cookies into the handler's page before authentication
// is probed.
func (b *SessionBridge) Restore(ctx context.Context, h automation.Handler) error {
	wh, ok := h.(*WebHandler)
	if !ok {
		return fmt.Errorf("handler for %s has no page to restore into", h.Service())
	}

	params, err := b.store.LoadCookies(string(h.Service()))
	if err != nil {
		return err
	}
	if len(params) == 0 {
		b.log.Debug("no saved session for %s", h.Service())
		return nil
	}

	if err := wh.Page().Context(ctx).SetCookies(params); err != nil {
		return fmt.Errorf("restore cookies for %s: %w", h.Service(), err)
	}
	b.log.Info("restored %d cookies for %s", len(params), h.Service())
	return nil
}

// Save snapshots the handler's cookies after a run so the next run starts
// authenticated.
func (b *SessionBridge) Save(ctx context.Context, h automation.Handler) error {
	wh, ok := h.(*WebHandler)
	if !ok {
		return fmt.Errorf("handler for %s has no page to save from", h.Service())
	}

	cookies, err := wh.Page().Context(ctx).Cookies(nil)
	if err != nil {
		return fmt.Errorf("snapshot cookies for %s: %w", h.Service(), err)
	}
	return b.store.SaveCookies(string(h.Service()), cookies)
}

// CleanupExpired drops sessions past the validity window.
func (b *SessionBridge) CleanupExpired() int {
	return b.store.CleanupExpired()
}
