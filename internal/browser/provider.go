package browser

import (
	"context"
	"fmt"

	"sheetdrive/internal/automation"
	"sheetdrive/internal/logging"
	"sheetdrive/internal/sheet"
)

// Provider builds one WebHandler per service from the loaded selector
// profiles. It implements the run controller's HandlerProvider contract.
type Provider struct {
	manager  *Manager
	profiles map[sheet.AIService]Profile
	log      *logging.Logger
}

// NewProvider wires a provider over a browser manager.
func NewProvider(manager *Manager, profiles map[sheet.AIService]Profile) *Provider {
	return &Provider{
		manager:  manager,
		profiles: profiles,
		log:      logging.Get(logging.CategoryBrowser),
	}
}

// Acquire opens a dedicated page for the service and binds a handler to it.
func (p *Provider) Acquire(ctx context.Context, service sheet.AIService) (automation.Handler, error) {
	profile, ok := p.profiles[service]
	if !ok {
		return nil, fmt.Errorf("no selector profile for service %s", service)
	}

	page, err := p.manager.NewPage(ctx, profile.URL)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", service, err)
	}

	p.log.Info("handler acquired for %s", service)
	return NewWebHandler(service, profile, page), nil
}

// Release closes the handler's page. The browser itself stays up for the
// next group; the manager owns its lifetime.
func (p *Provider) Release(h automation.Handler) {
	wh, ok := h.(*WebHandler)
	if !ok {
		return
	}
	if err := wh.Page().Close(); err != nil {
		p.log.Warn("closing page for %s: %v", wh.Service(), err)
	}
	p.log.Info("handler released for %s", wh.Service())
}
