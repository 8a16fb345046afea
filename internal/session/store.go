// Package session persists authenticated browser state per AI service so a
// manual login survives across runs. Cookies are stored as one JSON file per
// service plus an index carrying save timestamps for expiry cleanup.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"sheetdrive/internal/logging"
)

const indexFile = "session_info.json"

// DefaultValidity is how long a saved session is trusted before cleanup
// removes it.
const DefaultValidity = 7 * 24 * time.Hour

// Info is the index entry for one service's saved session.
type Info struct {
	Service    string    `json:"service"`
	SavedAt    time.Time `json:"saved_at"`
	CookieFile string    `json:"cookie_file"`
}

// Store owns the session directory.
type Store struct {
	dir      string
	validity time.Duration
	log      *logging.Logger

	mu    sync.Mutex
	index map[string]Info
}

// NewStore opens (creating if needed) a session directory.
func NewStore(dir string, validity time.Duration) (*Store, error) {
	if dir == "" {
		dir = "sessions"
	}
	if validity <= 0 {
		validity = DefaultValidity
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir %s: %w", dir, err)
	}

	s := &Store{
		dir:      dir,
		validity: validity,
		log:      logging.Get(logging.CategorySession),
		index:    make(map[string]Info),
	}
	if err := s.loadIndex(); err != nil {
		s.log.Warn("could not load session index, starting fresh: %v", err)
		s.index = make(map[string]Info)
	}
	return s, nil
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.index)
}

// saveIndex writes the index. Caller holds the lock.
func (s *Store) saveIndex() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, indexFile), data, 0600)
}

// SaveCookies persists one service's cookies and stamps the index.
func (s *Store) SaveCookies(service string, cookies []*proto.NetworkCookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := cookieFileName(service)
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cookies for %s: %w", service, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0600); err != nil {
		return fmt.Errorf("write cookies for %s: %w", service, err)
	}

	s.index[service] = Info{
		Service:    service,
		SavedAt:    time.Now(),
		CookieFile: name,
	}
	if err := s.saveIndex(); err != nil {
		return fmt.Errorf("update session index: %w", err)
	}

	s.log.Info("saved session for %s (%d cookies)", service, len(cookies))
	return nil
}

// LoadCookies returns a service's saved cookies in the form rod's SetCookies
// accepts, or nil when no valid session exists.
func (s *Store) LoadCookies(service string) ([]*proto.NetworkCookieParam, error) {
	s.mu.Lock()
	info, ok := s.index[service]
	s.mu.Unlock()

	if !ok {
		return nil, nil
	}
	if time.Since(info.SavedAt) > s.validity {
		s.log.Info("session for %s is older than %s, ignoring", service, s.validity)
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(s.dir, info.CookieFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cookies for %s: %w", service, err)
	}

	// NetworkCookie and NetworkCookieParam share their JSON field names for
	// everything we persist, so the saved form loads directly as params.
	var params []*proto.NetworkCookieParam
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("parse cookies for %s: %w", service, err)
	}

	s.log.Info("loaded session for %s (%d cookies)", service, len(params))
	return params, nil
}

// Has reports whether a still-valid session exists for the service.
func (s *Store) Has(service string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.index[service]
	return ok && time.Since(info.SavedAt) <= s.validity
}

// CleanupExpired removes sessions past the validity window and returns how
// many were removed.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for service, info := range s.index {
		if time.Since(info.SavedAt) <= s.validity {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, info.CookieFile)); err != nil && !os.IsNotExist(err) {
			s.log.Warn("could not remove cookies for %s: %v", service, err)
		}
		delete(s.index, service)
		removed++
		s.log.Info("expired session for %s removed (saved %s)", service, info.SavedAt.Format(time.RFC3339))
	}

	if removed > 0 {
		if err := s.saveIndex(); err != nil {
			s.log.Error("could not update session index: %v", err)
		}
	}
	return removed
}

func cookieFileName(service string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, service)
	return safe + "_cookies.json"
}
