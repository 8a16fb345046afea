package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

func testCookies() []*proto.NetworkCookie {
	return []*proto.NetworkCookie{
		{Name: "session_token", Value: "abc123", Domain: ".example.com", Path: "/"},
		{Name: "csrf", Value: "xyz", Domain: ".example.com", Path: "/"},
	}
}

func TestSaveAndLoadCookies(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := s.SaveCookies("chatgpt", testCookies()); err != nil {
		t.Fatalf("SaveCookies: %v", err)
	}

	params, err := s.LoadCookies("chatgpt")
	if err != nil {
		t.Fatalf("LoadCookies: %v", err)
	}
	if len(params) != 2 {
		t.Fatalf("got %d cookies, want 2", len(params))
	}
	if params[0].Name != "session_token" || params[0].Value != "abc123" {
		t.Errorf("cookie = %+v", params[0])
	}
	if params[0].Domain != ".example.com" {
		t.Errorf("domain = %q, want .example.com", params[0].Domain)
	}
}

func TestLoadCookiesUnknownService(t *testing.T) {
	s, err := NewStore(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	params, err := s.LoadCookies("claude")
	if err != nil {
		t.Fatalf("LoadCookies: %v", err)
	}
	if params != nil {
		t.Errorf("got %v, want nil for an unknown service", params)
	}
}

func TestIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.SaveCookies("gemini", testCookies()); err != nil {
		t.Fatalf("SaveCookies: %v", err)
	}

	reopened, err := NewStore(dir, time.Hour)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.Has("gemini") {
		t.Error("reopened store lost the saved session")
	}
}

func TestExpiredSessionIsIgnored(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.SaveCookies("chatgpt", testCookies()); err != nil {
		t.Fatalf("SaveCookies: %v", err)
	}

	// Backdate the index entry past the validity window.
	s.mu.Lock()
	info := s.index["chatgpt"]
	info.SavedAt = time.Now().Add(-2 * time.Hour)
	s.index["chatgpt"] = info
	s.mu.Unlock()

	params, err := s.LoadCookies("chatgpt")
	if err != nil {
		t.Fatalf("LoadCookies: %v", err)
	}
	if params != nil {
		t.Error("expired session should load as nil")
	}
	if s.Has("chatgpt") {
		t.Error("Has should be false for an expired session")
	}
}

func TestCleanupExpired(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.SaveCookies("chatgpt", testCookies()); err != nil {
		t.Fatalf("SaveCookies: %v", err)
	}
	if err := s.SaveCookies("claude", testCookies()); err != nil {
		t.Fatalf("SaveCookies: %v", err)
	}

	s.mu.Lock()
	info := s.index["chatgpt"]
	info.SavedAt = time.Now().Add(-2 * time.Hour)
	s.index["chatgpt"] = info
	cookieFile := filepath.Join(dir, info.CookieFile)
	s.mu.Unlock()

	if removed := s.CleanupExpired(); removed != 1 {
		t.Fatalf("CleanupExpired = %d, want 1", removed)
	}
	if _, err := os.Stat(cookieFile); !os.IsNotExist(err) {
		t.Error("expired cookie file was not removed")
	}
	if !s.Has("claude") {
		t.Error("valid session was removed")
	}
	if s.CleanupExpired() != 0 {
		t.Error("second cleanup should remove nothing")
	}
}

func TestCookieFileNameSanitizes(t *testing.T) {
	if got := cookieFileName("google_ai_studio"); got != "google_ai_studio_cookies.json" {
		t.Errorf("got %q", got)
	}
	if got := cookieFileName("Weird/Name"); got != "weird_name_cookies.json" {
		t.Errorf("got %q", got)
	}
}

func TestSavedFormLoadsAsParams(t *testing.T) {
	// The persisted NetworkCookie JSON must unmarshal into
	// NetworkCookieParam; this is what lets LoadCookies hand the file
	// straight to SetCookies.
	data, err := json.Marshal(testCookies())
	if err != nil {
		t.Fatal(err)
	}
	var params []*proto.NetworkCookieParam
	if err := json.Unmarshal(data, &params); err != nil {
		t.Fatalf("saved form does not load as params: %v", err)
	}
	if params[0].Name != "session_token" {
		t.Errorf("params = %+v", params[0])
	}
}
