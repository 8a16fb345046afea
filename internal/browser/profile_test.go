package browser

import (
	"os"
	"path/filepath"
	"testing"

	"sheetdrive/internal/sheet"
)

const sampleProfiles = `
services:
  chatgpt:
    url: https://chat.example.com/
    input: "#prompt-textarea"
    send_button: "button[data-testid='send-button']"
    response: "div[data-message-author-role='assistant']"
    busy: "button[aria-label='Stop generating']"
    login_probe: "#prompt-textarea"
    model_menu: "button[data-testid='model-switcher']"
    model_option: "div[role='menuitem']:has-text('%s')"
  claude:
    url: https://claude.example.com/
    input: "div[contenteditable='true']"
    send_button: "button[aria-label='Send message']"
    response: "div[data-testid='assistant-message']"
    login_probe: "div[contenteditable='true']"
`

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadProfiles(t *testing.T) {
	profiles, err := LoadProfiles(writeProfiles(t, sampleProfiles))
	if err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("got %d profiles, want 2", len(profiles))
	}

	gpt, ok := profiles[sheet.ServiceChatGPT]
	if !ok {
		t.Fatal("chatgpt profile missing")
	}
	if gpt.Input != "#prompt-textarea" || gpt.Busy == "" {
		t.Errorf("chatgpt profile = %+v", gpt)
	}

	// Optional selectors may be absent.
	claude := profiles[sheet.ServiceClaude]
	if claude.ModelMenu != "" || claude.Busy != "" {
		t.Errorf("claude profile has unexpected optional selectors: %+v", claude)
	}
}

func TestLoadProfilesUnknownService(t *testing.T) {
	content := `
services:
  copilot:
    url: https://example.com/
    input: "#in"
    send_button: "#send"
    response: "#out"
    login_probe: "#in"
`
	if _, err := LoadProfiles(writeProfiles(t, content)); err == nil {
		t.Fatal("expected an error for an unknown service name")
	}
}

func TestLoadProfilesMissingSelector(t *testing.T) {
	content := `
services:
  chatgpt:
    url: https://example.com/
    input: "#in"
    response: "#out"
    login_probe: "#in"
`
	if _, err := LoadProfiles(writeProfiles(t, content)); err == nil {
		t.Fatal("expected an error for a missing send_button selector")
	}
}

func TestLoadProfilesMissingFile(t *testing.T) {
	if _, err := LoadProfiles(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestProfileValidate(t *testing.T) {
	p := Profile{
		URL:        "https://example.com/",
		Input:      "#in",
		SendButton: "#send",
		Response:   "#out",
		LoginProbe: "#in",
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	broken := p
	broken.Response = ""
	if err := broken.Validate(); err == nil {
		t.Error("expected an error for a missing response selector")
	}
}
