package browser

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sheetdrive/internal/sheet"
)

// Profile holds the selectors the generic web handler needs to drive one
// service's chat UI. Selectors are data, not code: updating a profile file
// tracks a UI change without a rebuild.
type Profile struct {
	URL         string `yaml:"url"`
	Input       string `yaml:"input"`
	SendButton  string `yaml:"send_button"`
	Response    string `yaml:"response"`
	Busy        string `yaml:"busy,omitempty"`
	LoginProbe  string `yaml:"login_probe"`
	ModelMenu   string `yaml:"model_menu,omitempty"`
	ModelOption string `yaml:"model_option,omitempty"` // %s is replaced by the model name
}

// profileFile is the on-disk YAML shape.
type profileFile struct {
	Services map[string]Profile `yaml:"services"`
}

// Validate checks a profile carries the selectors the handler cannot work
// without.
func (p Profile) Validate() error {
	switch {
	case p.URL == "":
		return fmt.Errorf("profile missing url")
	case p.Input == "":
		return fmt.Errorf("profile missing input selector")
	case p.SendButton == "":
		return fmt.Errorf("profile missing send_button selector")
	case p.Response == "":
		return fmt.Errorf("profile missing response selector")
	case p.LoginProbe == "":
		return fmt.Errorf("profile missing login_probe selector")
	}
	return nil
}

// LoadProfiles reads a selector profile file. Services with unknown names
// are rejected so typos surface before a run, not during one.
func LoadProfiles(path string) (map[sheet.AIService]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles %s: %w", path, err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles %s: %w", path, err)
	}

	profiles := make(map[sheet.AIService]Profile, len(file.Services))
	for name, profile := range file.Services {
		if !sheet.IsKnownService(name) {
			return nil, fmt.Errorf("profiles %s: unknown service %q", path, name)
		}
		if err := profile.Validate(); err != nil {
			return nil, fmt.Errorf("profiles %s: service %s: %w", path, name, err)
		}
		profiles[sheet.AIService(name)] = profile
	}
	return profiles, nil
}
