package providers

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ChainFile is the parsed provider chain configuration.
//
//	defaults:
//	  timeout_ms: 8000
//	  retries: 1
//	categories:
//	  traffic:
//	    - name: tomtom
//	      priority: 1
//	      url: https://traffic.internal/fetch
//	      secret_env: TOMTOM_KEY
type ChainFile struct {
	Defaults   EntryDefaults              `yaml:"defaults"`
	Categories map[string][]ProviderEntry `yaml:"categories"`
}

// EntryDefaults apply to every entry that leaves the field unset.
type EntryDefaults struct {
	TimeoutMS     int `yaml:"timeout_ms"`
	Retries       int `yaml:"retries"`
	RatePerMinute int `yaml:"rate_per_minute"`
}

// ProviderEntry configures one provider within a category.
type ProviderEntry struct {
	Name          string `yaml:"name"`
	Priority      int    `yaml:"priority"`
	URL           string `yaml:"url"`
	Secret        string `yaml:"secret"` // AES-256-GCM, base64
	SecretEnv     string `yaml:"secret_env"`
	SecretHeader  string `yaml:"secret_header"`
	TimeoutMS     int    `yaml:"timeout_ms"`
	Retries       *int   `yaml:"retries"`
	RatePerMinute int    `yaml:"rate_per_minute"`
	Stub          bool   `yaml:"stub"`
	StubDelayMS   int    `yaml:"stub_delay_ms"`
}

// Guard converts the entry's settings, falling back to d.
func (e ProviderEntry) Guard(d EntryDefaults) Guard {
	g := Guard{
		Timeout:       time.Duration(e.TimeoutMS) * time.Millisecond,
		Retries:       d.Retries,
		RatePerMinute: e.RatePerMinute,
	}
	if g.Timeout <= 0 {
		g.Timeout = time.Duration(d.TimeoutMS) * time.Millisecond
	}
	if e.Retries != nil {
		g.Retries = *e.Retries
	}
	if g.RatePerMinute == 0 {
		g.RatePerMinute = d.RatePerMinute
	}
	return g
}

// LoadChainFile reads and parses a provider chain file with strict validation.
// Unknown YAML fields are rejected, category names must be known, and every
// entry needs a name plus either a URL or stub: true.
func LoadChainFile(path string) (*ChainFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider chain file: %w", err)
	}
	return ParseChainFile(data)
}

// ParseChainFile parses chain file contents.
func ParseChainFile(data []byte) (*ChainFile, error) {
	var file ChainFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse provider chain file: %w", err)
	}

	for name, entries := range file.Categories {
		if _, err := ParseCategory(name); err != nil {
			return nil, fmt.Errorf("provider chain file: %w", err)
		}
		seen := make(map[string]bool, len(entries))
		for i, e := range entries {
			if e.Name == "" {
				return nil, fmt.Errorf("provider chain file: %s[%d] missing required field: name", name, i)
			}
			if seen[e.Name] {
				return nil, fmt.Errorf("provider chain file: %s has duplicate provider %q", name, e.Name)
			}
			seen[e.Name] = true
			if e.URL == "" && !e.Stub {
				return nil, fmt.Errorf("provider chain file: %s/%s needs url or stub: true", name, e.Name)
			}
		}
	}

	return &file, nil
}
