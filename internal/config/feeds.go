package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ai-news-digest/internal/domain/entity"
)

// FeedsConfig is the YAML feed list with optional provider tuning. Weights
// and preferences given here override the environment defaults, keeping the
// full pipeline definition in one reviewable file.
type FeedsConfig struct {
	Sources []entity.Source `yaml:"sources"`

	// Weights drives the weighted batch distribution, e.g. claude: 0.5.
	Weights map[string]float64 `yaml:"weights,omitempty"`

	// Preferences maps task types (summarize, translate, analyze) to
	// preference-ordered provider lists.
	Preferences map[string][]string `yaml:"preferences,omitempty"`
}

// LoadFeeds reads and validates the feed list from the given YAML file.
func LoadFeeds(path string) (*FeedsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file %s: %w", path, err)
	}

	var cfg FeedsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse feeds file %s: %w", path, err)
	}

	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("feeds file %s lists no sources", path)
	}
	for i, src := range cfg.Sources {
		if src.Name == "" || src.URL == "" {
			return nil, fmt.Errorf("feeds file %s: source %d is missing name or url", path, i)
		}
	}
	return &cfg, nil
}

// EnabledSources returns only the sources marked enabled.
func (f *FeedsConfig) EnabledSources() []entity.Source {
	out := make([]entity.Source, 0, len(f.Sources))
	for _, src := range f.Sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}
