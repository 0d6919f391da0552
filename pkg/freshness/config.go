package freshness

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type slaFile struct {
	Sources []sourceThresholdFile `yaml:"sources"`
}

type sourceThresholdFile struct {
	SourceType string `yaml:"source_type"`
	WarnAfter  string `yaml:"warn_after"`
	ErrorAfter string `yaml:"error_after"`
}

// LoadThresholds reads data_freshness_sla.yaml into a map keyed by source
// type. Design note 9(a): the config collapses per-source SLA tiers down
// to the warn/error pair Thresholds models — a source absent from the file
// falls back to DefaultThresholds.
func LoadThresholds(path string) (map[string]Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("freshness: reading %s: %w", path, err)
	}

	var file slaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("freshness: parsing %s: %w", path, err)
	}

	out := make(map[string]Thresholds, len(file.Sources))
	for _, s := range file.Sources {
		warn, err := time.ParseDuration(s.WarnAfter)
		if err != nil {
			return nil, fmt.Errorf("freshness: source %q: parsing warn_after: %w", s.SourceType, err)
		}
		errAfter, err := time.ParseDuration(s.ErrorAfter)
		if err != nil {
			return nil, fmt.Errorf("freshness: source %q: parsing error_after: %w", s.SourceType, err)
		}
		out[s.SourceType] = Thresholds{WarnAfter: warn, ErrorAfter: errAfter}
	}
	return out, nil
}

// DefaultThresholds is used for a source_type absent from config.
var DefaultThresholds = Thresholds{WarnAfter: 2 * time.Hour, ErrorAfter: 8 * time.Hour}

// ForSource returns the configured Thresholds for sourceType, or
// DefaultThresholds if unconfigured.
func ForSource(thresholds map[string]Thresholds, sourceType string) Thresholds {
	if t, ok := thresholds[sourceType]; ok {
		return t
	}
	return DefaultThresholds
}
