package analyzer

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PatternPack overrides the built-in analyzer pattern sets from a YAML file.
type PatternPack struct {
	Log   LogPatterns   `yaml:"log"`
	Alarm AlarmPatterns `yaml:"alarm"`
}

// LogPatterns lists the regular expressions the log analyzer scans for.
type LogPatterns struct {
	ErrorPatterns       []string `yaml:"error_patterns"`
	WarningPatterns     []string `yaml:"warning_patterns"`
	PerformancePatterns []string `yaml:"performance_patterns"`
}

// AlarmPatterns maps alarm categories to message keywords.
type AlarmPatterns struct {
	Categories map[string][]string `yaml:"categories"`
}

// LoadPatternPack reads a pattern pack from the provided path. A missing file
// or empty path yields a nil pack, which leaves the built-in defaults active.
func LoadPatternPack(path string) (*PatternPack, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pattern pack: %w", err)
	}
	var pack PatternPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse pattern pack: %w", err)
	}
	return &pack, nil
}
