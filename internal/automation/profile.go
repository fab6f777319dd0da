package automation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile describes how a script should be driven, loaded from YAML.
type Profile struct {
	Name                 string                 `yaml:"name"`
	StepIntervalSeconds  float64                `yaml:"step_interval_seconds"`
	MaxConsecutiveErrors int                    `yaml:"max_consecutive_errors"`
	Parameters           map[string]interface{} `yaml:"parameters"`
}

// StepInterval returns the configured interval as a duration, with a
// 1-second default.
func (p *Profile) StepInterval() time.Duration {
	if p.StepIntervalSeconds <= 0 {
		return 1 * time.Second
	}
	return time.Duration(p.StepIntervalSeconds * float64(time.Second))
}

// Apply configures a runner from the profile.
func (p *Profile) Apply(runner *Runner) {
	runner.SetStepInterval(p.StepInterval())
	if p.MaxConsecutiveErrors > 0 {
		runner.SetMaxConsecutiveErrors(p.MaxConsecutiveErrors)
	}
}

// LoadProfile reads a single profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", filepath.Base(path), err)
	}
	if profile.Name == "" {
		return nil, fmt.Errorf("profile %s has no name", filepath.Base(path))
	}

	return &profile, nil
}

// LoadProfiles reads every .yaml/.yml file in dir, keyed by profile name.
func LoadProfiles(dir string) (map[string]*Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles directory: %w", err)
	}

	profiles := make(map[string]*Profile)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		profile, err := LoadProfile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := profiles[profile.Name]; dup {
			return nil, fmt.Errorf("duplicate profile name: %s", profile.Name)
		}
		profiles[profile.Name] = profile
	}

	return profiles, nil
}
