// Package rules loads the YAML rules file that seeds context patterns and
// capture filters at startup and on live reload.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/aura/pkg/models"
)

// File is the top-level YAML structure of rules.yaml.
type File struct {
	Patterns     []models.ContextPattern `yaml:"patterns"`
	AppFilters   []models.AppFilter      `yaml:"app_filters"`
	AudioFilters []models.AudioFilter    `yaml:"audio_filters"`
}

// Load reads the YAML file at path. A missing file returns an empty File, not
// an error; running without a rules file is the normal first-boot state.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, fmt.Errorf("read rules: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	return &f, nil
}

// Empty reports whether the file defines no rules at all.
func (f *File) Empty() bool {
	return len(f.Patterns) == 0 && len(f.AppFilters) == 0 && len(f.AudioFilters) == 0
}

// Validate partitions the file into registrable entries and rejection errors.
// Invalid entries never reach the engine or stores; each carries its own
// error so a single bad rule cannot block the rest of the file.
func (f *File) Validate() (File, []error) {
	var (
		valid    File
		rejected []error
	)

	for _, p := range f.Patterns {
		if err := p.Validate(); err != nil {
			rejected = append(rejected, err)
			continue
		}
		valid.Patterns = append(valid.Patterns, p)
	}
	for _, af := range f.AppFilters {
		if err := af.Validate(); err != nil {
			rejected = append(rejected, err)
			continue
		}
		valid.AppFilters = append(valid.AppFilters, af)
	}
	for _, af := range f.AudioFilters {
		if err := af.Validate(); err != nil {
			rejected = append(rejected, err)
			continue
		}
		valid.AudioFilters = append(valid.AudioFilters, af)
	}
	return valid, rejected
}

// Save writes the file as YAML. Used by auractl to scaffold a starter rules
// file; the daemon itself only reads.
func Save(path string, f *File) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
