// SPDX-License-Identifier: BSD-3-Clause

// Package config provides a YAML-backed core.ConfigSource, grounded on the
// reference pack's own config-struct-plus-Validate convention
// (service/ledmgr's config.go) and gopkg.in/yaml.v3.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/btmgrd/btadapterd/pkg/mgmt"
)

// Adapter holds the per-HCI settings a config file may override.
type Adapter struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// File is the on-disk YAML shape.
type File struct {
	FlossEnabled   bool              `yaml:"floss_enabled"`
	DefaultAdapter int               `yaml:"default_adapter"`
	PidDir         string            `yaml:"pid_dir"`
	Adapters       map[int]Adapter   `yaml:"adapters"`
}

// Validate checks the loaded File for obvious mistakes, per the reference
// pack's config.Validate convention.
func (f File) Validate() error {
	if f.DefaultAdapter < 0 {
		return fmt.Errorf("config: default_adapter must be >= 0, got %d", f.DefaultAdapter)
	}
	if f.PidDir == "" {
		return fmt.Errorf("config: pid_dir must not be empty")
	}
	for hci := range f.Adapters {
		if hci < 0 {
			return fmt.Errorf("config: adapter index %d must be >= 0", hci)
		}
	}
	return nil
}

// Source is a core.ConfigSource backed by a YAML file, re-read on every
// query so edits to the file take effect without a restart.
type Source struct {
	path string
	mu   sync.Mutex
}

// New returns a Source reading from path.
func New(path string) *Source {
	return &Source{path: path}
}

func (s *Source) load() (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", s.path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("config: parse %s: %w", s.path, err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// IsFlossEnabled reports the global floss_enabled flag.
func (s *Source) IsFlossEnabled(ctx context.Context) (bool, error) {
	f, err := s.load()
	if err != nil {
		return false, err
	}
	return f.FlossEnabled, nil
}

// DefaultAdapter reports the configured default adapter index.
func (s *Source) DefaultAdapter(ctx context.Context) (int, error) {
	f, err := s.load()
	if err != nil {
		return 0, err
	}
	return f.DefaultAdapter, nil
}

// IsHCIEnabled reports whether hci is enabled for management. Absent an
// explicit per-adapter entry, an adapter is enabled by default once floss
// is on (spec §4.3's initial enumeration only consults this when floss is
// enabled in the first place).
func (s *Source) IsHCIEnabled(ctx context.Context, hci int) (bool, error) {
	f, err := s.load()
	if err != nil {
		return false, err
	}
	a, ok := f.Adapters[hci]
	if !ok || a.Enabled == nil {
		return true, nil
	}
	return *a.Enabled, nil
}

// ListPidFiles lists the bluetoothN.pid files currently present in pid_dir.
func (s *Source) ListPidFiles(ctx context.Context) ([]string, error) {
	f, err := s.load()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(f.PidDir)
	if err != nil {
		return nil, fmt.Errorf("config: list %s: %w", f.PidDir, err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "bluetooth") || !strings.HasSuffix(name, ".pid") {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "bluetooth"), ".pid")); err != nil {
			continue
		}
		names = append(names, filepath.Join(f.PidDir, name))
	}
	return names, nil
}

// CheckHCIDeviceExists asks the kernel directly via pkg/mgmt rather than
// the config file, since device presence is hardware state, not
// configuration.
func (s *Source) CheckHCIDeviceExists(ctx context.Context, hci int) (bool, error) {
	return mgmt.DeviceExists(hci)
}
