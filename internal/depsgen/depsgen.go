// Package depsgen resolves feature names to a pinned dependency list.
package depsgen

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Definition pins one dependency
type Definition struct {
	Package string `yaml:"package"`
	Version string `yaml:"version"`
}

// Manifest maps features to dependency keys and keys to definitions
type Manifest struct {
	Mappings    map[string][]string   `yaml:"dependencies-mappings"`
	Definitions map[string]Definition `yaml:"dependencies-definition"`
}

// Load reads a manifest from a YAML file
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dependency manifest: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML manifest
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse dependency manifest: %w", err)
	}
	return &m, nil
}

// Resolve returns one "package@version" line per dependency required by
// features, ordered by dependency key. Unknown features, unknown keys and
// definitions without a package are skipped with a warning. A definition
// without a version yields the bare package.
func (m *Manifest) Resolve(features []string, logger *slog.Logger) []string {
	keys := make(map[string]struct{})
	for _, feature := range features {
		deps, ok := m.Mappings[feature]
		if !ok {
			logger.Warn("feature not found in mappings, skipping", slog.String("feature", feature))
			continue
		}
		logger.Info("feature resolved", slog.String("feature", feature), slog.Any("dependencies", deps))
		for _, dep := range deps {
			keys[dep] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(keys))
	for key := range keys {
		sorted = append(sorted, key)
	}
	sort.Strings(sorted)

	lines := make([]string, 0, len(sorted))
	for _, key := range sorted {
		def, ok := m.Definitions[key]
		if !ok {
			logger.Warn("dependency key not found in definitions, skipping", slog.String("key", key))
			continue
		}
		if def.Package == "" {
			logger.Warn("package not defined for dependency, skipping", slog.String("key", key))
			continue
		}

		line := def.Package
		if def.Version != "" {
			line += "@" + def.Version
		}
		lines = append(lines, line)
	}
	return lines
}

// Write writes one line per dependency
func Write(w io.Writer, lines []string) error {
	bw := bufio.NewWriter(w)
	for _, line := range lines {
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes lines to path, creating parent directories
func WriteFile(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Write(f, lines); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return f.Close()
}
