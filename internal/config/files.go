package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResolveLibraries expands the cdl.libraries patterns against c.Root. Files
// come back in pattern order, sorted within a pattern, without duplicates.
// A pattern without glob characters names one file, which must exist; a glob
// that matches nothing contributes nothing.
func (c *Config) ResolveLibraries() ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	for _, pattern := range c.CDL.Libraries {
		pattern = c.resolve(pattern)

		if !hasMeta(pattern) {
			info, err := os.Stat(pattern)
			if err != nil {
				return nil, fmt.Errorf("cdl library %s: %w", pattern, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("cdl library %s: is a directory", pattern)
			}
			if !seen[pattern] {
				seen[pattern] = true
				result = append(result, pattern)
			}
			continue
		}

		matches, err := expandGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("cdl library pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				result = append(result, match)
			}
		}
	}

	return result, nil
}

// ResolveIncludeDirs returns netlist.include_dirs anchored at c.Root.
func (c *Config) ResolveIncludeDirs() []string {
	dirs := make([]string, 0, len(c.Netlist.IncludeDirs))
	for _, d := range c.Netlist.IncludeDirs {
		dirs = append(dirs, c.resolve(d))
	}
	return dirs
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, `*?[`)
}

// expandGlob expands a glob pattern, handling ** for recursive matching
func expandGlob(pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return expandDoubleStarGlob(pattern)
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	files := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			files = append(files, m)
		}
	}
	return files, nil
}

// expandDoubleStarGlob handles ** patterns by walking the directory tree
func expandDoubleStarGlob(pattern string) ([]string, error) {
	var results []string

	parts := strings.SplitN(pattern, "**", 2)
	baseDir := filepath.Clean(parts[0])
	if baseDir == "" {
		baseDir = "."
	}
	suffix := strings.TrimPrefix(parts[1], string(filepath.Separator))

	if _, err := filepath.Match(suffix, ""); err != nil {
		return nil, err
	}

	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if d.IsDir() {
			return nil
		}
		if suffix == "" {
			results = append(results, path)
			return nil
		}
		relPath, err := filepath.Rel(baseDir, path)
		if err != nil {
			return nil
		}
		if matchSuffix(relPath, suffix) {
			results = append(results, path)
		}
		return nil
	})

	return results, err
}

// matchSuffix checks if a path matches a suffix pattern (after **)
func matchSuffix(path, pattern string) bool {
	// A pattern without a directory matches the file name at any depth.
	if !strings.Contains(pattern, string(filepath.Separator)) {
		matched, _ := filepath.Match(pattern, filepath.Base(path))
		return matched
	}

	if matched, _ := filepath.Match(pattern, path); matched {
		return true
	}

	// Otherwise the pattern must match the trailing path components.
	want := strings.Count(pattern, string(filepath.Separator)) + 1
	parts := strings.Split(path, string(filepath.Separator))
	if len(parts) < want {
		return false
	}
	matched, _ := filepath.Match(pattern, filepath.Join(parts[len(parts)-want:]...))
	return matched
}
