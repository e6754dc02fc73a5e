package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolveLibraries(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "lib", "a.cdl")
	b := filepath.Join(root, "lib", "sub", "b.cdl")
	c := filepath.Join(root, "lib", "sub", "deep", "c.cdl")
	writeFile(t, a, "* a")
	writeFile(t, b, "* b")
	writeFile(t, c, "* c")
	writeFile(t, filepath.Join(root, "lib", "sub", "notes.txt"), "x")
	writeFile(t, filepath.Join(root, "top.cdl"), "* top")

	cfg := Config{Root: root, CDL: CDLConfig{Libraries: []string{
		"top.cdl",
		"lib/**/*.cdl",
		"lib/a.cdl",
	}}}

	files, err := cfg.ResolveLibraries()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "top.cdl"), a, b, c}, files)
}

func TestResolveLibrariesSimpleGlob(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "lib", "z.cdl"), "")
	writeFile(t, filepath.Join(root, "lib", "y.cdl"), "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib", "dir.cdl"), 0o755))

	cfg := Config{Root: root, CDL: CDLConfig{Libraries: []string{"lib/*.cdl", "none/*.cdl"}}}
	files, err := cfg.ResolveLibraries()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "lib", "y.cdl"),
		filepath.Join(root, "lib", "z.cdl"),
	}, files)
}

func TestResolveLibrariesMissingFile(t *testing.T) {
	cfg := Config{Root: t.TempDir(), CDL: CDLConfig{Libraries: []string{"missing.cdl"}}}
	_, err := cfg.ResolveLibraries()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveIncludeDirs(t *testing.T) {
	cfg := Config{Root: "/proj", Netlist: NetlistConfig{IncludeDirs: []string{"rtl/inc", "/abs/inc"}}}
	assert.Equal(t, []string{filepath.Join("/proj", "rtl", "inc"), "/abs/inc"}, cfg.ResolveIncludeDirs())
}

func TestMatchSuffix(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"a.cdl", "*.cdl", true},
		{"x/y/a.cdl", "*.cdl", true},
		{"x/y/a.sp", "*.cdl", false},
		{"x/y/a.cdl", "y/*.cdl", true},
		{"x/z/a.cdl", "y/*.cdl", false},
		{"a.cdl", "y/*.cdl", false},
	}
	for _, tt := range tests {
		t.Run(tt.path+" "+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, matchSuffix(filepath.FromSlash(tt.path), filepath.FromSlash(tt.pattern)))
		})
	}
}
