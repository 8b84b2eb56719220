package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellify/stellify/runtime/export"
)

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(`
only: [models, Views]
paths:
  models: src/Domain
exclude: [Legacy/]
concurrency: 4
mongo:
  uri: mongodb://localhost:27017
  replace: true
`))
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Root)
	assert.Equal(t, "stellify.json", cfg.Output)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, Mongo{URI: "mongodb://localhost:27017", Database: "stellify", Replace: true}, cfg.Mongo)

	opts, err := cfg.ExportOptions()
	require.NoError(t, err)
	want := export.Options{
		Root:    ".",
		Only:    []export.Kind{export.Models, export.Views},
		Paths:   map[export.Kind]string{export.Models: "src/Domain"},
		Exclude: []string{"Legacy/"},
	}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("ExportOptions mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown key", "roots: .", "field roots not found"},
		{"unknown kind", "only: [jobs]", `unknown kind "jobs"`},
		{"unknown path kind", "paths: {jobs: app/Jobs}", `unknown kind "jobs"`},
		{"negative concurrency", "concurrency: -1", "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(path, false)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("root: app\n"), 0o644))
	cfg, err = Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app"), cfg.Root)
}
