package depsgen_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/db-rest-service/internal/depsgen"
	"github.com/ammerola/db-rest-service/test/helpers"
)

const manifest = `
dependencies-mappings:
  api:
    - viper
    - slog-ext
  postgresql:
    - pgx
    - viper
  broken:
    - nameless
    - missing
dependencies-definition:
  pgx:
    package: github.com/jackc/pgx/v5
    version: v5.7.5
  viper:
    package: github.com/spf13/viper
    version: v1.20.1
  slog-ext:
    package: golang.org/x/exp
  nameless:
    version: v1.0.0
`

func TestManifest_Resolve(t *testing.T) {
	m, err := depsgen.Parse([]byte(manifest))
	require.NoError(t, err)

	tests := []struct {
		name     string
		features []string
		want     []string
	}{
		{
			name:     "single_feature",
			features: []string{"postgresql"},
			want:     []string{"github.com/jackc/pgx/v5@v5.7.5", "github.com/spf13/viper@v1.20.1"},
		},
		{
			name:     "shared_dependency_listed_once",
			features: []string{"api", "postgresql"},
			want: []string{
				"github.com/jackc/pgx/v5@v5.7.5",
				"golang.org/x/exp",
				"github.com/spf13/viper@v1.20.1",
			},
		},
		{
			name:     "unknown_feature_skipped",
			features: []string{"kafka", "postgresql"},
			want:     []string{"github.com/jackc/pgx/v5@v5.7.5", "github.com/spf13/viper@v1.20.1"},
		},
		{
			name:     "missing_and_nameless_definitions_skipped",
			features: []string{"broken"},
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Resolve(tt.features, helpers.TestLogger()))
		})
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deps.txt")
	require.NoError(t, depsgen.WriteFile(path, []string{"a@v1", "b"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a@v1\nb\n", string(data))

	var buf bytes.Buffer
	require.NoError(t, depsgen.Write(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestLoad(t *testing.T) {
	_, err := depsgen.Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("dependencies-mappings: [unclosed"), 0o600))
	_, err = depsgen.Load(path)
	assert.ErrorContains(t, err, "failed to parse")

	m, err := depsgen.Load(filepath.Join("..", "..", "dependencies-config.yml"))
	require.NoError(t, err)
	assert.NotEmpty(t, m.Resolve([]string{"postgresql"}, helpers.TestLogger()))
}
