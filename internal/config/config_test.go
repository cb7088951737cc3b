package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bddgen.yaml"), []byte(`
model: gemini-2.5-pro
baseDelay: 2s
feature: Checkout
languages: [Python, java]
`), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", cfg.Model)
	assert.Equal(t, 2*time.Second, cfg.BaseDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.MinInterval)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, "Checkout", cfg.Feature)
	assert.Equal(t, []string{"python", "java"}, cfg.Languages)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	require.NoError(t, os.WriteFile(path, []byte("maxAttempts: 0\n"), 0o644))
	_, err := Load(dir)
	assert.ErrorContains(t, err, "maxAttempts")

	require.NoError(t, os.WriteFile(path, []byte("languages: [cobol]\n"), 0o644))
	_, err = Load(dir)
	assert.ErrorContains(t, err, `unknown language "cobol"`)

	require.NoError(t, os.WriteFile(path, []byte("model: [\n"), 0o644))
	_, err = Load(dir)
	assert.ErrorContains(t, err, "parsing bddgen.yml")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{EnvAPIKey: " secret ", EnvModel: "gemini-x"}
	cfg.ApplyEnv(func(k string) string { return env[k] })
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "gemini-x", cfg.Model)

	cfg = Default()
	cfg.ApplyEnv(func(string) string { return "" })
	assert.Empty(t, cfg.APIKey)
	assert.Equal(t, Default().Model, cfg.Model)
}

func TestWrite_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	want := Default()
	want.APIKey = "never-written"
	require.NoError(t, Write(path, want))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "never-written")

	got, err := LoadFile(path)
	require.NoError(t, err)
	want.APIKey = ""
	assert.Equal(t, want, *got)
}
