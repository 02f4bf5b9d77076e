package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaultsWithSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Secret, 64)
	assert.Equal(t, "http", cfg.Portal.Backend)
	assert.Equal(t, 1000, cfg.Reachability.TimeoutMS)
	assert.Equal(t, []string{"google.de:80", "amazon.de:80", "apple.com:80", "github.com:80"}, cfg.Reachability.Hosts)

	fi, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
	}

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Secret, again.Secret, "secret must be stable across loads")
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 0.0.0.0:9000\nportal:\n  backend: bogus\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "http", cfg.Portal.Backend)
	assert.Equal(t, "Lehrveranstaltungsplan", cfg.Portal.AnchorText)
	assert.Equal(t, 55, cfg.Grid.RowHeight)
	assert.NotEmpty(t, cfg.Secret)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	env := map[string]string{
		"TIMETABLE_SECRET":    "s3cret",
		"TIMETABLE_DATA_DIR":  "/tmp/tt",
		"TIMETABLE_LOG_LEVEL": "debug",
	}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "s3cret", cfg.Secret)
	assert.Equal(t, "/tmp/tt", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestTimeouts(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "30s", cfg.Portal.Timeout().String())
	assert.Equal(t, "1s", cfg.Reachability.Timeout().String())
}

func TestDataPaths(t *testing.T) {
	cfg := &Config{DataDir: filepath.Join("var", "tt")}
	assert.Equal(t, filepath.Join("var", "tt", "credentials.yaml"), cfg.CredentialsPath())
	assert.Equal(t, filepath.Join("var", "tt", "userconf.yaml"), cfg.OverridesPath())
}
