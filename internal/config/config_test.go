package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "data/users.db", cfg.Database.Path)
	assert.Equal(t, BackendHTTP, cfg.Remote.Backend)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Repository.FreshTimeout)
	assert.Equal(t, 4, cfg.Executor.MaxConcurrent)
	assert.Equal(t, 60, cfg.Auth.TokenTTLMinutes)
	assert.Equal(t, 10000, cfg.Cache.MaxEntries)
	assert.Equal(t, 5*time.Minute, cfg.Cache.SweepInterval)
}

func TestLoadFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PROFILE_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("PROFILE_REPOSITORY_FRESHTIMEOUT", "2h")
	t.Setenv("PROFILE_EXECUTOR_MAXCONCURRENT", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Repository.FreshTimeout)
	assert.Equal(t, 8, cfg.Executor.MaxConcurrent)
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("PROFILE_AUTH_JWTSECRET", "from-env")

	content := "# comment\nexport PROFILE_DATABASE_PATH=\"/tmp/dotenv.db\"\nPROFILE_AUTH_JWTSECRET=from-file\ninvalid line\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("PROFILE_DATABASE_PATH") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/dotenv.db", cfg.Database.Path)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	s3 := cfg
	s3.Remote.Backend = BackendS3
	assert.Error(t, s3.Validate())
	s3.Storage.Bucket = "profiles"
	assert.NoError(t, s3.Validate())

	unknown := cfg
	unknown.Remote.Backend = "ftp"
	assert.Error(t, unknown.Validate())

	noFresh := cfg
	noFresh.Repository.FreshTimeout = 0
	assert.Error(t, noFresh.Validate())

	noSweep := cfg
	noSweep.Cache.SweepInterval = 0
	assert.Error(t, noSweep.Validate())
}

func TestValidateRetention(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	for _, retention := range []time.Duration{0, -time.Hour, time.Hour} {
		bad := cfg
		bad.Repository.Retention = retention
		assert.Error(t, bad.Validate(), "retention %s", retention)
	}

	equal := cfg
	equal.Repository.Retention = equal.Repository.FreshTimeout
	assert.NoError(t, equal.Validate())
}

func TestLoadRejectsZeroRetention(t *testing.T) {
	chdirTemp(t)
	t.Setenv("PROFILE_REPOSITORY_RETENTION", "0s")

	_, err := Load()
	assert.ErrorContains(t, err, "retention")
}
