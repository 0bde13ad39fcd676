package cli

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAndValidateConfigAppliesLogLevel(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("AMQP_URL", "")
	t.Setenv("AUTH_TOKEN", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")

	logger := SetupLogger()
	assert.Equal(t, slog.LevelInfo, Level())

	cfg := LoadAndValidateConfig(logger)
	assert.Equal(t, "memory", cfg.DataBackend)
	assert.Equal(t, slog.LevelDebug, Level())
}

func TestInitSQLite(t *testing.T) {
	repo := InitSQLite(slog.Default(), filepath.Join(t.TempDir(), "m.db"), "artifacts/t/public/data/records")
	require.NotNil(t, repo)
	assert.NoError(t, repo.Close())
}
