package serv

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseConfig = `
app_name: shop
log_level: debug
database: shop
transaction_retries: 2
debug: true
fields:
  is_deleted: deleted
connections:
  default:
    uri: mongodb://localhost:27017
    database: shop
    connect_timeout: 3s
  reports:
    uri: mongodb://reports:27017
`

func TestNewConfig(t *testing.T) {
	c, err := NewConfig(baseConfig, "yaml")
	require.NoError(t, err)

	assert.Equal(t, "shop", c.AppName)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "default", c.Core.Connection)
	assert.Equal(t, "shop", c.Core.Database)
	assert.Equal(t, 2, c.TransactionRetries)
	assert.True(t, c.Debug)
	assert.Equal(t, "deleted", c.Fields.IsDeleted)
	assert.Equal(t, "createdAt", c.Fields.CreatedAt, "unset field names get defaults")
	assert.Equal(t, uint(5), c.ConnectRetries)
	assert.Equal(t, 3*time.Second, c.Connections["default"].ConnectTimeout)
	assert.Equal(t, []string{"default", "reports"}, c.ConnectionNames())
}

func TestConfigValidation(t *testing.T) {
	_, err := NewConfig("connections:\n  default:\n    uri: postgres://x\n", "yaml")
	assert.Error(t, err)

	_, err = NewConfig("connection: other\nconnections:\n  default:\n    uri: mongodb://x\n", "yaml")
	assert.ErrorContains(t, err, `connection "other" is not defined`)

	_, err = NewConfig("log_level: loud\nconnections:\n  default:\n    uri: mongodb://x\n", "yaml")
	assert.Error(t, err)
}

func TestConfigEnvOverride(t *testing.T) {
	t.Setenv("DOCORM_CONNECTIONS__DEFAULT__URI", "mongodb://from-env:27017")
	t.Setenv("DOCORM_LOG_LEVEL", "warn")

	c, err := NewConfig(baseConfig, "yaml")
	require.NoError(t, err)
	assert.Equal(t, "mongodb://from-env:27017", c.Connections["default"].URI)
	assert.Equal(t, "warn", c.LogLevel)
}

func TestReadInConfigInherits(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/config/dev.yml", []byte(baseConfig), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/config/prod.yml", []byte("inherits: dev\nproduction: true\nlog_format: auto\n"), 0o644))

	c, err := ReadInConfigFS("/config/prod.yml", fs)
	require.NoError(t, err)
	assert.True(t, c.Production)
	assert.True(t, c.ShouldUseJSONLogs())
	assert.Equal(t, "shop", c.AppName)
	assert.Equal(t, "/config", c.ConfigPath)
	assert.Equal(t, "/config/seed.yml", c.AbsolutePath(c.SeedFile))

	require.NoError(t, afero.WriteFile(fs, "/config/stage.yml", []byte("inherits: prod\n"), 0o644))
	_, err = ReadInConfigFS("/config/stage.yml", fs)
	assert.ErrorContains(t, err, "cannot itself inherit")
}

func TestGetConfigName(t *testing.T) {
	tests := map[string]string{
		"":           "dev",
		"production": "prod",
		"STAGING":    "stage",
		"test":       "test",
		"qa":         "qa",
	}
	for env, want := range tests {
		t.Setenv("GO_ENV", env)
		assert.Equal(t, want, GetConfigName(), env)
	}
}
