package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/changelogged/internal/model"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "https://mcnations.wiki.gg/api.php", c.APIURL)
	assert.Equal(t, BackendWiki, c.Backend)
	assert.Equal(t, 3, c.Columns)
	assert.Equal(t, 26, c.MaxNameLength)
	assert.Equal(t, 250*time.Millisecond, c.Interval)
	assert.Equal(t, 30*time.Second, c.RetryMaxElapsed)
	assert.Equal(t, "received", c.ChangeOrder)
	assert.Equal(t, "Nations at War", c.TableTitle)
	assert.Empty(t, c.File)
	assert.NoError(t, c.Validate(false))
}

func TestLoadJSONFile(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"username": "Bot@changelogged",
		"password": "secret",
		"interval": "1s",
		"change_order": "reversed",
		"columns": 4
	}`)

	c, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "Bot@changelogged", c.Username)
	assert.Equal(t, "secret", c.Password)
	assert.Equal(t, time.Second, c.Interval)
	assert.Equal(t, 4, c.Columns)
	assert.Equal(t, path, c.File)
	assert.NoError(t, c.Validate(true))

	opts := c.DriverOptions()
	assert.Equal(t, model.OrderReversed, opts.Order)
	assert.Equal(t, time.Second, opts.Interval)
	assert.Equal(t, "Bot@changelogged", c.MediaWiki().Username)
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeFile(t, "changelogged.yaml", "backend: local\ndb: /tmp/mirror.db\nbatch_size: 10\n")

	c, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, c.Backend)
	assert.Equal(t, "/tmp/mirror.db", c.DB)
	assert.Equal(t, 10, c.BatchSize)
}

func TestLoadFallsBackToDefaultFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(`{"username":"u"}`), 0o600))
	t.Chdir(dir)

	c, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "u", c.Username)
	assert.Equal(t, DefaultFile, c.File)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.json", `{"username": "file-user"}`)
	t.Setenv("CHANGELOGGED_USERNAME", "env-user")
	t.Setenv("CHANGELOGGED_CONCURRENCY", "8")

	c, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "env-user", c.Username)
	assert.Equal(t, 8, c.Concurrency)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load(viper.New(), "")
	require.NoError(t, err)

	tests := []struct {
		name      string
		mutate    func(*Config)
		needWrite bool
		missing   bool
		wantErr   bool
	}{
		{name: "read only without credentials", mutate: func(c *Config) {}},
		{name: "write without credentials", mutate: func(c *Config) {}, needWrite: true, wantErr: true, missing: true},
		{name: "write with credentials", mutate: func(c *Config) { c.Username, c.Password = "u", "p" }, needWrite: true},
		{name: "local write needs no credentials", mutate: func(c *Config) { c.Backend = BackendLocal }, needWrite: true},
		{name: "missing api url", mutate: func(c *Config) { c.APIURL = "" }, wantErr: true, missing: true},
		{name: "missing db", mutate: func(c *Config) { c.Backend, c.DB = BackendLocal, "" }, wantErr: true, missing: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "ftp" }, wantErr: true},
		{name: "bad change order", mutate: func(c *Config) { c.ChangeOrder = "random" }, wantErr: true},
		{name: "zero columns", mutate: func(c *Config) { c.Columns = 0 }, wantErr: true},
		{name: "short names", mutate: func(c *Config) { c.MaxNameLength = 2 }, wantErr: true},
		{name: "zero concurrency", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: true},
		{name: "oversized batch", mutate: func(c *Config) { c.BatchSize = 51 }, wantErr: true},
		{name: "negative interval", mutate: func(c *Config) { c.Interval = -time.Second }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.Interval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate(tt.needWrite)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.missing, errors.Is(err, ErrMissing))
		})
	}
}
