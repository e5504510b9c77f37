// Package config loads changelogged settings from flags, environment and
// a config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rcliao/changelogged/internal/mediawiki"
	"github.com/rcliao/changelogged/internal/model"
	"github.com/rcliao/changelogged/internal/reconcile"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "config.json"

// EnvPrefix prefixes every environment override, e.g. CHANGELOGGED_USERNAME.
const EnvPrefix = "CHANGELOGGED"

// Backends.
const (
	BackendWiki  = "wiki"
	BackendLocal = "local"
)

// ErrMissing marks a required setting that has no value.
var ErrMissing = errors.New("missing required setting")

// Config holds every tunable.
type Config struct {
	APIURL          string        `mapstructure:"api_url"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	UserAgent       string        `mapstructure:"user_agent"`
	Backend         string        `mapstructure:"backend"`
	DB              string        `mapstructure:"db"`
	Columns         int           `mapstructure:"columns"`
	MaxNameLength   int           `mapstructure:"max_name_length"`
	Force           bool          `mapstructure:"force"`
	Concurrency     int           `mapstructure:"concurrency"`
	Interval        time.Duration `mapstructure:"interval"`
	BatchSize       int           `mapstructure:"batch_size"`
	ChangeOrder     string        `mapstructure:"change_order"`
	TableTitle      string        `mapstructure:"table_title"`
	RetryMaxElapsed time.Duration `mapstructure:"retry_max_elapsed"`

	// File is the config file actually read, if any.
	File string `mapstructure:"-"`
}

// DefaultDBPath returns ~/.changelogged/mirror.db.
func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".changelogged", "mirror.db")
}

// SetDefaults registers every key on v so that environment lookups and
// Unmarshal see it.
func SetDefaults(v *viper.Viper) {
	opts := reconcile.DefaultOptions()
	v.SetDefault("api_url", "https://mcnations.wiki.gg/api.php")
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("user_agent", mediawiki.DefaultUserAgent)
	v.SetDefault("backend", BackendWiki)
	v.SetDefault("db", DefaultDBPath())
	v.SetDefault("columns", 3)
	v.SetDefault("max_name_length", 26)
	v.SetDefault("force", false)
	v.SetDefault("concurrency", opts.Concurrency)
	v.SetDefault("interval", opts.Interval)
	v.SetDefault("batch_size", opts.BatchSize)
	v.SetDefault("change_order", string(opts.Order))
	v.SetDefault("table_title", opts.TableTitle)
	v.SetDefault("retry_max_elapsed", 30*time.Second)
}

// Load reads settings into a Config. An empty path falls back to
// DefaultFile when it exists; an explicit path must exist.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext == "" {
			v.SetConfigType("json")
		}
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.File = path
	return c, nil
}

// Validate checks the settings. needWrite additionally requires credentials
// for the wiki backend.
func (c Config) Validate(needWrite bool) error {
	switch c.Backend {
	case BackendWiki:
		if c.APIURL == "" {
			return fmt.Errorf("%w: api_url", ErrMissing)
		}
		if needWrite && (c.Username == "" || c.Password == "") {
			return fmt.Errorf("%w: config file is incomplete, username and password are required to write", ErrMissing)
		}
		if c.BatchSize > mediawiki.MaxTitlesPerQuery {
			return fmt.Errorf("batch_size %d exceeds the API limit of %d", c.BatchSize, mediawiki.MaxTitlesPerQuery)
		}
	case BackendLocal:
		if c.DB == "" {
			return fmt.Errorf("%w: db", ErrMissing)
		}
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", BackendWiki, BackendLocal, c.Backend)
	}

	if !model.ValidChangeOrders[model.ChangeOrder(c.ChangeOrder)] {
		return fmt.Errorf("change_order must be %q or %q, got %q", model.OrderReceived, model.OrderReversed, c.ChangeOrder)
	}
	if c.Columns < 1 {
		return fmt.Errorf("columns must be at least 1, got %d", c.Columns)
	}
	if c.MaxNameLength < 4 {
		return fmt.Errorf("max_name_length must be at least 4, got %d", c.MaxNameLength)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative, got %s", c.Interval)
	}
	return nil
}

// DriverOptions maps the config onto reconcile options.
func (c Config) DriverOptions() reconcile.Options {
	return reconcile.Options{
		Force:       c.Force,
		Order:       model.ChangeOrder(c.ChangeOrder),
		TableTitle:  c.TableTitle,
		BatchSize:   c.BatchSize,
		Concurrency: c.Concurrency,
		Interval:    c.Interval,
	}
}

// MediaWiki maps the config onto a client config.
func (c Config) MediaWiki() mediawiki.Config {
	return mediawiki.Config{
		APIURL:          c.APIURL,
		Username:        c.Username,
		Password:        c.Password,
		UserAgent:       c.UserAgent,
		RetryMaxElapsed: c.RetryMaxElapsed,
	}
}
