// Package cli implements the changelogged CLI commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rcliao/changelogged/internal/config"
	"github.com/rcliao/changelogged/internal/mediawiki"
	"github.com/rcliao/changelogged/internal/model"
	"github.com/rcliao/changelogged/internal/reconcile"
	"github.com/rcliao/changelogged/internal/store"
	"github.com/rcliao/changelogged/internal/ui"
)

var (
	cfgPath    string
	formatFlag string
	verbosity  int

	vp = viper.New()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "changelogged",
	Short: "Keep wiki page history sections in sync with the changelog",
	Long: "Reads the Versions and Changes tables from the wiki, works out which pages carry a stale " +
		"or missing history section, and rewrites those sections as bot edits.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVarP(&cfgPath, "config", "c", "", "Config file (default: ./config.json if present)")
	pf.StringP("db", "d", "", "Local mirror database path (default: $CHANGELOGGED_DB or ~/.changelogged/mirror.db)")
	pf.String("backend", "", "Where changelog data and pages live: wiki or local")
	pf.Bool("force", false, "Treat every page with a history section as needing an update")
	pf.StringVarP(&formatFlag, "format", "f", "text", "Output format: text or json")
	pf.CountVarP(&verbosity, "verbose", "v", "Log more (-v info, -vv debug)")

	bindFlags(pf, "db", "backend", "force")
}

// bindFlags lets explicitly set flags override config keys of the same name.
func bindFlags(fs *pflag.FlagSet, keys ...string) {
	for _, key := range keys {
		if err := vp.BindPFlag(key, fs.Lookup(key)); err != nil {
			panic(err)
		}
	}
}

func setupLogging() {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads and validates settings, exiting on failure.
func loadConfig(needWrite bool) config.Config {
	cfg, err := config.Load(vp, cfgPath)
	if err != nil {
		exitErr("load config", err)
	}
	if err := cfg.Validate(needWrite); err != nil {
		exitErr("config", err)
	}
	if cfg.File != "" {
		slog.Debug("loaded config", "file", cfg.File)
	}
	return cfg
}

func openStore(cfg config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DB)
}

// backend bundles the changelog source, the page store and, when it could
// be opened, the local store used for the run log.
type backend struct {
	src   reconcile.Source
	pages reconcile.PageStore
	local *store.SQLiteStore
}

func openBackend(cfg config.Config) *backend {
	if cfg.Backend == config.BackendLocal {
		s, err := openStore(cfg)
		if err != nil {
			exitErr("open store", err)
		}
		return &backend{src: s, pages: s, local: s}
	}

	client, err := mediawiki.New(cfg.MediaWiki())
	if err != nil {
		exitErr("wiki client", err)
	}
	if cfg.Username != "" {
		slog.Info("using bot username", "username", cfg.Username)
	}
	b := &backend{src: client, pages: client}
	if s, err := openStore(cfg); err != nil {
		slog.Warn("run log unavailable", "db", cfg.DB, "error", err)
	} else {
		b.local = s
	}
	return b
}

func (b *backend) Close() {
	if b.local != nil {
		b.local.Close()
	}
}

// recordRun saves run to the local store when there is one.
func (b *backend) recordRun(ctx context.Context, run model.Run) {
	if b.local == nil {
		return
	}
	if err := b.local.SaveRun(ctx, &run); err != nil {
		slog.Warn("save run failed", "error", err)
		return
	}
	slog.Debug("saved run", "id", run.ID)
}

func newDriver(cfg config.Config, b *backend) *reconcile.Driver {
	d := reconcile.New(b.src, b.pages)
	d.Options = cfg.DriverOptions()
	d.Logger = slog.Default()
	d.Observer = ui.NewProgress(os.Stdout)
	return d
}

func overviewOptions(cfg config.Config) ui.OverviewOptions {
	return ui.OverviewOptions{Columns: cfg.Columns, MaxNameLength: cfg.MaxNameLength}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
