package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"kmanga/internal/config"
	"kmanga/internal/storage"
)

// app carries the global flags and the resources commands share.
type app struct {
	cfgFile string
	dbPath  string

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "kmanga",
		Short:        "Manga catalog, search and release notifications",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "path to ini config file")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "path to sqlite database (overrides config)")

	root.AddCommand(
		newRunCmd(a),
		newSearchCmd(a),
		newMangaCmd(a),
		newIssueCmd(a),
		newSubscribeCmd(a),
		newUnsubscribeCmd(a),
		newPauseCmd(a),
		newResumeCmd(a),
		newFrequencyCmd(a),
		newSubscriptionsCmd(a),
		newHistoryCmd(a),
		newMigrateCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DatabasePath = a.dbPath
	}
	a.cfg = cfg
	a.log = newLogger(cfg.LogLevel)
	return nil
}

// openStore opens the configured database, creating its directory if needed.
func (a *app) openStore() (*storage.SQLite, error) {
	if err := ensureDir(a.cfg.DatabasePath); err != nil {
		return nil, err
	}
	store, err := storage.NewSQLite(a.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", a.cfg.DatabasePath, err)
	}
	return store, nil
}

func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
