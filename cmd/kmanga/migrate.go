package main

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"kmanga/migrations"
)

func newMigrateCmd(a *app) *cobra.Command {
	var help strings.Builder
	help.WriteString("Run a schema migration command.\n\nCommands:\n")
	names := make([]string, 0, len(migrations.Commands))
	for _, c := range migrations.Commands {
		fmt.Fprintf(&help, "  %-10s %s\n", c.Name, c.Help)
		names = append(names, c.Name)
	}

	return &cobra.Command{
		Use:       "migrate COMMAND",
		Short:     "Manage the database schema",
		Long:      help.String(),
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ensureDir(a.cfg.DatabasePath); err != nil {
				return err
			}
			db, err := sql.Open("sqlite", a.cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = db.Close() }()

			return migrations.Exec(db, args[0])
		},
	}
}
