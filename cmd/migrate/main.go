// Command migrate applies or rolls back the SQL schema migrations.
//
//	migrate [-path migrations] up
//	migrate [-path migrations] down [steps]
//	migrate version
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/bissquit/newsroom/internal/app"
	"github.com/bissquit/newsroom/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	path := flag.String("path", "migrations", "directory with migration files")
	flag.Parse()

	if err := run(*path, flag.Args()); err != nil {
		slog.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}

func run(path string, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: migrate [-path dir] up|down [steps]|version")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(app.InitLogger(cfg.Log))

	m, err := migrate.New("file://"+path, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			slog.Warn("close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		steps := 1
		if len(args) > 1 {
			steps, err = strconv.Atoi(args[1])
			if err != nil || steps < 1 {
				return fmt.Errorf("invalid steps %q", args[1])
			}
		}
		err = m.Steps(-steps)
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			return fmt.Errorf("read version: %w", verr)
		}
		slog.Info("schema version", "version", version, "dirty", dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info("schema is up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", args[0], err)
	}

	version, _, _ := m.Version()
	slog.Info("migrations applied", "command", args[0], "version", version)
	return nil
}
