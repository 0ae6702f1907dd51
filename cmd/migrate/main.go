package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/deposit-ledger/pkg/config"
	"github.com/angelmondragon/deposit-ledger/pkg/db"
	"github.com/angelmondragon/deposit-ledger/pkg/logger"
	"github.com/angelmondragon/deposit-ledger/pkg/migrate"
)

var errUsage = errors.New("usage")

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	if err := run(context.Background(), logg, *cmd, *dir, *name, *version); err != nil {
		if !errors.Is(err, errUsage) {
			logg.Error(context.Background(), "migrate.failed", err)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logg *logger.Logger, cmd, dir, name, version string) error {
	ctx = logg.WithFields(ctx, map[string]any{"cmd": cmd, "dir": dir})

	// create and validate only touch the filesystem.
	switch cmd {
	case "create":
		if name == "" {
			return fmt.Errorf("%w: missing -name for create", errUsage)
		}
		path, err := migrate.CreateSQLMigration(dir, name)
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(dir); err != nil {
			return fmt.Errorf("validate migrations: %w", err)
		}
		fmt.Println("migration validation passed")
		return nil
	case "up", "down", "status":
	case "version":
		if version == "" {
			return fmt.Errorf("%w: missing -version for version command", errUsage)
		}
	default:
		return fmt.Errorf("%w: unknown -cmd value %q", errUsage, cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}

	logg.Info(ctx, "migrate.start")
	if cmd == "version" {
		err = migrate.MigrateToVersion(ctx, sqlDB, dir, version)
	} else {
		err = migrate.Run(ctx, sqlDB, dir, cmd)
	}
	if err != nil {
		return err
	}
	logg.Info(ctx, "migrate.complete")
	return nil
}
