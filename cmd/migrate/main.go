package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/obedyakpa0-dev/VitalAndGreen/internal/inventory"
	"github.com/obedyakpa0-dev/VitalAndGreen/internal/products"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/config"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/logger"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/migrate"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/outbox"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate|seed")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	if err := run(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate finished")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		return migrate.ValidateDir(opts.dir)
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()

	if opts.cmd == "seed" {
		return seed(ctx, cfg, logg, dbClient)
	}

	// The SQL migrations use Postgres types; local SQLite files are built
	// from the models instead.
	if cfg.DB.IsSQLite() {
		if opts.cmd != "up" {
			return fmt.Errorf("command %q is not supported on sqlite", opts.cmd)
		}
		return db.MigrateSQLite(ctx, dbClient.DB())
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}

	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	case "version":
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}

func seed(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) error {
	conn := dbClient.DB()
	ledger, err := inventory.NewService(inventory.NewRepository(conn), dbClient, outbox.NewService(outbox.NewRepository(conn), logg))
	if err != nil {
		return err
	}
	svc, err := products.NewService(products.NewRepository(conn), dbClient, ledger, logg)
	if err != nil {
		return err
	}
	inserted, err := svc.SeedCatalog(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("catalog seed inserted %d products\n", inserted)
	return nil
}
