package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/replenishment-engine/internal/config"
	"github.com/andresuchdata/replenishment-engine/internal/repository/postgres"
	"github.com/andresuchdata/replenishment-engine/internal/service"
	"github.com/andresuchdata/replenishment-engine/pkg/logger"
)

type ctxKey string

const dbKey ctxKey = "db"

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string (defaults to the DB_* settings)",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func initDB(c *cli.Context) error {
	dsn := c.String("db-url")
	if dsn == "" {
		dsn = postgres.DSN(&config.Load().Database)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(c.Context); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	c.Context = context.WithValue(c.Context, dbKey, postgres.Wrap(sqlx.NewDb(db, "pgx")))
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func dbFrom(c *cli.Context) (*postgres.DB, error) {
	db, ok := c.Context.Value(dbKey).(*postgres.DB)
	if !ok || db == nil {
		return nil, fmt.Errorf("database not initialised")
	}
	return db, nil
}

func engineFrom(c *cli.Context) (*service.ReplenishmentService, error) {
	db, err := dbFrom(c)
	if err != nil {
		return nil, err
	}
	return service.NewFromConfig(c.Context, config.Load(), db)
}

func main() {
	cfg := config.Load()
	logger.Configure(cfg.App.LogLevel, cfg.App.LogFormat)

	app := &cli.App{
		Name:  "replenish",
		Usage: "Operate the replenishment decision engine",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply the database schema",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initDB,
				After:  closeDB,
				Action: runMigrate,
			},
			{
				Name:  "seed",
				Usage: "Load reference data and usage history from CSV files",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing the seed CSV files",
						Value:   "./data/seeds",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runSeed,
			},
			{
				Name:  "run",
				Usage: "Run a cadence job once and print its result",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:  "job",
						Usage: "nightly, weekly or monthly",
						Value: "nightly",
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runJob,
			},
			{
				Name:   "triggers",
				Usage:  "Process every pending trigger once",
				Flags:  []cli.Flag{newDBURLFlag()},
				Before: initDB,
				After:  closeDB,
				Action: runTriggers,
			},
			{
				Name:  "forecast",
				Usage: "Print the forecast for one product at one store",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{Name: "product", Usage: "Product id", Required: true},
					&cli.StringFlag{Name: "store", Usage: "Store id", Required: true},
					&cli.IntFlag{Name: "lookback-days", Usage: "Usage history window", Value: 90},
				},
				Before: initDB,
				After:  closeDB,
				Action: runForecast,
			},
			{
				Name:  "archive",
				Usage: "List archived job results from object storage",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "day",
						Usage: "Day prefix, e.g. 2025/06/01 or 2025/06",
					},
				},
				Action: runArchive,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("replenish failed")
	}
}

func runMigrate(c *cli.Context) error {
	db, err := dbFrom(c)
	if err != nil {
		return err
	}
	if err := db.Migrate(c.Context); err != nil {
		return err
	}
	logger.Log.Info().Msg("Schema applied")
	return nil
}

func runJob(c *cli.Context) error {
	svc, err := engineFrom(c)
	if err != nil {
		return err
	}
	res, err := svc.RunJob(c.Context, c.String("job"))
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runTriggers(c *cli.Context) error {
	svc, err := engineFrom(c)
	if err != nil {
		return err
	}
	results, err := svc.ProcessTriggers(c.Context)
	if err != nil {
		return err
	}
	logger.Log.Info().Int("processed", len(results)).Msg("Pending triggers processed")
	return printJSON(results)
}

func runForecast(c *cli.Context) error {
	svc, err := engineFrom(c)
	if err != nil {
		return err
	}
	fc, err := svc.PreviewForecast(c.Context, service.ForecastRequest{
		ProductID:    c.String("product"),
		StoreID:      c.String("store"),
		LookbackDays: c.Int("lookback-days"),
	})
	if err != nil {
		return err
	}
	return printJSON(fc)
}

func runArchive(c *cli.Context) error {
	cfg := config.Load()
	archive, err := service.NewArchive(c.Context, cfg.Storage)
	if err != nil {
		return err
	}
	if archive == nil {
		return fmt.Errorf("storage is disabled; set STORAGE_ENABLED=true")
	}
	results, err := archive.Load(c.Context, strings.Trim(c.String("day"), "/"))
	if err != nil {
		return err
	}
	return printJSON(results)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
