package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/fastprodman/rewardsledger/cmd/migrator/migrations"
	testdata "github.com/fastprodman/rewardsledger/cmd/migrator/test_data"
	"github.com/fastprodman/rewardsledger/internal/infra/logging"
	"github.com/fastprodman/rewardsledger/pkg/envconf"
)

// Demo rows keep their own version table so they never collide with the
// schema versions.
const testDataTable = "schema_migrations_test_data"

type migratorConfig struct {
	DSN      string     `env:"PG_DSN"`
	LogLevel slog.Level `env:"APP_LOG_LEVEL" envDefault:"INFO"`
}

func init() {
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
	rootCmd.AddCommand(versionCmd)

	upCmd.Flags().Bool("with-test-data", false, "Also apply the demo accounts and transactions")
	downCmd.Flags().Bool("with-test-data", false, "Remove the demo rows before the schema")
}

var rootCmd = &cobra.Command{
	Use:           "migrator",
	Short:         "Manage the rewards journal schema",
	Long:          `Applies the embedded Postgres migrations for the ledger audit journal. Reads PG_DSN and APP_LOG_LEVEL from the environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE:  runUp,
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration",
	Args:  cobra.NoArgs,
	RunE:  runDown,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func runUp(cmd *cobra.Command, _ []string) error {
	withTestData, _ := cmd.Flags().GetBool("with-test-data")

	db, err := openDB()
	if err != nil {
		return err
	}
	//nolint:errcheck
	defer db.Close()

	err = migrateSet(db, migrations.FS, "", func(m *migrate.Migrate) error { return m.Up() })
	if err != nil {
		return fmt.Errorf("base migrations failed: %w", err)
	}

	slog.Info("base migrations applied")

	if withTestData {
		err = migrateSet(db, testdata.FS, testDataTable, func(m *migrate.Migrate) error { return m.Up() })
		if err != nil {
			return fmt.Errorf("test data migrations failed: %w", err)
		}

		slog.Info("test data migrations applied")
	}

	return nil
}

func runDown(cmd *cobra.Command, _ []string) error {
	withTestData, _ := cmd.Flags().GetBool("with-test-data")

	db, err := openDB()
	if err != nil {
		return err
	}
	//nolint:errcheck
	defer db.Close()

	if withTestData {
		err = migrateSet(db, testdata.FS, testDataTable, func(m *migrate.Migrate) error { return m.Down() })
		if err != nil {
			return fmt.Errorf("test data rollback failed: %w", err)
		}

		slog.Info("test data rolled back")
	}

	err = migrateSet(db, migrations.FS, "", func(m *migrate.Migrate) error { return m.Down() })
	if err != nil {
		return fmt.Errorf("base rollback failed: %w", err)
	}

	slog.Info("base migrations rolled back")

	return nil
}

func runVersion(cmd *cobra.Command, _ []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	//nolint:errcheck
	defer db.Close()

	m, err := newMigrate(db, migrations.FS, "")
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		cmd.Println("no migrations applied")

		return nil
	}

	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	cmd.Printf("version %d (dirty: %t)\n", version, dirty)

	return nil
}

func openDB() (*sql.DB, error) {
	cfg := new(migratorConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel, "rewards-migrator")

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	err = db.Ping()
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping db: %w", err)
	}

	return db, nil
}

func newMigrate(db *sql.DB, fsys fs.FS, table string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	if err != nil {
		return nil, fmt.Errorf("init postgres driver: %w", err)
	}

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("migrate instance: %w", err)
	}

	return m, nil
}

func migrateSet(db *sql.DB, fsys fs.FS, table string, step func(*migrate.Migrate) error) error {
	m, err := newMigrate(db, fsys, table)
	if err != nil {
		return err
	}

	err = step(m)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: %w", err)
	}

	return nil
}
