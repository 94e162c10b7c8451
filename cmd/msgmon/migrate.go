package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"msgmon/internal/constants"
	"msgmon/pkg/bootstrap"
	"msgmon/pkg/migrations"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the history storage schema",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(migrations.Up), string(migrations.Down)},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := migrations.Up
			if len(args) == 1 {
				var err error
				if direction, err = migrations.ParseDirection(args[0]); err != nil {
					return err
				}
			}

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()
			connector := bootstrap.NewDatabaseConnector(cfg, log)
			out := cmd.OutOrStdout()

			switch cfg.History.Storage {
			case constants.StoragePostgres:
				db, err := connector.InitPostgreSQL(ctx)
				if err != nil {
					return err
				}
				defer db.Close()

				version, err := migrations.RunPostgres(db, direction)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "[OK] Migrated %s, schema version %d\n", direction, version)

			case constants.StorageSQLite:
				// The sqlite schema is created on open.
				db, err := connector.InitSQLite(ctx)
				if err != nil {
					return err
				}
				defer db.Close()
				fmt.Fprintln(out, "[OK] SQLite schema is up to date")

			case constants.StorageMongoDB:
				if direction == migrations.Down {
					return fmt.Errorf("mongodb indexes cannot be rolled back")
				}
				client, err := connector.InitMongoDB(ctx)
				if err != nil {
					return err
				}
				defer client.Disconnect(context.Background())

				base := bootstrap.NewBase(cfg, log)
				db := client.Database(base.MongoDatabase())
				if err := migrations.EnsureMongoIndexes(ctx, db, constants.DefaultHistoryColl); err != nil {
					return err
				}
				fmt.Fprintln(out, "[OK] MongoDB indexes ensured")

			default:
				fmt.Fprintf(out, "Nothing to migrate for %q history storage\n", cfg.History.Storage)
			}
			return nil
		},
	}
}
