package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rpupo63/post-studio-backend/config"
	"github.com/rpupo63/post-studio-backend/database"
	"github.com/rpupo63/post-studio-backend/database/migrations"
	"github.com/rpupo63/post-studio-backend/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCommand() *cobra.Command {
	var cfg *viper.Viper

	root := &cobra.Command{
		Use:           "poststudio",
		Short:         "Blog post lifecycle and versioning backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadDotEnv()
			cfg = config.New()
			setupLogging(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cfg)
			},
		},
		newMigrateCommand(func() *viper.Viper { return cfg }),
		&cobra.Command{
			Use:   "capabilities",
			Short: "Print the detected schema capabilities",
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := openDatabase(cfg)
				if err != nil {
					return err
				}
				caps, err := database.DetectCapabilities(db)
				if err != nil {
					return err
				}
				out, err := json.MarshalIndent(struct {
					database.SchemaCapabilities
					Generation database.Generation `json:"generation"`
				}{caps, caps.Generation()}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			},
		},
		&cobra.Command{
			Use:   "schema-report",
			Short: "Compare model columns with the live tables",
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := openDatabase(cfg)
				if err != nil {
					return err
				}
				reports, err := models.BuildSchemaReport(db)
				if err != nil {
					return err
				}
				models.WriteSchemaReport(cmd.OutOrStdout(), reports)
				return nil
			},
		},
	)

	return root
}

func newMigrateCommand(cfg func() *viper.Viper) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the embedded schema migrations",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				sqlDB, err := openSQL(cfg())
				if err != nil {
					return err
				}
				if err := migrations.Up(sqlDB); err != nil {
					return err
				}
				return printStatus(cmd, sqlDB)
			},
		},
		&cobra.Command{
			Use:   "goto <version>",
			Short: "Migrate up or down to a specific schema generation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				sqlDB, err := openSQL(cfg())
				if err != nil {
					return err
				}
				if err := migrations.Goto(sqlDB, uint(version)); err != nil {
					return err
				}
				return printStatus(cmd, sqlDB)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the applied migration version",
			RunE: func(cmd *cobra.Command, args []string) error {
				sqlDB, err := openSQL(cfg())
				if err != nil {
					return err
				}
				return printStatus(cmd, sqlDB)
			},
		},
	)

	return migrateCmd
}

func openSQL(c *viper.Viper) (*sql.DB, error) {
	db, err := openDatabase(c)
	if err != nil {
		return nil, err
	}
	return db.DB()
}

func printStatus(cmd *cobra.Command, sqlDB *sql.DB) error {
	status, err := migrations.CurrentStatus(sqlDB)
	if err != nil {
		return err
	}

	switch {
	case status.Empty:
		fmt.Fprintf(cmd.OutOrStdout(), "no migrations applied (latest %d)\n", status.Latest)
	case status.Dirty:
		fmt.Fprintf(cmd.OutOrStdout(), "version %d of %d (dirty)\n", status.Version, status.Latest)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "version %d of %d\n", status.Version, status.Latest)
	}
	return status.Check()
}
