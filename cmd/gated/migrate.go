package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"campus-gate-backend/internal/db"
)

func newMigrateCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(os.Stdout, "campus-gate ", log.LstdFlags)
			cfg, err := loadConfig(logger, rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			gormDB, err := db.Init(&cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			if sqlDB, err := gormDB.DB(); err == nil {
				sqlDB.Close()
			}
			logger.Println("schema is up to date")
			return nil
		},
	}
}
