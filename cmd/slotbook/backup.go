package main

import (
	"fmt"

	"slotbook/internal/database"

	"github.com/spf13/cobra"
)

func newBackupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the database now and prune old snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			db, err := database.NewDB(cfg.Database.Path, &logger)
			if err != nil {
				return err
			}
			defer db.Close()

			backups := database.NewBackupService(db, cfg.Backup, &logger)
			path, err := backups.PerformBackup(cmd.Context())
			if err != nil {
				return err
			}
			removed := backups.CleanupOldBackups()
			fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s, %d old snapshots removed\n", path, removed)
			return nil
		},
	}
}
