//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fwagent/internal/backup"
	"fwagent/internal/executor"
	"fwagent/internal/firewalld"
)

var (
	backupIndex   int
	backupNote    string
	backupCleanup bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage firewalld zone snapshots",
	Long: `Snapshots of a zone's XML file are taken before permanent changes when
agent.backup_before_apply is set. A batch that fails halfway is not rolled
back; restore a snapshot to return to the state before it.`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the zone now",
	RunE: func(cmd *cobra.Command, args []string) error {
		zone, err := requireZone()
		if err != nil {
			return err
		}
		b, err := store().Create(zone, backupNote)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), b.Path)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots of the zone, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		zone, err := requireZone()
		if err != nil {
			return err
		}
		items, err := store().List(zone)
		if err != nil {
			return err
		}
		for i, b := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%2d  %s  %6d  %s\n", i, b.Time.Format("2006-01-02 15:04:05"), b.Size, b.Description)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a snapshot and reload firewalld",
	RunE: func(cmd *cobra.Command, args []string) error {
		zone, err := requireZone()
		if err != nil {
			return err
		}
		items, err := store().List(zone)
		if err != nil {
			return err
		}
		if backupIndex < 0 || backupIndex >= len(items) {
			return fmt.Errorf("no snapshot %d for zone %s", backupIndex, zone)
		}
		if err := backup.Restore(zone, items[backupIndex]); err != nil {
			return err
		}
		reload := executor.Command{Argv: firewalld.ReloadArgv(), Timeout: cfg.Timeouts.Reload}
		if _, err := executor.Output(cmd.Context(), executor.NewLocal(), reload); err != nil {
			pre, _ := backup.GetPreRestoreBackupPath(zone)
			return fmt.Errorf("reload after restore (previous file kept at %s): %w", pre, err)
		}
		if backupCleanup {
			if err := backup.CleanupPreRestoreBackup(zone); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s from %s\n", zone, items[backupIndex].Path)
		return nil
	},
}

func init() {
	backupCreateCmd.Flags().StringVar(&backupNote, "note", "", "description stored with the snapshot")
	backupRestoreCmd.Flags().IntVar(&backupIndex, "index", 0, "snapshot to restore, as shown by backup list")
	backupRestoreCmd.Flags().BoolVar(&backupCleanup, "cleanup", false, "remove the pre-restore copy after a successful reload")
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)
}

func store() *backup.Store {
	return backup.NewStore(cfg.Agent.BackupDir, cfg.Agent.BackupKeep)
}

func requireZone() (string, error) {
	if cfg.Backend.Zone == "" {
		return "", fmt.Errorf("--zone is required")
	}
	return cfg.Backend.Zone, nil
}
