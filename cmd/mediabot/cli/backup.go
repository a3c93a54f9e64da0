package cli

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/mediabot/internal/backup"
	"github.com/spf13/cobra"
)

var errBackupDisabled = errors.New("backup is not enabled in the config file")

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the media collection to and from the backup bucket",
}

var backupPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the current collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.Close()
		if !e.cfg.Backup.Enabled {
			return errBackupDisabled
		}

		ctx := cmd.Context()
		bucket, err := backup.NewMinioBucket(e.cfg.Backup)
		if err != nil {
			return err
		}
		if err := bucket.EnsureBucket(ctx); err != nil {
			return err
		}
		records, err := e.storage.Load(ctx)
		if err != nil {
			return err
		}
		data, err := backup.Encode(records)
		if err != nil {
			return err
		}
		if err := bucket.Upload(ctx, e.cfg.Backup.ObjectKey, data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d media to %s/%s\n", len(records), e.cfg.Backup.Bucket, e.cfg.Backup.ObjectKey)
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the local collection with the backed-up one",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.Close()
		if !e.cfg.Backup.Enabled {
			return errBackupDisabled
		}

		ctx := cmd.Context()
		bucket, err := backup.NewMinioBucket(e.cfg.Backup)
		if err != nil {
			return err
		}
		records, err := backup.NewMirror(bucket, e.cfg.Backup.ObjectKey, e.obs).Fetch(ctx)
		if err != nil {
			return err
		}
		if err := e.storage.Save(ctx, records); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %d media\n", len(records))
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupPushCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	RootCmd.AddCommand(backupCmd)
}
