// Package backup provides the backup and restore commands.
package backup

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hellobirdie/hellobirdie/internal/backup"
	"github.com/hellobirdie/hellobirdie/internal/backup/targets"
	"github.com/hellobirdie/hellobirdie/internal/buildinfo"
	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/datastore"
	"github.com/hellobirdie/hellobirdie/internal/errors"
)

var headerColor = color.New(color.Bold)

// Command creates and returns the backup command
func Command(settings *conf.Settings) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export, list and restore record snapshots",
		Long: `Backups are gzip-compressed YAML snapshots of every bird record, stored
in the configured target (a local directory or an S3 bucket).`,
	}
	cmd.PersistentFlags().StringVar(&target, "target", "", "Backup target: local or s3 (default: backup.target)")

	cmd.AddCommand(
		createCommand(settings, &target),
		listCommand(settings, &target),
		deleteCommand(settings, &target),
		restoreCommand(settings),
	)
	return cmd
}

// session bundles what every backup command needs.
type session struct {
	store   *datastore.Store
	manager *backup.Manager
}

func (s *session) Close() {
	_ = s.store.Close()
}

// open opens the record store and registers target. A nil target
// registers none. Sample seeding is off so a backup or restore sees exactly
// the stored records.
func open(cmd *cobra.Command, settings *conf.Settings, target *string) (*session, error) {
	unseeded := *settings
	unseeded.Database.SeedSamples = false

	store, err := datastore.Open(&unseeded, nil)
	if err != nil {
		return nil, err
	}

	exporter := backup.NewExporter(store.Repo, store.Dialect(), buildinfo.Current().Version())
	manager := backup.NewManager(exporter, store.Repo, nil)

	if target != nil {
		t, err := targets.FromSettings(cmd.Context(), &settings.Backup, *target)
		if err == nil {
			err = manager.RegisterTarget(t)
		}
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return &session{store: store, manager: manager}, nil
}

func createCommand(settings *conf.Settings, target *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Export all records to the backup target",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd, settings, target)
			if err != nil {
				return err
			}
			defer s.Close()

			meta, err := s.manager.RunBackup(cmd.Context())
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backup %s completed: %d records, %d bytes, sha256 %s\n",
				meta.ID, meta.Records, meta.Size, meta.Checksum)
			return nil
		},
	}
}

func listCommand(settings *conf.Settings, target *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd, settings, target)
			if err != nil {
				return err
			}
			defer s.Close()

			backups, err := s.manager.ListBackups(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			headerColor.Fprintln(tw, "ID\tTARGET\tCREATED\tRECORDS\tSIZE")
			for i := range backups {
				b := &backups[i]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
					b.ID, b.Target, b.Timestamp.Format("2006-01-02 15:04:05Z07:00"), b.Records, b.Size)
			}
			return tw.Flush()
		},
	}
}

func deleteCommand(settings *conf.Settings, target *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open(cmd, settings, target)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.manager.DeleteBackup(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted backup %s\n", args[0])
			return nil
		},
	}
}

func restoreCommand(settings *conf.Settings) *cobra.Command {
	var checksum string

	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Upsert the records of a snapshot file",
		Long: `Restore reads a snapshot written by "backup create". The file is fully
validated before any record is written. Records are matched on genus,
species and subspecies, so restoring twice is harmless.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return errors.New(err).
					Component("backup").
					Category(errors.CategoryFileIO).
					Context("path", args[0]).
					Build()
			}
			defer func() { _ = f.Close() }()

			s, err := open(cmd, settings, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.manager.Restore(cmd.Context(), f, checksum)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d records: %d created, %d updated\n",
				result.Records, result.Created, result.Updated)
			return nil
		},
	}

	cmd.Flags().StringVar(&checksum, "checksum", "", "Expected SHA-256 of the file (see backup list)")
	return cmd
}
