package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tOgg1/scriptdeck/internal/logging"
	"github.com/tOgg1/scriptdeck/internal/models"
)

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list, and restore script backups",
	}
	cmd.AddCommand(
		newBackupRunCmd(a),
		newBackupScriptCmd(a),
		newBackupHistoryCmd(a),
		newBackupDownloadCmd(a),
		newBackupDeleteCmd(a),
		newBackupDeleteAllCmd(a),
		newBackupRestoreCmd(a),
		newBackupConfigCmd(a),
		newBackupApplyScheduleCmd(a),
		newBackupTestCloudDriveCmd(a),
	)
	return cmd
}

func newBackupRunCmd(a *app) *cobra.Command {
	var (
		target     string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "run [id...]",
		Short: "Back up the given scripts, or all scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(cmd, args)
			if err != nil {
				return err
			}
			backupType := models.BackupType(strings.ToLower(strings.TrimSpace(target)))
			if backupType != models.BackupLocal && backupType != models.BackupCloudDrive {
				return usageError(cmd, fmt.Sprintf("invalid backup target %q (expected local, clouddrive)", target))
			}

			result, err := a.client.ManualBackup(cmd.Context(), ids, backupType)
			if err != nil {
				return commandError(err)
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			writeBackupResult(cmd, result)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", string(models.BackupLocal), "backup target: local|clouddrive")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

func newBackupScriptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "script <id>",
		Short: "Back up one script locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(cmd, args[0])
			if err != nil {
				return err
			}
			result, err := a.client.BackupScript(cmd.Context(), id)
			if err != nil {
				return commandError(err)
			}
			writeBackupResult(cmd, result)
			return nil
		},
	}
}

func writeBackupResult(cmd *cobra.Command, result models.BackupResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, orEmpty(result.Message))
	if result.Filename != "" {
		fmt.Fprintf(out, "  file:   %s\n", result.Filename)
	}
	if result.LocalPath != nil && *result.LocalPath != "" {
		fmt.Fprintf(out, "  local:  %s\n", *result.LocalPath)
	}
	if result.RemotePath != nil && *result.RemotePath != "" {
		fmt.Fprintf(out, "  remote: %s\n", *result.RemotePath)
	}
}

func newBackupHistoryCmd(a *app) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List local backup archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.client.BackupHistory(cmd.Context())
			if err != nil {
				return commandError(err)
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backups yet.")
				return nil
			}

			now := time.Now()
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				created := emptyCellValue
				if entry.CreatedAt != nil && !entry.CreatedAt.IsZero() {
					created = humanize.RelTime(entry.CreatedAt.Time, now, "ago", "from now")
				}
				rows = append(rows, []string{entry.Filename, humanize.IBytes(uint64(max(entry.Size, 0))), created})
			}
			return writeTable(cmd.OutOrStdout(), []string{"FILE", "SIZE", "CREATED"}, rows)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

func newBackupDownloadCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <filename>",
		Short: "Download a backup archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			if output == "" {
				output = filepath.Base(filename)
			}
			file, err := os.Create(output)
			if err != nil {
				return Exitf(ExitCodeFailure, "create %s: %v", output, err)
			}

			n, err := a.client.DownloadBackup(cmd.Context(), filename, file)
			closeErr := file.Close()
			if err != nil {
				_ = os.Remove(output)
				return commandError(err)
			}
			if closeErr != nil {
				return Exitf(ExitCodeFailure, "write %s: %v", output, closeErr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", output, humanize.IBytes(uint64(n)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (default: the archive name)")
	return cmd
}

func newBackupDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <filename>",
		Short: "Delete one backup archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			confirmed, err := a.confirm(cmd, fmt.Sprintf("Delete backup %s?", args[0]), yes)
			if err != nil || !confirmed {
				if err == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				}
				return err
			}
			result, err := a.client.DeleteBackup(cmd.Context(), args[0])
			if err != nil {
				return commandError(err)
			}
			printMessage(cmd, result, "Deleted "+args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newBackupDeleteAllCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every local backup archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			confirmed, err := a.confirm(cmd, "Delete ALL local backups? This cannot be undone.", yes)
			if err != nil || !confirmed {
				if err == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				}
				return err
			}
			result, err := a.client.DeleteAllBackups(cmd.Context())
			if err != nil {
				return commandError(err)
			}
			fallback := "Backups deleted"
			if result.DeletedCount != nil {
				fallback = fmt.Sprintf("Deleted %d backups", *result.DeletedCount)
			}
			printMessage(cmd, result, fallback)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newBackupRestoreCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore <archive.zip>",
		Short: "Upload an archive and restore the scripts it holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !strings.EqualFold(filepath.Ext(path), ".zip") {
				return usageError(cmd, "restore expects a .zip archive")
			}
			confirmed, err := a.confirm(cmd, fmt.Sprintf("Restore scripts from %s?", filepath.Base(path)), yes)
			if err != nil || !confirmed {
				if err == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				}
				return err
			}

			file, err := os.Open(path)
			if err != nil {
				return Exitf(ExitCodeFailure, "open %s: %v", path, err)
			}
			defer file.Close()

			result, err := a.client.RestoreBackup(cmd.Context(), filepath.Base(path), file)
			if err != nil {
				return commandError(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, orEmpty(result.Message))
			fmt.Fprintf(out, "  restored: %d\n  skipped:  %d\n", result.RestoredCount, result.SkippedCount)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newBackupConfigCmd(a *app) *cobra.Command {
	var (
		jsonOutput  bool
		showSecrets bool
		update      models.BackupConfig
	)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the scheduled backup configuration",
		Long: "Show the scheduled backup configuration. Any flag given changes that\n" +
			"field and saves the result; run `backup apply-schedule` afterwards.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.client.GetBackupConfig(cmd.Context())
			if err != nil {
				return commandError(err)
			}

			flags := cmd.Flags()
			changed := false
			apply := func(name string, fn func()) {
				if flags.Changed(name) {
					fn()
					changed = true
				}
			}
			apply("local", func() { cfg.LocalBackupEnabled = update.LocalBackupEnabled })
			apply("local-cron", func() { cfg.LocalBackupCron = update.LocalBackupCron })
			apply("clouddrive", func() { cfg.CD2BackupEnabled = update.CD2BackupEnabled })
			apply("clouddrive-cron", func() { cfg.CD2BackupCron = update.CD2BackupCron })
			apply("webdav-url", func() { cfg.CD2WebDAVURL = update.CD2WebDAVURL })
			apply("username", func() { cfg.CD2Username = update.CD2Username })
			apply("password", func() { cfg.CD2Password = update.CD2Password })
			apply("remote-path", func() { cfg.CD2BackupPath = update.CD2BackupPath })

			if changed {
				result, err := a.client.SaveBackupConfig(cmd.Context(), cfg)
				if err != nil {
					return commandError(err)
				}
				printMessage(cmd, result, "Backup configuration saved")
			}

			printable := cfg
			if !showSecrets && printable.CD2Password != "" {
				printable.CD2Password = logging.RedactedValue
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), printable)
			}
			return writeTable(cmd.OutOrStdout(), nil, [][]string{
				{"local backup", formatYesNo(printable.LocalBackupEnabled)},
				{"local cron", orEmpty(printable.LocalBackupCron)},
				{"clouddrive backup", formatYesNo(printable.CD2BackupEnabled)},
				{"clouddrive cron", orEmpty(printable.CD2BackupCron)},
				{"webdav url", orEmpty(logging.Redact(printable.CD2WebDAVURL))},
				{"username", orEmpty(printable.CD2Username)},
				{"password", orEmpty(printable.CD2Password)},
				{"remote path", orEmpty(printable.CD2BackupPath)},
			})
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&jsonOutput, "json", false, "output JSON")
	flags.BoolVar(&showSecrets, "show-secrets", false, "print the WebDAV password")
	flags.BoolVar(&update.LocalBackupEnabled, "local", false, "enable scheduled local backups")
	flags.StringVar(&update.LocalBackupCron, "local-cron", "", "cron schedule of local backups")
	flags.BoolVar(&update.CD2BackupEnabled, "clouddrive", false, "enable scheduled CloudDrive backups")
	flags.StringVar(&update.CD2BackupCron, "clouddrive-cron", "", "cron schedule of CloudDrive backups")
	flags.StringVar(&update.CD2WebDAVURL, "webdav-url", "", "CloudDrive WebDAV URL")
	flags.StringVar(&update.CD2Username, "username", "", "WebDAV username")
	flags.StringVar(&update.CD2Password, "password", "", "WebDAV password")
	flags.StringVar(&update.CD2BackupPath, "remote-path", "", "remote directory for CloudDrive backups")
	return cmd
}

func newBackupApplyScheduleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apply-schedule",
		Short: "Make the server reload its backup schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.client.ApplyBackupSchedule(cmd.Context())
			if err != nil {
				return commandError(err)
			}
			printMessage(cmd, result, "Backup schedule applied")
			return nil
		},
	}
}

func newBackupTestCloudDriveCmd(a *app) *cobra.Command {
	var webdavURL, username, password string
	cmd := &cobra.Command{
		Use:   "test-clouddrive",
		Short: "Check CloudDrive WebDAV credentials",
		Long:  "Check CloudDrive WebDAV credentials. Missing flags default to the stored backup configuration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("webdav-url") || !flags.Changed("username") || !flags.Changed("password") {
				cfg, err := a.client.GetBackupConfig(cmd.Context())
				if err != nil {
					return commandError(err)
				}
				if !flags.Changed("webdav-url") {
					webdavURL = cfg.CD2WebDAVURL
				}
				if !flags.Changed("username") {
					username = cfg.CD2Username
				}
				if !flags.Changed("password") {
					password = cfg.CD2Password
				}
			}
			if strings.TrimSpace(webdavURL) == "" {
				return usageError(cmd, "a WebDAV URL is required")
			}

			result, err := a.client.TestCloudDrive(cmd.Context(), webdavURL, username, password)
			if err != nil {
				return commandError(err)
			}
			printMessage(cmd, result, "CloudDrive connection OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&webdavURL, "webdav-url", "", "WebDAV URL")
	cmd.Flags().StringVar(&username, "username", "", "WebDAV username")
	cmd.Flags().StringVar(&password, "password", "", "WebDAV password")
	return cmd
}
