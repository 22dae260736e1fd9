package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/scriptdeck/internal/engine"
	"github.com/tOgg1/scriptdeck/internal/models"
	"github.com/tOgg1/scriptdeck/internal/view"
)

// filterFlags are the list filters shared by list and batch.
type filterFlags struct {
	query   string
	kind    string
	status  string
	enabled string
	sort    string
	order   string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.query, "query", "q", "", "case-insensitive name substring")
	flags.StringVar(&f.kind, "kind", "all", "kind filter: all|py|sh")
	flags.StringVar(&f.status, "status", "all", "status filter: all|running|success|failed|stopped|unset")
	flags.StringVar(&f.enabled, "enabled", "all", "enabled filter: all|enabled|disabled")
	flags.StringVar(&f.sort, "sort", "name", "sort key: name|lastRun|status (running scripts always first)")
	flags.StringVar(&f.order, "order", "asc", "sort order: asc|desc")
}

func (f filterFlags) options(cmd *cobra.Command) (view.Options, error) {
	opts := view.DefaultOptions()
	opts.Query = f.query

	var err error
	if opts.Kind, err = models.ParseKind(f.kind); err != nil {
		return opts, usageError(cmd, err.Error())
	}
	if opts.Status, err = models.ParseStatusFilter(f.status); err != nil {
		return opts, usageError(cmd, err.Error())
	}
	if opts.Enabled, err = models.ParseEnabledFilter(f.enabled); err != nil {
		return opts, usageError(cmd, err.Error())
	}
	if opts.SortKey, err = models.ParseSortKey(f.sort); err != nil {
		return opts, usageError(cmd, err.Error())
	}
	if opts.Order, err = models.ParseSortOrder(f.order); err != nil {
		return opts, usageError(cmd, err.Error())
	}
	return opts, nil
}

func newListCmd(a *app) *cobra.Command {
	var (
		filters    filterFlags
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List scripts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := filters.options(cmd)
			if err != nil {
				return err
			}
			scripts, err := a.client.ListScripts(cmd.Context())
			if err != nil {
				return commandError(err)
			}
			visible := view.Project(scripts, opts)

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, visible)
			}
			if len(visible) == 0 {
				if opts.Active() {
					fmt.Fprintln(out, "No scripts match the given filters.")
				} else {
					fmt.Fprintln(out, "No scripts yet. Create one with `scriptdeck create` or run `scriptdeck scan`.")
				}
				return nil
			}
			return writeTable(out, scriptHeaders, scriptRows(visible, time.Now()))
		},
	}
	filters.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(cmd, args[0])
			if err != nil {
				return err
			}
			eng, err := a.loadedEngine(cmd.Context())
			if err != nil {
				return err
			}
			script, ok := eng.Store.Get(id)
			if !ok {
				return Exitf(ExitCodeFailure, "script %d not found", id)
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), script)
			}
			return writeScriptDetail(cmd.OutOrStdout(), script, time.Now())
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Run a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(cmd, args[0])
			if err != nil {
				return err
			}
			if err := a.newEngine().Actions.Run(cmd.Context(), id); err != nil {
				return commandError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run requested for #%d\n", id)
			return nil
		},
	}
}

func newStopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(cmd, args[0])
			if err != nil {
				return err
			}
			if err := a.newEngine().Actions.Stop(cmd.Context(), id); err != nil {
				return commandError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for #%d\n", id)
			return nil
		},
	}
}

func newToggleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Stop a running script, or run it otherwise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(cmd, args[0])
			if err != nil {
				return err
			}
			eng, err := a.loadedEngine(cmd.Context())
			if err != nil {
				return err
			}
			issued, err := eng.Actions.ToggleRun(cmd.Context(), id)
			if err != nil {
				return commandError(err)
			}
			if issued == engine.ActionStop {
				fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for #%d\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Run requested for #%d\n", id)
			}
			return nil
		},
	}
}

// scriptFlags are the editable fields of create and update.
type scriptFlags struct {
	name         string
	path         string
	cron         string
	daemon       bool
	arguments    string
	description  string
	runOnStartup bool
}

func (f *scriptFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "", "script name")
	flags.StringVar(&f.path, "path", "", "script path on the server")
	flags.StringVar(&f.cron, "cron", "", "5-field cron expression (empty for manual runs only)")
	flags.BoolVar(&f.daemon, "daemon", false, "run continuously instead of on a schedule")
	flags.StringVar(&f.arguments, "args", "", "arguments passed to the script")
	flags.StringVar(&f.description, "description", "", "free-form description")
	flags.BoolVar(&f.runOnStartup, "run-on-startup", false, "start the script when the server starts")
}

// apply copies every flag the operator set onto fields.
func (f scriptFlags) apply(cmd *cobra.Command, fields *models.ScriptFields) error {
	flags := cmd.Flags()
	if flags.Changed("daemon") && flags.Changed("cron") && f.daemon {
		return usageError(cmd, "--daemon and --cron are mutually exclusive")
	}
	if flags.Changed("name") {
		fields.Name = strings.TrimSpace(f.name)
	}
	if flags.Changed("path") {
		fields.Path = strings.TrimSpace(f.path)
	}
	if flags.Changed("cron") {
		fields.SetCron(f.cron)
	}
	if flags.Changed("daemon") {
		if f.daemon {
			fields.SetDaemon()
		} else if fields.IsDaemon() {
			fields.SetCron("")
		}
	}
	if flags.Changed("args") {
		fields.Arguments = strings.TrimSpace(f.arguments)
	}
	if flags.Changed("description") {
		if description := strings.TrimSpace(f.description); description != "" {
			fields.Description = &description
		} else {
			fields.Description = nil
		}
	}
	if flags.Changed("run-on-startup") {
		fields.RunOnStartup = f.runOnStartup
	}
	return nil
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		flags      scriptFlags
		uploadFile string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a script",
		Long: "Create a script. With --upload the file is stored on the server first\n" +
			"and the name and path default to the uploaded file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := models.ScriptFields{Enabled: true}
			if uploadFile != "" {
				uploaded, err := a.upload(cmd, uploadFile)
				if err != nil {
					return err
				}
				fields.Name = strings.TrimSuffix(uploaded.Filename, filepath.Ext(uploaded.Filename))
				fields.Path = uploaded.Path
			}
			if err := flags.apply(cmd, &fields); err != nil {
				return err
			}

			saved, err := a.newEngine().Actions.Save(cmd.Context(), nil, fields)
			if err != nil {
				return commandError(err)
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), saved)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (#%d)\n", saved.Name, saved.ID)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&uploadFile, "upload", "", "upload this local file and prefill name and path from it")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		flags      scriptFlags
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a script's configuration",
		Long:  "Change a script's configuration. Only the given flags change; the script is always saved enabled.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(cmd, args[0])
			if err != nil {
				return err
			}
			eng, err := a.loadedEngine(cmd.Context())
			if err != nil {
				return err
			}
			current, ok := eng.Store.Get(id)
			if !ok {
				return Exitf(ExitCodeFailure, "script %d not found", id)
			}

			fields := models.FieldsFromScript(current)
			if err := flags.apply(cmd, &fields); err != nil {
				return err
			}
			saved, err := eng.Actions.Save(cmd.Context(), &id, fields)
			if err != nil {
				return commandError(err)
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), saved)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (#%d)\n", saved.Name, saved.ID)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a script",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(cmd, args[0])
			if err != nil {
				return err
			}
			eng, err := a.loadedEngine(cmd.Context())
			if err != nil {
				return err
			}
			label := fmt.Sprintf("#%d", id)
			if script, ok := eng.Store.Get(id); ok {
				label = fmt.Sprintf("%s (#%d)", script.Name, id)
			}

			confirmed, err := a.confirm(cmd, fmt.Sprintf("Delete %s? This cannot be undone.", label), yes)
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			if err := eng.Actions.Delete(cmd.Context(), id); err != nil {
				return commandError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", label)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newContentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Read or replace a script's source",
	}

	var output string
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a script's source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(cmd, args[0])
			if err != nil {
				return err
			}
			content, err := a.newEngine().Actions.LoadContent(cmd.Context(), id)
			if err != nil {
				return commandError(err)
			}
			if output == "" || output == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), content)
				return err
			}
			if err := os.WriteFile(output, []byte(content), 0o644); err != nil {
				return Exitf(ExitCodeFailure, "write %s: %v", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", len(content), output)
			return nil
		},
	}
	get.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	var (
		input   string
		restart bool
	)
	put := &cobra.Command{
		Use:   "put <id>",
		Short: "Replace a script's source from a file or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(cmd, args[0])
			if err != nil {
				return err
			}
			content, err := readInput(cmd, input)
			if err != nil {
				return err
			}

			if !restart {
				if err := a.newEngine().Actions.SaveContent(cmd.Context(), id, content); err != nil {
					return commandError(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Content saved")
				return nil
			}

			// Restart needs the current status to know whether to stop first.
			eng, err := a.loadedEngine(cmd.Context())
			if err != nil {
				return err
			}
			restarted, err := eng.Actions.SaveAndRestart(cmd.Context(), id, content)
			if err != nil {
				return commandError(err)
			}
			if !restarted {
				fmt.Fprintf(cmd.OutOrStdout(), "Content saved; script #%d is not in the collection, so it was not restarted\n", id)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Content saved, script restarted")
			return nil
		},
	}
	put.Flags().StringVarP(&input, "file", "f", "", "read the source from this file (default stdin)")
	put.Flags().BoolVar(&restart, "restart", false, "stop the script if running, then run it")

	cmd.AddCommand(get, put)
	return cmd
}

func newScanCmd(a *app) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Register script files found on the server's disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.client.Scan(cmd.Context())
			if err != nil {
				return commandError(err)
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			out := cmd.OutOrStdout()
			if msg := strings.TrimSpace(result.Message); msg != "" {
				fmt.Fprintln(out, msg)
			}
			if len(result.Scripts) > 0 {
				return writeTable(out, scriptHeaders, scriptRows(result.Scripts, time.Now()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

func newUploadCmd(a *app) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a script file to the server",
		Long:  "Upload a script file to the server. Use `create --upload` to also register it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.upload(cmd, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s to %s\n", result.Filename, result.Path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	return cmd
}

func (a *app) upload(cmd *cobra.Command, path string) (models.UploadResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return models.UploadResult{}, Exitf(ExitCodeFailure, "open %s: %v", path, err)
	}
	defer file.Close()

	result, err := a.client.Upload(cmd.Context(), filepath.Base(path), file)
	if err != nil {
		return models.UploadResult{}, commandError(err)
	}
	return result, nil
}

// confirm asks a yes/no question on the terminal. yes skips the question;
// non-interactive sessions must pass it.
func (a *app) confirm(cmd *cobra.Command, prompt string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	if !a.interactive() {
		return false, Exitf(ExitCodeUsage, "confirmation required; pass --yes in non-interactive sessions")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, Exitf(ExitCodeFailure, "read confirmation: %v", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func parseID(cmd *cobra.Command, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError(cmd, fmt.Sprintf("invalid script id %q", raw))
	}
	return id, nil
}

func parseIDs(cmd *cobra.Command, raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := parseID(cmd, part)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path != "" && path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", Exitf(ExitCodeFailure, "read %s: %v", path, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", Exitf(ExitCodeFailure, "read stdin: %v", err)
	}
	return string(data), nil
}
