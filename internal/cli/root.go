// Package cli implements the scriptdeck command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tOgg1/scriptdeck/internal/api"
	"github.com/tOgg1/scriptdeck/internal/config"
	"github.com/tOgg1/scriptdeck/internal/engine"
	"github.com/tOgg1/scriptdeck/internal/logging"
)

// annotationLogToFile marks commands that own the terminal; their logs go to
// the log file instead of stderr.
const annotationLogToFile = "scriptdeck/log-to-file"

// app is the state shared by every command of one invocation.
type app struct {
	version string

	configFile string
	server     string
	logLevel   string
	logFormat  string

	cfg     *config.Config
	client  *api.Client
	logger  zerolog.Logger
	logFile io.Closer

	// interactive reports whether confirmations can be prompted for.
	interactive func() bool
}

// Execute runs the command line with os.Args.
func Execute(ctx context.Context, version string) error {
	return newRootCmd(version).ExecuteContext(ctx)
}

func newRootCmd(version string) *cobra.Command {
	return newAppCmd(&app{version: version, interactive: hasTTY, logger: zerolog.Nop()})
}

func newAppCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scriptdeck",
		Short: "Operator console for a remote script runner",
		Long: "scriptdeck keeps a local view of the scripts hosted by a script runner\n" +
			"service and lets you run, stop, edit, and follow them.\n\n" +
			"Without a subcommand it opens the interactive console.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       a.version,
		Annotations:   map[string]string{annotationLogToFile: "true"},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUI(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default is $HOME/.config/scriptdeck/config.yaml)")
	flags.StringVar(&a.server, "server", "", "server base URL, e.g. http://localhost:8000/api")
	flags.StringVar(&a.logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "override logging format (json, console)")

	cmd.AddCommand(
		newUICmd(a),
		newListCmd(a),
		newShowCmd(a),
		newRunCmd(a),
		newStopCmd(a),
		newToggleCmd(a),
		newCreateCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newBatchCmd(a),
		newContentCmd(a),
		newLogsCmd(a),
		newWatchCmd(a),
		newScanCmd(a),
		newUploadCmd(a),
		newSettingsCmd(a),
		newBackupCmd(a),
	)
	return cmd
}

// setup loads configuration, initializes logging, and builds the client.
// Flags win over env vars, which win over the config file.
func (a *app) setup(cmd *cobra.Command) error {
	loader := config.NewLoader()
	if a.configFile != "" {
		loader.SetConfigFile(a.configFile)
	}
	if a.server != "" {
		loader.Set("server.base_url", a.server)
	}
	if a.logLevel != "" {
		loader.Set("logging.level", a.logLevel)
	}
	if a.logFormat != "" {
		loader.Set("logging.format", a.logFormat)
	}

	cfg, err := loader.Load()
	if err != nil {
		return Exitf(ExitCodeUsage, "%v", err)
	}
	a.cfg = cfg

	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       cmd.ErrOrStderr(),
		EnableCaller: cfg.Logging.EnableCaller,
	}
	if cmd.Annotations[annotationLogToFile] == "true" {
		if err := cfg.EnsureDirectories(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
		file, err := logging.OpenFile(cfg.LogFilePath())
		if err != nil {
			return Exitf(ExitCodeFailure, "%v", err)
		}
		a.logFile = file
		logCfg.Output = file
	}
	logging.Init(logCfg)
	a.logger = logging.Component("cli")

	if used := loader.ConfigFileUsed(); used != "" {
		a.logger.Debug().Str("config_file", used).Msg("loaded config file")
	}

	client, err := api.New(cfg.Server.BaseURL,
		api.WithTimeout(cfg.Server.Timeout),
		api.WithToken(cfg.Server.Token),
		api.WithUserAgent("scriptdeck/"+userAgentVersion(a.version)),
		api.WithLogger(logging.Component("api")),
	)
	if err != nil {
		return Exitf(ExitCodeUsage, "%v", err)
	}
	a.client = client
	return nil
}

func (a *app) teardown() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

func (a *app) newEngine() *engine.Engine {
	return engine.New(a.client, engine.Options{
		PollInterval:   a.cfg.Sync.PollInterval,
		ActionTimeout:  a.cfg.Sync.ActionTimeout,
		LogBufferBytes: a.cfg.Sync.LogBufferBytes,
		Dial:           engine.APIDialer(a.client),
	})
}

// loadedEngine returns an engine whose store holds a fresh snapshot.
func (a *app) loadedEngine(ctx context.Context) (*engine.Engine, error) {
	eng := a.newEngine()
	if err := eng.Fetcher.FetchNow(ctx); err != nil {
		return nil, commandError(err)
	}
	return eng, nil
}

// userAgentVersion keeps the release tag of a version string such as
// "v1.2.0 (commit abc, built today)".
func userAgentVersion(version string) string {
	fields := strings.Fields(version)
	if len(fields) == 0 {
		return "dev"
	}
	return strings.TrimPrefix(fields[0], "v")
}

func hasTTY() bool {
	return isTerminal(os.Stdin) && isTerminal(os.Stdout)
}
