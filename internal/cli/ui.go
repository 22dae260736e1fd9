package cli

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/scriptdeck/internal/config"
	"github.com/tOgg1/scriptdeck/internal/tui"
)

func newUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "ui",
		Short:       "Open the interactive console",
		Long:        "Open the scriptdeck terminal console (the default when no command is given).",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationLogToFile: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUI(cmd)
		},
	}
}

func (a *app) runUI(cmd *cobra.Command) error {
	if !a.interactive() {
		return Exitf(ExitCodeUsage, "the console requires an interactive terminal; use subcommands such as `scriptdeck list` instead")
	}

	eng := a.newEngine()
	a.logger.Info().
		Str("version", a.version).
		Str("server", a.client.BaseURL()).
		Dur("poll_interval", eng.Fetcher.Interval()).
		Msg("console starting")

	err := tui.Run(cmd.Context(), eng, tui.Config{
		Theme:     a.cfg.TUI.Theme,
		StatusTTL: a.cfg.TUI.StatusTTL,
		Scanner:   a.client,
		ViewState: config.NewViewStateStore(a.cfg.ViewStatePath()),
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("console exited with error")
		return Exitf(ExitCodeFailure, "console: %v", err)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
