package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/scriptdeck/internal/api"
	"github.com/tOgg1/scriptdeck/internal/logging"
	"github.com/tOgg1/scriptdeck/internal/models"
)

func newSettingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change server settings",
	}

	var (
		jsonOutput  bool
		showSecrets bool
	)
	get := &cobra.Command{
		Use:   "get [key]",
		Short: "Print server settings (secrets redacted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := a.client.GetSettings(cmd.Context())
			if err != nil {
				return commandError(err)
			}
			printable := map[string]string(settings)
			if !showSecrets {
				printable = logging.RedactSettings(printable)
			}
			if len(args) == 1 {
				value, ok := printable[args[0]]
				if !ok {
					return Exitf(ExitCodeFailure, "setting %q is not set", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), printable)
			}

			keys := make([]string, 0, len(printable))
			for key := range printable {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				rows = append(rows, []string{key, orEmpty(printable[key])})
			}
			return writeTable(cmd.OutOrStdout(), []string{"KEY", "VALUE"}, rows)
		},
	}
	get.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	get.Flags().BoolVar(&showSecrets, "show-secrets", false, "print secret values as stored")

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if key == "" {
				return usageError(cmd, "setting key is required")
			}
			result, err := a.client.SaveSetting(cmd.Context(), key, args[1])
			if err != nil {
				return commandError(err)
			}
			a.logger.Info().Str("key", key).Msg("setting saved")
			printMessage(cmd, result, "Saved "+key)
			return nil
		},
	}

	apply := &cobra.Command{
		Use:   "apply",
		Short: "Make the server reload its settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.client.ApplySettings(cmd.Context())
			if err != nil {
				return commandError(err)
			}
			printMessage(cmd, result, "Settings applied")
			return nil
		},
	}

	var test api.TelegramTest
	testTelegram := &cobra.Command{
		Use:   "test-telegram",
		Short: "Send a Telegram test notification",
		Long:  "Send a Telegram test notification. Credentials default to the stored settings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("token") || !flags.Changed("chat-id") || !flags.Changed("proxy") {
				settings, err := a.client.GetSettings(cmd.Context())
				if err != nil {
					return commandError(err)
				}
				if !flags.Changed("token") {
					test.Token = settings[models.SettingTelegramToken]
				}
				if !flags.Changed("chat-id") {
					test.ChatID = settings[models.SettingTelegramChatID]
				}
				if !flags.Changed("proxy") {
					test.Proxy = settings[models.SettingTelegramProxy]
				}
			}
			if strings.TrimSpace(test.Token) == "" || strings.TrimSpace(test.ChatID) == "" {
				return usageError(cmd, "a bot token and chat id are required")
			}

			result, err := a.client.TestTelegram(cmd.Context(), test)
			if err != nil {
				return commandError(err)
			}
			printMessage(cmd, result, "Test message sent")
			return nil
		},
	}
	testTelegram.Flags().StringVar(&test.Token, "token", "", "bot token")
	testTelegram.Flags().StringVar(&test.ChatID, "chat-id", "", "chat id")
	testTelegram.Flags().StringVar(&test.Proxy, "proxy", "", "proxy URL")

	cmd.AddCommand(get, set, apply, testTelegram)
	return cmd
}

// printMessage prints the server's acknowledgement, or fallback when it sent
// none.
func printMessage(cmd *cobra.Command, result models.MessageResult, fallback string) {
	message := strings.TrimSpace(result.Message)
	if message == "" {
		message = fallback
	}
	fmt.Fprintln(cmd.OutOrStdout(), logging.Redact(message))
}
