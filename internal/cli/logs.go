package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/scriptdeck/internal/api"
	"github.com/tOgg1/scriptdeck/internal/engine"
	"github.com/tOgg1/scriptdeck/internal/events"
	"github.com/tOgg1/scriptdeck/internal/models"
)

func newLogsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logs <id>",
		Short: "Stream a script's live output",
		Long:  "Stream a script's live output until the server closes the stream or you press Ctrl+C.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(cmd, args[0])
			if err != nil {
				return err
			}
			return a.streamLogs(cmd.Context(), cmd.OutOrStdout(), id)
		},
	}
}

// streamLogs copies frames to out. Interruption and a normal close from the
// server both end the command successfully.
func (a *app) streamLogs(ctx context.Context, out io.Writer, id int64) error {
	conn, err := a.client.DialLogStream(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return commandError(err)
	}
	defer conn.Close()

	a.logger.Debug().Int64("script_id", id).Msg("log stream open")
	for {
		text, err := conn.ReadText(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil, api.IsNormalClosure(err):
				return nil
			default:
				fmt.Fprint(out, engine.LogErrorMarker)
				return Exitf(ExitCodeUnreachable, "log stream for #%d failed: %v", id, err)
			}
		}
		if _, err := io.WriteString(out, text); err != nil {
			return err
		}
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var jsonl bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the server and print collection changes",
		Long: "Poll the server at sync.poll_interval and print one line per engine\n" +
			"event (snapshot applied, fetch failed) until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.watch(cmd.Context(), cmd.OutOrStdout(), jsonl)
		},
	}
	cmd.Flags().BoolVar(&jsonl, "jsonl", false, "output one JSON event per line")
	return cmd
}

func (a *app) watch(ctx context.Context, out io.Writer, jsonl bool) error {
	eng := a.newEngine()
	ch, cancel, err := eng.Publisher.SubscribeChan("cli-watch", events.Filter{
		EventTypes: []models.EventType{models.EventTypeSnapshotApplied, models.EventTypeFetchFailed},
	}, 64)
	if err != nil {
		return Exitf(ExitCodeFailure, "subscribe: %v", err)
	}
	defer cancel()

	if err := eng.Fetcher.Start(ctx); err != nil && !errors.Is(err, engine.ErrFetcherAlreadyRunning) {
		return Exitf(ExitCodeFailure, "start polling: %v", err)
	}
	defer eng.Close()

	encoder := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-ch:
			if jsonl {
				if err := encoder.Encode(event); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintln(out, formatEvent(event, eng))
		}
	}
}

func formatEvent(event *models.Event, eng *engine.Engine) string {
	stamp := event.Timestamp
	if stamp.IsZero() {
		stamp = time.Now()
	}
	line := fmt.Sprintf("%s  %-16s", stamp.Local().Format("15:04:05"), event.Type)
	switch event.Type {
	case models.EventTypeSnapshotApplied:
		scripts := eng.Store.Snapshot()
		running := 0
		for _, script := range scripts {
			if script.IsRunning() {
				running++
			}
		}
		line += fmt.Sprintf("  scripts:%d running:%d", len(scripts), running)
	default:
		if event.Message != "" {
			line += "  " + event.Message
		}
	}
	return line
}
