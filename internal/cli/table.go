package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/tOgg1/scriptdeck/internal/models"
	"github.com/tOgg1/scriptdeck/internal/view"
)

const (
	tablePadding   = 2
	maxNameColumn  = 32
	maxPathColumn  = 40
	emptyCellValue = "-"
)

var scriptHeaders = []string{"ID", "NAME", "STATUS", "KIND", "SCHEDULE", "ENABLED", "LAST RUN", "ELAPSED", "PATH"}

// writeTable writes rows as space-aligned columns. Widths are measured in
// display cells so wide runes line up.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	colCount := len(headers)
	for _, row := range rows {
		colCount = max(colCount, len(row))
	}
	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)
	measure := func(row []string) {
		for idx, cell := range row {
			widths[idx] = max(widths[idx], runewidth.StringWidth(stripANSI(cell)))
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}

	writer := bufio.NewWriter(out)
	writeRow := func(row []string) {
		for idx := 0; idx < colCount; idx++ {
			cell := ""
			if idx < len(row) {
				cell = row[idx]
			}
			writer.WriteString(cell)
			if idx < colCount-1 {
				padding := max(0, widths[idx]-runewidth.StringWidth(stripANSI(cell)))
				writer.WriteString(strings.Repeat(" ", padding+tablePadding))
			}
		}
		writer.WriteString("\n")
	}

	if len(headers) > 0 {
		writeRow(headers)
	}
	for _, row := range rows {
		writeRow(row)
	}
	return writer.Flush()
}

func scriptRows(scripts []models.Script, now time.Time) [][]string {
	rows := make([][]string, 0, len(scripts))
	for _, script := range scripts {
		rows = append(rows, []string{
			strconv.FormatInt(script.ID, 10),
			runewidth.Truncate(script.Name, maxNameColumn, "..."),
			script.StatusLabel(),
			string(script.Kind()),
			script.ScheduleLabel(),
			formatYesNo(script.Enabled),
			view.LastRunLabel(script, now),
			orEmpty(view.ElapsedLabel(script, now)),
			runewidth.Truncate(script.Path, maxPathColumn, "..."),
		})
	}
	return rows
}

// writeScriptDetail prints one script as aligned key/value lines.
func writeScriptDetail(out io.Writer, script models.Script, now time.Time) error {
	rows := [][]string{
		{"id", strconv.FormatInt(script.ID, 10)},
		{"name", script.Name},
		{"path", script.Path},
		{"kind", string(script.Kind())},
		{"status", script.StatusLabel()},
		{"schedule", script.ScheduleLabel()},
		{"enabled", formatYesNo(script.Enabled)},
		{"run on startup", formatYesNo(script.RunOnStartup)},
		{"arguments", orEmpty(script.Arguments)},
		{"last run", view.LastRunLabel(script, now)},
	}
	if elapsed := view.ElapsedLabel(script, now); elapsed != "" {
		rows = append(rows, []string{"elapsed", elapsed})
	}
	if script.Description != nil && strings.TrimSpace(*script.Description) != "" {
		rows = append(rows, []string{"description", *script.Description})
	}
	if err := writeTable(out, nil, rows); err != nil {
		return err
	}
	if script.LastOutput != nil && strings.TrimSpace(*script.LastOutput) != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "last output:")
		fmt.Fprintln(out, strings.TrimRight(stripANSI(*script.LastOutput), "\n"))
	}
	return nil
}

func writeJSON(out io.Writer, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return Exitf(ExitCodeFailure, "encode output: %v", err)
	}
	_, err = fmt.Fprintln(out, string(payload))
	return err
}

func formatYesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func orEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return emptyCellValue
	}
	return value
}

func stripANSI(value string) string {
	if !strings.Contains(value, "\x1b[") {
		return value
	}
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		if value[i] != 0x1b || i+1 >= len(value) || value[i+1] != '[' {
			b.WriteByte(value[i])
			continue
		}
		for i += 2; i < len(value); i++ {
			if ch := value[i]; ch >= 0x40 && ch <= 0x7e {
				break
			}
		}
	}
	return b.String()
}
