package view

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tOgg1/scriptdeck/internal/models"
)

// FormatElapsed renders a run duration at the two or three most significant
// units: "1d 2h 3m", "2h 3m 4s", "3m 4s", "4s".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// ElapsedLabel is the running-time label of a script, or "" when the script
// is not running or has no start time.
func ElapsedLabel(script models.Script, now time.Time) string {
	d, ok := script.Elapsed(now)
	if !ok {
		return ""
	}
	return FormatElapsed(d)
}

// LastRunLabel renders the last run relative to now, or "never".
func LastRunLabel(script models.Script, now time.Time) string {
	if script.LastRun == nil || script.LastRun.IsZero() {
		return "never"
	}
	return humanize.RelTime(script.LastRun.Time, now, "ago", "from now")
}
