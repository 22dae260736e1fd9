// Package view derives what the console shows from the local collection.
// Everything here is pure: inputs are never mutated and equal inputs always
// produce equal outputs.
package view

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/tOgg1/scriptdeck/internal/models"
)

// Options holds the operator's filter and sort choices.
type Options struct {
	Query   string
	Kind    models.Kind
	Status  models.StatusFilter
	Enabled models.EnabledFilter
	SortKey models.SortKey
	Order   models.SortOrder

	// Locale drives name collation. The zero value collates root order.
	Locale language.Tag
}

// DefaultOptions shows everything sorted by name ascending.
func DefaultOptions() Options {
	return Options{
		Kind:    models.KindAll,
		Status:  models.StatusFilterAll,
		Enabled: models.EnabledFilterAll,
		SortKey: models.SortByName,
		Order:   models.SortAsc,
	}
}

// Active reports whether any filter narrows the collection.
func (o Options) Active() bool {
	return strings.TrimSpace(o.Query) != "" ||
		(o.Kind != "" && o.Kind != models.KindAll) ||
		(o.Status != "" && o.Status != models.StatusFilterAll) ||
		(o.Enabled != "" && o.Enabled != models.EnabledFilterAll)
}

// Project filters and orders scripts for display.
//
// Filters apply in order: name substring (case-insensitive), kind, status,
// enabled. Running scripts always sort first; the chosen key orders the rest
// and the direction only reverses that key. Ties break on ascending id.
func Project(scripts []models.Script, opts Options) []models.Script {
	out := make([]models.Script, 0, len(scripts))
	query := strings.ToLower(strings.TrimSpace(opts.Query))
	for _, script := range scripts {
		if !matches(script, query, opts) {
			continue
		}
		out = append(out, script.Clone())
	}

	secondary := comparator(opts)
	desc := opts.Order == models.SortDesc
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ar, br := a.IsRunning(), b.IsRunning(); ar != br {
			return ar
		}
		if c := secondary(a, b); c != 0 {
			if desc {
				return c > 0
			}
			return c < 0
		}
		return a.ID < b.ID
	})
	return out
}

func matches(script models.Script, query string, opts Options) bool {
	if query != "" && !strings.Contains(strings.ToLower(script.Name), query) {
		return false
	}
	if opts.Kind != "" && opts.Kind != models.KindAll && script.Kind() != opts.Kind {
		return false
	}
	switch opts.Status {
	case "", models.StatusFilterAll:
	case models.StatusFilterUnset:
		if script.LastStatus != nil {
			return false
		}
	default:
		if script.LastStatus == nil || string(*script.LastStatus) != string(opts.Status) {
			return false
		}
	}
	switch opts.Enabled {
	case models.EnabledFilterEnabled:
		return script.Enabled
	case models.EnabledFilterDisabled:
		return !script.Enabled
	}
	return true
}

func comparator(opts Options) func(a, b models.Script) int {
	switch opts.SortKey {
	case models.SortByLastRun:
		return func(a, b models.Script) int {
			return lastRunOf(a).Compare(lastRunOf(b))
		}
	case models.SortByStatus:
		return func(a, b models.Script) int {
			return StatusRank(a.LastStatus) - StatusRank(b.LastStatus)
		}
	default:
		col := collate.New(opts.Locale)
		return func(a, b models.Script) int {
			return col.CompareString(a.Name, b.Name)
		}
	}
}

var epoch = time.Unix(0, 0)

func lastRunOf(s models.Script) time.Time {
	if s.LastRun == nil || s.LastRun.IsZero() {
		return epoch
	}
	return s.LastRun.Time
}

// StatusRank orders statuses running < success < failed < stopped < unset.
// Statuses the console does not know sort just before unset.
func StatusRank(status *models.Status) int {
	if status == nil {
		return 5
	}
	switch *status {
	case models.StatusRunning:
		return 0
	case models.StatusSuccess:
		return 1
	case models.StatusFailed:
		return 2
	case models.StatusStopped:
		return 3
	default:
		return 4
	}
}

// Dashboard orders tiles running first, then by name.
func Dashboard(scripts []models.Script) []models.Script {
	return Project(scripts, DefaultOptions())
}

// Counts are the header counters.
type Counts struct {
	Total    int
	Running  int
	Failed   int
	Success  int
	Stopped  int
	Unset    int
	Enabled  int
	Disabled int
}

// Stats counts scripts by status and enabled flag.
func Stats(scripts []models.Script) Counts {
	var stats Counts
	for _, script := range scripts {
		stats.Total++
		if script.Enabled {
			stats.Enabled++
		} else {
			stats.Disabled++
		}
		if script.LastStatus == nil {
			stats.Unset++
			continue
		}
		switch *script.LastStatus {
		case models.StatusRunning:
			stats.Running++
		case models.StatusFailed:
			stats.Failed++
		case models.StatusSuccess:
			stats.Success++
		case models.StatusStopped:
			stats.Stopped++
		}
	}
	return stats
}

// IDs returns the ids of scripts in display order.
func IDs(scripts []models.Script) []int64 {
	ids := make([]int64, len(scripts))
	for i, script := range scripts {
		ids[i] = script.ID
	}
	return ids
}
