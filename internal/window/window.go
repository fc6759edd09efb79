// Package window turns coarse time-range presets into concrete query windows.
package window

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/TobiSchelling/ExamBrief/internal/model"
)

// ErrMissingFrom is returned by ParseBounds when only an end date is given.
var ErrMissingFrom = errors.New("custom range needs a from date")

// Preset is a coarse time-range selector.
type Preset string

const (
	Last24Hours Preset = "24h"
	LastWeek    Preset = "week"
	LastMonth   Preset = "month"
	Custom      Preset = "custom"
)

// Bounds are caller-supplied limits for the custom preset.
type Bounds struct {
	From time.Time
	To   time.Time
}

// ParseBounds parses user-supplied custom range bounds in loc.
// Both empty yields nil, which Resolve treats as the week preset.
// An empty to means now.
func ParseBounds(from, to string, now time.Time, loc *time.Location) (*Bounds, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return nil, nil
	}
	if from == "" {
		return nil, ErrMissingFrom
	}
	b := &Bounds{To: now}
	var err error
	if b.From, err = dateparse.ParseIn(from, loc); err != nil {
		return nil, fmt.Errorf("invalid from date %q: %w", from, err)
	}
	if to != "" {
		if b.To, err = dateparse.ParseIn(to, loc); err != nil {
			return nil, fmt.Errorf("invalid to date %q: %w", to, err)
		}
	}
	return b, nil
}

// ParsePreset maps user input onto a Preset. Unknown values become LastWeek.
func ParsePreset(s string) Preset {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "24h", "day", "1d":
		return Last24Hours
	case "month", "30d":
		return LastMonth
	case "custom":
		return Custom
	default:
		return LastWeek
	}
}

// Resolve computes the window for a preset relative to now.
// The result always satisfies From <= To <= now.
//
// The month preset is day-granular: From is pinned to the start of its day and To
// to the end of today, then clamped to now. The other presets are instant-based.
func Resolve(preset Preset, custom *Bounds, now time.Time) model.Window {
	switch preset {
	case Last24Hours:
		return model.Window{From: now.Add(-24 * time.Hour), To: now}
	case LastMonth:
		from := startOfDay(now.AddDate(0, 0, -30))
		to := clamp(endOfDay(now), now)
		return model.Window{From: from, To: to}
	case Custom:
		if custom == nil {
			return Resolve(LastWeek, nil, now)
		}
		from := clamp(custom.From, now)
		to := clamp(custom.To, now)
		if from.After(to) {
			from, to = to, from
		}
		return model.Window{From: from, To: to}
	default:
		return model.Window{From: now.AddDate(0, 0, -7), To: now}
	}
}

func clamp(t, now time.Time) time.Time {
	if t.After(now) {
		return now
	}
	return t
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}
