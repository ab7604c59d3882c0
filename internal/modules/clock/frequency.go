// Package clock derives the ordered event dates of a simulation run.
package clock

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// CronPrefix introduces a custom five-field cron expression, e.g.
// "cron:0 0 15 * *" for the 15th of every month.
const CronPrefix = "cron:"

type frequencyKind int

const (
	kindNever frequencyKind = iota
	kindDaily
	kindMonths
	kindCron
)

// Frequency is a parsed schedule setting.
type Frequency struct {
	name     string
	kind     frequencyKind
	months   int
	schedule cron.Schedule
}

var namedMonths = map[string]int{
	"monthly":   1,
	"bimonthly": 2,
	"quarterly": 3,
	"yearly":    12,
	"annually":  12,
}

// ParseFrequency parses never, daily, monthly, bimonthly (every other
// month), quarterly, yearly or "cron:<expr>". Cron expressions are evaluated
// in UTC unless they carry their own CRON_TZ.
func ParseFrequency(s string) (Frequency, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch {
	case name == "" || name == "never" || name == "none":
		return Frequency{name: "never", kind: kindNever}, nil
	case name == "daily":
		return Frequency{name: name, kind: kindDaily}, nil
	case strings.HasPrefix(name, CronPrefix):
		expr := strings.TrimSpace(strings.TrimSpace(s)[len(CronPrefix):])
		if !strings.HasPrefix(expr, "CRON_TZ=") && !strings.HasPrefix(expr, "TZ=") {
			expr = "CRON_TZ=UTC " + expr
		}
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return Frequency{}, fmt.Errorf("invalid cron frequency %q: %w", s, err)
		}
		return Frequency{name: strings.TrimSpace(s), kind: kindCron, schedule: sched}, nil
	}

	if months, ok := namedMonths[name]; ok {
		return Frequency{name: name, kind: kindMonths, months: months}, nil
	}
	return Frequency{}, fmt.Errorf("unknown frequency %q", s)
}

// MustParseFrequency is ParseFrequency for constants; it panics on error.
func MustParseFrequency(s string) Frequency {
	f, err := ParseFrequency(s)
	if err != nil {
		panic(err)
	}
	return f
}

func (f Frequency) String() string {
	if f.name == "" {
		return "never"
	}
	return f.name
}

// IsNever reports a disabled schedule.
func (f Frequency) IsNever() bool { return f.kind == kindNever }

// IsDaily reports an every-trading-day schedule.
func (f Frequency) IsDaily() bool { return f.kind == kindDaily }

// IsCron reports a cron-based schedule.
func (f Frequency) IsCron() bool { return f.kind == kindCron }

// Months is the period length of calendar frequencies, 0 otherwise.
func (f Frequency) Months() int { return f.months }

// period is the index of the calendar period containing d.
func (f Frequency) period(d time.Time) int {
	return d.Year()*(12/f.months) + (int(d.Month())-1)/f.months
}
