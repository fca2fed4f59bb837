package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// searchLimitMinutes caps the forward minute-by-minute search at one year.
const searchLimitMinutes = 527040

// cronSchedule is a parsed 5-field cron expression (minute, hour,
// day-of-month, month, day-of-week). A nil field set matches any value.
// Day-of-week 7 aliases to 0 (Sunday).
type cronSchedule struct {
	minutes  map[int]bool
	hours    map[int]bool
	days     map[int]bool
	months   map[int]bool
	weekdays map[int]bool
}

// parseCron parses a 5-field cron expression. Each field supports `*`,
// comma lists, ranges and `/step` syntax.
func parseCron(expr string) (*cronSchedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, fmt.Errorf("cron expression must have 5 fields, got %d", len(parts))
	}

	minutes, err := parseField(parts[0], 0, 59, false)
	if err != nil {
		return nil, fmt.Errorf("invalid minute field %q: %w", parts[0], err)
	}
	hours, err := parseField(parts[1], 0, 23, false)
	if err != nil {
		return nil, fmt.Errorf("invalid hour field %q: %w", parts[1], err)
	}
	days, err := parseField(parts[2], 1, 31, false)
	if err != nil {
		return nil, fmt.Errorf("invalid day field %q: %w", parts[2], err)
	}
	months, err := parseField(parts[3], 1, 12, false)
	if err != nil {
		return nil, fmt.Errorf("invalid month field %q: %w", parts[3], err)
	}
	weekdays, err := parseField(parts[4], 0, 6, true)
	if err != nil {
		return nil, fmt.Errorf("invalid weekday field %q: %w", parts[4], err)
	}

	return &cronSchedule{
		minutes:  minutes,
		hours:    hours,
		days:     days,
		months:   months,
		weekdays: weekdays,
	}, nil
}

// Next returns the first minute strictly after now whose five fields all
// match, searching at most one year forward.
func (c *cronSchedule) Next(now time.Time) (time.Time, error) {
	candidate := now.Truncate(time.Minute).Add(time.Minute)
	for i := 0; i < searchLimitMinutes; i++ {
		if c.matches(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("cron expression did not match within a year")
}

func (c *cronSchedule) matches(t time.Time) bool {
	if c.minutes != nil && !c.minutes[t.Minute()] {
		return false
	}
	if c.hours != nil && !c.hours[t.Hour()] {
		return false
	}
	if c.days != nil && !c.days[t.Day()] {
		return false
	}
	if c.months != nil && !c.months[int(t.Month())] {
		return false
	}
	// time.Weekday counts Sunday as 0, matching cron convention.
	if c.weekdays != nil && !c.weekdays[int(t.Weekday())] {
		return false
	}
	return true
}

// parseField expands one cron field into its matching value set, or nil
// for `*`. For the weekday field, 7 aliases to 0.
func parseField(field string, min, max int, sundaySeven bool) (map[int]bool, error) {
	field = strings.TrimSpace(field)
	if field == "" || field == "*" {
		return nil, nil
	}

	values := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := expandPart(part, min, max, sundaySeven, values); err != nil {
			return nil, err
		}
	}

	if len(values) == 0 {
		return nil, nil
	}
	return values, nil
}

func expandPart(part string, min, max int, sundaySeven bool, values map[int]bool) error {
	step := 1
	base := part
	if idx := strings.Index(part, "/"); idx >= 0 {
		base = part[:idx]
		parsed, err := strconv.Atoi(part[idx+1:])
		if err != nil {
			return fmt.Errorf("bad step %q", part)
		}
		if parsed > 1 {
			step = parsed
		}
	}

	var start, end int
	switch {
	case base == "*":
		start, end = min, max
	case strings.Contains(base, "-"):
		bounds := strings.SplitN(base, "-", 2)
		var err error
		if start, err = strconv.Atoi(bounds[0]); err != nil {
			return fmt.Errorf("bad range %q", part)
		}
		if end, err = strconv.Atoi(bounds[1]); err != nil {
			return fmt.Errorf("bad range %q", part)
		}
	default:
		v, err := strconv.Atoi(base)
		if err != nil {
			return fmt.Errorf("bad value %q", part)
		}
		start, end = v, v
	}

	// Expand first, then alias: weekday 7 must land on Sunday even when
	// it is only reached through a stepped range.
	limit := max
	if sundaySeven {
		limit = 7
	}
	if start > end || start < min || end > limit {
		return fmt.Errorf("value out of range %q", part)
	}

	for v := start; v <= end; v += step {
		if sundaySeven && v == 7 {
			values[0] = true
			continue
		}
		values[v] = true
	}
	return nil
}
