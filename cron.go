package worker

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronBounds holds the valid value range per field:
// minute hour day-of-month month day-of-week.
var cronBounds = [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 7}}

// validateCron checks a standard 5-field cron expression. Fields support
// *, exact numbers, comma lists, N-M ranges, and */N steps.
func validateCron(expr string) error {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return fmt.Errorf("cron %q: expected 5 fields, got %d", expr, len(fields))
	}
	for i, field := range fields {
		if err := validateCronField(field, cronBounds[i][0], cronBounds[i][1]); err != nil {
			return fmt.Errorf("cron %q: %w", expr, err)
		}
	}
	return nil
}

func validateCronField(field string, lo, hi int) error {
	if field == "*" {
		return nil
	}
	if rest, ok := strings.CutPrefix(field, "*/"); ok {
		step, err := strconv.Atoi(rest)
		if err != nil || step <= 0 {
			return fmt.Errorf("bad step %q", field)
		}
		return nil
	}
	for _, part := range strings.Split(field, ",") {
		if low, high, ok := strings.Cut(part, "-"); ok {
			a, err1 := strconv.Atoi(low)
			b, err2 := strconv.Atoi(high)
			if err1 != nil || err2 != nil || a > b || a < lo || b > hi {
				return fmt.Errorf("bad range %q", part)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < lo || n > hi {
			return fmt.Errorf("bad value %q", part)
		}
	}
	return nil
}

// CronMatches reports whether the expression matches the given time.
// Day-of-week treats both 0 and 7 as Sunday.
func CronMatches(expr string, t time.Time) bool {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false
	}
	values := []int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	for i, field := range fields {
		v := values[i]
		if i == 4 && v == 0 && cronFieldMatches(field, 7) {
			continue
		}
		if !cronFieldMatches(field, v) {
			return false
		}
	}
	return true
}

func cronFieldMatches(field string, value int) bool {
	if field == "*" {
		return true
	}
	if rest, ok := strings.CutPrefix(field, "*/"); ok {
		step, err := strconv.Atoi(rest)
		if err != nil || step <= 0 {
			return false
		}
		return value%step == 0
	}
	for _, part := range strings.Split(field, ",") {
		if low, high, ok := strings.Cut(part, "-"); ok {
			a, err1 := strconv.Atoi(low)
			b, err2 := strconv.Atoi(high)
			if err1 == nil && err2 == nil && value >= a && value <= b {
				return true
			}
			continue
		}
		if n, err := strconv.Atoi(part); err == nil && n == value {
			return true
		}
	}
	return false
}
