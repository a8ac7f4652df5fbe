package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/mindwell-app/mindwell-server/cmd/models"
	"github.com/mindwell-app/mindwell-server/cmd/utils"
)

// parseClock parses an "HH:MM" wall-clock string.
func parseClock(s string) (int, int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	return h, m, nil
}

// GenerateSlots computes the free start times for one UTC calendar date.
// Pure function of its inputs: rules whose day-of-week matches the date are
// walked from start to end in slotDuration steps; a rule whose end is earlier
// than its start crosses midnight, so the end boundary extends into the next
// day. Starts that collide with an already-booked start or are not strictly
// in the future are dropped. Output is ascending and deterministic.
func GenerateSlots(rules []models.AvailabilityRule, slotDuration int, date time.Time, booked []time.Time, now time.Time) []time.Time {
	if slotDuration <= 0 {
		return nil
	}

	date = date.UTC()
	weekday := int(date.Weekday())
	dur := time.Duration(slotDuration) * time.Minute

	bookedSet := make(map[int64]bool, len(booked))
	for _, b := range booked {
		bookedSet[b.Unix()] = true
	}

	var slots []time.Time
	for _, rule := range rules {
		if rule.DayOfWeek != weekday {
			continue
		}

		sh, sm, err := parseClock(rule.StartTime)
		if err != nil {
			continue
		}
		eh, em, err := parseClock(rule.EndTime)
		if err != nil {
			continue
		}

		start := time.Date(date.Year(), date.Month(), date.Day(), sh, sm, 0, 0, time.UTC)
		end := time.Date(date.Year(), date.Month(), date.Day(), eh, em, 0, 0, time.UTC)
		if !end.After(start) {
			// Window crosses midnight.
			end = end.Add(24 * time.Hour)
		}

		for t := start; !t.Add(dur).After(end); t = t.Add(dur) {
			if bookedSet[t.Unix()] {
				continue
			}
			if !t.After(now) {
				continue
			}
			slots = append(slots, t)
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}

// ValidateRules rejects malformed day/time values and overlapping windows on
// the same weekday, so the generator never emits duplicate start times.
func ValidateRules(rules []models.AvailabilityRule) error {
	type window struct {
		day        int
		start, end int // minutes; end may exceed 24h for midnight-crossing rules
	}

	windows := make([]window, 0, len(rules))
	for _, rule := range rules {
		if rule.DayOfWeek < 0 || rule.DayOfWeek > 6 {
			return fmt.Errorf("%w: day_of_week must be between 0 and 6", utils.ErrValidation)
		}
		sh, sm, err := parseClock(rule.StartTime)
		if err != nil {
			return fmt.Errorf("%w: %v", utils.ErrValidation, err)
		}
		eh, em, err := parseClock(rule.EndTime)
		if err != nil {
			return fmt.Errorf("%w: %v", utils.ErrValidation, err)
		}

		start := sh*60 + sm
		end := eh*60 + em
		if end <= start {
			end += 24 * 60
		}
		windows = append(windows, window{day: rule.DayOfWeek, start: start, end: end})
	}

	for i := range windows {
		for j := i + 1; j < len(windows); j++ {
			if windows[i].day != windows[j].day {
				continue
			}
			if windows[i].start < windows[j].end && windows[i].end > windows[j].start {
				return fmt.Errorf("%w: availability rules overlap on day %d", utils.ErrValidation, windows[i].day)
			}
		}
	}
	return nil
}
