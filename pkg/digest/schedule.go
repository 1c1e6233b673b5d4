package digest

import (
	"fmt"
	"time"

	"github.com/poolfi/notifier/pkg/preference"
)

// Schedule describes when a user's digests flush. It is derived from the
// user's email preferences; digest cadence is configured there for all
// channels.
type Schedule struct {
	Frequency preference.DigestFrequency
	Hour      int
	Minute    int
	Days      []time.Weekday // weekly frequency only; empty means Monday
}

// FromPreferences builds a Schedule from email preferences. A malformed
// digest time surfaces preference.ErrConfigInvalid.
func FromPreferences(p preference.EmailPreferences) (Schedule, error) {
	hour, minute, err := preference.ParseTimeOfDay(p.DigestTime)
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{
		Frequency: p.DigestFrequency,
		Hour:      hour,
		Minute:    minute,
		Days:      p.DigestDays,
	}, nil
}

// PrevFlush returns the most recent scheduled flush time at or before now.
// ok is false when the schedule never flushes (immediate frequency).
func (s Schedule) PrevFlush(now time.Time) (flushAt time.Time, ok bool) {
	switch s.Frequency {
	case preference.DigestDaily:
		at := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, now.Location())
		if at.After(now) {
			at = at.AddDate(0, 0, -1)
		}
		return at, true

	case preference.DigestWeekly:
		days := s.Days
		if len(days) == 0 {
			days = []time.Weekday{time.Monday}
		}
		var best time.Time
		for _, day := range days {
			// Walk back to the most recent occurrence of this weekday.
			daysBack := (int(now.Weekday()) - int(day) + 7) % 7
			at := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, now.Location())
			at = at.AddDate(0, 0, -daysBack)
			if at.After(now) {
				at = at.AddDate(0, 0, -7)
			}
			if at.After(best) {
				best = at
			}
		}
		return best, true

	default:
		return time.Time{}, false
	}
}

// PeriodKey derives the idempotency key for the digest period containing the
// given flush time: the date for daily digests, ISO week plus day for weekly.
func (s Schedule) PeriodKey(flushAt time.Time) string {
	if s.Frequency == preference.DigestWeekly {
		year, week := flushAt.ISOWeek()
		return fmt.Sprintf("%04d-W%02d-%d", year, week, int(flushAt.Weekday()))
	}
	return flushAt.Format("2006-01-02")
}
