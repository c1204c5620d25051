package services

import (
	"time"

	"github.com/pinkypartner/pinkypartner/internal/models"
)

// WindowDays is the length of an obligation generation window.
const WindowDays = 7

// WeekStart returns Sunday 00:00 of the week containing now, in loc.
func WeekStart(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	day := midnight(now.In(loc))
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// GenerateInstances builds the obligation instances of one window for the given users.
// The window covers WindowDays calendar days starting at windowStart's midnight. Weekly
// templates emit on their listed weekdays; daily templates emit every day, limited to the
// first TimesAWeek days when that is set. Days after the contract due date are skipped.
// No existing rows are consulted; callers filter duplicates.
func GenerateInstances(templates []models.Obligation, contract *models.Contract, userIDs []string, windowStart time.Time) []models.ObligationInstance {
	if contract == nil || len(templates) == 0 || len(userIDs) == 0 {
		return nil
	}

	start := midnight(windowStart)

	var last time.Time
	if contract.DueDate != nil {
		last = midnight(contract.DueDate.In(start.Location()))
	}

	var out []models.ObligationInstance
	for _, tpl := range templates {
		days := templateDays(tpl, start, last)
		for _, userID := range userIDs {
			for _, day := range days {
				out = append(out, models.ObligationInstance{
					ObligationID: tpl.ID,
					ContractID:   contract.ID,
					UserID:       userID,
					DueDate:      day,
				})
			}
		}
	}
	return out
}

func templateDays(tpl models.Obligation, start, last time.Time) []time.Time {
	limit := WindowDays
	if tpl.Repeat == models.RepeatDaily && tpl.TimesAWeek != nil && *tpl.TimesAWeek > 0 && *tpl.TimesAWeek < limit {
		limit = *tpl.TimesAWeek
	}

	var days []time.Time
	for i := 0; i < WindowDays && len(days) < limit; i++ {
		day := start.AddDate(0, 0, i)
		if !last.IsZero() && day.After(last) {
			break
		}
		switch tpl.Repeat {
		case models.RepeatDaily:
			days = append(days, day)
		case models.RepeatWeekly:
			if tpl.OnWeekday(day.Weekday()) {
				days = append(days, day)
			}
		}
	}
	return days
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
