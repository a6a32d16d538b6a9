package subscriptions

import (
	"fmt"
	"strings"
	"time"

	"github.com/sportsarena/membership-backend/pkg/enums"
)

// DateLayout is the calendar-date wire format used for start and end dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD value as midnight UTC.
func ParseDate(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", value, DateLayout)
	}
	return parsed, nil
}

// EndDate computes the last day of an access window.
//
// An explicit month count from the plan covers exactly that many calendar
// months, so the window ends the day before the same date N months later.
// Without one, the window ends on the same date one plan-type duration later.
// Both paths let a missing day overflow into the next month, the same way
// AddDate does: Jan 31 plus one month is Mar 3 (Mar 2 in a leap year).
func EndDate(start time.Time, planType enums.PlanType, explicitMonths *int) time.Time {
	start = truncateDay(start)
	if explicitMonths != nil && *explicitMonths > 0 {
		return start.AddDate(0, *explicitMonths, 0).AddDate(0, 0, -1)
	}
	return start.AddDate(0, planType.Months(), 0)
}

// NextStart proposes the start date of the window following end.
func NextStart(end time.Time) time.Time {
	return truncateDay(end).AddDate(0, 0, 1)
}

// Today returns now's calendar date as midnight UTC.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
