package exogenous

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/fr"
)

type monthDay struct {
	month time.Month
	day   int
}

func (md monthDay) before(o monthDay) bool {
	if md.month != o.month {
		return md.month < o.month
	}
	return md.day < o.day
}

// School holiday periods, inclusive. A period whose end precedes its start
// wraps into the next year.
var vacations = [][2]monthDay{
	{{time.February, 18}, {time.March, 6}},
	{{time.April, 15}, {time.May, 2}},
	{{time.July, 1}, {time.August, 31}},
	{{time.October, 21}, {time.November, 6}},
	{{time.December, 23}, {time.January, 8}},
}

var holidays = func() *cal.BusinessCalendar {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(fr.Holidays...)
	return c
}()

// IsVacation reports whether d falls in a school holiday period.
func IsVacation(d time.Time) bool {
	md := monthDay{d.Month(), d.Day()}
	for _, v := range vacations {
		start, end := v[0], v[1]
		if end.before(start) {
			if !md.before(start) || !end.before(md) {
				return true
			}
			continue
		}
		if !md.before(start) && !end.before(md) {
			return true
		}
	}
	return false
}

// IsPublicHoliday reports whether d is a French public holiday.
func IsPublicHoliday(d time.Time) bool {
	actual, _, _ := holidays.IsHoliday(d)
	return actual
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
