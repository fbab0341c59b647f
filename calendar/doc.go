// Package calendar implements the custom retail week calendar.
//
// The calendar is year-bounded and is not ISO-8601. Week 1 of a year runs from
// January 1st to the first Sunday on or after it (so it can be a single day),
// and every following week is a Monday to Sunday block. The last week of a year
// is cut at December 31st. Weeks never cross a year boundary.
//
// # Building a grid
//
//	weeks := calendar.WeeksInRange(start, end)
//	for _, w := range weeks {
//	    fmt.Printf("%d-W%02d %s..%s (%d days)\n",
//	        w.Year, w.Number, w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"), w.Days)
//	}
//
// Week numbers are anchored to January 1st, so a date carries the same week
// number whatever range it was requested in. A range that starts mid-week
// yields a clipped first week.
//
// # Mapping back
//
//	start := calendar.WeekStartDate(2024, 2)  // 2024-01-08
//	w := calendar.WeekContaining(time.Now())
//
// WeekStartDate is the inverse of the full-year grid: for every date d,
// WeekStartDate(d.Year(), WeekContaining(d).Number) equals WeekContaining(d).Start.
//
// All dates are normalised to midnight UTC.
package calendar
