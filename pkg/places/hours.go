package places

import (
	"fmt"
	"strings"
)

const (
	dayStart = "00:00"
	dayEnd   = "23:59"
)

// DayHours is one day of a weekly schedule; Day 0 is Sunday.
type DayHours struct {
	Day      int
	Open     *string
	Close    *string
	IsClosed bool
}

// WeeklySchedule expands provider periods into exactly seven days. Days with
// no period are closed. A single period without a close time means always open.
// A period without a close time closes at 23:59.
func WeeklySchedule(hours *OpeningHours) []DayHours {
	week := make([]DayHours, 7)
	for day := range week {
		week[day] = DayHours{Day: day, IsClosed: true}
	}
	if hours == nil || len(hours.Periods) == 0 {
		return week
	}

	if len(hours.Periods) == 1 && hours.Periods[0].Close == nil {
		for day := range week {
			week[day] = open(day, dayStart, dayEnd)
		}
		return week
	}

	for _, period := range hours.Periods {
		day := period.Open.Day
		if day < 0 || day > 6 {
			continue
		}
		closeAt := dayEnd
		if period.Close != nil {
			closeAt = clock(*period.Close)
		}
		week[day] = open(day, clock(period.Open), closeAt)
	}
	return week
}

func open(day int, from, to string) DayHours {
	return DayHours{Day: day, Open: &from, Close: &to}
}

func clock(t TimePoint) string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// maxQuotedReview is the length a review is cut to when used as a description.
const maxQuotedReview = 300

// Description is the editorial summary, or else the first review rated 4 or
// more, quoted and truncated.
func Description(p *Place) string {
	if s := strings.TrimSpace(p.EditorialSummary); s != "" {
		return s
	}
	for _, r := range p.Reviews {
		if r.Rating < 4 {
			continue
		}
		if r.Text == "" {
			return ""
		}
		txt := []rune(r.Text)
		if len(txt) > maxQuotedReview {
			txt = txt[:maxQuotedReview]
		}
		return `"` + string(txt) + `"...`
	}
	return ""
}
