package adherence

import (
	"sort"
	"time"
)

// DefaultUpcomingLimit is the number of pending doses shown as reminders.
const DefaultUpcomingLimit = 5

const dayLayout = "2006-01-02"

// DailyCount is the expected and taken dose count for one calendar day.
type DailyCount struct {
	Day      string `json:"day"`
	Expected int    `json:"expected"`
	Taken    int    `json:"taken"`
}

type Summary struct {
	Rate     int          `json:"rate"`
	Total    int          `json:"total"`
	Taken    int          `json:"taken"`
	Missed   int          `json:"missed"`
	Pending  int          `json:"pending"`
	Daily    []DailyCount `json:"daily"`
	Upcoming []Event      `json:"upcoming"`
}

// Rate returns the share of terminal doses that were taken, as a percentage
// rounded half up. Pending doses are excluded. With no terminal doses the
// rate is 0.
func Rate(events []Event) int {
	var taken, missed int
	for _, e := range events {
		switch e.Status {
		case StatusTaken:
			taken++
		case StatusMissed:
			missed++
		}
	}
	n := taken + missed
	if n == 0 {
		return 0
	}
	return (200*taken + n) / (2 * n)
}

// DailyTrend groups events by the calendar day of their scheduled time in loc
// and returns the days in ascending order. A nil loc means UTC.
func DailyTrend(events []Event, loc *time.Location) []DailyCount {
	if loc == nil {
		loc = time.UTC
	}
	byDay := make(map[string]*DailyCount)
	for _, e := range events {
		day := e.ScheduledTime.In(loc).Format(dayLayout)
		dc, ok := byDay[day]
		if !ok {
			dc = &DailyCount{Day: day}
			byDay[day] = dc
		}
		dc.Expected++
		if e.Status == StatusTaken {
			dc.Taken++
		}
	}

	out := make([]DailyCount, 0, len(byDay))
	for _, dc := range byDay {
		out = append(out, *dc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}

// Upcoming returns the first limit Pending events in input order.
func Upcoming(events []Event, limit int) []Event {
	out := []Event{}
	for _, e := range events {
		if len(out) >= limit {
			break
		}
		if e.Status == StatusPending {
			out = append(out, e)
		}
	}
	return out
}

func Summarize(events []Event, loc *time.Location) Summary {
	s := Summary{
		Rate:     Rate(events),
		Total:    len(events),
		Daily:    DailyTrend(events, loc),
		Upcoming: Upcoming(events, DefaultUpcomingLimit),
	}
	for _, e := range events {
		switch e.Status {
		case StatusTaken:
			s.Taken++
		case StatusMissed:
			s.Missed++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}
