// Package calendar stores community events and lays them out on month grids.
package calendar

import (
	"sort"
	"time"

	"github.com/cppla/cohort/models"
)

const dateKeyLayout = "2006-01-02"

// Day is one cell of a month grid.
type Day struct {
	Date    time.Time      `json:"date"`
	Key     string         `json:"key"`
	InMonth bool           `json:"inMonth"`
	Events  []models.Event `json:"events"`
}

// Month is a Sunday-first grid of whole weeks covering one month.
type Month struct {
	Year  int      `json:"year"`
	Month int      `json:"month"`
	Weeks [][7]Day `json:"weeks"`
}

// DateKey buckets t by its calendar date in loc.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(dateKeyLayout)
}

// GridBounds returns the first visible day and the day after the last visible day of a month grid.
func GridBounds(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	last := first.AddDate(0, 1, -1)
	end := last.AddDate(0, 0, 7-int(last.Weekday()))
	return start, end
}

// MonthGrid builds the grid for year/month in loc. Events are bucketed by the local date of their
// start time and sorted by start time within a day; events outside the grid are dropped.
func MonthGrid(year int, month time.Month, loc *time.Location, events []models.Event) Month {
	if loc == nil {
		loc = time.UTC
	}
	byDate := make(map[string][]models.Event)
	for _, ev := range events {
		k := DateKey(ev.StartTime, loc)
		byDate[k] = append(byDate[k], ev)
	}
	for k := range byDate {
		evs := byDate[k]
		sort.SliceStable(evs, func(i, j int) bool { return evs[i].StartTime.Before(evs[j].StartTime) })
	}

	start, end := GridBounds(year, month, loc)
	out := Month{Year: year, Month: int(month)}
	var week [7]Day
	i := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		k := d.Format(dateKeyLayout)
		evs := byDate[k]
		if evs == nil {
			evs = []models.Event{}
		}
		week[i] = Day{Date: d, Key: k, InMonth: d.Month() == month, Events: evs}
		i++
		if i == 7 {
			out.Weeks = append(out.Weeks, week)
			week = [7]Day{}
			i = 0
		}
	}
	return out
}
