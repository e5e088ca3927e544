package services

import (
	"fmt"
	"time"

	"github.com/rpupo63/diary-backend/models"
)

// MonthLayout is the format of the calendar's month parameter.
const MonthLayout = "2006-01"

// Month is one calendar page.
type Month struct {
	Year  int
	Month time.Month
	// Weeks run Monday to Sunday. Days outside the month are 0.
	Weeks [][7]int
	// Entries groups the month's entries by day of month.
	Entries map[int][]models.DiaryEntry
	Prev    string
	Next    string
}

// ParseMonth reads a YYYY-MM value. Anything invalid yields the month of now.
func ParseMonth(s string, now time.Time) (int, time.Month) {
	if s != "" {
		if t, err := time.Parse(MonthLayout, s); err == nil {
			return t.Year(), t.Month()
		}
	}
	return now.Year(), now.Month()
}

// MonthWeeks lays out a month as Monday-first weeks.
func MonthWeeks(year int, month time.Month) [][7]int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()
	// time.Weekday has Sunday as 0
	col := (int(first.Weekday()) + 6) % 7

	var weeks [][7]int
	var week [7]int
	for day := 1; day <= days; day++ {
		week[col] = day
		col++
		if col == 7 {
			weeks = append(weeks, week)
			week = [7]int{}
			col = 0
		}
	}
	if col > 0 {
		weeks = append(weeks, week)
	}
	return weeks
}

// BuildMonth assembles the page for year/month from that month's entries.
// Every entry of a day is kept.
func BuildMonth(year int, month time.Month, entries []models.DiaryEntry) Month {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	byDay := make(map[int][]models.DiaryEntry)
	for _, e := range entries {
		d := e.Day()
		if d.Year() != year || d.Month() != month {
			continue
		}
		byDay[d.Day()] = append(byDay[d.Day()], e)
	}
	return Month{
		Year:    year,
		Month:   month,
		Weeks:   MonthWeeks(year, month),
		Entries: byDay,
		Prev:    first.AddDate(0, -1, 0).Format(MonthLayout),
		Next:    first.AddDate(0, 1, 0).Format(MonthLayout),
	}
}

func (m Month) Title() string {
	return fmt.Sprintf("%s %d", m.Month, m.Year)
}
