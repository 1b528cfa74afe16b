package domain

// GoodDayThreshold is the percentage at or above which a day counts as completed.
const GoodDayThreshold = 80

type DailyStats struct {
	Date            string `json:"date"`
	TotalHabits     int    `json:"totalHabits"`
	CompletedHabits int    `json:"completedHabits"`
	TotalPoints     int    `json:"totalPoints"`
	EarnedPoints    int    `json:"earnedPoints"`
	Percentage      int    `json:"percentage"`
}

// MonthlyChart holds one DailyStats per date of a YYYY-MM month, ordered by
// date, plus a summary recomputed from all of them.
type MonthlyChart struct {
	Month              string       `json:"month"`
	Days               []DailyStats `json:"days"`
	AveragePerformance int          `json:"averagePerformance"`
	BestDay            string       `json:"bestDay,omitempty"`
	WorstDay           string       `json:"worstDay,omitempty"`
	CompletedDays      int          `json:"completedDays"`
}

func NewMonthlyChart(month string) *MonthlyChart {
	return &MonthlyChart{
		Month: month,
		Days:  []DailyStats{},
	}
}

// Day returns the stats recorded for date, if any.
func (c *MonthlyChart) Day(date string) (DailyStats, bool) {
	for _, d := range c.Days {
		if d.Date == date {
			return d, true
		}
	}
	return DailyStats{}, false
}

// RangeSummary aggregates activity between two dates, both inclusive.
type RangeSummary struct {
	From               string  `json:"from"`
	To                 string  `json:"to"`
	Days               int     `json:"days"`
	CompletedHabits    int     `json:"completedHabits"`
	JustifiedHabits    int     `json:"justifiedHabits"`
	MissedHabits       int     `json:"missedHabits"`
	AveragePerformance int     `json:"averagePerformance"`
	JournalEntries     int     `json:"journalEntries"`
	StudyMinutes       int     `json:"studyMinutes"`
	Income             float64 `json:"income"`
	Expenses           float64 `json:"expenses"`
	Balance            float64 `json:"balance"`
}
