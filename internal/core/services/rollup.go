package services

import (
	"math"
	"sort"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
)

// ComputeDailyStats evaluates the habits eligible on date's weekday against
// the completions recorded for that date. Only completed counts as done.
func ComputeDailyStats(agg *domain.Aggregate, date time.Time) domain.DailyStats {
	key := domain.DateKey(date)

	statusByHabit := make(map[string]domain.CompletionStatus)
	for _, c := range agg.Completions {
		if c.Date == key {
			statusByHabit[c.HabitID] = c.Status
		}
	}

	stats := domain.DailyStats{Date: key}
	for _, h := range agg.Habits {
		if !h.IsEligible(date.Weekday()) {
			continue
		}
		stats.TotalHabits++
		stats.TotalPoints += h.Weight
		if statusByHabit[h.ID] == domain.StatusCompleted {
			stats.CompletedHabits++
			stats.EarnedPoints += h.Weight
		}
	}
	stats.Percentage = percentage(stats.CompletedHabits, stats.TotalHabits)

	return stats
}

// RollupDay stores the stats of date in its month's chart and recomputes the
// chart summary.
func RollupDay(agg *domain.Aggregate, date time.Time) domain.DailyStats {
	stats := ComputeDailyStats(agg, date)
	chart := EnsureMonthlyChart(agg, date)

	replaced := false
	for i := range chart.Days {
		if chart.Days[i].Date == stats.Date {
			chart.Days[i] = stats
			replaced = true
			break
		}
	}
	if !replaced {
		chart.Days = append(chart.Days, stats)
		sort.Slice(chart.Days, func(i, j int) bool {
			return chart.Days[i].Date < chart.Days[j].Date
		})
	}

	summarizeChart(chart)
	return stats
}

// EnsureMonthlyChart returns the chart of t's month, creating it if needed.
func EnsureMonthlyChart(agg *domain.Aggregate, t time.Time) *domain.MonthlyChart {
	month := domain.MonthKey(t)
	chart, ok := agg.MonthlyCharts[month]
	if !ok {
		chart = domain.NewMonthlyChart(month)
		agg.MonthlyCharts[month] = chart
	}
	return chart
}

func summarizeChart(chart *domain.MonthlyChart) {
	chart.AveragePerformance = 0
	chart.BestDay = ""
	chart.WorstDay = ""
	chart.CompletedDays = 0

	if len(chart.Days) == 0 {
		return
	}

	sum := 0
	best, worst := chart.Days[0], chart.Days[0]
	for _, d := range chart.Days {
		sum += d.Percentage
		if d.Percentage > best.Percentage {
			best = d
		}
		if d.Percentage < worst.Percentage {
			worst = d
		}
		if d.Percentage >= domain.GoodDayThreshold {
			chart.CompletedDays++
		}
	}

	chart.AveragePerformance = int(math.Round(float64(sum) / float64(len(chart.Days))))
	chart.BestDay = best.Date
	chart.WorstDay = worst.Date
}

func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
