package services

import (
	"errors"
	"math"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
)

var ErrInvalidRange = errors.New("invalid date range: from must not be after to")

// Summarize aggregates habits, journal, study and finance activity between
// from and to, both inclusive.
func Summarize(agg *domain.Aggregate, from, to time.Time) (*domain.RangeSummary, error) {
	from = domain.StartOfDay(from)
	to = domain.StartOfDay(to)
	if from.After(to) {
		return nil, ErrInvalidRange
	}

	fromKey, toKey := domain.DateKey(from), domain.DateKey(to)
	inRange := func(date string) bool {
		return date >= fromKey && date <= toKey
	}

	statuses := make(map[string]domain.CompletionStatus)
	for _, c := range agg.Completions {
		if inRange(c.Date) {
			statuses[c.HabitID+"|"+c.Date] = c.Status
		}
	}

	summary := &domain.RangeSummary{From: fromKey, To: toKey}

	percentSum, scoredDays := 0, 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		summary.Days++
		key := domain.DateKey(day)

		for _, h := range agg.Habits {
			if !h.IsEligible(day.Weekday()) {
				continue
			}
			switch statuses[h.ID+"|"+key] {
			case domain.StatusCompleted:
				summary.CompletedHabits++
			case domain.StatusJustified:
				summary.JustifiedHabits++
			default:
				summary.MissedHabits++
			}
		}

		stats := ComputeDailyStats(agg, day)
		if stats.TotalHabits > 0 {
			percentSum += stats.Percentage
			scoredDays++
		}
	}
	if scoredDays > 0 {
		summary.AveragePerformance = int(math.Round(float64(percentSum) / float64(scoredDays)))
	}

	for _, j := range agg.Journal {
		if inRange(j.Date) {
			summary.JournalEntries++
		}
	}
	for _, s := range agg.Study.Sessions {
		if inRange(s.Date) {
			summary.StudyMinutes += s.Minutes
		}
	}
	for _, tx := range agg.Transactions {
		if !inRange(tx.Date) {
			continue
		}
		if tx.Kind == domain.KindIncome {
			summary.Income += tx.Amount
		} else {
			summary.Expenses += tx.Amount
		}
	}
	summary.Balance = summary.Income - summary.Expenses

	return summary, nil
}
