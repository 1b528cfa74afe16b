package services

import (
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
)

// RecomputeStreak refreshes Streak and LastCompleted of the habit from its
// completions, counting back from today.
func RecomputeStreak(agg *domain.Aggregate, habitID string, today time.Time) error {
	habit, _ := agg.FindHabit(habitID)
	if habit == nil {
		return domain.ErrHabitNotFound
	}

	streak, lastCompleted := calculateStreak(agg.CompletionsFor(habitID), today)
	habit.Streak = streak
	if lastCompleted != "" {
		habit.LastCompleted = &lastCompleted
	}
	return nil
}

// RecomputeAllStreaks runs RecomputeStreak for every habit.
func RecomputeAllStreaks(agg *domain.Aggregate, today time.Time) {
	for _, h := range agg.Habits {
		_ = RecomputeStreak(agg, h.ID, today)
	}
}

// calculateStreak walks back one calendar day at a time starting at today
// and stops at the first day without a qualifying completion.
// lastCompleted is non-empty only when the most recent completion by date is
// a completed one: justified days extend the streak but never move it.
func calculateStreak(completions []*domain.HabitCompletion, today time.Time) (int, string) {
	if len(completions) == 0 {
		return 0, ""
	}

	byDate := make(map[string]domain.CompletionStatus, len(completions))
	var latest *domain.HabitCompletion
	for _, c := range completions {
		byDate[c.Date] = c.Status
		if latest == nil || c.Date > latest.Date {
			latest = c
		}
	}

	streak := 0
	day := domain.StartOfDay(today)
	for {
		status, ok := byDate[domain.DateKey(day)]
		if !ok || !status.Qualifies() {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}

	lastCompleted := ""
	if latest.Status == domain.StatusCompleted {
		lastCompleted = latest.Date
	}

	return streak, lastCompleted
}
