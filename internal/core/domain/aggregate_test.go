package domain_test

import (
	"testing"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAggregate_Defaults(t *testing.T) {
	agg := domain.NewAggregate()

	assert.Empty(t, agg.Habits)
	assert.NotNil(t, agg.Habits)
	assert.NotNil(t, agg.Study.Vocabulary)
	assert.NotNil(t, agg.MonthlyCharts)
	assert.Equal(t, domain.DefaultSettings(), agg.Settings)
	assert.Equal(t, domain.SchemaVersion, agg.Version)
	assert.True(t, agg.LastUpdated.IsZero())
}

func TestDecodeAggregate(t *testing.T) {
	t.Run("Fills missing nested arrays from defaults", func(t *testing.T) {
		doc := `{
			"habits": [{"id": "h1", "name": "Read", "weight": 2, "streak": 4}],
			"study": {"sessions": [{"id": "s1", "date": "2024-01-01", "subject": "Go", "minutes": 30}]},
			"lastUpdated": "2024-01-03T10:00:00Z",
			"version": "2.0.0"
		}`

		agg, err := domain.DecodeAggregate([]byte(doc))

		require.NoError(t, err)
		require.NotNil(t, agg.Study.Vocabulary)
		assert.Empty(t, agg.Study.Vocabulary)
		assert.Empty(t, agg.Study.Subjects)
		require.Len(t, agg.Study.Sessions, 1)
		assert.Equal(t, 30, agg.Study.Sessions[0].Minutes)

		require.Len(t, agg.Habits, 1)
		assert.Equal(t, 4, agg.Habits[0].Streak)
		assert.NotNil(t, agg.Completions)
		assert.NotNil(t, agg.Journal)
		assert.Equal(t, domain.DefaultSettings(), agg.Settings)
		assert.Equal(t, "2.0.0", agg.Version)
		assert.Equal(t, time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC), agg.LastUpdated.UTC())
	})

	t.Run("Null collections become empty", func(t *testing.T) {
		agg, err := domain.DecodeAggregate([]byte(`{"habits": null, "journal": [null], "monthlyCharts": {"2024-01": null}}`))

		require.NoError(t, err)
		assert.NotNil(t, agg.Habits)
		assert.Empty(t, agg.Journal)
		assert.Empty(t, agg.MonthlyCharts)
	})

	tests := []struct {
		name string
		doc  string
	}{
		{"Empty document", ""},
		{"JSON null", "null"},
		{"JSON array", "[]"},
		{"Truncated object", `{"habits": [`},
		{"Wrong field type", `{"habits": "nope"}`},
	}
	for _, tt := range tests {
		t.Run("Rejects: "+tt.name, func(t *testing.T) {
			agg, err := domain.DecodeAggregate([]byte(tt.doc))
			assert.ErrorIs(t, err, domain.ErrInvalidAggregate)
			assert.Nil(t, agg)
		})
	}
}

func TestAggregate_RoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)

	agg := domain.NewAggregate()
	h, err := domain.NewHabit("Read", "10 pages", "#FF0000", 2, []int{1, 2}, now)
	require.NoError(t, err)
	agg.Habits = append(agg.Habits, h)
	c, err := domain.NewHabitCompletion(h.ID, now, domain.StatusJustified, "travel", now)
	require.NoError(t, err)
	agg.UpsertCompletion(c)
	entry, err := domain.NewJournalEntry(now, "Day", "Good day", 4, []string{"work"}, now)
	require.NoError(t, err)
	agg.Journal = append(agg.Journal, entry)
	agg.Study.Subjects = []string{"Go"}
	agg.MonthlyCharts["2024-01"] = &domain.MonthlyChart{
		Month:              "2024-01",
		Days:               []domain.DailyStats{{Date: "2024-01-03", TotalHabits: 1, Percentage: 100}},
		AveragePerformance: 100,
		BestDay:            "2024-01-03",
		WorstDay:           "2024-01-03",
		CompletedDays:      1,
	}
	agg.LastUpdated = now

	clone, err := agg.Clone()

	require.NoError(t, err)
	assert.Equal(t, agg, clone)

	clone.Habits[0].Name = "Changed"
	assert.Equal(t, "Read", agg.Habits[0].Name, "Clone must be deep")
}

func TestAggregate_UpsertCompletion(t *testing.T) {
	agg := domain.NewAggregate()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, _ := domain.NewHabitCompletion("h1", day, domain.StatusNotCompleted, "", day)
	second, _ := domain.NewHabitCompletion("h1", day, domain.StatusCompleted, "", day)
	other, _ := domain.NewHabitCompletion("h2", day, domain.StatusCompleted, "", day)

	agg.UpsertCompletion(first)
	agg.UpsertCompletion(other)
	agg.UpsertCompletion(second)

	require.Len(t, agg.Completions, 2)
	assert.Equal(t, domain.StatusCompleted, agg.CompletionsFor("h1")[0].Status)
}

func TestAggregate_RemoveHabitCascades(t *testing.T) {
	agg := domain.NewAggregate()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	keep, _ := domain.NewHabit("Keep", "", "", 1, nil, now)
	drop, _ := domain.NewHabit("Drop", "", "", 1, nil, now)
	agg.Habits = append(agg.Habits, keep, drop)

	for i := 0; i < 3; i++ {
		day := now.AddDate(0, 0, i)
		c1, _ := domain.NewHabitCompletion(keep.ID, day, domain.StatusCompleted, "", now)
		c2, _ := domain.NewHabitCompletion(drop.ID, day, domain.StatusCompleted, "", now)
		agg.UpsertCompletion(c1)
		agg.UpsertCompletion(c2)
	}

	dates, err := agg.RemoveHabit(drop.ID)

	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, dates)
	assert.Len(t, agg.Habits, 1)
	assert.Len(t, agg.Completions, 3)
	assert.Empty(t, agg.CompletionsFor(drop.ID))

	_, err = agg.RemoveHabit(drop.ID)
	assert.ErrorIs(t, err, domain.ErrHabitNotFound)
}
