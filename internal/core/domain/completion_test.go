package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHabitCompletion(t *testing.T) {
	date := time.Date(2024, 1, 2, 23, 30, 0, 0, time.UTC)

	t.Run("Success: Keys the completion by calendar date", func(t *testing.T) {
		c, err := domain.NewHabitCompletion("h1", date, domain.StatusJustified, " sick ", habitNow)

		require.NoError(t, err)
		assert.Equal(t, "2024-01-02", c.Date)
		assert.Equal(t, "sick", c.Justification)
		assert.Equal(t, domain.StatusJustified, c.Status)
	})

	t.Run("Fail: Unknown status", func(t *testing.T) {
		_, err := domain.NewHabitCompletion("h1", date, "done", "", habitNow)
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	})

	t.Run("Fail: Missing habit id", func(t *testing.T) {
		_, err := domain.NewHabitCompletion(" ", date, domain.StatusCompleted, "", habitNow)
		assert.Error(t, err)
	})

	t.Run("Fail: Justification too long", func(t *testing.T) {
		_, err := domain.NewHabitCompletion("h1", date, domain.StatusJustified, strings.Repeat("x", domain.MaxDescLen+1), habitNow)
		assert.ErrorIs(t, err, domain.ErrJustificationTooLong)
	})
}

func TestCompletionStatus_Qualifies(t *testing.T) {
	assert.True(t, domain.StatusCompleted.Qualifies())
	assert.True(t, domain.StatusJustified.Qualifies())
	assert.False(t, domain.StatusNotCompleted.Qualifies())
}

func TestHabitCompletion_ValidateRejectsBadDate(t *testing.T) {
	c := &domain.HabitCompletion{HabitID: "h1", Date: "2024-13-01", Status: domain.StatusCompleted}
	assert.ErrorIs(t, c.Validate(), domain.ErrInvalidCompletion)
}
