package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidCompletion    = errors.New("invalid habit completion data")
	ErrInvalidStatus        = errors.New("invalid completion status (must be completed, justified or not_completed)")
	ErrCompletionNotFound   = errors.New("habit completion not found")
	ErrJustificationTooLong = errors.New("justification is too long (max 500 chars)")
)

type CompletionStatus string

const (
	StatusCompleted    CompletionStatus = "completed"
	StatusJustified    CompletionStatus = "justified"
	StatusNotCompleted CompletionStatus = "not_completed"
)

func (s CompletionStatus) Valid() bool {
	switch s {
	case StatusCompleted, StatusJustified, StatusNotCompleted:
		return true
	}
	return false
}

// Qualifies reports whether the status keeps a streak alive.
func (s CompletionStatus) Qualifies() bool {
	return s == StatusCompleted || s == StatusJustified
}

// HabitCompletion records the outcome of a habit on one calendar date.
// (HabitID, Date) is unique inside an Aggregate.
type HabitCompletion struct {
	HabitID       string           `json:"habitId"`
	Date          string           `json:"date"`
	Status        CompletionStatus `json:"status"`
	Justification string           `json:"justification,omitempty"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

func NewHabitCompletion(habitID string, date time.Time, status CompletionStatus, justification string, now time.Time) (*HabitCompletion, error) {
	c := &HabitCompletion{
		HabitID:       strings.TrimSpace(habitID),
		Date:          DateKey(date),
		Status:        status,
		Justification: strings.TrimSpace(justification),
		UpdatedAt:     now.UTC(),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *HabitCompletion) Validate() error {
	if c.HabitID == "" {
		return errors.New("habit_id is required")
	}
	if _, err := ParseDate(c.Date, time.UTC); err != nil {
		return ErrInvalidCompletion
	}
	if !c.Status.Valid() {
		return ErrInvalidStatus
	}
	if len(c.Justification) > MaxDescLen {
		return ErrJustificationTooLong
	}
	return nil
}
