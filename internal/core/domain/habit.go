package domain

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrHabitNotFound      = errors.New("habit not found")
	ErrHabitNameEmpty     = errors.New("habit name cannot be empty")
	ErrHabitNameTooLong   = errors.New("habit name is too long (max 100 chars)")
	ErrHabitDescTooLong   = errors.New("habit description is too long (max 500 chars)")
	ErrInvalidColor       = errors.New("invalid color format (must be #RRGGBB)")
	ErrInvalidWeekdays    = errors.New("invalid weekdays (must be 0-6)")
	ErrInvalidHabitWeight = errors.New("invalid habit weight (must be 1-10)")
)

var colorRegex = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

const (
	MaxNameLen    = 100
	MaxDescLen    = 500
	MinWeight     = 1
	MaxWeight     = 10
	DefaultWeight = 1
)

// Habit is a recurring activity tracked per calendar day.
// Streak and LastCompleted are derived from the habit's completions.
type Habit struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Color         string    `json:"color,omitempty"`
	Weight        int       `json:"weight"`
	Weekdays      []int     `json:"weekdays,omitempty"`
	Streak        int       `json:"streak"`
	LastCompleted *string   `json:"lastCompleted,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func normalizeWeekdays(days []int) []int {
	if len(days) == 0 {
		return nil
	}

	uniqueMap := make(map[int]bool)
	var uniqueDays []int
	for _, d := range days {
		if !uniqueMap[d] {
			uniqueMap[d] = true
			uniqueDays = append(uniqueDays, d)
		}
	}

	sort.Ints(uniqueDays)
	return uniqueDays
}

func validateHabit(name, desc, color string, weight int, weekdays []int) (int, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return 0, ErrHabitNameEmpty
	}
	if len(trimmedName) > MaxNameLen {
		return 0, ErrHabitNameTooLong
	}

	if len(strings.TrimSpace(desc)) > MaxDescLen {
		return 0, ErrHabitDescTooLong
	}

	if color != "" && !colorRegex.MatchString(color) {
		return 0, ErrInvalidColor
	}

	for _, day := range weekdays {
		if day < 0 || day > 6 {
			return 0, ErrInvalidWeekdays
		}
	}

	if weight == 0 {
		weight = DefaultWeight
	}
	if weight < MinWeight || weight > MaxWeight {
		return 0, ErrInvalidHabitWeight
	}

	return weight, nil
}

// NewHabit validates the input and returns a habit eligible on the given
// weekdays (0 = Sunday). An empty weekday set means every day.
func NewHabit(name, description, color string, weight int, weekdays []int, now time.Time) (*Habit, error) {
	safeWeight, err := validateHabit(name, description, color, weight, weekdays)
	if err != nil {
		return nil, err
	}

	now = now.UTC()

	return &Habit{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Color:       color,
		Weight:      safeWeight,
		Weekdays:    normalizeWeekdays(weekdays),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (h *Habit) Update(name, description, color string, weight int, weekdays []int, now time.Time) error {
	safeWeight, err := validateHabit(name, description, color, weight, weekdays)
	if err != nil {
		return err
	}

	h.Name = strings.TrimSpace(name)
	h.Description = strings.TrimSpace(description)
	h.Color = color
	h.Weight = safeWeight
	h.Weekdays = normalizeWeekdays(weekdays)
	h.UpdatedAt = now.UTC()

	return nil
}

// IsEligible reports whether the habit is scheduled on the given weekday.
func (h *Habit) IsEligible(day time.Weekday) bool {
	if len(h.Weekdays) == 0 {
		return true
	}
	for _, d := range h.Weekdays {
		if d == int(day) {
			return true
		}
	}
	return false
}
