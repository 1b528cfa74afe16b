package domain

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// SchemaVersion tags documents written by this build.
const SchemaVersion = "3.0.0"

var (
	ErrInvalidAggregate = errors.New("invalid aggregate document")
	ErrInvalidImport    = errors.New("invalid import document")
)

// Aggregate is the single document holding every collection of the organizer.
// It is always rewritten as a whole; LastUpdated orders competing copies.
type Aggregate struct {
	Habits        []*Habit                 `json:"habits"`
	Completions   []*HabitCompletion       `json:"habitCompletions"`
	Journal       []*JournalEntry          `json:"journal"`
	BodyMetrics   []*BodyMetric            `json:"bodyMetrics"`
	Transactions  []*Transaction           `json:"transactions"`
	Study         Study                    `json:"study"`
	MonthlyCharts map[string]*MonthlyChart `json:"monthlyCharts"`
	Settings      Settings                 `json:"settings"`
	LastUpdated   time.Time                `json:"lastUpdated"`
	Version       string                   `json:"version"`
}

// NewAggregate returns the document a first run starts from.
func NewAggregate() *Aggregate {
	return &Aggregate{
		Habits:       []*Habit{},
		Completions:  []*HabitCompletion{},
		Journal:      []*JournalEntry{},
		BodyMetrics:  []*BodyMetric{},
		Transactions: []*Transaction{},
		Study: Study{
			Vocabulary: []*VocabularyItem{},
			Sessions:   []*StudySession{},
			Subjects:   []string{},
		},
		MonthlyCharts: map[string]*MonthlyChart{},
		Settings:      DefaultSettings(),
		Version:       SchemaVersion,
	}
}

// DecodeAggregate parses a serialized document on top of the defaults, so
// fields unknown to the writer keep their default value. Nested objects such
// as Study are merged field by field.
func DecodeAggregate(data []byte) (*Aggregate, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrInvalidAggregate
	}

	agg := NewAggregate()
	if err := json.Unmarshal(trimmed, agg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAggregate, err)
	}
	agg.normalize()

	return agg, nil
}

func (a *Aggregate) Encode() ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode aggregate: %w", err)
	}
	return data, nil
}

// Clone returns a deep copy through the serialized form.
func (a *Aggregate) Clone() (*Aggregate, error) {
	data, err := a.Encode()
	if err != nil {
		return nil, err
	}
	return DecodeAggregate(data)
}

func (a *Aggregate) normalize() {
	a.Habits = compact(a.Habits)
	a.Completions = compact(a.Completions)
	a.Journal = compact(a.Journal)
	a.BodyMetrics = compact(a.BodyMetrics)
	a.Transactions = compact(a.Transactions)
	a.Study.Vocabulary = compact(a.Study.Vocabulary)
	a.Study.Sessions = compact(a.Study.Sessions)
	if a.Study.Subjects == nil {
		a.Study.Subjects = []string{}
	}

	if a.MonthlyCharts == nil {
		a.MonthlyCharts = map[string]*MonthlyChart{}
	}
	for month, chart := range a.MonthlyCharts {
		if chart == nil {
			delete(a.MonthlyCharts, month)
			continue
		}
		if chart.Days == nil {
			chart.Days = []DailyStats{}
		}
	}

	if a.Settings == (Settings{}) {
		a.Settings = DefaultSettings()
	}
	if a.Version == "" {
		a.Version = SchemaVersion
	}
}

// compact drops null elements and never returns a nil slice.
func compact[T any](items []*T) []*T {
	out := make([]*T, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, item)
		}
	}
	return out
}

func (a *Aggregate) FindHabit(id string) (*Habit, int) {
	for i, h := range a.Habits {
		if h.ID == id {
			return h, i
		}
	}
	return nil, -1
}

// CompletionsFor returns the completions recorded for a habit.
func (a *Aggregate) CompletionsFor(habitID string) []*HabitCompletion {
	var out []*HabitCompletion
	for _, c := range a.Completions {
		if c.HabitID == habitID {
			out = append(out, c)
		}
	}
	return out
}

// UpsertCompletion stores c, replacing any completion for the same habit and date.
func (a *Aggregate) UpsertCompletion(c *HabitCompletion) {
	for i, existing := range a.Completions {
		if existing.HabitID == c.HabitID && existing.Date == c.Date {
			a.Completions[i] = c
			return
		}
	}
	a.Completions = append(a.Completions, c)
}

// RemoveHabit deletes the habit and every completion that references it.
// It returns the dates whose completions were removed.
func (a *Aggregate) RemoveHabit(id string) ([]string, error) {
	_, idx := a.FindHabit(id)
	if idx < 0 {
		return nil, ErrHabitNotFound
	}
	a.Habits = append(a.Habits[:idx], a.Habits[idx+1:]...)

	var dates []string
	kept := a.Completions[:0]
	for _, c := range a.Completions {
		if c.HabitID == id {
			dates = append(dates, c.Date)
			continue
		}
		kept = append(kept, c)
	}
	a.Completions = kept

	return dates, nil
}
