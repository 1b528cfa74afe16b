package services

import (
	"context"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
)

type HabitInput struct {
	Name        string
	Description string
	Color       string
	Weight      int
	Weekdays    []int
}

func (o *Organizer) CreateHabit(ctx context.Context, input HabitInput) (*domain.Habit, error) {
	var created domain.Habit
	err := o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, now time.Time) ([]time.Time, error) {
		habit, err := domain.NewHabit(input.Name, input.Description, input.Color, input.Weight, input.Weekdays, now)
		if err != nil {
			return nil, err
		}
		agg.Habits = append(agg.Habits, habit)
		created = *habit
		return []time.Time{now}, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (o *Organizer) UpdateHabit(ctx context.Context, id string, input HabitInput) (*domain.Habit, error) {
	err := o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, now time.Time) ([]time.Time, error) {
		habit, _ := agg.FindHabit(id)
		if habit == nil {
			return nil, domain.ErrHabitNotFound
		}
		if err := habit.Update(input.Name, input.Description, input.Color, input.Weight, input.Weekdays, now); err != nil {
			return nil, err
		}
		return []time.Time{now}, nil
	})
	if err != nil {
		return nil, err
	}
	return o.GetHabit(id)
}

// DeleteHabit removes the habit together with its completions and rolls up
// the days that lost a completion.
func (o *Organizer) DeleteHabit(ctx context.Context, id string) error {
	return o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, now time.Time) ([]time.Time, error) {
		dates, err := agg.RemoveHabit(id)
		if err != nil {
			return nil, err
		}
		touched := []time.Time{now}
		for _, d := range dates {
			if t, err := domain.ParseDate(d, now.Location()); err == nil {
				touched = append(touched, t)
			}
		}
		return touched, nil
	})
}

func (o *Organizer) GetHabit(id string) (*domain.Habit, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	habit, _ := o.agg.FindHabit(id)
	if habit == nil {
		return nil, domain.ErrHabitNotFound
	}
	out := *habit
	return &out, nil
}

func (o *Organizer) ListHabits() []domain.Habit {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]domain.Habit, 0, len(o.agg.Habits))
	for _, h := range o.agg.Habits {
		out = append(out, *h)
	}
	return out
}

// CompleteHabit records the outcome of a habit on date, replacing any
// earlier outcome for the same date.
func (o *Organizer) CompleteHabit(ctx context.Context, habitID string, date time.Time, status domain.CompletionStatus, justification string) (*domain.HabitCompletion, error) {
	var recorded domain.HabitCompletion
	err := o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, now time.Time) ([]time.Time, error) {
		if habit, _ := agg.FindHabit(habitID); habit == nil {
			return nil, domain.ErrHabitNotFound
		}
		c, err := domain.NewHabitCompletion(habitID, date, status, justification, now)
		if err != nil {
			return nil, err
		}
		agg.UpsertCompletion(c)
		recorded = *c
		return []time.Time{date}, nil
	})
	if err != nil {
		return nil, err
	}
	return &recorded, nil
}

// Completions returns the completions of a habit.
func (o *Organizer) Completions(habitID string) []domain.HabitCompletion {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []domain.HabitCompletion
	for _, c := range o.agg.CompletionsFor(habitID) {
		out = append(out, *c)
	}
	return out
}

type JournalInput struct {
	Date    time.Time
	Title   string
	Content string
	Mood    int
	Tags    []string
}

func (o *Organizer) AddJournalEntry(ctx context.Context, input JournalInput) (*domain.JournalEntry, error) {
	var created domain.JournalEntry
	err := o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, now time.Time) ([]time.Time, error) {
		entry, err := domain.NewJournalEntry(input.Date, input.Title, input.Content, input.Mood, input.Tags, now)
		if err != nil {
			return nil, err
		}
		agg.Journal = append(agg.Journal, entry)
		created = *entry
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (o *Organizer) DeleteJournalEntry(ctx context.Context, id string) error {
	return o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, _ time.Time) ([]time.Time, error) {
		kept, ok := removeByID(agg.Journal, id, func(e *domain.JournalEntry) string { return e.ID })
		if !ok {
			return nil, domain.ErrEntryNotFound
		}
		agg.Journal = kept
		return nil, nil
	})
}

func (o *Organizer) ListJournal() []domain.JournalEntry {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]domain.JournalEntry, 0, len(o.agg.Journal))
	for _, e := range o.agg.Journal {
		out = append(out, *e)
	}
	return out
}

type BodyMetricInput struct {
	Date     time.Time
	WeightKg float64
	BodyFat  float64
	WaistCm  float64
	Notes    string
}

func (o *Organizer) RecordBodyMetric(ctx context.Context, input BodyMetricInput) (*domain.BodyMetric, error) {
	var created domain.BodyMetric
	err := o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, now time.Time) ([]time.Time, error) {
		m, err := domain.NewBodyMetric(input.Date, input.WeightKg, input.BodyFat, input.WaistCm, input.Notes, now)
		if err != nil {
			return nil, err
		}
		agg.BodyMetrics = append(agg.BodyMetrics, m)
		created = *m
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (o *Organizer) DeleteBodyMetric(ctx context.Context, id string) error {
	return o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, _ time.Time) ([]time.Time, error) {
		kept, ok := removeByID(agg.BodyMetrics, id, func(m *domain.BodyMetric) string { return m.ID })
		if !ok {
			return nil, domain.ErrEntryNotFound
		}
		agg.BodyMetrics = kept
		return nil, nil
	})
}

type TransactionInput struct {
	Date     time.Time
	Amount   float64
	Kind     domain.TransactionKind
	Category string
	Note     string
}

func (o *Organizer) AddTransaction(ctx context.Context, input TransactionInput) (*domain.Transaction, error) {
	var created domain.Transaction
	err := o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, now time.Time) ([]time.Time, error) {
		tx, err := domain.NewTransaction(input.Date, input.Amount, input.Kind, input.Category, input.Note, now)
		if err != nil {
			return nil, err
		}
		agg.Transactions = append(agg.Transactions, tx)
		created = *tx
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (o *Organizer) DeleteTransaction(ctx context.Context, id string) error {
	return o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, _ time.Time) ([]time.Time, error) {
		kept, ok := removeByID(agg.Transactions, id, func(tx *domain.Transaction) string { return tx.ID })
		if !ok {
			return nil, domain.ErrEntryNotFound
		}
		agg.Transactions = kept
		return nil, nil
	})
}

func (o *Organizer) AddVocabulary(ctx context.Context, term, translation, language string) (*domain.VocabularyItem, error) {
	var created domain.VocabularyItem
	err := o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, now time.Time) ([]time.Time, error) {
		item, err := domain.NewVocabularyItem(term, translation, language, now)
		if err != nil {
			return nil, err
		}
		agg.Study.Vocabulary = append(agg.Study.Vocabulary, item)
		created = *item
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// LogStudySession records a session and adds its subject to the subject list.
func (o *Organizer) LogStudySession(ctx context.Context, date time.Time, subject string, minutes int, notes string) (*domain.StudySession, error) {
	var created domain.StudySession
	err := o.mutate(ctx, SourceLocal, func(agg *domain.Aggregate, now time.Time) ([]time.Time, error) {
		session, err := domain.NewStudySession(date, subject, minutes, notes, now)
		if err != nil {
			return nil, err
		}
		agg.Study.Sessions = append(agg.Study.Sessions, session)
		if session.Subject != "" && !containsString(agg.Study.Subjects, session.Subject) {
			agg.Study.Subjects = append(agg.Study.Subjects, session.Subject)
		}
		created = *session
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func removeByID[T any](items []*T, id string, idOf func(*T) string) ([]*T, bool) {
	for i, item := range items {
		if idOf(item) == id {
			return append(items[:i], items[i+1:]...), true
		}
	}
	return items, false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
