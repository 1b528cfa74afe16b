package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEntryNotFound       = errors.New("entry not found")
	ErrJournalContentEmpty = errors.New("journal content cannot be empty")
	ErrInvalidMood         = errors.New("invalid mood (must be 1-5)")
	ErrInvalidMetric       = errors.New("body metric requires a positive weight")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidKind         = errors.New("invalid transaction kind (must be income or expense)")
	ErrVocabularyTermEmpty = errors.New("vocabulary term cannot be empty")
	ErrInvalidDuration     = errors.New("study duration must be positive")
)

type JournalEntry struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Mood      int       `json:"mood,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewJournalEntry(date time.Time, title, content string, mood int, tags []string, now time.Time) (*JournalEntry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrJournalContentEmpty
	}
	if mood < 0 || mood > 5 {
		return nil, ErrInvalidMood
	}
	return &JournalEntry{
		ID:        uuid.NewString(),
		Date:      DateKey(date),
		Title:     strings.TrimSpace(title),
		Content:   content,
		Mood:      mood,
		Tags:      tags,
		CreatedAt: now.UTC(),
	}, nil
}

type BodyMetric struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	WeightKg  float64   `json:"weightKg"`
	BodyFat   float64   `json:"bodyFat,omitempty"`
	WaistCm   float64   `json:"waistCm,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewBodyMetric(date time.Time, weightKg, bodyFat, waistCm float64, notes string, now time.Time) (*BodyMetric, error) {
	if weightKg <= 0 || bodyFat < 0 || waistCm < 0 {
		return nil, ErrInvalidMetric
	}
	return &BodyMetric{
		ID:        uuid.NewString(),
		Date:      DateKey(date),
		WeightKg:  weightKg,
		BodyFat:   bodyFat,
		WaistCm:   waistCm,
		Notes:     strings.TrimSpace(notes),
		CreatedAt: now.UTC(),
	}, nil
}

type TransactionKind string

const (
	KindIncome  TransactionKind = "income"
	KindExpense TransactionKind = "expense"
)

type Transaction struct {
	ID        string          `json:"id"`
	Date      string          `json:"date"`
	Amount    float64         `json:"amount"`
	Kind      TransactionKind `json:"kind"`
	Category  string          `json:"category,omitempty"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func NewTransaction(date time.Time, amount float64, kind TransactionKind, category, note string, now time.Time) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if kind != KindIncome && kind != KindExpense {
		return nil, ErrInvalidKind
	}
	return &Transaction{
		ID:        uuid.NewString(),
		Date:      DateKey(date),
		Amount:    amount,
		Kind:      kind,
		Category:  strings.TrimSpace(category),
		Note:      strings.TrimSpace(note),
		CreatedAt: now.UTC(),
	}, nil
}

// Study groups learning material. Each field is an independent list so
// documents written before a list existed still decode with it empty.
type Study struct {
	Vocabulary []*VocabularyItem `json:"vocabulary"`
	Sessions   []*StudySession   `json:"sessions"`
	Subjects   []string          `json:"subjects"`
}

type VocabularyItem struct {
	ID          string    `json:"id"`
	Term        string    `json:"term"`
	Translation string    `json:"translation,omitempty"`
	Language    string    `json:"language,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewVocabularyItem(term, translation, language string, now time.Time) (*VocabularyItem, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrVocabularyTermEmpty
	}
	return &VocabularyItem{
		ID:          uuid.NewString(),
		Term:        term,
		Translation: strings.TrimSpace(translation),
		Language:    strings.TrimSpace(language),
		CreatedAt:   now.UTC(),
	}, nil
}

type StudySession struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Subject   string    `json:"subject"`
	Minutes   int       `json:"minutes"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewStudySession(date time.Time, subject string, minutes int, notes string, now time.Time) (*StudySession, error) {
	if minutes <= 0 {
		return nil, ErrInvalidDuration
	}
	return &StudySession{
		ID:        uuid.NewString(),
		Date:      DateKey(date),
		Subject:   strings.TrimSpace(subject),
		Minutes:   minutes,
		Notes:     strings.TrimSpace(notes),
		CreatedAt: now.UTC(),
	}, nil
}

type Settings struct {
	Theme        string `json:"theme"`
	Locale       string `json:"locale"`
	WeekStartsOn int    `json:"weekStartsOn"`
	DailyGoal    int    `json:"dailyGoal"`
}

func DefaultSettings() Settings {
	return Settings{
		Theme:        "light",
		Locale:       "en",
		WeekStartsOn: 1,
		DailyGoal:    GoodDayThreshold,
	}
}
