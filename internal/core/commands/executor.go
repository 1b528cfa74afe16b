// Package commands maps structured {entity, action, params} commands onto
// single organizer operations and records every execution in an audit log.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/clock"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/services"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingParam   = errors.New("missing parameter")
	ErrInvalidParam   = errors.New("invalid parameter")
)

type Command struct {
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
}

func (c Command) Name() string {
	return strings.ToLower(c.Entity) + "." + strings.ToLower(c.Action)
}

type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

// Organizer is the part of the storage facade commands can reach.
type Organizer interface {
	CreateHabit(ctx context.Context, input services.HabitInput) (*domain.Habit, error)
	UpdateHabit(ctx context.Context, id string, input services.HabitInput) (*domain.Habit, error)
	DeleteHabit(ctx context.Context, id string) error
	ListHabits() []domain.Habit
	CompleteHabit(ctx context.Context, habitID string, date time.Time, status domain.CompletionStatus, justification string) (*domain.HabitCompletion, error)
	AddJournalEntry(ctx context.Context, input services.JournalInput) (*domain.JournalEntry, error)
	DeleteJournalEntry(ctx context.Context, id string) error
	RecordBodyMetric(ctx context.Context, input services.BodyMetricInput) (*domain.BodyMetric, error)
	AddTransaction(ctx context.Context, input services.TransactionInput) (*domain.Transaction, error)
	LogStudySession(ctx context.Context, date time.Time, subject string, minutes int, notes string) (*domain.StudySession, error)
	Summarize(from, to time.Time) (*domain.RangeSummary, error)
}

type handler func(ctx context.Context, p params) (string, any, error)

type Executor struct {
	org      Organizer
	audit    domain.AuditLog
	clock    clock.Clock
	logger   zerolog.Logger
	handlers map[string]handler
}

// NewExecutor builds an executor. audit may be nil.
func NewExecutor(org Organizer, audit domain.AuditLog, clk clock.Clock, logger zerolog.Logger) *Executor {
	if clk == nil {
		clk = clock.System{}
	}
	e := &Executor{
		org:    org,
		audit:  audit,
		clock:  clk,
		logger: logger,
	}
	e.handlers = map[string]handler{
		"habit.create":   e.createHabit,
		"habit.update":   e.updateHabit,
		"habit.delete":   e.deleteHabit,
		"habit.complete": e.completeHabit,
		"habit.list":     e.listHabits,
		"journal.create": e.createJournal,
		"journal.delete": e.deleteJournal,
		"body.record":    e.recordBody,
		"finance.add":    e.addTransaction,
		"study.session":  e.logStudy,
		"summary.range":  e.summarize,
	}
	return e
}

// Commands lists the supported entity.action names.
func (e *Executor) Commands() []string {
	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	return names
}

// Execute runs cmd. Failures are reported in the Result, never returned.
func (e *Executor) Execute(ctx context.Context, cmd Command) Result {
	var res Result

	h, ok := e.handlers[cmd.Name()]
	if !ok {
		res = Result{OK: false, Message: fmt.Sprintf("%v: %s", ErrUnknownCommand, cmd.Name())}
	} else {
		now := e.clock.Now()
		msg, out, err := h(ctx, params{values: cmd.Params, loc: now.Location(), now: now})
		if err != nil {
			res = Result{OK: false, Message: err.Error()}
		} else {
			res = Result{OK: true, Message: msg, Result: out}
		}
	}

	e.record(ctx, cmd, res)
	return res
}

func (e *Executor) record(ctx context.Context, cmd Command, res Result) {
	if e.audit == nil {
		return
	}

	encoded, err := json.Marshal(cmd.Params)
	if err != nil {
		encoded = []byte("{}")
	}

	rec := domain.AuditRecord{
		ID:        uuid.NewString(),
		Entity:    cmd.Entity,
		Action:    cmd.Action,
		Params:    string(encoded),
		OK:        res.OK,
		Message:   res.Message,
		CreatedAt: e.clock.Now().UTC(),
	}
	if err := e.audit.Append(ctx, rec); err != nil {
		e.logger.Error().Err(err).Str("command", cmd.Name()).Msg("[AUDIT] Failed to append record")
	}
}

func (e *Executor) createHabit(ctx context.Context, p params) (string, any, error) {
	name, err := p.requiredStr("name")
	if err != nil {
		return "", nil, err
	}
	input, err := p.habitInput(name)
	if err != nil {
		return "", nil, err
	}
	habit, err := e.org.CreateHabit(ctx, input)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Habit %q created", habit.Name), habit, nil
}

func (e *Executor) updateHabit(ctx context.Context, p params) (string, any, error) {
	id, err := p.requiredStr("id")
	if err != nil {
		return "", nil, err
	}
	name, err := p.requiredStr("name")
	if err != nil {
		return "", nil, err
	}
	input, err := p.habitInput(name)
	if err != nil {
		return "", nil, err
	}
	habit, err := e.org.UpdateHabit(ctx, id, input)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Habit %q updated", habit.Name), habit, nil
}

func (e *Executor) deleteHabit(ctx context.Context, p params) (string, any, error) {
	id, err := p.requiredStr("id")
	if err != nil {
		return "", nil, err
	}
	if err := e.org.DeleteHabit(ctx, id); err != nil {
		return "", nil, err
	}
	return "Habit deleted", nil, nil
}

func (e *Executor) completeHabit(ctx context.Context, p params) (string, any, error) {
	id, err := p.requiredStr("id")
	if err != nil {
		return "", nil, err
	}
	date, err := p.date("date")
	if err != nil {
		return "", nil, err
	}
	status := domain.CompletionStatus(p.str("status"))
	if status == "" {
		status = domain.StatusCompleted
	}

	c, err := e.org.CompleteHabit(ctx, id, date, status, p.str("justification"))
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Habit marked %s on %s", c.Status, c.Date), c, nil
}

func (e *Executor) listHabits(_ context.Context, _ params) (string, any, error) {
	habits := e.org.ListHabits()
	return fmt.Sprintf("%d habits", len(habits)), habits, nil
}

func (e *Executor) createJournal(ctx context.Context, p params) (string, any, error) {
	content, err := p.requiredStr("content")
	if err != nil {
		return "", nil, err
	}
	date, err := p.date("date")
	if err != nil {
		return "", nil, err
	}
	mood, err := p.integer("mood")
	if err != nil {
		return "", nil, err
	}

	entry, err := e.org.AddJournalEntry(ctx, services.JournalInput{
		Date:    date,
		Title:   p.str("title"),
		Content: content,
		Mood:    mood,
		Tags:    p.list("tags"),
	})
	if err != nil {
		return "", nil, err
	}
	return "Journal entry created", entry, nil
}

func (e *Executor) deleteJournal(ctx context.Context, p params) (string, any, error) {
	id, err := p.requiredStr("id")
	if err != nil {
		return "", nil, err
	}
	if err := e.org.DeleteJournalEntry(ctx, id); err != nil {
		return "", nil, err
	}
	return "Journal entry deleted", nil, nil
}

func (e *Executor) recordBody(ctx context.Context, p params) (string, any, error) {
	weight, err := p.number("weight")
	if err != nil {
		return "", nil, err
	}
	bodyFat, err := p.number("bodyFat")
	if err != nil {
		return "", nil, err
	}
	waist, err := p.number("waist")
	if err != nil {
		return "", nil, err
	}
	date, err := p.date("date")
	if err != nil {
		return "", nil, err
	}

	m, err := e.org.RecordBodyMetric(ctx, services.BodyMetricInput{
		Date:     date,
		WeightKg: weight,
		BodyFat:  bodyFat,
		WaistCm:  waist,
		Notes:    p.str("notes"),
	})
	if err != nil {
		return "", nil, err
	}
	return "Body metric recorded", m, nil
}

func (e *Executor) addTransaction(ctx context.Context, p params) (string, any, error) {
	amount, err := p.number("amount")
	if err != nil {
		return "", nil, err
	}
	date, err := p.date("date")
	if err != nil {
		return "", nil, err
	}
	kind := domain.TransactionKind(p.str("kind"))
	if kind == "" {
		kind = domain.KindExpense
	}

	tx, err := e.org.AddTransaction(ctx, services.TransactionInput{
		Date:     date,
		Amount:   amount,
		Kind:     kind,
		Category: p.str("category"),
		Note:     p.str("note"),
	})
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s of %.2f recorded", tx.Kind, tx.Amount), tx, nil
}

func (e *Executor) logStudy(ctx context.Context, p params) (string, any, error) {
	subject, err := p.requiredStr("subject")
	if err != nil {
		return "", nil, err
	}
	minutes, err := p.integer("minutes")
	if err != nil {
		return "", nil, err
	}
	date, err := p.date("date")
	if err != nil {
		return "", nil, err
	}

	session, err := e.org.LogStudySession(ctx, date, subject, minutes, p.str("notes"))
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%d minutes of %s logged", session.Minutes, session.Subject), session, nil
}

func (e *Executor) summarize(_ context.Context, p params) (string, any, error) {
	from, err := p.date("from")
	if err != nil {
		return "", nil, err
	}
	to, err := p.date("to")
	if err != nil {
		return "", nil, err
	}

	summary, err := e.org.Summarize(from, to)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("Summary %s..%s: %d%% average", summary.From, summary.To, summary.AveragePerformance), summary, nil
}
