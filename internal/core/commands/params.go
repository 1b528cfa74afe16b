package commands

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/services"
)

// params reads loosely typed command parameters. Numbers may arrive as JSON
// numbers or as strings.
type params struct {
	values map[string]any
	loc    *time.Location
	now    time.Time
}

func (p params) str(key string) string {
	v, ok := p.values[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (p params) requiredStr(key string) (string, error) {
	s := p.str(key)
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingParam, key)
	}
	return s, nil
}

func (p params) number(key string) (float64, error) {
	v, ok := p.values[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrInvalidParam, key)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrInvalidParam, key)
}

func (p params) integer(key string) (int, error) {
	f, err := p.number(key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidParam, key)
	}
	return int(f), nil
}

func (p params) list(key string) []string {
	switch v := p.values[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (p params) intList(key string) ([]int, error) {
	raw := p.list(key)
	out := make([]int, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidParam, key)
		}
		out = append(out, n)
	}
	return out, nil
}

// date parses a YYYY-MM-DD parameter, "today" or "yesterday". Missing means
// today.
func (p params) date(key string) (time.Time, error) {
	s := strings.ToLower(p.str(key))
	switch s {
	case "", "today":
		return p.now, nil
	case "yesterday":
		return p.now.AddDate(0, 0, -1), nil
	}
	t, err := domain.ParseDate(s, p.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrInvalidParam, key)
	}
	return t, nil
}

func (p params) habitInput(name string) (services.HabitInput, error) {
	weight, err := p.integer("weight")
	if err != nil {
		return services.HabitInput{}, err
	}
	weekdays, err := p.intList("weekdays")
	if err != nil {
		return services.HabitInput{}, err
	}
	return services.HabitInput{
		Name:        name,
		Description: p.str("description"),
		Color:       p.str("color"),
		Weight:      weight,
		Weekdays:    weekdays,
	}, nil
}
