// Package schedule holds the static table of recurring triggers that drive
// the dispatcher.
//
// A Table is built once at cold start from authored data and is immutable
// thereafter. Construction validates every schedule and fails with a
// config_* AppError if anything is inconsistent, so a bad table is rejected
// before the first firing rather than at trigger time.
package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"lottodispatch/internal/catalog"
	"lottodispatch/internal/types"
)

// namePattern keeps schedule names usable as EventBridge rule suffixes.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)

// cronParser accepts the standard five-field form with named months and
// weekdays (e.g. "20 20 * * TUE,FRI").
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("schedule_name", func(fl validator.FieldLevel) bool {
		return namePattern.MatchString(fl.Field().String())
	})
	return v
}

// Table is the validated, immutable set of schedules.
type Table struct {
	schedules []types.Schedule
	specs     []cron.Schedule
	byName    map[string]int
	loc       *time.Location
}

// Option configures a Table.
type Option func(*Table)

// WithLocation sets the time zone cron expressions are evaluated in.
// The default is UTC.
func WithLocation(loc *time.Location) Option {
	return func(t *Table) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// Firing is one upcoming occurrence of a schedule.
type Firing struct {
	Schedule string
	At       time.Time
}

// NewTable validates schedules and builds a Table. All violations are
// reported together; the returned error is nil only if the whole table is
// consistent.
func NewTable(schedules []types.Schedule, opts ...Option) (*Table, error) {
	t := &Table{
		schedules: make([]types.Schedule, 0, len(schedules)),
		specs:     make([]cron.Schedule, 0, len(schedules)),
		byName:    make(map[string]int, len(schedules)),
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(t)
	}

	var errs []error
	for i, s := range schedules {
		spec, err := validateSchedule(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule[%d] %q: %w", i, s.Name, err))
		}

		if _, dup := t.byName[s.Name]; dup {
			errs = append(errs, types.NewAppErrorWithDetails(
				types.ErrCodeConfigDuplicateSchedule,
				fmt.Sprintf("schedule name %q is defined more than once", s.Name),
				nil,
				map[string]any{"schedule": s.Name, "index": i},
			))
			continue
		}

		if ss, ok := spec.(*cron.SpecSchedule); ok {
			ss.Location = t.loc
		}
		t.byName[s.Name] = len(t.schedules)
		t.schedules = append(t.schedules, s.Clone())
		t.specs = append(t.specs, spec)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

// validateSchedule checks one schedule in isolation and returns its parsed
// cron spec.
func validateSchedule(s types.Schedule) (cron.Schedule, error) {
	var errs []error

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, types.NewAppError(types.ErrCodeConfigMalformedTable, "schedule validation failed", err)
		}
		for _, fe := range verrs {
			errs = append(errs, fieldError(s, fe))
		}
	}

	var spec cron.Schedule
	if s.TimeExpression != "" {
		parsed, err := cronParser.Parse(s.TimeExpression)
		if err != nil {
			errs = append(errs, types.NewAppError(
				types.ErrCodeConfigInvalidTimeExpression,
				fmt.Sprintf("cannot parse time expression %q", s.TimeExpression),
				err,
			))
		} else {
			spec = parsed
		}
	}

	inGames := make(map[types.LotteryType]bool, len(s.Games))
	for _, g := range s.Games {
		if err := catalog.Validate(g); err != nil {
			errs = append(errs, err)
			continue
		}
		if inGames[g.LotteryType] {
			errs = append(errs, types.NewAppError(
				types.ErrCodeConfigDuplicateType,
				fmt.Sprintf("lottery type %s listed more than once in games", g.LotteryType),
				nil,
			))
		}
		inGames[g.LotteryType] = true
	}

	excluded := make(map[types.LotteryType]bool, len(s.ExcludeTypes))
	for _, lt := range s.ExcludeTypes {
		if _, err := catalog.Parse(string(lt)); err != nil {
			errs = append(errs, err)
			continue
		}
		if excluded[lt] {
			errs = append(errs, types.NewAppError(
				types.ErrCodeConfigDuplicateType,
				fmt.Sprintf("lottery type %s listed more than once in excludeTypes", lt),
				nil,
			))
		}
		excluded[lt] = true
		if inGames[lt] {
			errs = append(errs, types.NewAppErrorWithDetails(
				types.ErrCodeConfigExcludeConflict,
				fmt.Sprintf("lottery type %s is both generated and excluded", lt),
				nil,
				map[string]any{"schedule": s.Name, "lottery_type": string(lt)},
			))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return spec, nil
}

// fieldError maps a struct-tag violation onto the config error taxonomy.
func fieldError(s types.Schedule, fe validator.FieldError) *types.AppError {
	code := types.ErrCodeConfigMalformedTable
	msg := fmt.Sprintf("field %s failed %q", fe.Field(), fe.Tag())
	switch fe.Field() {
	case "Name":
		code = types.ErrCodeConfigInvalidName
		msg = fmt.Sprintf("name %q must match %s", s.Name, namePattern)
	case "TimeExpression":
		code = types.ErrCodeConfigInvalidTimeExpression
		msg = "timeExpression is required"
	case "ToleranceMinutes":
		code = types.ErrCodeConfigInvalidTolerance
		msg = fmt.Sprintf("toleranceMinutes %d must be between 1 and 60", s.ToleranceMinutes)
	case "Games":
		code = types.ErrCodeConfigEmptyGames
		msg = "games must list at least one GameSpec"
	}
	return types.NewAppError(code, msg, nil)
}

// All returns a copy of every schedule in table order.
func (t *Table) All() []types.Schedule {
	out := make([]types.Schedule, len(t.schedules))
	for i, s := range t.schedules {
		out[i] = s.Clone()
	}
	return out
}

// Len returns the number of schedules.
func (t *Table) Len() int {
	return len(t.schedules)
}

// ByName looks up a schedule by its unique name.
func (t *Table) ByName(name string) (types.Schedule, bool) {
	i, ok := t.byName[name]
	if !ok {
		return types.Schedule{}, false
	}
	return t.schedules[i].Clone(), true
}

// Location returns the time zone cron expressions are evaluated in.
func (t *Table) Location() *time.Location {
	return t.loc
}

// Matching returns every schedule with an occurrence s such that
// s <= at <= s + tolerance. Schedules sharing a time expression all match.
func (t *Table) Matching(at time.Time) []types.Schedule {
	local := at.In(t.loc)
	var out []types.Schedule
	for i, s := range t.schedules {
		// cron.Next is strictly after its argument at second resolution.
		next := t.specs[i].Next(local.Add(-s.Tolerance() - time.Second))
		if !next.After(local) {
			out = append(out, s.Clone())
		}
	}
	return out
}

// NextFirings returns the next occurrence of every schedule after the given
// time, ordered by time and then by table order.
func (t *Table) NextFirings(after time.Time) []Firing {
	local := after.In(t.loc)
	out := make([]Firing, len(t.schedules))
	for i, s := range t.schedules {
		out[i] = Firing{Schedule: s.Name, At: t.specs[i].Next(local)}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].At.Before(out[b].At)
	})
	return out
}
