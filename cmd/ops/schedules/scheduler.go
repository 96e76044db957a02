package main

import (
	"fmt"
	"strconv"
	"strings"

	"lottodispatch/internal/payload"
	"lottodispatch/internal/types"
)

// Target modes.
const (
	targetDispatcher = "dispatcher"
	targetCompute    = "compute"
)

// SchedulerSchedule is one EventBridge Scheduler schedule derived from a table
// entry, shaped like the CreateSchedule request so that each element can be
// passed to `aws scheduler create-schedule --cli-input-json`.
type SchedulerSchedule struct {
	Name                       string             `json:"Name"`
	GroupName                  string             `json:"GroupName,omitempty"`
	Description                string             `json:"Description,omitempty"`
	ScheduleExpression         string             `json:"ScheduleExpression"`
	ScheduleExpressionTimezone string             `json:"ScheduleExpressionTimezone"`
	FlexibleTimeWindow         FlexibleTimeWindow `json:"FlexibleTimeWindow"`
	Target                     Target             `json:"Target"`
}

// FlexibleTimeWindow lets Scheduler start the target up to
// MaximumWindowInMinutes after the nominal time: the schedule's tolerance.
type FlexibleTimeWindow struct {
	Mode                   string `json:"Mode"`
	MaximumWindowInMinutes int    `json:"MaximumWindowInMinutes,omitempty"`
}

// Target is the schedule target. Input is the literal JSON delivered to Arn.
type Target struct {
	Arn     string `json:"Arn,omitempty"`
	RoleArn string `json:"RoleArn,omitempty"`
	Input   string `json:"Input"`
}

// targetSpec describes where generated schedules deliver.
type targetSpec struct {
	prefix  string
	group   string
	arn     string
	roleArn string
	mode    string
}

// buildSchedule renders the Scheduler schedule for s. In dispatcher mode the
// target input names the schedule; in compute mode it is the payload itself.
func buildSchedule(s types.Schedule, ts targetSpec, tz string) (SchedulerSchedule, error) {
	expr, err := eventBridgeCron(s.TimeExpression)
	if err != nil {
		return SchedulerSchedule{}, fmt.Errorf("schedule %q: %w", s.Name, err)
	}

	var input string
	switch ts.mode {
	case targetDispatcher:
		input = fmt.Sprintf(`{"schedule":%q}`, s.Name)
	case targetCompute:
		body, err := payload.Render(s)
		if err != nil {
			return SchedulerSchedule{}, fmt.Errorf("schedule %q: %w", s.Name, err)
		}
		input = string(body)
	default:
		return SchedulerSchedule{}, fmt.Errorf("unknown target mode %q", ts.mode)
	}

	return SchedulerSchedule{
		Name:                       ts.prefix + s.Name,
		GroupName:                  ts.group,
		Description:                s.Description,
		ScheduleExpression:         expr,
		ScheduleExpressionTimezone: tz,
		FlexibleTimeWindow: FlexibleTimeWindow{
			Mode:                   "FLEXIBLE",
			MaximumWindowInMinutes: s.ToleranceMinutes,
		},
		Target: Target{Arn: ts.arn, RoleArn: ts.roleArn, Input: input},
	}, nil
}

// eventBridgeCron converts a five-field cron expression into the six-field
// cron(...) form EventBridge uses. EventBridge numbers weekdays 1-7 from Sunday and
// requires one of day-of-month and day-of-week to be "?".
func eventBridgeCron(expr string) (string, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return "", fmt.Errorf("time expression %q: want 5 fields, got %d", expr, len(fields))
	}
	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	switch {
	case dow == "*" || dow == "?":
		dow = "?"
	case dom == "*" || dom == "?":
		dom = "?"
		shifted, err := shiftWeekdays(dow)
		if err != nil {
			return "", fmt.Errorf("time expression %q: %w", expr, err)
		}
		dow = shifted
	default:
		return "", fmt.Errorf("time expression %q: EventBridge cannot restrict both day-of-month and day-of-week", expr)
	}

	return fmt.Sprintf("cron(%s %s %s %s %s *)", minute, hour, dom, month, dow), nil
}

// shiftWeekdays renumbers numeric weekdays from 0-6 to 1-7. Names and step
// values are left untouched.
func shiftWeekdays(field string) (string, error) {
	parts := strings.Split(field, ",")
	for i, part := range parts {
		base, step, hasStep := strings.Cut(part, "/")
		bounds := strings.Split(base, "-")
		for j, b := range bounds {
			n, err := strconv.Atoi(b)
			if err != nil {
				continue
			}
			if n < 0 || n > 7 {
				return "", fmt.Errorf("weekday %d out of range", n)
			}
			// 7 is an alias for Sunday.
			bounds[j] = strconv.Itoa(n%7 + 1)
		}
		if len(bounds) == 2 {
			lo, errLo := strconv.Atoi(bounds[0])
			hi, errHi := strconv.Atoi(bounds[1])
			if errLo == nil && errHi == nil && lo > hi {
				return "", fmt.Errorf("weekday range %q wraps past Saturday", base)
			}
		}
		parts[i] = strings.Join(bounds, "-")
		if hasStep {
			parts[i] += "/" + step
		}
	}
	return strings.Join(parts, ","), nil
}
