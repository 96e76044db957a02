package types

import "time"

// GameSpec describes generation work for one draw type.
type GameSpec struct {
	LotteryType LotteryType `json:"lotteryType"`
	BoardCount  int         `json:"boardCount"`
}

// Schedule is a named recurring trigger definition. Schedules are authored as
// static data and owned by a schedule.Table; they never reference each other.
//
// TimeExpression is a five-field cron (minute hour day-of-month month
// day-of-week). ExcludeTypes is passed to the compute function unchanged.
type Schedule struct {
	Name             string        `json:"name" validate:"required,schedule_name"`
	Description      string        `json:"description,omitempty"`
	TimeExpression   string        `json:"timeExpression" validate:"required"`
	ToleranceMinutes int           `json:"toleranceMinutes" validate:"min=1,max=60"`
	Games            []GameSpec    `json:"games" validate:"min=1"`
	SendMail         bool          `json:"sendMail"`
	ExcludeTypes     []LotteryType `json:"excludeTypes,omitempty"`
}

// Tolerance returns the tolerance window as a duration.
func (s Schedule) Tolerance() time.Duration {
	return time.Duration(s.ToleranceMinutes) * time.Minute
}

// Clone returns a deep copy so callers cannot mutate table-owned slices.
func (s Schedule) Clone() Schedule {
	c := s
	if s.Games != nil {
		c.Games = append([]GameSpec(nil), s.Games...)
	}
	if s.ExcludeTypes != nil {
		c.ExcludeTypes = append([]LotteryType(nil), s.ExcludeTypes...)
	}
	return c
}

// Payload is the JSON document sent to the compute function on every firing.
//
//	{
//	  "games": [{"lotteryType": "powerball", "boardCount": 2}],
//	  "sendMail": true,
//	  "excludeTypes": ["daily"]   // present only when non-empty
//	}
//
// Field order is part of the contract: encoding/json emits struct fields in
// declaration order, which keeps the bytes stable across builds.
type Payload struct {
	Games        []GameSpec    `json:"games"`
	SendMail     bool          `json:"sendMail"`
	ExcludeTypes []LotteryType `json:"excludeTypes,omitempty"`
}

// TriggerEvent is the target input EventBridge delivers to the dispatcher.
// Schedule names the schedule explicitly; when empty the firing is resolved by
// matching Time (or the event time) against every schedule's cron.
type TriggerEvent struct {
	Schedule string     `json:"schedule,omitempty"`
	Time     *time.Time `json:"time,omitempty"`
}
