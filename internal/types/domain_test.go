package types

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestScheduleTolerance(t *testing.T) {
	s := Schedule{ToleranceMinutes: 15}
	if got := s.Tolerance(); got != 15*time.Minute {
		t.Errorf("Tolerance() = %v, want 15m", got)
	}
}

func TestScheduleCloneIsDeep(t *testing.T) {
	s := Schedule{
		Name:         "powerball-only",
		Games:        []GameSpec{{LotteryType: LotteryPowerball, BoardCount: 2}},
		ExcludeTypes: []LotteryType{LotteryDaily},
	}
	c := s.Clone()
	c.Games[0].BoardCount = 9
	c.ExcludeTypes[0] = LotteryLotto

	if s.Games[0].BoardCount != 2 {
		t.Error("Clone shares Games backing array")
	}
	if s.ExcludeTypes[0] != LotteryDaily {
		t.Error("Clone shares ExcludeTypes backing array")
	}
}

func TestScheduleCloneKeepsNilExcludes(t *testing.T) {
	c := Schedule{Games: []GameSpec{{LotteryType: LotteryDaily, BoardCount: 1}}}.Clone()
	if c.ExcludeTypes != nil {
		t.Errorf("ExcludeTypes = %v, want nil", c.ExcludeTypes)
	}
}

func TestTriggerEventDecode(t *testing.T) {
	var ev TriggerEvent
	if err := json.Unmarshal([]byte(`{"schedule":"lotto-full","time":"2026-10-17T20:20:00Z"}`), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Schedule != "lotto-full" {
		t.Errorf("Schedule = %q", ev.Schedule)
	}
	if ev.Time == nil || !ev.Time.Equal(time.Date(2026, 10, 17, 20, 20, 0, 0, time.UTC)) {
		t.Errorf("Time = %v", ev.Time)
	}
}

func TestSecretStringRedacts(t *testing.T) {
	s := SecretString("token-123")

	if got := fmt.Sprintf("%v", s); got != redactedPlaceholder {
		t.Errorf("fmt = %q, want redacted", got)
	}
	b, err := json.Marshal(struct{ Token SecretString }{s})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"Token":"***REDACTED***"}` {
		t.Errorf("json = %s", b)
	}
	if s.Unmask() != "token-123" || !s.IsSet() {
		t.Error("Unmask/IsSet mismatch")
	}
	if SecretString("").IsSet() {
		t.Error("empty secret should not be set")
	}
}

func TestLoggerFromContextOr(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := LoggerFromContextOr(context.Background(), fallback); got != fallback {
		t.Error("expected fallback logger for a bare context")
	}

	stored := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithLogger(context.Background(), stored)
	if got := LoggerFromContextOr(ctx, fallback); got != stored {
		t.Error("expected the stored logger")
	}
}
