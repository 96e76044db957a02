// Package main is the entrypoint for the dispatcher Lambda function.
//
// EventBridge rules invoke the dispatcher on each draw-night schedule. The
// target input is either a TriggerEvent naming the schedule, or the raw
// scheduled event envelope, in which case the schedule is taken from the rule
// name or resolved by matching the event time.
//
// Handler flow per invocation:
//  1. Decode the trigger.
//  2. Resolve and fire the matching schedule(s) through the dispatcher.
//  3. Summarize every firing and return any failure so that the trigger's
//     retry policy can act on it.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // the provided.al2023 runtime ships no zoneinfo

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"lottodispatch/internal/config"
	"lottodispatch/internal/dispatch"
	"lottodispatch/internal/invoker"
	"lottodispatch/internal/metrics"
	"lottodispatch/internal/schedule"
	"lottodispatch/internal/types"
)

// Dispatcher is the subset of *dispatch.Dispatcher the handler calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev types.TriggerEvent, eventTime time.Time) ([]dispatch.Result, error)
}

// Handler holds the dependencies for the dispatcher Lambda handler function.
type Handler struct {
	Dispatcher Dispatcher
	RulePrefix string
	Logger     *slog.Logger
}

// FiringSummary reports one firing in the handler response.
type FiringSummary struct {
	Schedule      string `json:"schedule"`
	FiringID      string `json:"firingId"`
	PayloadDigest string `json:"payloadDigest,omitempty"`
	StatusCode    int    `json:"statusCode,omitempty"`
	DurationMs    int64  `json:"durationMs"`
	Error         string `json:"error,omitempty"`
}

// Summary is the handler response.
type Summary struct {
	Dispatched int             `json:"dispatched"`
	Failed     int             `json:"failed"`
	Firings    []FiringSummary `json:"firings"`
}

// Handle decodes one trigger and dispatches it.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) (Summary, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With("aws_request_id", lc.AwsRequestID)
	}

	ev, eventTime, err := parseTrigger(raw, h.RulePrefix)
	if err != nil {
		logger.ErrorContext(ctx, "failed to decode trigger", "error", err)
		return Summary{}, err
	}

	logger.InfoContext(ctx, "dispatcher handler invoked",
		"schedule", ev.Schedule,
		"event_time", formatTime(eventTime),
	)

	results, dispatchErr := h.Dispatcher.Dispatch(types.WithLogger(ctx, logger), ev, eventTime)

	summary := Summary{Firings: make([]FiringSummary, 0, len(results))}
	for _, r := range results {
		fs := FiringSummary{
			Schedule:      r.Schedule,
			FiringID:      r.FiringID,
			PayloadDigest: r.PayloadDigest,
			StatusCode:    r.StatusCode,
			DurationMs:    r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			fs.Error = r.Err.Error()
			summary.Failed++
		} else {
			summary.Dispatched++
		}
		summary.Firings = append(summary.Firings, fs)
	}

	if dispatchErr != nil {
		logger.ErrorContext(ctx, "dispatch failed",
			"error", dispatchErr,
			"retryable", types.IsRetryable(dispatchErr),
			"dispatched", summary.Dispatched,
			"failed", summary.Failed,
		)
		return summary, dispatchErr
	}

	logger.InfoContext(ctx, "dispatch complete", "dispatched", summary.Dispatched)
	return summary, nil
}

// parseTrigger accepts either a TriggerEvent or a scheduled-event envelope.
// For an envelope, a TriggerEvent in the detail wins, then a rule resource
// named <prefix><schedule>; otherwise the firing is resolved by event time.
func parseTrigger(raw json.RawMessage, rulePrefix string) (types.TriggerEvent, time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return types.TriggerEvent{}, time.Time{}, types.NewAppError(types.ErrCodeResolutionEmptyEvent, "trigger event is empty", nil)
	}

	var envelope struct {
		DetailType string `json:"detail-type"`
		Source     string `json:"source"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return types.TriggerEvent{}, time.Time{}, types.NewAppError(types.ErrCodeResolutionEmptyEvent, "trigger event is not a JSON object", err)
	}

	if envelope.DetailType == "" && envelope.Source == "" {
		var ev types.TriggerEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return types.TriggerEvent{}, time.Time{}, types.NewAppError(types.ErrCodeResolutionEmptyEvent, "malformed trigger event", err)
		}
		return ev, time.Time{}, nil
	}

	var cw events.CloudWatchEvent
	if err := json.Unmarshal(raw, &cw); err != nil {
		return types.TriggerEvent{}, time.Time{}, types.NewAppError(types.ErrCodeResolutionEmptyEvent, "malformed scheduled event", err)
	}

	var ev types.TriggerEvent
	if detail := bytes.TrimSpace(cw.Detail); len(detail) > 0 && !bytes.Equal(detail, []byte("null")) {
		if err := json.Unmarshal(detail, &ev); err != nil {
			return types.TriggerEvent{}, time.Time{}, types.NewAppError(types.ErrCodeResolutionEmptyEvent, "malformed scheduled event detail", err)
		}
	}
	if ev.Schedule == "" {
		ev.Schedule = scheduleFromResources(cw.Resources, rulePrefix)
	}
	return ev, cw.Time, nil
}

// scheduleFromResources extracts the schedule name from a rule ARN such as
// arn:aws:events:af-south-1:123456789012:rule/lotto-powerball-full.
func scheduleFromResources(resources []string, prefix string) string {
	if prefix == "" {
		return ""
	}
	for _, arn := range resources {
		_, rule, ok := strings.Cut(arn, ":rule/")
		if !ok {
			continue
		}
		// Rules on a custom bus are addressed as rule/<bus>/<name>.
		if i := strings.LastIndexByte(rule, '/'); i >= 0 {
			rule = rule[i+1:]
		}
		if name, ok := strings.CutPrefix(rule, prefix); ok && name != "" {
			return name
		}
	}
	return ""
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// newHandler wires the dispatcher from configuration.
func newHandler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Handler, error) {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, err
	}

	table, err := schedule.Load(cfg.Schedule.TablePath, schedule.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("loading schedule table: %w", err)
	}

	inv, err := invoker.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing compute invoker: %w", err)
	}

	var rec metrics.Recorder = metrics.Noop{}
	if cfg.Observability.EnableMetrics {
		awsCfg, err := invoker.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		rec = metrics.NewCloudWatchRecorder(client, cfg.Observability.MetricNamespace, logger)
	}

	d := dispatch.New(table, inv,
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(rec),
		dispatch.WithTimeout(cfg.Compute.Timeout),
	)

	logger.Info("schedule table loaded",
		"schedules", table.Len(),
		"timezone", loc.String(),
		"source", tableSource(cfg.Schedule.TablePath),
	)

	return &Handler{
		Dispatcher: d,
		RulePrefix: cfg.Schedule.RulePrefix,
		Logger:     logger,
	}, nil
}

func tableSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Dispatcher Lambda initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			logger.Error("Invalid configuration", "type", cfgErr.Type, "error", cfgErr)
		} else {
			logger.Error("Failed to load configuration", "error", err)
		}
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})).With("service", cfg.Service, "version", cfg.Build.Version)
	slog.SetDefault(logger)

	handler, err := newHandler(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize dispatcher", "error", err)
		os.Exit(1)
	}

	logger.Info("Dispatcher Lambda initialized",
		"environment", cfg.Environment,
		"compute_mode", cfg.Compute.Mode,
	)

	lambda.Start(handler.Handle)
}
