// Package metrics publishes dispatch telemetry to CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"lottodispatch/internal/types"
)

// Recorder receives one observation per firing. Implementations must not
// fail the firing: emission errors are logged and dropped.
type Recorder interface {
	RecordDispatch(ctx context.Context, schedule string, result types.DispatchResult, latency time.Duration)
	RecordTriggerLag(ctx context.Context, lag time.Duration)
}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ Recorder = (*CloudWatchRecorder)(nil)

// CloudWatchRecorder emits:
//   - DispatchAttempt: Dims {Schedule, Result}
//   - DispatchLatency: Dims {Schedule}, milliseconds
//   - TriggerLag: no dims, milliseconds between nominal and actual firing
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchRecorder creates a recorder publishing to namespace. An empty
// namespace falls back to types.MetricNamespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchRecorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDispatch emits the attempt counter and latency for one firing in a
// single PutMetricData call.
func (r *CloudWatchRecorder) RecordDispatch(ctx context.Context, schedule string, result types.DispatchResult, latency time.Duration) {
	scheduleDim := cwtypes.Dimension{Name: aws.String(types.DimSchedule), Value: aws.String(schedule)}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricDispatchAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					scheduleDim,
					{Name: aws.String(types.DimResult), Value: aws.String(string(result))},
				},
			},
			{
				MetricName: aws.String(types.MetricDispatchLatency),
				Value:      aws.Float64(float64(latency.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{scheduleDim},
			},
		},
	}

	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.ErrorContext(ctx, "failed to record dispatch metric",
			"error", err.Error(),
			"schedule", schedule,
			"result", string(result),
		)
	}
}

// RecordTriggerLag emits the delay between the nominal firing time and the
// moment the dispatcher ran.
func (r *CloudWatchRecorder) RecordTriggerLag(ctx context.Context, lag time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricTriggerLag),
				Value:      aws.Float64(float64(lag.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
			},
		},
	}

	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.ErrorContext(ctx, "failed to record trigger lag metric",
			"error", err.Error(),
			"lag_ms", lag.Milliseconds(),
		)
	}
}

// Noop discards all observations.
type Noop struct{}

func (Noop) RecordDispatch(context.Context, string, types.DispatchResult, time.Duration) {}
func (Noop) RecordTriggerLag(context.Context, time.Duration)                            {}
