package metrics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lottodispatch/internal/types"
)

type mockCloudWatch struct {
	mock.Mock
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	args := m.Called(ctx, in)
	if out := args.Get(0); out != nil {
		return out.(*cloudwatch.PutMetricDataOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestRecordDispatch(t *testing.T) {
	cw := &mockCloudWatch{}
	cw.On("PutMetricData", mock.Anything, mock.MatchedBy(func(in *cloudwatch.PutMetricDataInput) bool {
		if aws.ToString(in.Namespace) != "LottoTest" || len(in.MetricData) != 2 {
			return false
		}
		attempt, latency := in.MetricData[0], in.MetricData[1]
		return aws.ToString(attempt.MetricName) == types.MetricDispatchAttempt &&
			aws.ToString(attempt.Dimensions[0].Value) == "lotto-full" &&
			aws.ToString(attempt.Dimensions[1].Value) == "success" &&
			aws.ToString(latency.MetricName) == types.MetricDispatchLatency &&
			aws.ToFloat64(latency.Value) == 250
	})).Return(&cloudwatch.PutMetricDataOutput{}, nil).Once()

	rec := NewCloudWatchRecorder(cw, "LottoTest", nil)
	rec.RecordDispatch(context.Background(), "lotto-full", types.DispatchSuccess, 250*time.Millisecond)

	cw.AssertExpectations(t)
}

func TestRecordTriggerLag(t *testing.T) {
	cw := &mockCloudWatch{}
	cw.On("PutMetricData", mock.Anything, mock.MatchedBy(func(in *cloudwatch.PutMetricDataInput) bool {
		return aws.ToString(in.Namespace) == types.MetricNamespace &&
			aws.ToString(in.MetricData[0].MetricName) == types.MetricTriggerLag &&
			aws.ToFloat64(in.MetricData[0].Value) == 90000
	})).Return(&cloudwatch.PutMetricDataOutput{}, nil).Once()

	NewCloudWatchRecorder(cw, "", nil).RecordTriggerLag(context.Background(), 90*time.Second)

	cw.AssertExpectations(t)
}

func TestRecordDispatch_ErrorIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	cw := &mockCloudWatch{}
	cw.On("PutMetricData", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	rec := NewCloudWatchRecorder(cw, "LottoTest", logger)
	require.NotPanics(t, func() {
		rec.RecordDispatch(context.Background(), "lotto-full", types.DispatchFailed, time.Second)
	})
	assert.Contains(t, buf.String(), "failed to record dispatch metric")
	assert.Contains(t, buf.String(), "throttled")
}

func TestNoop(t *testing.T) {
	var r Recorder = Noop{}
	r.RecordDispatch(context.Background(), "x", types.DispatchSuccess, time.Second)
	r.RecordTriggerLag(context.Background(), time.Second)
}
