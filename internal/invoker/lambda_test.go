package invoker

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
	smithymiddleware "github.com/aws/smithy-go/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottodispatch/internal/types"
)

// mockLambda captures Invoke calls for assertions.
type mockLambda struct {
	calls []*lambda.InvokeInput
	out   *lambda.InvokeOutput
	err   error
	delay time.Duration
}

func (m *mockLambda) Invoke(ctx context.Context, in *lambda.InvokeInput, _ ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	m.calls = append(m.calls, in)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.out != nil {
		return m.out, nil
	}
	return &lambda.InvokeOutput{StatusCode: 202}, nil
}

const testFunction = "arn:aws:lambda:af-south-1:123456789012:function:NationalLottery"

func testRequest() Request {
	return Request{
		Schedule: "powerball-full",
		FiringID: "f-123",
		Body:     []byte(`{"games":[{"lotteryType":"powerball","boardCount":2}],"sendMail":true}`),
	}
}

func TestLambdaInvoker_SendsEventInvocation(t *testing.T) {
	mock := &mockLambda{}
	inv := NewLambdaInvoker(mock, testFunction)

	resp, err := inv.Invoke(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 202, resp.StatusCode)

	require.Len(t, mock.calls, 1)
	call := mock.calls[0]
	assert.Equal(t, testFunction, aws.ToString(call.FunctionName))
	assert.Equal(t, lambdatypes.InvocationTypeEvent, call.InvocationType)
	assert.Equal(t, testRequest().Body, call.Payload)
	assert.Nil(t, call.ClientContext, "client context is only sent for synchronous invocations")
}

func TestLambdaInvoker_RequestResponseCarriesClientContext(t *testing.T) {
	var md smithymiddleware.Metadata
	awsmiddleware.SetRequestIDMetadata(&md, "req-abc")
	mock := &mockLambda{out: &lambda.InvokeOutput{StatusCode: 200, ResultMetadata: md}}
	inv := NewLambdaInvoker(mock, testFunction, WithInvocationType(lambdatypes.InvocationTypeRequestResponse))

	resp, err := inv.Invoke(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "req-abc", resp.RequestID)

	raw, err := base64.StdEncoding.DecodeString(aws.ToString(mock.calls[0].ClientContext))
	require.NoError(t, err)
	assert.JSONEq(t, `{"custom":{"firing_id":"f-123","schedule":"powerball-full"}}`, string(raw))
}

func TestLambdaInvoker_FunctionErrorIsNotTransportFailure(t *testing.T) {
	mock := &mockLambda{out: &lambda.InvokeOutput{StatusCode: 200, FunctionError: aws.String("Unhandled")}}
	inv := NewLambdaInvoker(mock, testFunction, WithInvocationType(lambdatypes.InvocationTypeRequestResponse))

	resp, err := inv.Invoke(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Unhandled", resp.FunctionError)
}

func TestLambdaInvoker_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"throttled", &lambdatypes.TooManyRequestsException{Message: aws.String("rate exceeded")}, types.ErrCodeInvocationThrottled},
		{"not found", &lambdatypes.ResourceNotFoundException{Message: aws.String("no such function")}, types.ErrCodeInvocationRejected},
		{"client fault", &smithy.GenericAPIError{Code: "InvalidRequestContentException", Fault: smithy.FaultClient}, types.ErrCodeInvocationRejected},
		{"server fault", &smithy.GenericAPIError{Code: "ServiceException", Fault: smithy.FaultServer}, types.ErrCodeInvocationUnreachable},
		{"network", errors.New("dial tcp: i/o timeout"), types.ErrCodeInvocationUnreachable},
		{"deadline", context.DeadlineExceeded, types.ErrCodeInvocationTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := NewLambdaInvoker(&mockLambda{err: tt.err}, testFunction)

			_, err := inv.Invoke(context.Background(), testRequest())
			require.Error(t, err)
			assert.Equal(t, tt.want, types.CodeOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestLambdaInvoker_HonoursContextDeadline(t *testing.T) {
	inv := NewLambdaInvoker(&mockLambda{delay: time.Second}, testFunction)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := inv.Invoke(ctx, testRequest())
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeInvocationTimeout, types.CodeOf(err))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLambdaInvoker_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	mock := &mockLambda{err: errors.New("connection refused")}
	inv := NewLambdaInvoker(mock, testFunction)

	for i := 0; i < 6; i++ {
		_, err := inv.Invoke(context.Background(), testRequest())
		require.Error(t, err)
	}
	require.Len(t, mock.calls, 6)

	_, err := inv.Invoke(context.Background(), testRequest())
	require.Error(t, err)
	assert.Len(t, mock.calls, 6, "open breaker must not reach the client")
	assert.Equal(t, types.ErrCodeInvocationUnreachable, types.CodeOf(err))
	assert.Contains(t, err.Error(), "circuit breaker")
}

func TestLambdaInvoker_BreakerIsPerSchedule(t *testing.T) {
	mock := &mockLambda{err: errors.New("connection refused")}
	inv := NewLambdaInvoker(mock, testFunction)

	failing := Request{Schedule: "lotto-full", FiringID: "f-1", Body: []byte(`{}`)}
	for i := 0; i < 6; i++ {
		_, err := inv.Invoke(context.Background(), failing)
		require.Error(t, err)
	}

	_, err := inv.Invoke(context.Background(), failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker")
	require.Len(t, mock.calls, 6)

	mock.err = nil
	resp, err := inv.Invoke(context.Background(), testRequest())
	require.NoError(t, err, "another schedule must not inherit the open breaker")
	assert.Equal(t, 202, resp.StatusCode)
	assert.Len(t, mock.calls, 7)
}

func TestLambdaInvoker_RejectionsDoNotTripBreaker(t *testing.T) {
	mock := &mockLambda{err: &lambdatypes.ResourceNotFoundException{Message: aws.String("gone")}}
	inv := NewLambdaInvoker(mock, testFunction)

	for i := 0; i < 8; i++ {
		_, err := inv.Invoke(context.Background(), testRequest())
		require.Error(t, err)
		assert.Equal(t, types.ErrCodeInvocationRejected, types.CodeOf(err))
	}
	assert.Len(t, mock.calls, 8)
}
