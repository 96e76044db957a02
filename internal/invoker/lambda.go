package invoker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"

	"lottodispatch/internal/types"
)

// LambdaAPI is the subset of the Lambda SDK client used by LambdaInvoker.
type LambdaAPI interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// LambdaInvoker invokes the compute function through the Lambda Invoke API.
// With InvocationTypeEvent (the default) Lambda queues the event and returns
// 202 immediately, matching the EventBridge-to-Lambda target it replaces.
type LambdaInvoker struct {
	client         LambdaAPI
	functionName   string
	invocationType lambdatypes.InvocationType
	breakers       *breakerSet[*lambda.InvokeOutput]
	logger         *slog.Logger
}

// LambdaOption configures a LambdaInvoker.
type LambdaOption func(*LambdaInvoker)

// WithInvocationType overrides the default asynchronous Event invocation.
func WithInvocationType(t lambdatypes.InvocationType) LambdaOption {
	return func(l *LambdaInvoker) {
		l.invocationType = t
	}
}

// WithLambdaLogger sets the logger.
func WithLambdaLogger(logger *slog.Logger) LambdaOption {
	return func(l *LambdaInvoker) {
		l.logger = logger
	}
}

// NewLambdaInvoker creates a LambdaInvoker for functionName (name or ARN).
func NewLambdaInvoker(client LambdaAPI, functionName string, opts ...LambdaOption) *LambdaInvoker {
	l := &LambdaInvoker{
		client:         client,
		functionName:   functionName,
		invocationType: lambdatypes.InvocationTypeEvent,
		breakers:       newBreakerSet[*lambda.InvokeOutput]("compute-lambda"),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// clientContext is forwarded to synchronous invocations only; Lambda drops
// it for Event invocations.
type clientContext struct {
	Custom map[string]string `json:"custom"`
}

// Invoke sends req.Body as the Lambda event payload.
func (l *LambdaInvoker) Invoke(ctx context.Context, req Request) (Response, error) {
	input := &lambda.InvokeInput{
		FunctionName:   aws.String(l.functionName),
		InvocationType: l.invocationType,
		Payload:        req.Body,
	}
	if l.invocationType == lambdatypes.InvocationTypeRequestResponse {
		raw, err := json.Marshal(clientContext{Custom: map[string]string{
			"firing_id": req.FiringID,
			"schedule":  req.Schedule,
		}})
		if err == nil {
			input.ClientContext = aws.String(base64.StdEncoding.EncodeToString(raw))
		}
	}

	breaker, breakerName := l.breakers.get(req.Schedule)
	out, err := breaker.Execute(func() (*lambda.InvokeOutput, error) {
		out, err := l.client.Invoke(ctx, input)
		if err != nil {
			return nil, classifyLambdaError(ctx, err)
		}
		return out, nil
	})
	if err != nil {
		return Response{}, breakerError(breakerName, err)
	}

	resp := Response{
		StatusCode:    int(out.StatusCode),
		FunctionError: aws.ToString(out.FunctionError),
	}
	if id, ok := awsmiddleware.GetRequestIDMetadata(out.ResultMetadata); ok {
		resp.RequestID = id
	}

	if resp.FunctionError != "" {
		// Application-level failure inside the compute function. Not ours to retry.
		l.logger.WarnContext(ctx, "compute function reported an error",
			"schedule", req.Schedule,
			"firing_id", req.FiringID,
			"function_error", resp.FunctionError,
			"aws_request_id", resp.RequestID,
		)
	}

	return resp, nil
}

// classifyLambdaError maps SDK errors onto the invocation taxonomy.
func classifyLambdaError(ctx context.Context, err error) error {
	if appErr := contextError(ctx, err); appErr != nil {
		return appErr
	}

	var throttled *lambdatypes.TooManyRequestsException
	if errors.As(err, &throttled) {
		return types.NewAppError(types.ErrCodeInvocationThrottled, "compute function invocation throttled", err)
	}

	var notFound *lambdatypes.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return types.NewAppError(types.ErrCodeInvocationRejected, "compute function not found", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() == smithy.FaultClient {
		return types.NewAppErrorWithDetails(
			types.ErrCodeInvocationRejected,
			"compute function rejected the invocation",
			err,
			map[string]any{"aws_error_code": apiErr.ErrorCode()},
		)
	}

	return types.NewAppError(types.ErrCodeInvocationUnreachable, "compute function could not be reached", err)
}
