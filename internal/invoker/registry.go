package invoker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"lottodispatch/internal/config"
	"lottodispatch/internal/types"
)

// New builds the invoker selected by cfg.Compute.Mode.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Invoker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch types.ComputeMode(cfg.Compute.Mode) {
	case types.ComputeModeLambda:
		awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		client := lambda.NewFromConfig(awsCfg, func(o *lambda.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		logger.Info("compute invoker initialized",
			"mode", cfg.Compute.Mode,
			"function", cfg.Compute.FunctionName,
			"invocation_type", cfg.Compute.InvocationType,
		)
		return NewLambdaInvoker(client, cfg.Compute.FunctionName,
			WithInvocationType(lambdatypes.InvocationType(cfg.Compute.InvocationType)),
			WithLambdaLogger(logger),
		), nil

	case types.ComputeModeHTTP:
		logger.Info("compute invoker initialized",
			"mode", cfg.Compute.Mode,
			"url", cfg.Compute.FunctionURL,
		)
		return NewHTTPInvoker(&http.Client{}, HTTPConfig{
			URL:       cfg.Compute.FunctionURL,
			AuthToken: cfg.Compute.AuthToken,
			UserAgent: fmt.Sprintf("LottoDispatch/%s", cfg.Build.Version),
			Logger:    logger,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported compute mode %q", cfg.Compute.Mode)
	}
}

// LoadAWSConfig resolves the SDK configuration for the configured region.
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config (region=%s): %w", cfg.Region, err)
	}
	return awsCfg, nil
}
