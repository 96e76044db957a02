// Package config defines the process configuration for the lottery dispatcher.
// Configuration is loaded once at Lambda cold start and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or invalid format fails startup.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"lottodispatch/internal/types"
)

// SecretString is an alias for types.SecretString so callers of this package
// need not import types for credential fields.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subset they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"lotto-dispatcher"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	AWS           AWSConfig
	Compute       ComputeConfig
	Schedule      ScheduleConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not Env
	Build BuildInfo
}

// AWSConfig holds regional configuration shared by every AWS client.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"af-south-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// ComputeConfig identifies the compute function and how it is reached.
type ComputeConfig struct {
	Mode string `envconfig:"COMPUTE_MODE" default:"lambda" validate:"oneof=lambda http"`

	// FunctionName accepts a name, partial ARN or full ARN.
	FunctionName   string `envconfig:"COMPUTE_FUNCTION_NAME" validate:"required_if=Mode lambda"`
	InvocationType string `envconfig:"COMPUTE_INVOCATION_TYPE" default:"Event" validate:"oneof=Event RequestResponse"`

	FunctionURL string       `envconfig:"COMPUTE_FUNCTION_URL" validate:"required_if=Mode http,omitempty,url"`
	AuthToken   SecretString `envconfig:"COMPUTE_AUTH_TOKEN"`

	// Timeout overrides the per-schedule tolerance window when non-zero.
	Timeout time.Duration `envconfig:"DISPATCH_TIMEOUT" default:"0s" validate:"min=0"`
}

// ScheduleConfig controls where the schedule table comes from and how its
// cron expressions are interpreted.
type ScheduleConfig struct {
	// TablePath overrides the embedded table when set.
	TablePath  string `envconfig:"SCHEDULE_TABLE_PATH"`
	Timezone   string `envconfig:"SCHEDULE_TIMEZONE" default:"UTC"`
	RulePrefix string `envconfig:"RULE_PREFIX" default:"lotto-"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"LottoDispatch"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Location resolves the schedule time zone.
func (c ScheduleConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading schedule timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SlogLevel maps LogLevel onto a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
