package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// SSMClient is the subset of the SSM API the token command needs.
type SSMClient interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

const (
	ssmOperationTimeout = 15 * time.Second

	// 32 bytes, hex-encoded to 64 characters.
	tokenByteLength = 32
)

var errTokenExists = errors.New("auth token already exists")

// tokenPath is where the dispatcher's COMPUTE_AUTH_TOKEN_SSM_PARAM points.
func tokenPath(env string) string {
	return fmt.Sprintf("/%s/lottodispatch/compute/auth-token", env)
}

// generateToken returns a random hex token.
func generateToken() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating auth token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TokenPublisher writes the compute auth token to Parameter Store.
type TokenPublisher struct {
	client SSMClient
	logger *slog.Logger
}

// NewTokenPublisher creates a TokenPublisher.
func NewTokenPublisher(client SSMClient, logger *slog.Logger) *TokenPublisher {
	return &TokenPublisher{client: client, logger: logger}
}

// Exists reports whether a parameter is present at path.
func (p *TokenPublisher) Exists(ctx context.Context, path string) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, ssmOperationTimeout)
	defer cancel()

	// No decryption: an existence check should not need kms:Decrypt.
	_, err := p.client.GetParameter(opCtx, &ssm.GetParameterInput{
		Name:           aws.String(path),
		WithDecryption: aws.Bool(false),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking SSM parameter %q: %w", path, err)
	}
	return true, nil
}

// Publish stores value as a SecureString at path. Without overwrite an
// existing parameter is left alone and errTokenExists is returned. The value
// is never logged.
func (p *TokenPublisher) Publish(ctx context.Context, path, value string, overwrite bool) error {
	if value == "" {
		return fmt.Errorf("auth token for %q must not be empty", path)
	}

	if !overwrite {
		exists, err := p.Exists(ctx, path)
		if err != nil {
			return err
		}
		if exists {
			p.logger.Warn("auth token already exists (use -overwrite to replace)", "path", path)
			return fmt.Errorf("%w at %s", errTokenExists, path)
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, ssmOperationTimeout)
	defer cancel()

	_, err := p.client.PutParameter(opCtx, &ssm.PutParameterInput{
		Name:      aws.String(path),
		Value:     aws.String(value),
		Type:      ssmtypes.ParameterTypeSecureString,
		Overwrite: aws.Bool(overwrite),
	})
	if err != nil {
		var alreadyExists *ssmtypes.ParameterAlreadyExists
		if errors.As(err, &alreadyExists) {
			return fmt.Errorf("%w at %s", errTokenExists, path)
		}
		return fmt.Errorf("writing SSM parameter %q: %w", path, err)
	}

	p.logger.Info("auth token written",
		"path", path,
		"value_length", len(value),
	)
	return nil
}
