package invoker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lottodispatch/internal/config"
)

func TestNew_HTTPMode(t *testing.T) {
	cfg := &config.Config{
		Compute: config.ComputeConfig{Mode: "http", FunctionURL: "https://compute.example.com/invoke"},
		Build:   config.BuildInfo{Version: "1.2.3"},
	}

	inv, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	h, ok := inv.(*HTTPInvoker)
	require.True(t, ok, "expected *HTTPInvoker, got %T", inv)
	assert.Equal(t, "LottoDispatch/1.2.3", h.userAgent)
}

func TestNew_LambdaMode(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	cfg := &config.Config{
		AWS:     config.AWSConfig{Region: "af-south-1", EndpointURL: "http://localhost:4566"},
		Compute: config.ComputeConfig{Mode: "lambda", FunctionName: "NationalLottery", InvocationType: "Event"},
	}

	inv, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	_, ok := inv.(*LambdaInvoker)
	assert.True(t, ok, "expected *LambdaInvoker, got %T", inv)
}

func TestNew_UnknownMode(t *testing.T) {
	_, err := New(context.Background(), &config.Config{Compute: config.ComputeConfig{Mode: "grpc"}}, nil)
	assert.Error(t, err)
}
