package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type mockSSMClient struct {
	batches [][]string
	values  map[string]string
	err     error
}

func (m *mockSSMClient) GetParameters(_ context.Context, in *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	m.batches = append(m.batches, in.Names)
	if m.err != nil {
		return nil, m.err
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range in.Names {
		if v, ok := m.values[name]; ok {
			out.Parameters = append(out.Parameters, ssmtypes.Parameter{Name: aws.String(name), Value: aws.String(v)})
		} else {
			out.InvalidParameters = append(out.InvalidParameters, name)
		}
	}
	return out, nil
}

func TestSSMProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = (*SSMProvider)(nil)
	var _ SecretProvider = (*EnvVarProvider)(nil)
}

func TestSSMProviderBatches(t *testing.T) {
	values := make(map[string]string)
	keys := make([]string, 0, 23)
	for i := 0; i < 23; i++ {
		k := fmt.Sprintf("/dev/lotto/p%d", i)
		keys = append(keys, k)
		values[k] = fmt.Sprintf("v%d", i)
	}
	client := &mockSSMClient{values: values}
	provider := newSSMProviderWithClient("af-south-1", client)

	got, err := provider.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch: %v", err)
	}
	if len(client.batches) != 3 {
		t.Errorf("batches = %d, want 3", len(client.batches))
	}
	if len(got) != 23 || got["/dev/lotto/p22"] != "v22" {
		t.Errorf("unexpected result: %d entries", len(got))
	}
}

func TestSSMProviderOmitsInvalid(t *testing.T) {
	client := &mockSSMClient{values: map[string]string{"/a": "1"}}
	provider := newSSMProviderWithClient("af-south-1", client)

	got, err := provider.GetParametersBatch(context.Background(), []string{"/a", "/b"})
	if err != nil {
		t.Fatalf("GetParametersBatch: %v", err)
	}
	if _, ok := got["/b"]; ok || got["/a"] != "1" {
		t.Errorf("unexpected result: %v", got)
	}
}

func TestSSMProviderErrors(t *testing.T) {
	provider := newSSMProviderWithClient("af-south-1", &mockSSMClient{err: errors.New("denied")})
	if _, err := provider.GetParametersBatch(context.Background(), []string{"/a"}); err == nil {
		t.Error("expected error from client failure")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	provider = newSSMProviderWithClient("af-south-1", &mockSSMClient{})
	if _, err := provider.GetParametersBatch(ctx, []string{"/a"}); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestSSMProviderEmptyKeys(t *testing.T) {
	provider := NewSSMProvider("af-south-1")
	got, err := provider.GetParametersBatch(context.Background(), nil)
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("expected empty map, got %v, %v", got, err)
	}
}

func TestEnvVarProvider(t *testing.T) {
	t.Setenv("LOTTO_TEST_SECRET", "s3cret")
	got, err := NewEnvVarProvider().GetParametersBatch(context.Background(), []string{"LOTTO_TEST_SECRET", "LOTTO_TEST_ABSENT"})
	if err != nil {
		t.Fatalf("GetParametersBatch: %v", err)
	}
	if got["LOTTO_TEST_SECRET"] != "s3cret" {
		t.Errorf("got %v", got)
	}
	if _, ok := got["LOTTO_TEST_ABSENT"]; ok {
		t.Error("absent key should be omitted")
	}
}
