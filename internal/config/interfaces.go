package config

import "context"

// SecretProvider resolves secret values such as COMPUTE_AUTH_TOKEN. SSM backs
// it in deployed environments and the process environment backs it locally.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext for every key it could
	// resolve. Keys it cannot find are omitted rather than reported.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
