package secrets

import (
	"context"
	"errors"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Keys read by the service
const (
	KeyOpenAIAPIKey = "openai_api_key"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// Static serves secrets from a fixed map
type Static map[string]string

// GetSecret implements Manager
func (s Static) GetSecret(_ context.Context, key string) (string, error) {
	if v, ok := s[key]; ok && v != "" {
		return v, nil
	}
	return "", ErrSecretNotFound
}

// GetSecretWithDefault implements Manager
func (s Static) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	if v, err := s.GetSecret(ctx, key); err == nil {
		return v
	}
	return defaultValue
}
