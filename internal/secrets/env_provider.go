package secrets

import (
	"context"
	"os"
	"strings"
)

// EnvProvider reads secrets from WHITEBOARD_SECRET_<KEY> environment variables
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a new environment variable secrets provider
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{prefix: "WHITEBOARD_SECRET_"}
}

// GetSecret maps key "jwt_secret" to WHITEBOARD_SECRET_JWT_SECRET
func (p *EnvProvider) GetSecret(_ context.Context, key string) (string, error) {
	value := os.Getenv(p.prefix + strings.ToUpper(key))
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// Name returns the provider name
func (p *EnvProvider) Name() string {
	return string(ProviderTypeEnv)
}
