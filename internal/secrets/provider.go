// Package secrets retrieves credentials from the environment or AWS Secrets
// Manager and applies them on top of the loaded configuration.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/ericfitz/whiteboard/internal/slogging"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrInvalidConfig  = errors.New("invalid secrets provider configuration")
)

// Provider defines the interface for secrets providers
type Provider interface {
	// GetSecret returns ErrSecretNotFound if the secret doesn't exist
	GetSecret(ctx context.Context, key string) (string, error)
	Name() string
}

// ProviderType represents the type of secrets provider
type ProviderType string

const (
	ProviderTypeEnv ProviderType = "env"
	ProviderTypeAWS ProviderType = "aws"
)

// Secret key names
const (
	KeyJWTSecret        = "jwt_secret"
	KeyDatabasePassword = "database_password"
	KeyRedisPassword    = "redis_password"
)

// NewProvider creates a provider from configuration, defaulting to environment variables
func NewProvider(ctx context.Context, cfg config.SecretsConfig) (Provider, error) {
	logger := slogging.Get()

	switch ProviderType(cfg.Provider) {
	case "", ProviderTypeEnv:
		logger.Info("Using environment variables for secrets")
		return NewEnvProvider(), nil

	case ProviderTypeAWS:
		if cfg.AWSRegion == "" || cfg.AWSSecretName == "" {
			return nil, fmt.Errorf("%w: AWS secrets provider requires region and secret name", ErrInvalidConfig)
		}
		return NewAWSProvider(ctx, cfg.AWSRegion, cfg.AWSSecretName)

	default:
		return nil, fmt.Errorf("%w: unknown provider type: %s", ErrInvalidConfig, cfg.Provider)
	}
}

// Apply overwrites credential fields in cfg with any values the provider has.
// Missing secrets leave the configured value in place.
func Apply(ctx context.Context, p Provider, cfg *config.Config) error {
	targets := []struct {
		key    string
		fields []*string
	}{
		{KeyJWTSecret, []*string{&cfg.Auth.JWT.Secret}},
		{KeyDatabasePassword, []*string{
			&cfg.Database.Postgres.Password,
			&cfg.Database.MySQL.Password,
			&cfg.Database.SQLServer.Password,
		}},
		{KeyRedisPassword, []*string{&cfg.Redis.Password}},
	}

	applied := 0
	for _, target := range targets {
		value, err := p.GetSecret(ctx, target.key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read secret %s from %s: %w", target.key, p.Name(), err)
		}
		for _, field := range target.fields {
			*field = value
		}
		applied++
	}

	slogging.Get().Debug("Applied %d secrets from %s provider", applied, p.Name())
	return nil
}
