package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/ericfitz/whiteboard/internal/slogging"
)

// SecretsManagerAPI is the part of the Secrets Manager client the provider uses
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider reads keys from a single JSON secret in AWS Secrets Manager.
// The secret is fetched once and cached.
type AWSProvider struct {
	client     SecretsManagerAPI
	secretName string

	mu     sync.Mutex
	cache  map[string]string
	loaded bool
}

// NewAWSProvider creates a provider using the default AWS credential chain
func NewAWSProvider(ctx context.Context, region, secretName string) (*AWSProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	slogging.Get().Info("AWS Secrets Manager provider initialized for secret: %s in region: %s", secretName, region)
	return NewAWSProviderWithClient(secretsmanager.NewFromConfig(cfg), secretName), nil
}

// NewAWSProviderWithClient creates a provider around an existing client
func NewAWSProviderWithClient(client SecretsManagerAPI, secretName string) *AWSProvider {
	return &AWSProvider{client: client, secretName: secretName}
}

// GetSecret returns one key of the JSON secret
func (p *AWSProvider) GetSecret(ctx context.Context, key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		if err := p.load(ctx); err != nil {
			return "", err
		}
	}

	value, ok := p.cache[key]
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// Name returns the provider name
func (p *AWSProvider) Name() string {
	return string(ProviderTypeAWS)
}

// InvalidateCache forces a reload on next access
func (p *AWSProvider) InvalidateCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = nil
	p.loaded = false
}

func (p *AWSProvider) load(ctx context.Context) error {
	result, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretName),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: AWS secret '%s' not found", ErrSecretNotFound, p.secretName)
		}
		return fmt.Errorf("failed to retrieve AWS secret: %w", err)
	}

	if result.SecretString == nil {
		return fmt.Errorf("AWS secret '%s' has no string value", p.secretName)
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &values); err != nil {
		return fmt.Errorf("failed to parse AWS secret as JSON: %w", err)
	}

	p.cache = values
	p.loaded = true
	slogging.Get().Info("Loaded %d secrets from AWS Secrets Manager", len(values))
	return nil
}
