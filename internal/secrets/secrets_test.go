package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsManager struct {
	secret *string
	err    error
	calls  int
}

func (f *fakeSecretsManager) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{Name: in.SecretId, SecretString: f.secret}, nil
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("WHITEBOARD_SECRET_JWT_SECRET", "from-env")
	p := NewEnvProvider()

	value, err := p.GetSecret(context.Background(), KeyJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "from-env", value)

	_, err = p.GetSecret(context.Background(), KeyRedisPassword)
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Equal(t, "env", p.Name())
}

func TestAWSProvider(t *testing.T) {
	fake := &fakeSecretsManager{secret: aws.String(`{"jwt_secret":"aws-jwt","database_password":"pw"}`)}
	p := NewAWSProviderWithClient(fake, "whiteboard/prod")
	ctx := context.Background()

	value, err := p.GetSecret(ctx, KeyJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "aws-jwt", value)

	_, err = p.GetSecret(ctx, KeyRedisPassword)
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Equal(t, 1, fake.calls, "secret fetched once")

	p.InvalidateCache()
	_, err = p.GetSecret(ctx, KeyDatabasePassword)
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}

func TestAWSProvider_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		p := NewAWSProviderWithClient(&fakeSecretsManager{err: &types.ResourceNotFoundException{Message: aws.String("gone")}}, "x")
		_, err := p.GetSecret(ctx, KeyJWTSecret)
		assert.ErrorIs(t, err, ErrSecretNotFound)
	})

	t.Run("api failure", func(t *testing.T) {
		p := NewAWSProviderWithClient(&fakeSecretsManager{err: errors.New("throttled")}, "x")
		_, err := p.GetSecret(ctx, KeyJWTSecret)
		assert.ErrorContains(t, err, "throttled")
		assert.NotErrorIs(t, err, ErrSecretNotFound)
	})

	t.Run("not json", func(t *testing.T) {
		p := NewAWSProviderWithClient(&fakeSecretsManager{secret: aws.String("plain")}, "x")
		_, err := p.GetSecret(ctx, KeyJWTSecret)
		assert.ErrorContains(t, err, "parse")
	})

	t.Run("binary secret", func(t *testing.T) {
		p := NewAWSProviderWithClient(&fakeSecretsManager{}, "x")
		_, err := p.GetSecret(ctx, KeyJWTSecret)
		assert.ErrorContains(t, err, "no string value")
	})
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, config.SecretsConfig{})
	require.NoError(t, err)
	assert.Equal(t, "env", p.Name())

	_, err = NewProvider(ctx, config.SecretsConfig{Provider: "aws"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewProvider(ctx, config.SecretsConfig{Provider: "vault"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestApply(t *testing.T) {
	fake := &fakeSecretsManager{secret: aws.String(`{"jwt_secret":"aws-jwt","database_password":"db-pw"}`)}
	p := NewAWSProviderWithClient(fake, "whiteboard/prod")

	cfg := &config.Config{}
	cfg.Redis.Password = "configured"

	require.NoError(t, Apply(context.Background(), p, cfg))
	assert.Equal(t, "aws-jwt", cfg.Auth.JWT.Secret)
	assert.Equal(t, "db-pw", cfg.Database.Postgres.Password)
	assert.Equal(t, "db-pw", cfg.Database.SQLServer.Password)
	assert.Equal(t, "configured", cfg.Redis.Password, "missing secret keeps configured value")

	broken := NewAWSProviderWithClient(&fakeSecretsManager{err: errors.New("denied")}, "x")
	assert.ErrorContains(t, Apply(context.Background(), broken, cfg), "denied")
}
