// Package auth verifies the identity tokens clients present when connecting.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfitz/whiteboard/internal/config"
	"github.com/ericfitz/whiteboard/internal/slogging"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no token was presented
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken is returned for tokens that fail parsing or signature checks
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked is returned for well-formed tokens on the revoked list
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Identity is who a verified token belongs to
type Identity struct {
	UserID string
	// Name is the optional display name carried in the token
	Name      string
	ExpiresAt time.Time
}

// Verifier checks a token and returns the identity it carries
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// RevocationList reports whether a token has been revoked
type RevocationList interface {
	IsTokenBlacklisted(ctx context.Context, tokenString string) (bool, error)
}

// JWTVerifier validates HMAC-signed JWTs
type JWTVerifier struct {
	secret      []byte
	method      jwt.SigningMethod
	userIDClaim string
	revoked     RevocationList
}

// NewJWTVerifier creates a verifier from configuration. revoked may be nil.
func NewJWTVerifier(cfg config.JWTConfig, revoked RevocationList) (*JWTVerifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	var method jwt.SigningMethod
	switch cfg.SigningMethod {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing method: %s", cfg.SigningMethod)
	}

	claim := cfg.UserIDClaim
	if claim == "" {
		claim = "userId"
	}

	return &JWTVerifier{
		secret:      []byte(cfg.Secret),
		method:      method,
		userIDClaim: claim,
		revoked:     revoked,
	}, nil
}

// Verify parses token, checks its signature and expiry, and rejects revoked tokens
func (v *JWTVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, ErrMissingToken
	}

	claims, err := v.parse(token)
	if err != nil {
		return Identity{}, err
	}

	identity, err := v.identityFrom(claims)
	if err != nil {
		return Identity{}, err
	}

	if v.revoked != nil {
		revoked, err := v.revoked.IsTokenBlacklisted(ctx, token)
		if err != nil {
			// Fail closed: an unreachable revocation list must not admit revoked tokens
			return Identity{}, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return Identity{}, ErrTokenRevoked
		}
	}

	return identity, nil
}

func (v *JWTVerifier) parse(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != v.method {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{v.method.Alg()}))
	if err != nil {
		slogging.Get().Debug("Token verification failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (v *JWTVerifier) identityFrom(claims jwt.MapClaims) (Identity, error) {
	userID, _ := claims[v.userIDClaim].(string)
	if userID == "" {
		userID, _ = claims["sub"].(string)
	}
	if userID == "" {
		return Identity{}, fmt.Errorf("%w: no %s or sub claim", ErrInvalidToken, v.userIDClaim)
	}

	identity := Identity{UserID: userID}
	if name, ok := claims["name"].(string); ok {
		identity.Name = name
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	return identity, nil
}

// Revoke verifies token and adds it to the revoked list until it expires
func (v *JWTVerifier) Revoke(ctx context.Context, blacklist *TokenBlacklist, token string) error {
	claims, err := v.parse(token)
	if err != nil {
		return err
	}
	identity, err := v.identityFrom(claims)
	if err != nil {
		return err
	}
	if identity.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: token has no expiry and cannot be revoked", ErrInvalidToken)
	}
	return blacklist.BlacklistToken(ctx, token, identity.ExpiresAt)
}

// CreateToken signs a token for userID. It is used by tests and the
// issue-token development command.
func (v *JWTVerifier) CreateToken(userID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		v.userIDClaim: userID,
		"sub":         userID,
		"iat":         now.Unix(),
		"exp":         now.Add(ttl).Unix(),
	}
	if name != "" {
		claims["name"] = name
	}
	return jwt.NewWithClaims(v.method, claims).SignedString(v.secret)
}
