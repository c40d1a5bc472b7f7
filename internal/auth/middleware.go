// Package auth guards operator endpoints with short-lived admin tokens.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/camper-configurator/internal/common"
	"github.com/noah-isme/camper-configurator/internal/obs"
)

// APIKeyHeader carries the raw admin key exchanged for a token.
const APIKeyHeader = "X-Admin-Key"

var (
	errNoToken    = errors.New("auth: token missing")
	errBadAPIKey  = errors.New("auth: api key rejected")
	errNotEnabled = errors.New("auth: admin access not configured")
)

// Admin issues and checks admin tokens. Tokens are HS256 JWTs; the key that
// buys one is stored only as an argon2id hash.
type Admin struct {
	Secret     []byte
	APIKeyHash string
	Validator  TokenValidator
	TTL        time.Duration
	Now        func() time.Time
}

// NewAdmin builds an Admin with HS256 validation for the given issuer and audience.
func NewAdmin(secret, apiKeyHash, issuer, audience string, ttl time.Duration) *Admin {
	return &Admin{
		Secret:     []byte(secret),
		APIKeyHash: strings.TrimSpace(apiKeyHash),
		Validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			Scope:     PriceAdminScope,
			ClockSkew: 30 * time.Second,
			Algorithm: jwa.HS256,
		},
		TTL: ttl,
	}
}

func (a *Admin) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// HashAPIKey derives the value to configure as ADMIN_API_KEY_HASH.
func HashAPIKey(key string) (string, error) {
	return argon2id.CreateHash(key, argon2id.DefaultParams)
}

// VerifyAPIKey checks a raw key against the configured hash.
func (a *Admin) VerifyAPIKey(key string) error {
	if a == nil || a.APIKeyHash == "" {
		return errNotEnabled
	}
	if strings.TrimSpace(key) == "" {
		return errBadAPIKey
	}
	ok, err := argon2id.ComparePasswordAndHash(key, a.APIKeyHash)
	if err != nil {
		return fmt.Errorf("auth: compare api key: %w", err)
	}
	if !ok {
		return errBadAPIKey
	}
	return nil
}

// IssueToken signs a token for subject.
func (a *Admin) IssueToken(subject string) (string, time.Time, error) {
	if a == nil || len(a.Secret) == 0 {
		return "", time.Time{}, errNotEnabled
	}
	ttl := a.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := a.now()
	expiresAt := now.Add(ttl)
	builder := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		NotBefore(now.Add(-a.Validator.ClockSkew)).
		Expiration(expiresAt)
	if a.Validator.Issuer != "" {
		builder = builder.Issuer(a.Validator.Issuer)
	}
	if a.Validator.Audience != "" {
		builder = builder.Audience([]string{a.Validator.Audience})
	}
	if a.Validator.Scope != "" {
		builder = builder.Claim(ScopeClaim, a.Validator.Scope)
	}
	token, err := builder.Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, a.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// ParseToken validates a signed token and returns its subject.
func (a *Admin) ParseToken(token string) (string, error) {
	if a == nil || len(a.Secret) == 0 {
		return "", errNotEnabled
	}
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", errNoToken
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", err
	}
	if a.Validator.Algorithm != "" && algorithm != a.Validator.Algorithm {
		return "", fmt.Errorf("auth: unexpected token algorithm %s", algorithm)
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, a.Secret), jwt.WithValidate(false))
	if err != nil {
		return "", err
	}
	if err := a.Validator.Validate(parsed, algorithm, a.now()); err != nil {
		return "", err
	}
	return parsed.Subject(), nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", fmt.Errorf("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

// Require rejects requests without a valid bearer token or admin key and tags
// the request context with the caller.
func (a *Admin) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := bearerToken(r); token != "" {
			subject, err := a.ParseToken(token)
			if err != nil {
				common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(obs.WithSubject(r.Context(), subject)))
			return
		}
		if key := r.Header.Get(APIKeyHeader); key != "" {
			if err := a.VerifyAPIKey(key); err != nil {
				common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(obs.WithSubject(r.Context(), "api-key")))
			return
		}
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
	})
}

// TokenHandler exchanges an admin key for a bearer token.
func (a *Admin) TokenHandler(w http.ResponseWriter, r *http.Request) {
	err := a.VerifyAPIKey(r.Header.Get(APIKeyHeader))
	switch {
	case errors.Is(err, errNotEnabled):
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "admin access disabled", nil)
		return
	case err != nil:
		common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "invalid admin key", nil)
		return
	}
	subject := strings.TrimSpace(r.URL.Query().Get("subject"))
	if subject == "" {
		subject = "admin"
	}
	token, expiresAt, err := a.IssueToken(subject)
	if err != nil {
		if errors.Is(err, errNotEnabled) {
			common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "token signing disabled", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "could not issue token", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_at":   expiresAt.UTC(),
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
