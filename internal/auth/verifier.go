package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/scentmarket/internal/common"
)

const rolesClaim = "roles"

// Principal is the caller identified by a verified access token.
type Principal struct {
	UserID uuid.UUID
	Roles  []string
}

// Verifier checks HMAC-signed access tokens minted by the identity service.
type Verifier struct {
	secret    []byte
	validator TokenValidator
	now       func() time.Time
}

// NewVerifier constructs a Verifier for HS256 tokens.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	return &Verifier{
		secret: []byte(secret),
		validator: TokenValidator{
			Issuer:    issuer,
			ClockSkew: 30 * time.Second,
			Algorithm: jwa.HS256,
		},
		now: time.Now,
	}, nil
}

// ParseAccessToken validates token and returns its principal. The subject
// must be a UUID.
func (v *Verifier) ParseAccessToken(token string) (Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Principal{}, unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return Principal{}, unauthorized("invalid token", err)
	}
	if algorithm != v.validator.Algorithm {
		return Principal{}, unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.secret), jwt.WithValidate(false))
	if err != nil {
		return Principal{}, unauthorized("invalid token", err)
	}
	if err := v.validator.Validate(parsed, algorithm, v.now()); err != nil {
		return Principal{}, unauthorized("invalid token", err)
	}
	userID, err := uuid.Parse(parsed.Subject())
	if err != nil {
		return Principal{}, unauthorized("invalid token subject", err)
	}
	return Principal{UserID: userID, Roles: rolesFrom(parsed)}, nil
}

// Issue signs a token for subject. It backs local tooling and tests; production
// tokens come from the identity service.
func (v *Verifier) Issue(subject uuid.UUID, roles []string, ttl time.Duration) (string, error) {
	now := v.now()
	builder := jwt.NewBuilder().
		Subject(subject.String()).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(ttl))
	if v.validator.Issuer != "" {
		builder = builder.Issuer(v.validator.Issuer)
	}
	if len(roles) > 0 {
		builder = builder.Claim(rolesClaim, roles)
	}
	tok, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, v.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

func rolesFrom(tok jwt.Token) []string {
	raw, ok := tok.Get(rolesClaim)
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(v)
	default:
		return nil
	}
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: token must carry exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
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
	return alg, nil
}

func unauthorized(message string, err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, err)
}
