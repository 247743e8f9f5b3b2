package surface

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// HeaderAuthorization carries the caller's token, either as
// "Bearer <token>" or as the bare token.
const HeaderAuthorization = "Authorization"

var (
	// ErrMissingToken is returned when a request has no Authorization header.
	ErrMissingToken = errors.New("missing authorization token")

	// ErrInvalidToken matches every token verification failure.
	ErrInvalidToken = errors.New("invalid authorization token")
)

// Credential is the verified identity of a caller. Handlers declaring a
// surface.Credential first parameter receive it; handlers declaring a string
// receive Token.
type Credential struct {
	// Token is the raw token the caller presented.
	Token string

	// Subject identifies the caller (the "sub" claim).
	Subject string

	// ExpiresAt is the expiry of the token; zero if it has none.
	ExpiresAt time.Time
}

// Verifier checks a token and returns the identity it carries.
type Verifier interface {
	Verify(token string) (Credential, error)
}

// Issuer mints tokens for a subject.
type Issuer interface {
	Issue(subject string) (string, error)
}

// DefaultTokenTTL is the lifetime of tokens minted by HMAC unless changed
// with WithTTL.
const DefaultTokenTTL = 24 * time.Hour

// HMAC issues and verifies HS256 JSON Web Tokens signed with a shared secret.
type HMAC struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var (
	_ Verifier = (*HMAC)(nil)
	_ Issuer   = (*HMAC)(nil)
)

// NewHMAC returns an HMAC signing with secret, which must not be empty.
func NewHMAC(secret []byte) (*HMAC, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty token secret")
	}
	return &HMAC{secret: secret, ttl: DefaultTokenTTL, now: time.Now}, nil
}

// WithTTL sets the lifetime of issued tokens. Zero issues tokens without
// expiry.
func (h *HMAC) WithTTL(ttl time.Duration) *HMAC {
	h.ttl = ttl
	return h
}

// WithClock replaces the time source. For tests.
func (h *HMAC) WithClock(now func() time.Time) *HMAC {
	h.now = now
	return h
}

// Issue returns a signed token for subject.
func (h *HMAC) Issue(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("empty subject")
	}
	now := h.now()
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if h.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(h.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token.
func (h *HMAC) Verify(token string) (Credential, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return h.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(h.now),
	)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	cred := Credential{Token: token, Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred, nil
}

// tokenFromRequest extracts the token from the Authorization header. The
// "Bearer" scheme is optional.
func tokenFromRequest(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get(HeaderAuthorization))
	if h == "" || strings.EqualFold(h, "Bearer") {
		return "", ErrMissingToken
	}
	if scheme, tok, ok := strings.Cut(h, " "); ok {
		if !strings.EqualFold(scheme, "Bearer") {
			return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidToken, scheme)
		}
		h = strings.TrimSpace(tok)
	}
	if h == "" {
		return "", ErrMissingToken
	}
	return h, nil
}
