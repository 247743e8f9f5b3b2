package surface

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret")

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestHMACRoundTrip(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h, err := NewHMAC(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	h.WithClock(fixedClock(now)).WithTTL(time.Hour)

	tok, err := h.Issue("alice")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	cred, err := h.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if cred.Subject != "alice" || cred.Token != tok {
		t.Errorf("credential = %+v", cred)
	}
	if !cred.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", cred.ExpiresAt, now.Add(time.Hour))
	}
}

func TestHMACVerifyRejects(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h, _ := NewHMAC(testSecret)
	h.WithClock(fixedClock(now)).WithTTL(time.Minute)
	valid, _ := h.Issue("alice")

	other, _ := NewHMAC([]byte("other-secret"))
	foreign, _ := other.Issue("alice")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	mallory, _ := h.Issue("mallory")
	vp, mp := strings.Split(valid, "."), strings.Split(mallory, ".")
	tampered := mp[0] + "." + mp[1] + "." + vp[2]

	later, _ := NewHMAC(testSecret)
	later.WithClock(fixedClock(now.Add(2 * time.Minute)))

	tests := []struct {
		name  string
		h     *HMAC
		token string
	}{
		{name: "garbage", h: h, token: "not-a-jwt"},
		{name: "wrong secret", h: h, token: foreign},
		{name: "alg none", h: h, token: none},
		{name: "tampered", h: h, token: tampered},
		{name: "expired", h: later, token: valid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.h.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestHMACNoExpiry(t *testing.T) {
	h, _ := NewHMAC(testSecret)
	h.WithTTL(0)
	tok, err := h.Issue("bob")
	if err != nil {
		t.Fatal(err)
	}
	cred, err := h.Verify(tok)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !cred.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero", cred.ExpiresAt)
	}
}

func TestNewHMACEmptySecret(t *testing.T) {
	if _, err := NewHMAC(nil); err == nil {
		t.Error("NewHMAC(nil) succeeded")
	}
	h, _ := NewHMAC(testSecret)
	if _, err := h.Issue(""); err == nil {
		t.Error("Issue(\"\") succeeded")
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{header: "bearer abc", want: "abc"},
		{header: "abc.def.ghi", want: "abc.def.ghi"},
		{header: "  abc  ", want: "abc"},
		{header: "", wantErr: ErrMissingToken},
		{header: "Bearer ", wantErr: ErrMissingToken},
		{header: "Basic dXNlcjpwdw==", wantErr: ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/sum", strings.NewReader("{}"))
			if tt.header != "" {
				r.Header.Set(HeaderAuthorization, tt.header)
			}
			got, err := tokenFromRequest(r)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("tokenFromRequest() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}
