package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-autobook/internal/logger"
)

const testIssuer = "https://auth.example.test/realms/evently"

func quiet() *logger.Logger {
	return logger.NewWithWriter(io.Discard)
}

func newTestVerifier(t *testing.T) (Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{key.Public()}}
	v := oidc.NewVerifier(testIssuer, keySet, &oidc.Config{SkipClientIDCheck: true})
	return FromIDTokenVerifier(v), key
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, subject string, expires time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Issuer:    testIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserID(r.Context())))
	})
}

func TestExtractTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "bearer", header: "Bearer abc.def", want: "abc.def"},
		{name: "lowercase scheme", header: "bearer abc.def", want: "abc.def"},
		{name: "missing", header: "", wantErr: true},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", wantErr: true},
		{name: "extra parts", header: "Bearer a b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractTokenFromRequest(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMiddlewareAcceptsValidIDToken(t *testing.T) {
	verify, key := newTestVerifier(t)
	h := Middleware(verify, quiet())(echoUser())

	r := httptest.NewRequest(http.MethodGet, "/api/autobooks", nil)
	r.Header.Set("Authorization", "Bearer "+signIDToken(t, key, "user-42", time.Now().Add(time.Hour)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-42", w.Body.String())
}

func TestMiddlewareRejects(t *testing.T) {
	verify, key := newTestVerifier(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	h := Middleware(verify, quiet())(echoUser())

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header"},
		{name: "expired", header: "Bearer " + signIDToken(t, key, "user-42", time.Now().Add(-time.Minute))},
		{name: "foreign key", header: "Bearer " + signIDToken(t, otherKey, "user-42", time.Now().Add(time.Hour))},
		{name: "garbage", header: "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/autobooks", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestNewOIDCVerifierRequiresIssuer(t *testing.T) {
	_, err := NewOIDCVerifier(context.Background(), "")
	assert.Error(t, err)
}

func TestUserIDContext(t *testing.T) {
	assert.Equal(t, "", UserID(context.Background()))
	assert.Equal(t, "user-7", UserID(WithUserID(context.Background(), "user-7")))
}

func TestTriggerTokenRoundTrip(t *testing.T) {
	now := time.Now()
	token, err := IssueTriggerToken("s3cret", "ops", time.Hour, now)
	require.NoError(t, err)

	subject, err := VerifyTriggerToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "ops", subject)

	_, err = VerifyTriggerToken("other", token)
	assert.Error(t, err)

	expired, err := IssueTriggerToken("s3cret", "ops", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = VerifyTriggerToken("s3cret", expired)
	assert.Error(t, err)

	_, err = IssueTriggerToken("", "ops", time.Hour, now)
	assert.Error(t, err)
}

func TestVerifyTriggerTokenRejectsOtherAlgorithms(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    triggerIssuer,
		Subject:   "ops",
		Audience:  jwt.ClaimStrings{triggerAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = VerifyTriggerToken("s3cret", unsigned)
	assert.Error(t, err)
}

func TestTriggerMiddleware(t *testing.T) {
	h := TriggerMiddleware("s3cret", quiet())(echoUser())
	token, err := IssueTriggerToken("s3cret", "ops", time.Hour, time.Now())
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api/autobooks/process", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops", w.Body.String())

	r = httptest.NewRequest(http.MethodPost, "/api/autobooks/process", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
