package jwtdecode

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testClientID = "client-123.apps.googleusercontent.com"

func TestVerify(t *testing.T) {
	verifier, key := newTestVerifier(t)

	tests := []struct {
		name    string
		key     *rsa.PrivateKey
		claims  jwt.MapClaims
		wantErr error
	}{
		{
			name:   "valid",
			claims: googleClaimsFor("accounts.google.com", testClientID, time.Now().Add(time.Hour)),
		},
		{
			name:   "https issuer",
			claims: googleClaimsFor("https://accounts.google.com", testClientID, time.Now().Add(time.Hour)),
		},
		{
			name:    "foreign issuer",
			claims:  googleClaimsFor("https://evil.example", testClientID, time.Now().Add(time.Hour)),
			wantErr: ErrInvalidIssuer,
		},
		{
			name:    "wrong audience",
			claims:  googleClaimsFor("accounts.google.com", "someone-else", time.Now().Add(time.Hour)),
			wantErr: jwt.ErrTokenInvalidAudience,
		},
		{
			name:    "expired",
			claims:  googleClaimsFor("accounts.google.com", testClientID, time.Now().Add(-time.Hour)),
			wantErr: jwt.ErrTokenExpired,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			identity, err := verifier.Verify(signToken(t, key, "test-key", test.claims))
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("Verify() error = %v, want %v", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if identity.Subject != "google-sub-1" || identity.Email != "alice@example.com" || !identity.EmailVerified || identity.Name != "Alice" {
				t.Errorf("Verify() = %+v", identity)
			}
		})
	}
}

func TestVerifyRejectsUnknownKey(t *testing.T) {
	verifier, _ := newTestVerifier(t)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to create key: %v", err)
	}

	token := signToken(t, other, "test-key", googleClaimsFor("accounts.google.com", testClientID, time.Now().Add(time.Hour)))
	if _, err := verifier.Verify(token); err == nil {
		t.Fatal("expected token signed by an unknown key to be rejected")
	}
}

func TestNewGoogleVerifierRequiresClientID(t *testing.T) {
	if _, err := NewGoogleVerifier(" ", "http://127.0.0.1:1"); !errors.Is(err, ErrMissingClientID) {
		t.Fatalf("NewGoogleVerifier() error = %v, want ErrMissingClientID", err)
	}
}

func newTestVerifier(t *testing.T) (*GoogleVerifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to create key: %v", err)
	}

	jwks := newJWKS(key, "test-key")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(server.Close)

	verifier, err := NewGoogleVerifier(testClientID, server.URL)
	if err != nil {
		t.Fatalf("failed to create verifier: %v", err)
	}
	return verifier, key
}

func googleClaimsFor(issuer, audience string, expires time.Time) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            issuer,
		"aud":            audience,
		"sub":            "google-sub-1",
		"email":          "Alice@Example.com",
		"email_verified": true,
		"name":           "Alice",
		"exp":            expires.Unix(),
		"iat":            time.Now().Add(-2 * time.Hour).Unix(),
	}
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	tokenString, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tokenString
}

type jwksPayload struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func newJWKS(key *rsa.PrivateKey, kid string) jwksPayload {
	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes())
	return jwksPayload{
		Keys: []jwk{{Kty: "RSA", Kid: kid, Use: "sig", Alg: "RS256", N: n, E: e}},
	}
}
