package verified

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// testKey is the RSA key pair used to sign test tokens.
var testKey *rsa.PrivateKey

func init() {
	var err error
	testKey, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("generating test RSA key: %v", err))
	}
}

const (
	testKID      = "test-key-1"
	testIssuer   = "https://idp.example.com"
	testAudience = "plantwise-api"
)

// jwksHandler serves the test public key and counts fetches.
func jwksHandler(fetches *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if fetches != nil {
			fetches.Add(1)
		}
		pub := testKey.PublicKey
		doc := map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKID,
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}
}

func signToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	s, err := token.SignedString(testKey)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return s
}

func validClaims() jwtlib.MapClaims {
	return jwtlib.MapClaims{
		"sub":         "idp|123",
		"email":       "ada@example.com",
		"given_name":  "Ada",
		"family_name": "Lovelace",
		"tenant_id":   "T1",
		"iss":         testIssuer,
		"aud":         testAudience,
		"exp":         time.Now().Add(time.Hour).Unix(),
		"iat":         time.Now().Unix(),
	}
}

func newTestVerifier(t *testing.T, fetches *atomic.Int32, override func(*JWKSConfig)) *JWKSVerifier {
	t.Helper()
	srv := httptest.NewServer(jwksHandler(fetches))
	t.Cleanup(srv.Close)

	cfg := JWKSConfig{
		JWKSURL:  srv.URL + "/.well-known/jwks.json",
		Issuer:   testIssuer,
		Audience: testAudience,
	}
	if override != nil {
		override(&cfg)
	}
	return NewJWKSVerifier(cfg)
}

func TestJWKS_ValidToken(t *testing.T) {
	v := newTestVerifier(t, nil, nil)

	claims, err := v.Verify(context.Background(), signToken(t, validClaims()))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.ExternalID != "idp|123" {
		t.Errorf("ExternalID = %q, want %q", claims.ExternalID, "idp|123")
	}
	if claims.TenantID != "T1" {
		t.Errorf("TenantID = %q, want %q", claims.TenantID, "T1")
	}
	if claims.Email != "ada@example.com" || claims.FirstName != "Ada" || claims.LastName != "Lovelace" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestJWKS_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(jwtlib.MapClaims)
	}{
		{"expired", func(c jwtlib.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }},
		{"no expiry", func(c jwtlib.MapClaims) { delete(c, "exp") }},
		{"wrong issuer", func(c jwtlib.MapClaims) { c["iss"] = "https://evil.example.com" }},
		{"wrong audience", func(c jwtlib.MapClaims) { c["aud"] = "other-api" }},
		{"missing sub", func(c jwtlib.MapClaims) { delete(c, "sub") }},
		{"missing tenant", func(c jwtlib.MapClaims) { delete(c, "tenant_id") }},
	}

	v := newTestVerifier(t, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClaims()
			tt.mutate(c)
			if _, err := v.Verify(context.Background(), signToken(t, c)); err == nil {
				t.Error("expected verification to fail")
			}
		})
	}
}

func TestJWKS_MissingClaimError(t *testing.T) {
	v := newTestVerifier(t, nil, nil)
	c := validClaims()
	delete(c, "tenant_id")

	_, err := v.Verify(context.Background(), signToken(t, c))
	if !errors.Is(err, ErrMissingClaim) {
		t.Errorf("err = %v, want ErrMissingClaim", err)
	}
}

func TestJWKS_GarbageToken(t *testing.T) {
	v := newTestVerifier(t, nil, nil)
	if _, err := v.Verify(context.Background(), "not.a.jwt"); err == nil {
		t.Error("expected garbage token to fail")
	}
}

func TestJWKS_WrongSigningKey(t *testing.T) {
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, validClaims())
	token.Header["kid"] = testKID
	signed, err := token.SignedString(other)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	v := newTestVerifier(t, nil, nil)
	if _, err := v.Verify(context.Background(), signed); err == nil {
		t.Error("expected signature verification to fail")
	}
}

func TestJWKS_CustomTenantClaim(t *testing.T) {
	v := newTestVerifier(t, nil, func(c *JWKSConfig) { c.TenantClaim = "org" })
	c := validClaims()
	delete(c, "tenant_id")
	c["org"] = "T9"

	claims, err := v.Verify(context.Background(), signToken(t, c))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.TenantID != "T9" {
		t.Errorf("TenantID = %q, want %q", claims.TenantID, "T9")
	}
}

func TestJWKS_KeysAreCached(t *testing.T) {
	var fetches atomic.Int32
	v := newTestVerifier(t, &fetches, nil)

	for i := 0; i < 3; i++ {
		if _, err := v.Verify(context.Background(), signToken(t, validClaims())); err != nil {
			t.Fatalf("Verify %d: %v", i, err)
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("JWKS fetches = %d, want 1", got)
	}
}

func signWithKID(t *testing.T, key *rsa.PrivateKey, kid string) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, validClaims())
	token.Header["kid"] = kid
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return s
}

func TestJWKS_UnknownKIDsDoNotRefetch(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"keys":[]}`))
	}))
	t.Cleanup(srv.Close)

	attacker, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	v := NewJWKSVerifier(JWKSConfig{JWKSURL: srv.URL})
	for i := range 20 {
		_, err := v.Verify(context.Background(), signWithKID(t, attacker, fmt.Sprintf("kid-%d", i)))
		if !errors.Is(err, ErrKeyNotFound) {
			t.Fatalf("Verify %d: err = %v, want ErrKeyNotFound", i, err)
		}
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("JWKS fetches = %d, want 1", got)
	}
}

func TestJWKS_UnknownKIDRefetchesAfterInterval(t *testing.T) {
	var fetches atomic.Int32
	v := newTestVerifier(t, &fetches, nil)

	if _, err := v.Verify(context.Background(), signWithKID(t, testKey, "rotated")); err == nil {
		t.Fatal("expected unknown kid to fail")
	}
	if _, err := v.Verify(context.Background(), signWithKID(t, testKey, "rotated")); err == nil {
		t.Fatal("expected unknown kid to fail")
	}
	if got := fetches.Load(); got != 1 {
		t.Fatalf("JWKS fetches = %d, want 1", got)
	}

	v.keys.mu.Lock()
	v.keys.lastAttempt = time.Now().Add(-2 * time.Minute)
	v.keys.mu.Unlock()

	if _, err := v.Verify(context.Background(), signWithKID(t, testKey, "rotated")); err == nil {
		t.Fatal("expected unknown kid to fail")
	}
	if got := fetches.Load(); got != 2 {
		t.Errorf("JWKS fetches = %d, want 2", got)
	}
}

func TestJWKS_KnownKIDServedWhileThrottled(t *testing.T) {
	var fetches atomic.Int32
	v := newTestVerifier(t, &fetches, nil)

	if _, err := v.Verify(context.Background(), signWithKID(t, testKey, "unknown")); err == nil {
		t.Fatal("expected unknown kid to fail")
	}
	if _, err := v.Verify(context.Background(), signToken(t, validClaims())); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("JWKS fetches = %d, want 1", got)
	}
}
