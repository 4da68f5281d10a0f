package verified

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/plantwise/plantwise/pkg/identity"
)

// JWKSConfig configures a JWKSVerifier.
type JWKSConfig struct {
	// JWKSURL is the URL of the identity provider's JSON Web Key Set.
	JWKSURL string

	// Issuer is the expected iss claim. If empty, issuer is not validated.
	Issuer string

	// Audience is the expected aud claim. If empty, audience is not validated.
	Audience string

	// TenantClaim names the claim carrying the tenant id. Default: "tenant_id".
	TenantClaim string

	// CacheTTL controls how long keys are cached. Default: 1 hour.
	CacheTTL time.Duration

	// MinRefreshInterval is the minimum time between two fetches of the key
	// set. Tokens naming an unknown kid inside this window fail without a
	// fetch. Default: 1 minute.
	MinRefreshInterval time.Duration

	// HTTPClient is used to fetch the key set. Default: a client with a 10s timeout.
	HTTPClient *http.Client
}

func (c *JWKSConfig) applyDefaults() {
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.MinRefreshInterval == 0 {
		c.MinRefreshInterval = time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
}

// ErrMissingClaim is returned when a verified token lacks a required claim.
var ErrMissingClaim = errors.New("token missing required claim")

// JWKSVerifier verifies RS256/RS384/RS512 JWTs against keys published at a
// JWKS endpoint and maps standard OIDC claims to identity.Claims.
type JWKSVerifier struct {
	cfg  JWKSConfig
	keys *keyCache
}

var _ TokenVerifier = (*JWKSVerifier)(nil)

// NewJWKSVerifier creates a verifier. Keys are fetched lazily.
func NewJWKSVerifier(cfg JWKSConfig) *JWKSVerifier {
	cfg.applyDefaults()
	return &JWKSVerifier{
		cfg: cfg,
		keys: &keyCache{
			keys:       make(map[string]*rsa.PublicKey),
			ttl:        cfg.CacheTTL,
			minRefresh: cfg.MinRefreshInterval,
			url:        cfg.JWKSURL,
			client:     cfg.HTTPClient,
		},
	}
}

// Verify checks the signature, expiry, issuer and audience of token.
// The sub and tenant claims are required.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (identity.Claims, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token missing kid header")
		}
		key, err := v.keys.get(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("resolving signing key %q: %w", kid, err)
		}
		return key, nil
	}, v.parserOptions()...)
	if err != nil {
		return identity.Claims{}, fmt.Errorf("invalid JWT: %w", err)
	}

	mc, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok || !parsed.Valid {
		return identity.Claims{}, errors.New("invalid JWT claims")
	}

	claims := identity.Claims{
		ExternalID: claimString(mc, "sub"),
		Email:      claimString(mc, "email"),
		FirstName:  claimString(mc, "given_name"),
		LastName:   claimString(mc, "family_name"),
		TenantID:   claimString(mc, v.cfg.TenantClaim),
	}
	if claims.ExternalID == "" {
		return identity.Claims{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if claims.TenantID == "" {
		return identity.Claims{}, fmt.Errorf("%w: %s", ErrMissingClaim, v.cfg.TenantClaim)
	}
	return claims, nil
}

func (v *JWKSVerifier) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwtlib.WithExpirationRequired(),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(v.cfg.Issuer))
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(v.cfg.Audience))
	}
	return opts
}

// claimString returns the string value of key, or "" if absent or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// ErrKeyNotFound is returned when a token names a kid the key set does not
// contain.
var ErrKeyNotFound = errors.New("key not found in JWKS")

// keyCache caches RSA public keys fetched from a JWKS endpoint.
type keyCache struct {
	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	fetchedAt   time.Time
	lastAttempt time.Time
	ttl         time.Duration
	minRefresh  time.Duration
	url         string
	client      *http.Client
}

// get returns the key for kid, refreshing the set when the cache is stale
// or the kid is unknown. Fetches are spaced at least minRefresh apart, so
// unknown kids cannot drive one outbound request each.
func (c *keyCache) get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fresh := time.Since(c.fetchedAt) < c.ttl
	throttled := time.Since(c.lastAttempt) < c.minRefresh
	c.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}
	if throttled {
		return c.cached(kid)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have refreshed while we waited.
	if key, ok := c.keys[kid]; ok && time.Since(c.fetchedAt) < c.ttl {
		return key, nil
	}
	if time.Since(c.lastAttempt) < c.minRefresh {
		return c.lookup(kid)
	}

	c.lastAttempt = time.Now()
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	return c.lookup(kid)
}

func (c *keyCache) cached(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup(kid)
}

// lookup returns the cached key for kid. Must be called with a lock held.
func (c *keyCache) lookup(kid string) (*rsa.PublicKey, error) {
	key, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, kid)
	}
	return key, nil
}

// refresh replaces the cached key set. Must be called with the write lock held.
func (c *keyCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("creating JWKS request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("parsing JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := parseRSAPublicKey(k)
		if err != nil {
			slog.Warn("skipping JWKS key", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}

	c.keys = keys
	c.fetchedAt = time.Now()
	slog.Debug("JWKS cache refreshed", "keys", len(keys), "url", c.url)
	return nil
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func parseRSAPublicKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() {
		return nil, errors.New("RSA exponent too large")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: int(e.Int64())}, nil
}
