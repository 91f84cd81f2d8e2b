// Package jwt provides an authenticator for RSA-signed JWT bearer tokens
// verified against a JWKS endpoint.
package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/modelserve/pkg/auth"
	"github.com/rhuss/modelserve/pkg/debug"
	"github.com/rhuss/modelserve/pkg/transport"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Issuer is the expected iss claim. Empty disables the check.
	Issuer string

	// Audience is the expected aud claim. Empty disables the check.
	Audience string

	// JWKSURL is where the signing keys are fetched from.
	JWKSURL string

	// SubjectClaim names the claim used as identity subject. Default: "sub".
	SubjectClaim string

	// TierClaim names the claim selecting the rate limit tier. Default: "tier".
	TierClaim string

	// ScopesClaim names the scopes claim, either a space-separated string
	// or an array. Default: "scope".
	ScopesClaim string

	// CacheTTL controls how long fetched keys are trusted. Default: 1 hour.
	CacheTTL time.Duration

	// HTTPClient is used for JWKS requests. Default: http.DefaultClient.
	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	if c.SubjectClaim == "" {
		c.SubjectClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

// Authenticator validates JWT bearer tokens.
type Authenticator struct {
	config Config
	keys   *keySet
}

// New creates a JWT authenticator.
func New(cfg Config) *Authenticator {
	cfg.applyDefaults()
	return &Authenticator{
		config: cfg,
		keys: &keySet{
			keys:   make(map[string]*rsa.PublicKey),
			ttl:    cfg.CacheTTL,
			url:    cfg.JWKSURL,
			client: cfg.HTTPClient,
		},
	}
}

// Authenticate abstains for anything but bearer credentials and votes No
// for tokens that fail verification.
func (a *Authenticator) Authenticate(ctx context.Context, creds transport.Credentials) auth.AuthResult {
	if creds.Scheme != "bearer" {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if creds.Token == "" {
		return reject(errors.New("empty bearer token"))
	}

	token, err := jwtlib.Parse(creds.Token, func(token *jwtlib.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token missing kid header")
		}
		return a.keys.get(ctx, kid)
	}, a.parserOptions()...)
	if err != nil {
		debug.Log("auth", "JWT validation failed", "error", err)
		return reject(fmt.Errorf("invalid JWT: %w", err))
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return reject(errors.New("invalid JWT claims"))
	}

	subject := claimString(claims, a.config.SubjectClaim)
	if subject == "" {
		return reject(fmt.Errorf("JWT missing %q claim", a.config.SubjectClaim))
	}
	tier := claimString(claims, a.config.TierClaim)
	if tier == "" {
		tier = "default"
	}

	return auth.AuthResult{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:     subject,
			ServiceTier: tier,
			Scopes:      scopes(claims, a.config.ScopesClaim),
			Metadata:    map[string]string{"issuer": claimString(claims, "iss")},
		},
	}
}

func reject(err error) auth.AuthResult {
	return auth.AuthResult{Decision: auth.No, Err: err}
}

func (a *Authenticator) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512"}),
		jwtlib.WithExpirationRequired(),
	}
	if a.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(a.config.Audience))
	}
	return opts
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

func scopes(claims jwtlib.MapClaims, key string) []string {
	var out []string
	switch v := claims[key].(type) {
	case string:
		out = strings.Fields(v)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// keySet caches RSA public keys fetched from a JWKS endpoint. An unknown
// kid or an expired set triggers a refetch.
type keySet struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	ttl       time.Duration
	url       string
	client    *http.Client
}

func (s *keySet) lookup(kid string) (*rsa.PublicKey, bool) {
	key, ok := s.keys[kid]
	return key, ok && time.Since(s.fetchedAt) < s.ttl
}

func (s *keySet) get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	key, ok := s.lookup(kid)
	s.mu.RUnlock()
	if ok {
		return key, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.lookup(kid); ok {
		return key, nil
	}
	if err := s.refresh(ctx); err != nil {
		return nil, fmt.Errorf("fetching JWKS key for kid %q: %w", kid, err)
	}
	key, ok = s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key %q not found in JWKS", kid)
	}
	return key, nil
}

// refresh replaces the cached keys. Caller must hold the write lock.
func (s *keySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("parsing JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			debug.Log("auth", "skipping JWKS key", "kid", k.Kid, "error", err)
			continue
		}
		keys[k.Kid] = pub
	}

	s.keys = keys
	s.fetchedAt = time.Now()
	debug.Log("auth", "JWKS refreshed", "keys", len(keys), "url", s.url)
	return nil
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) publicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() > 1<<31-1 {
		return nil, errors.New("RSA exponent too large")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
