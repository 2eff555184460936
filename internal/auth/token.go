package auth

import (
	"errors"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Scope names an operation a service token permits.
type Scope string

const (
	ScopeToolsInvoke Scope = "tools:invoke"
	ScopeOpsRead     Scope = "ops:read"
)

// TokenManager handles issuing and validating service tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration, issuer string) *TokenManager {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}
}

// Claims describes JWT payload.
type Claims struct {
	Service string  `json:"svc"`
	Scopes  []Scope `json:"scopes"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants scope.
func (c *Claims) HasScope(scope Scope) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// GenerateToken builds and signs a JWT for the calling service.
func (tm *TokenManager) GenerateToken(service string, scopes ...Scope) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Service: service,
		Scopes:  scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   service,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithIssuer(tm.issuer), jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ServiceTokenSource hands out a cached token for outbound tool calls and
// mints a new one shortly before expiry.
type ServiceTokenSource struct {
	tokens  *TokenManager
	service string
	scopes  []Scope

	mu      sync.Mutex
	current string
	expires time.Time
}

func NewServiceTokenSource(tokens *TokenManager, service string, scopes ...Scope) *ServiceTokenSource {
	return &ServiceTokenSource{tokens: tokens, service: service, scopes: scopes}
}

// Token implements toolcall.TokenSource.
func (s *ServiceTokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	margin := s.tokens.ttl / 5
	if s.current != "" && s.tokens.now().Add(margin).Before(s.expires) {
		return s.current, nil
	}
	token, expires, err := s.tokens.GenerateToken(s.service, s.scopes...)
	if err != nil {
		return "", err
	}
	s.current, s.expires = token, expires
	return token, nil
}
