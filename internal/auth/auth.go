// internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/FairForge/warden/internal/rbac"
)

// DefaultTokenTTL is how long issued tokens stay valid
const DefaultTokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrOperatorExists     = errors.New("auth: operator already exists")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

// dummyHash is a well-formed bcrypt hash compared against when the
// username is unknown
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Operator is one human or machine account allowed to call the API
type Operator struct {
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// Claims carried in issued tokens
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and validates HMAC-signed tokens for a registry of
// operators
type Service struct {
	mu        sync.RWMutex
	secret    []byte
	tokenTTL  time.Duration
	operators map[string]*Operator
}

// NewService creates an auth service signing with the given secret
func NewService(secret string) (*Service, error) {
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	return &Service{
		secret:    []byte(secret),
		tokenTTL:  DefaultTokenTTL,
		operators: make(map[string]*Operator),
	}, nil
}

// SetTokenTTL overrides the default token lifetime
func (s *Service) SetTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl > 0 {
		s.tokenTTL = ttl
	}
}

// AddOperator registers an account. The password is stored only as a
// bcrypt hash.
func (s *Service) AddOperator(username, password, role string) error {
	if username == "" || password == "" {
		return errors.New("auth: username and password are required")
	}
	if !rbac.ValidRole(role) {
		return fmt.Errorf("auth: unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.operators[username]; exists {
		return ErrOperatorExists
	}
	s.operators[username] = &Operator{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
	}
	return nil
}

// RemoveOperator drops an account. Outstanding tokens stay valid
// until they expire.
func (s *Service) RemoveOperator(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.operators, username)
}

// Authenticate verifies credentials and returns a signed token
func (s *Service) Authenticate(username, password string) (string, error) {
	s.mu.RLock()
	op, exists := s.operators[username]
	ttl := s.tokenTTL
	s.mu.RUnlock()

	if !exists {
		// Burn a comparison anyway so missing and wrong-password
		// lookups take the same time.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.generateToken(op.Username, op.Role, ttl)
}

func (s *Service) generateToken(username, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    "warden",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token string
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if !rbac.ValidRole(claims.Role) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
