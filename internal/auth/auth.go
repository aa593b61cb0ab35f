// Package auth issues and verifies short-lived bearer tokens.
//
// Tokens are RS256 JWTs carrying the subject and its scopes. A token is only
// honoured while the token store holds an entry for its subject; every
// successful verification slides that entry's TTL forward, and Revoke drops
// it. The signing key is regenerated whenever a token is issued while the
// store holds no live sessions, so restarting the process invalidates every
// outstanding token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/kv"
	"github.com/zulandar/testyard/internal/models"
	"gorm.io/gorm"
)

// sessionPrefix namespaces token-store keys. "/" can never appear in a
// project alias, so session keys cannot collide with status-board keys.
const sessionPrefix = "session/"

// Claims is the token payload.
type Claims struct {
	Scopes map[string]string `json:"scopes"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request.
type Principal struct {
	Username string
	Scopes   map[string]string
}

// IsGlobalAdmin reports whether the principal is admin on every project.
func (p *Principal) IsGlobalAdmin() bool {
	return p.Scopes[Wildcard] == RightAdmin
}

// Service is the token lifecycle: login, issue, verify, revoke.
type Service struct {
	db    *gorm.DB
	store kv.Store
	keys  *KeyMaterial
	ttl   time.Duration
	now   func() time.Time

	// issueMu serializes the session check, key rotation, signing and
	// session write of Issue.
	issueMu sync.Mutex
}

// NewService wires the auth core to its user table, token store and keys.
func NewService(db *gorm.DB, store kv.Store, keys *KeyMaterial, ttl time.Duration) *Service {
	return &Service{db: db, store: store, keys: keys, ttl: ttl, now: time.Now}
}

// TTL returns the sliding token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Login checks a username/password pair. It fails with ErrCredentials
// whether the user is missing or the password is wrong.
func (s *Service) Login(ctx context.Context, username, password string) (*Principal, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("auth: login lookup: %w", err)
		}
		CheckPassword(string(dummyHash), password)
		return nil, fmt.Errorf("auth: login: %w", apperr.ErrCredentials)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("auth: login: %w", apperr.ErrCredentials)
	}
	return &Principal{Username: user.Username, Scopes: user.Scopes.Data()}, nil
}

// Issue signs a token for sub and opens its session in the token store.
func (s *Service) Issue(ctx context.Context, sub string, scopes map[string]string) (string, error) {
	s.issueMu.Lock()
	defer s.issueMu.Unlock()

	live, err := s.store.Keys(ctx, sessionPrefix)
	if err != nil {
		return "", fmt.Errorf("auth: issue: %w", err)
	}
	if len(live) == 0 {
		if err := s.keys.Rotate(); err != nil {
			return "", err
		}
	}

	now := s.now()
	claims := Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sub,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.keys.Private())
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}

	if err := s.store.Set(ctx, sessionPrefix+sub, []byte(now.UTC().Format(time.RFC3339)), s.ttl); err != nil {
		return "", fmt.Errorf("auth: open session: %w", err)
	}
	return token, nil
}

// Verify authenticates token and checks that its right on project is one of
// required (empty required accepts any live session). On success the
// session TTL is refreshed.
func (s *Service) Verify(ctx context.Context, token string, required []string, project string) (*Principal, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	sub := claims.Subject

	if _, err := s.store.Get(ctx, sessionPrefix+sub); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("auth: no session for %q: %w", sub, apperr.ErrCredentials)
		}
		return nil, fmt.Errorf("auth: session lookup: %w", err)
	}

	if err := authorize(claims.Scopes, required, project); err != nil {
		return nil, err
	}

	if err := s.store.Expire(ctx, sessionPrefix+sub, s.ttl); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("auth: session for %q expired: %w", sub, apperr.ErrCredentials)
		}
		return nil, fmt.Errorf("auth: refresh session: %w", err)
	}
	return &Principal{Username: sub, Scopes: claims.Scopes}, nil
}

func (s *Service) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("auth: missing bearer token: %w", apperr.ErrCredentials)
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != Algorithm {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return s.keys.Public(), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("auth: %w", apperr.ErrInvalidSignature)
		}
		return nil, fmt.Errorf("auth: decode token: %w", apperr.ErrCredentials)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject: %w", apperr.ErrCredentials)
	}
	return &claims, nil
}

// Revoke closes the session of username. Revoking a closed session is a no-op.
func (s *Service) Revoke(ctx context.Context, username string) error {
	if err := s.store.Delete(ctx, sessionPrefix+username); err != nil {
		return fmt.Errorf("auth: revoke %s: %w", username, err)
	}
	return nil
}
