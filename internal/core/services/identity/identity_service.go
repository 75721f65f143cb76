package identity

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
)

var (
	ErrInvalidToken   = errors.New("invalid identity token")
	ErrMissingSubject = errors.New("identity token has no subject")
	ErrNoVerifierKey  = errors.New("no token verification key configured")
)

// Config selects how identity tokens are verified. Exactly one of
// HMACSecret or PublicKeyPEM is expected.
type Config struct {
	HMACSecret   string
	PublicKeyPEM string
	Issuer       string
	Audience     string
	// CacheTTL bounds how long a verified token is trusted without re-reading the profile.
	CacheTTL time.Duration
}

type claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type session struct {
	user      *domain.User
	expiresAt time.Time
}

// Service implements ports.IdentityVerifier on top of identity-provider JWTs.
// Verified profiles are mirrored into the user repository.
type Service struct {
	repo   ports.UserRepository
	audit  ports.AuditService
	cfg    Config
	rsaKey *rsa.PublicKey
	parser *jwt.Parser
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]session
}

// NewService creates a verifier. audit may be nil.
func NewService(repo ports.UserRepository, audit ports.AuditService, cfg Config) (*Service, error) {
	s := &Service{
		repo:     repo,
		audit:    audit,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]session),
	}
	if s.cfg.CacheTTL <= 0 {
		s.cfg.CacheTTL = 5 * time.Minute
	}

	methods := []string{}
	switch {
	case cfg.PublicKeyPEM != "":
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse identity public key: %w", err)
		}
		s.rsaKey = key
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	case cfg.HMACSecret != "":
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	default:
		return nil, ErrNoVerifierKey
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	s.parser = jwt.NewParser(opts...)

	return s, nil
}

var _ ports.IdentityVerifier = (*Service)(nil)

// VerifyToken validates the token signature and claims, then upserts the profile.
func (s *Service) VerifyToken(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	if u, ok := s.cached(token); ok {
		return u, nil
	}

	var c claims
	if _, err := s.parser.ParseWithClaims(token, &c, s.keyFunc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return nil, ErrMissingSubject
	}

	user, err := s.upsert(ctx, c)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.cfg.CacheTTL)
	if c.ExpiresAt != nil && c.ExpiresAt.Before(expiresAt) {
		expiresAt = c.ExpiresAt.Time
	}
	s.remember(token, user, expiresAt)

	if s.audit != nil {
		if err := s.audit.Log(domain.WithActor(ctx, user), domain.ActionLogin, user.ID, user.Email); err != nil {
			slog.Warn("failed to audit login", "user_id", user.ID, "error", err)
		}
	}

	return user, nil
}

func (s *Service) keyFunc(t *jwt.Token) (interface{}, error) {
	if s.rsaKey != nil {
		return s.rsaKey, nil
	}
	return []byte(s.cfg.HMACSecret), nil
}

func (s *Service) upsert(ctx context.Context, c claims) (*domain.User, error) {
	role := domain.RoleUser
	if domain.Role(c.Role) == domain.RoleAdmin {
		role = domain.RoleAdmin
	}

	user, err := s.repo.GetUser(ctx, c.Subject)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user, err = domain.NewUser(c.Subject, c.Email, c.Name, role)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	default:
		user.Email = c.Email
		user.DisplayName = c.Name
		user.Role = role
		user.UpdateLastLogin()
	}

	if err := s.repo.SaveUser(ctx, *user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	return user, nil
}

func (s *Service) cached(token string) (*domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok || !s.now().Before(sess.expiresAt) {
		return nil, false
	}
	return sess.user, true
}

func (s *Service) remember(token string, user *domain.User, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for t, sess := range s.sessions {
		if !now.Before(sess.expiresAt) {
			delete(s.sessions, t)
		}
	}
	s.sessions[token] = session{user: user, expiresAt: expiresAt}
}
