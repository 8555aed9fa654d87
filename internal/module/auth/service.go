package auth

import (
	"context"
	"crypto/subtle"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/simp-lee/jwt"

	"github.com/simp-lee/layover/internal/domain"
)

// RoleAdmin is the role required for registry and store writes.
const RoleAdmin = "admin"

// Credentials identify the console administrator. PasswordHash is a bcrypt
// hash.
type Credentials struct {
	Username     string
	PasswordHash string
}

// Service defines the authentication operations.
type Service interface {
	Login(ctx context.Context, username, password string) (*TokenResponse, error)
}

// authService implements Service.
type authService struct {
	jwtSvc      jwt.Service
	admin       Credentials
	tokenExpiry time.Duration
}

// NewService creates a new auth Service issuing admin tokens valid for
// tokenExpiry.
func NewService(jwtSvc jwt.Service, admin Credentials, tokenExpiry time.Duration) Service {
	return &authService{
		jwtSvc:      jwtSvc,
		admin:       admin,
		tokenExpiry: tokenExpiry,
	}
}

// Login checks the credentials and returns a token carrying RoleAdmin.
func (s *authService) Login(_ context.Context, username, password string) (*TokenResponse, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	// The hash is compared even for an unknown user so both failures take
	// the same time.
	passErr := bcrypt.CompareHashAndPassword([]byte(s.admin.PasswordHash), []byte(password))
	if !userOK || passErr != nil {
		return nil, domain.ErrUnauthorized
	}

	token, err := s.jwtSvc.GenerateToken(s.admin.Username, []string{RoleAdmin}, s.tokenExpiry)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to generate token", err)
	}

	parsed, err := s.jwtSvc.ParseToken(token)
	if err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to parse generated token", err)
	}

	return &TokenResponse{
		Token:     token,
		ExpiresAt: parsed.ExpiresAt.Unix(),
	}, nil
}
