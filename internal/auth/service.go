package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidUsername is returned when the username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidToken is returned when a presented token fails validation.
	ErrInvalidToken = errors.New("invalid token")
)

// Service issues and validates identity tokens. Full user accounts live in
// an external identity layer; this service covers guest identities and
// token validation, which is all the signaling core needs.
type Service struct {
	jwtConfig *JWTConfig
}

// NewService creates an authentication service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{jwtConfig: jwtConfig}
}

// GuestIdentity is a freshly minted anonymous identity.
type GuestIdentity struct {
	Addr     string
	Username string
	Token    string
}

// IssueGuest mints an anonymous signaling address and a token for it.
func (s *Service) IssueGuest(username string) (*GuestIdentity, error) {
	username = strings.TrimSpace(username)
	if len(username) > 32 {
		return nil, ErrInvalidUsername
	}

	addr := "anon:" + uuid.New().String()
	if username == "" {
		username = "guest_" + addr[len(addr)-8:]
	}

	token, err := GenerateToken(s.jwtConfig, addr, username, true)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &GuestIdentity{Addr: addr, Username: username, Token: token}, nil
}

// ValidateToken checks a presented token and returns its claims.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
