// Package auth issues and checks the JWTs carried by API callers and hashes
// account passwords.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/portaprosoftware/fleet-compliance/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user is inactive")
)

const (
	// Issuer is stamped into every token and required on the way back in.
	Issuer = "portapro-fleet-compliance"

	// DefaultTokenExpiry applies when no expiry is configured.
	DefaultTokenExpiry = 24 * time.Hour

	devSecret = "default-secret-key-change-in-production"
)

// tokenClaims is the JWT body. The subject is the user's hex id.
type tokenClaims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service signs and verifies tokens with a shared HMAC secret.
type Service struct {
	jwtSecret []byte
	tokenExp  time.Duration
	now       func() time.Time
}

// NewService creates a new authentication service. An empty secret falls
// back to a development key; a non-positive expiry to DefaultTokenExpiry.
func NewService(secret string, tokenExp time.Duration) (*Service, error) {
	if secret == "" {
		secret = devSecret
	}
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 characters")
	}
	if tokenExp <= 0 {
		tokenExp = DefaultTokenExpiry
	}
	return &Service{jwtSecret: []byte(secret), tokenExp: tokenExp, now: time.Now}, nil
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyLogin checks that user may sign in with password. Inactive accounts
// are reported before the password is compared.
func (s *Service) VerifyLogin(user *models.User, password string) error {
	switch {
	case user == nil:
		return ErrInvalidCredentials
	case !user.IsActive:
		return ErrUserInactive
	case !s.CheckPassword(password, user.PasswordHash):
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateToken signs an access token for user.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   user.ID.Hex(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExp)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// GenerateRefreshToken returns 32 random bytes, URL-safe encoded.
func (s *Service) GenerateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidateToken verifies signature, issuer and expiry and returns the
// caller's claims. A leading "Bearer " is tolerated.
func (s *Service) ValidateToken(tokenString string) (*models.Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (interface{}, error) { return s.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" || claims.Username == "" || !models.IsValidRole(claims.Role) {
		return nil, ErrInvalidToken
	}
	return &models.Claims{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     claims.Role,
		Exp:      claims.ExpiresAt.Unix(),
	}, nil
}

// ExtractTokenFromHeader returns the credentials of a "Bearer <token>"
// Authorization header. The scheme is case-insensitive.
func (s *Service) ExtractTokenFromHeader(authHeader string) (string, error) {
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.Contains(token, " ") {
		return "", ErrInvalidToken
	}
	return token, nil
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}
	if len(password) > 72 {
		// bcrypt ignores everything past 72 bytes
		return errors.New("password must be at most 72 bytes")
	}
	return nil
}

// ValidateEmail accepts a bare address whose domain has a dot.
func (s *Service) ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email format")
	}
	_, domain, _ := strings.Cut(addr.Address, "@")
	if !strings.Contains(domain, ".") {
		return errors.New("invalid email format")
	}
	return nil
}

func (s *Service) ValidateUsername(username string) error {
	switch {
	case len(username) < 3:
		return errors.New("username must be at least 3 characters long")
	case len(username) > 50:
		return errors.New("username must be less than 50 characters")
	case strings.ContainsAny(username, " \t\r\n"):
		return errors.New("username must not contain whitespace")
	}
	return nil
}
