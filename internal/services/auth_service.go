package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/swigpay/qr-payments-backend/internal/config"
	"github.com/swigpay/qr-payments-backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

// ErrInvalidCredentials is returned for any login failure; the cause is not
// disclosed to the caller.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Compile-time check to ensure AuthServiceImpl implements AuthService
var _ AuthService = (*AuthServiceImpl)(nil)

type AuthServiceImpl struct {
	cfg *config.Config
}

func NewAuthService(cfg *config.Config) *AuthServiceImpl {
	return &AuthServiceImpl{cfg: cfg}
}

// Login checks the configured admin credentials and issues a JWT
func (s *AuthServiceImpl) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	if s.cfg.Admin.Email == "" || s.cfg.Admin.PasswordHash == "" {
		slog.Error("Admin login attempted but no admin account is configured")
		return nil, ErrInvalidCredentials
	}

	if req.Email != s.cfg.Admin.Email {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.Admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	expiresIn := s.cfg.JWT.ExpiresIn
	claims := jwt.MapClaims{
		"sub":  req.Email,
		"role": "admin",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Duration(expiresIn) * time.Second).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, err
	}

	slog.Info("Admin login", "email", req.Email)
	return &models.LoginResponse{Token: signed, ExpiresIn: expiresIn}, nil
}
