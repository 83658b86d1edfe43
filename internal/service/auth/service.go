package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mamadbah2/wattwise/internal/config"
	"github.com/mamadbah2/wattwise/internal/domain/models"
	repo "github.com/mamadbah2/wattwise/internal/repository/mongodb"
)

// ErrUserExists indicates the email or username is already registered.
var ErrUserExists = errors.New("user already exists")

// ErrInvalidCredentials indicates an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrInvalidToken indicates a missing, malformed or expired session token.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload carried in the session cookie.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// Service provides registration, login and session token handling.
type Service struct {
	repo     repo.UserRepository
	secret   []byte
	tokenTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewService constructs the auth service.
func NewService(repository repo.UserRepository, cfg config.AuthConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repository,
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: cfg.TokenTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates a new user aggregate with hashed credentials and seeded
// appliance records, and issues a session token for it.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, string, error) {
	if _, err := s.repo.FindByEmailOrUsername(ctx, email, username); err == nil {
		return nil, "", ErrUserExists
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, "", fmt.Errorf("check existing user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := models.NewUser(username, email, string(hashed), s.now())
	if err := s.repo.Insert(ctx, user); err != nil {
		return nil, "", fmt.Errorf("insert user: %w", err)
	}

	token, err := s.IssueToken(user.ID.Hex())
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.Hex()), zap.String("username", username))
	return user, token, nil
}

// Login checks the credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("load user by email: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.IssueToken(user.ID.Hex())
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// IssueToken signs a session token for the given user id.
func (s *Service) IssueToken(userID string) (string, error) {
	now := s.now()
	claims := Claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// VerifyToken validates a session token and returns the user id it carries.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !token.Valid || claims.ID == "" {
		return "", ErrInvalidToken
	}

	return claims.ID, nil
}

// TokenTTL exposes the configured session lifetime for cookie max-age plumbing.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
