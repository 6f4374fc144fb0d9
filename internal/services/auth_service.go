package services

import (
	"context"
	"fmt"

	"github.com/fieldstone/opportunity-engine/internal/auth"
	"github.com/fieldstone/opportunity-engine/internal/models"
	"github.com/fieldstone/opportunity-engine/internal/repository"
	"github.com/fieldstone/opportunity-engine/pkg/config"
)

// authServiceImpl implements AuthService
type authServiceImpl struct {
	repos      *repository.Repositories
	jwtService *auth.JWTService
	cfg        *config.Config
}

// newAuthService creates a new auth service implementation
func newAuthService(repos *repository.Repositories, cfg *config.Config) AuthService {
	return &authServiceImpl{
		repos:      repos,
		jwtService: auth.NewJWTService(cfg.JWTSecret),
		cfg:        cfg,
	}
}

// Login authenticates a user and returns a token
func (s *authServiceImpl) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, fmt.Errorf("invalid credentials")
	}

	return s.issueTokens(user)
}

// Register creates a new operator account
func (s *authServiceImpl) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	existing, err := s.repos.Users.GetByEmail(ctx, req.Email)
	if err == nil && existing != nil {
		return nil, fmt.Errorf("user with email %s already exists", req.Email)
	}

	if _, err := s.repos.Tenants.GetByID(ctx, req.TenantID); err != nil {
		return nil, fmt.Errorf("unknown tenant")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = "user"
	}
	user := &models.User{
		TenantID:     req.TenantID,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.repos.Users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}

// ValidateToken validates a JWT token and returns the user it names
func (s *authServiceImpl) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.jwtService.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.repos.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}
	user.PasswordHash = ""
	return user, nil
}

// RefreshToken exchanges a valid refresh token for a fresh token pair
func (s *authServiceImpl) RefreshToken(ctx context.Context, token string) (*LoginResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token")
	}

	user, err := s.repos.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}

	return s.issueTokens(user)
}

func (s *authServiceImpl) issueTokens(user *models.User) (*LoginResponse, error) {
	claims := auth.Claims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Email:    user.Email,
		Role:     user.Role,
	}

	token, expiresAt, err := s.jwtService.GenerateToken(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	refreshToken, _, err := s.jwtService.GenerateRefreshToken(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	sanitized := *user
	sanitized.PasswordHash = ""
	return &LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         sanitized,
		ExpiresAt:    expiresAt,
	}, nil
}
