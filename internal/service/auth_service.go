package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"frozen-pos/internal/events"
	"frozen-pos/internal/model"
	"frozen-pos/internal/repository"
	"frozen-pos/pkg/apperror"
	"frozen-pos/pkg/jwt"
	"frozen-pos/pkg/validator"
)

var (
	ErrInvalidCredentials = apperror.Unauthorized("invalid email or password")
	ErrUserInactive       = apperror.Unauthorized("user account is inactive")
	ErrWrongPassword      = apperror.Unauthorized("current password is incorrect")
	ErrSessionTimeout     = apperror.Unauthorized("session expired due to inactivity")
	ErrSessionReplaced    = apperror.Unauthorized("session expired (logged in on another device)")
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

type LoginResponse struct {
	Token      string             `json:"token"`
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type TokenValidationResponse struct {
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	ValidateToken(ctx context.Context, token string) (*TokenValidationResponse, error)
	Authenticate(ctx context.Context, token string) (*jwt.Claims, error)
	Heartbeat(ctx context.Context, userID uuid.UUID) error
}

type authService struct {
	userRepo    repository.UserRepository
	tokens      *jwt.Manager
	idleTimeout time.Duration
	events      events.Publisher
	log         *zap.Logger
	now         func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, tokens *jwt.Manager, idleTimeout time.Duration, pub events.Publisher, log *zap.Logger) AuthService {
	return &authService{
		userRepo:    userRepo,
		tokens:      tokens,
		idleTimeout: idleTimeout,
		events:      pub,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	// 1. Find user by email
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// 2. Check if user is active
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 3. Verify password
	if !user.CheckPassword(req.Password) {
		return nil, ErrInvalidCredentials
	}

	// 4. Single session: a new token version invalidates older tokens
	version := uuid.New().String()
	if err := s.userRepo.StartSession(ctx, user.ID, version, s.now()); err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(user.ID, user.Email, user.FullName, user.RoleCode(), user.PrivilegeCodes(), version)
	if err != nil {
		return nil, apperror.Internal(err, "failed to generate token")
	}

	return &LoginResponse{
		Token:      token,
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.PrivilegeCodes(),
	}, nil
}

func (s *authService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if err := validator.Validate(req); err != nil {
		return err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if !user.CheckPassword(req.OldPassword) {
		return ErrWrongPassword
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		return apperror.Internal(err, "failed to hash new password")
	}

	// existing sessions end with the old password
	return s.userRepo.UpdatePassword(ctx, user.ID, user.Password, uuid.New().String())
}

// Authenticate verifies the token, the single-session version and the idle
// timeout. It is what the HTTP middleware runs on every request.
func (s *authService) Authenticate(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperror.Unauthorized("%s", err.Error())
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("user not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrSessionReplaced
	}
	return claims, nil
}

func (s *authService) ValidateToken(ctx context.Context, token string) (*TokenValidationResponse, error) {
	claims, err := s.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	// Inactivity: no heartbeat within the idle timeout ends the session.
	if s.idleTimeout > 0 {
		if user.LastSeenAt == nil || s.now().Sub(*user.LastSeenAt) > s.idleTimeout {
			return nil, ErrSessionTimeout
		}
	}

	return &TokenValidationResponse{
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.PrivilegeCodes(),
	}, nil
}

func (s *authService) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	now := s.now()
	if err := s.userRepo.UpdateLastSeen(ctx, userID, now); err != nil {
		return err
	}

	events.Notify(ctx, s.events, s.log, events.Event{
		Type:   events.TypeUserStatus,
		Action: "online",
		Key:    userID.String(),
		Data: map[string]interface{}{
			"user_id":      userID.String(),
			"status":       "online",
			"last_seen_at": now,
		},
	})
	return nil
}
