package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"frozen-pos/internal/model"
	"frozen-pos/internal/repository"
	"frozen-pos/pkg/apperror"
	"frozen-pos/pkg/validator"
)

type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	FullName    string `json:"full_name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,max=20"`
	RoleID      uint   `json:"role_id" validate:"required"`
}

type UpdateUserRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=6"` // Optional
	FullName    string  `json:"full_name" validate:"required"`
	PhoneNumber string  `json:"phone_number" validate:"omitempty,max=20"`
	RoleID      uint    `json:"role_id" validate:"required"`
	IsActive    *bool   `json:"is_active"`
}

type UserService interface {
	CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*model.User, error)
	UpdateUser(ctx context.Context, actor Actor, userID uuid.UUID, req UpdateUserRequest) (*model.User, error)
	DeleteUser(ctx context.Context, actor Actor, userID uuid.UUID) error
	UpdateUserPrivileges(ctx context.Context, actor Actor, userID uuid.UUID, privilegeCodes []string) (*model.User, error)
	GetAllUsers(ctx context.Context) ([]model.UserResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error)
}

type userService struct {
	userRepo      repository.UserRepository
	privilegeRepo repository.PrivilegeRepository
	roleRepo      repository.RoleRepository
}

func NewUserService(userRepo repository.UserRepository, privilegeRepo repository.PrivilegeRepository, roleRepo repository.RoleRepository) UserService {
	return &userService{
		userRepo:      userRepo,
		privilegeRepo: privilegeRepo,
		roleRepo:      roleRepo,
	}
}

func (s *userService) CreateUser(ctx context.Context, actor Actor, req CreateUserRequest) (*model.User, error) {
	// 1. Validate request
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	// 2. Check if email already exists
	if err := s.ensureEmailFree(ctx, req.Email); err != nil {
		return nil, err
	}

	// 3. Validate role exists
	role, err := s.roleRepo.FindByID(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}

	// 4. Create user; privileges follow the role
	user := &model.User{
		Email:       req.Email,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		RoleID:      &role.ID,
		IsActive:    true,
		Privileges:  role.Privileges,
	}
	user.CreatedBy = actor.audit()
	user.UpdatedBy = actor.audit()
	if err := user.SetPassword(req.Password); err != nil {
		return nil, apperror.Internal(err, "failed to hash password")
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.userRepo.FindByID(ctx, user.ID)
}

func (s *userService) UpdateUser(ctx context.Context, actor Actor, userID uuid.UUID, req UpdateUserRequest) (*model.User, error) {
	// 1. Validate request
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	// 2. Find existing user
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 3. Check if email is being changed and already exists
	if req.Email != user.Email {
		if err := s.ensureEmailFree(ctx, req.Email); err != nil {
			return nil, err
		}
	}

	// 4. Validate role exists
	role, err := s.roleRepo.FindByID(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}

	// 5. Update user fields
	user.Email = req.Email
	user.FullName = req.FullName
	user.PhoneNumber = req.PhoneNumber
	roleChanged := user.RoleID == nil || *user.RoleID != role.ID
	user.RoleID = &role.ID
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.UpdatedBy = actor.audit()

	// 6. Update password if provided
	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, apperror.Internal(err, "failed to hash password")
		}
		user.TokenVersion = uuid.New().String()
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	// 7. A new role brings its default privileges
	if roleChanged {
		if err := s.userRepo.UpdatePrivileges(ctx, user.ID, role.Privileges); err != nil {
			return nil, err
		}
	}

	return s.userRepo.FindByID(ctx, userID)
}

func (s *userService) DeleteUser(ctx context.Context, actor Actor, userID uuid.UUID) error {
	if actor.ID == userID {
		return apperror.Conflict("you cannot delete your own account")
	}
	return s.userRepo.Delete(ctx, userID, actor.audit())
}

func (s *userService) UpdateUserPrivileges(ctx context.Context, actor Actor, userID uuid.UUID, privilegeCodes []string) (*model.User, error) {
	// 1. Find user
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 2. Get privileges; unknown codes are rejected
	privileges, err := s.privilegeRepo.FindByCodes(ctx, privilegeCodes)
	if err != nil {
		return nil, err
	}
	if len(privileges) != len(uniqueCodes(privilegeCodes)) {
		return nil, apperror.Validation("unknown privilege code in %v", privilegeCodes)
	}

	// 3. Update privileges
	if err := s.userRepo.UpdatePrivileges(ctx, userID, privileges); err != nil {
		return nil, err
	}

	// 4. Update audit field
	user.UpdatedBy = actor.audit()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	return s.userRepo.FindByID(ctx, userID)
}

func (s *userService) GetAllUsers(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]model.UserResponse, len(users))
	for i := range users {
		responses[i] = users[i].ToResponse()
	}
	return responses, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	response := user.ToResponse()
	return &response, nil
}

func (s *userService) ensureEmailFree(ctx context.Context, email string) error {
	_, err := s.userRepo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return apperror.Conflict("email %s already exists", email)
	case errors.Is(err, apperror.ErrNotFound):
		return nil
	default:
		return err
	}
}

func uniqueCodes(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}
