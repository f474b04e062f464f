package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/project-submission-api/internal/access"
	"github.com/noah-isme/project-submission-api/internal/models"
	"github.com/noah-isme/project-submission-api/internal/repository"
	appErrors "github.com/noah-isme/project-submission-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Deactivate(ctx context.Context, id string) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Email              string          `json:"email" validate:"required,email"`
	FullName           string          `json:"full_name" validate:"required,max=200"`
	Role               models.UserRole `json:"role" validate:"required,oneof=student supervisor level_coordinator hod general_admin"`
	Department         string          `json:"department" validate:"max=100"`
	Level              string          `json:"level" validate:"max=20"`
	RegistrationNumber string          `json:"registration_number" validate:"max=50"`
	Phone              string          `json:"phone" validate:"max=30"`
	Active             bool            `json:"active"`
	Password           string          `json:"password" validate:"required,min=6"`
}

// UpdateUserRequest payload for updating users.
type UpdateUserRequest struct {
	FullName   string          `json:"full_name" validate:"required,max=200"`
	Role       models.UserRole `json:"role" validate:"required,oneof=student supervisor level_coordinator hod general_admin"`
	Department *string         `json:"department" validate:"omitempty,max=100"`
	Level      *string         `json:"level" validate:"omitempty,max=20"`
	Phone      *string         `json:"phone" validate:"omitempty,max=30"`
	Active     *bool           `json:"active"`
}

// UserService handles user management workflows for administrators.
type UserService struct {
	repo      userRepository
	activity  activityRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, activity activityRecorder, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, activity: activity, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, actor access.Actor, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if err := requireManageUsers(actor); err != nil {
		return nil, nil, err
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid role filter")
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, actor access.Actor, id string) (*models.User, error) {
	if err := requireManageUsers(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Create adds a new user of any role.
func (s *UserService) Create(ctx context.Context, actor access.Actor, req CreateUserRequest) (*models.User, error) {
	if err := requireManageUsers(actor); err != nil {
		return nil, err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	if err := checkRoleScope(req.Role, req.Department, req.Level); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Department:   strings.TrimSpace(req.Department),
		Level:        strings.TrimSpace(req.Level),
		Active:       req.Active,
		PasswordHash: string(passwordHash),
	}
	if number := strings.TrimSpace(req.RegistrationNumber); number != "" {
		user.RegistrationNumber = &number
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		user.Phone = &phone
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or registration number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     models.ActivityUserCreate,
		EntityType: models.EntityUser,
		EntityID:   user.ID,
		Details:    map[string]interface{}{"email": user.Email, "role": user.Role},
	})
	return user, nil
}

// Update modifies the user attributes.
func (s *UserService) Update(ctx context.Context, actor access.Actor, id string, req UpdateUserRequest) (*models.User, error) {
	if err := requireManageUsers(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := map[string]interface{}{"role": user.Role, "active": user.Active, "department": user.Department, "level": user.Level}

	user.FullName = strings.TrimSpace(req.FullName)
	user.Role = req.Role
	if req.Department != nil {
		user.Department = strings.TrimSpace(*req.Department)
	}
	if req.Level != nil {
		user.Level = strings.TrimSpace(*req.Level)
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		user.Phone = &phone
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if err := checkRoleScope(user.Role, user.Department, user.Level); err != nil {
		return nil, err
	}
	if user.ID == actor.ID && (!user.Active || user.Role != actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "administrators cannot demote or deactivate themselves")
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "registration number already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     models.ActivityUserUpdate,
		EntityType: models.EntityUser,
		EntityID:   user.ID,
		Details: map[string]interface{}{
			"previous": previous,
			"current":  map[string]interface{}{"role": user.Role, "active": user.Active, "department": user.Department, "level": user.Level},
		},
	})
	return user, nil
}

// Deactivate marks a user inactive and revokes their sessions.
func (s *UserService) Deactivate(ctx context.Context, actor access.Actor, id string) error {
	if err := requireManageUsers(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return appErrors.Clone(appErrors.ErrValidation, "administrators cannot deactivate themselves")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !user.Active {
		return nil
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
		s.logger.Warn("failed to revoke sessions of deactivated user", zap.String("user_id", id), zap.Error(err))
	}

	s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		Action:     models.ActivityUserDeactivate,
		EntityType: models.EntityUser,
		EntityID:   user.ID,
		Details:    map[string]interface{}{"email": user.Email},
	})
	return nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func requireManageUsers(actor access.Actor) error {
	if !access.CanPerform(actor, access.OpManageUsers, access.Resource{}) {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can manage users")
	}
	return nil
}

// checkRoleScope enforces the scope attributes visibility depends on:
// students need both, coordinators a level and HODs a department.
func checkRoleScope(role models.UserRole, department, level string) error {
	switch role {
	case models.RoleStudent:
		if strings.TrimSpace(level) == "" || strings.TrimSpace(department) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "students need a department and a level")
		}
	case models.RoleLevelCoordinator:
		if strings.TrimSpace(level) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "level is required for this role")
		}
	case models.RoleHOD:
		if strings.TrimSpace(department) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "department is required for heads of department")
		}
	}
	return nil
}
