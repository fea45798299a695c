package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pulse/internal/domain"
	"pulse/internal/repository"
)

const minPasswordLength = 8

// UserService describes user lifecycle operations.
type UserService interface {
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	ChangePassword(ctx context.Context, userID int64, current, next string) error

	List(ctx context.Context) ([]domain.User, error)
	Create(ctx context.Context, input CreateUserInput) (*domain.User, error)
	Update(ctx context.Context, actorID, id int64, input UpdateUserInput) (*domain.User, error)
	ResetPassword(ctx context.Context, id int64, password string) error
}

type CreateUserInput struct {
	Email        string
	Password     string
	FullName     string
	Role         domain.Role
	Department   string
	Position     string
	HireDate     *time.Time
	VacationDays *int
}

// UpdateUserInput carries optional profile changes; nil fields are left untouched.
type UpdateUserInput struct {
	FullName   *string
	Role       *domain.Role
	Department *string
	Position   *string
	HireDate   *time.Time
	Active     *bool
}

type userService struct {
	users       repository.UserRepository
	vacations   repository.VacationRepository
	defaultDays int
	now         func() time.Time
}

func NewUserService(users repository.UserRepository, vacations repository.VacationRepository, defaultDays int) UserService {
	return &userService{
		users:       users,
		vacations:   vacations,
		defaultDays: defaultDays,
		now:         time.Now,
	}
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(strings.TrimSpace(current))); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := hashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

func (s *userService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

func (s *userService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	email := normalizeEmail(input.Email)
	fullName := strings.TrimSpace(input.FullName)
	if !strings.Contains(email, "@") {
		return nil, invalid("email", "a valid email is required")
	}
	if fullName == "" {
		return nil, invalid("full_name", "is required")
	}
	role := input.Role
	if role == "" {
		role = domain.RoleEmployee
	}
	if !role.Valid() {
		return nil, invalid("role", "unknown role %q", role)
	}
	days := s.defaultDays
	if input.VacationDays != nil {
		days = *input.VacationDays
	}
	if days < 0 {
		return nil, invalid("vacation_days", "must not be negative")
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         role,
		Department:   strings.TrimSpace(input.Department),
		Position:     strings.TrimSpace(input.Position),
		HireDate:     input.HireDate,
		Active:       true,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	if _, err := s.vacations.UpsertPeriod(ctx, user.ID, s.now().Year(), days); err != nil {
		return nil, fmt.Errorf("create vacation period: %w", err)
	}

	return sanitizeUser(user), nil
}

func (s *userService) Update(ctx context.Context, actorID, id int64, input UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			return nil, invalid("full_name", "must not be empty")
		}
		user.FullName = name
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, invalid("role", "unknown role %q", *input.Role)
		}
		if actorID == id && *input.Role != domain.RoleAdmin {
			return nil, invalid("role", "you cannot remove your own admin role")
		}
		user.Role = *input.Role
	}
	if input.Department != nil {
		user.Department = strings.TrimSpace(*input.Department)
	}
	if input.Position != nil {
		user.Position = strings.TrimSpace(*input.Position)
	}
	if input.HireDate != nil {
		d := domain.DateOnly(*input.HireDate)
		user.HireDate = &d
	}
	if input.Active != nil {
		if actorID == id && !*input.Active {
			return nil, invalid("active", "you cannot deactivate your own account")
		}
		user.Active = *input.Active
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) ResetPassword(ctx context.Context, id int64, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, id, hash)
}

// HashPassword validates and bcrypt-hashes a password.
func HashPassword(password string) (string, error) {
	return hashPassword(password)
}

func hashPassword(password string) (string, error) {
	password = strings.TrimSpace(password)
	if len(password) < minPasswordLength {
		return "", invalid("password", "must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}
