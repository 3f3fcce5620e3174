package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/librarian/internal/persistence"
)

// UserRepository captures the persistence operations needed by the service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RegisterParams wraps the data required to create an account.
type RegisterParams struct {
	Email    string
	Name     string
	Password string
}

// UserService manages accounts and role assignments.
type UserService struct {
	users       UserRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService constructs a user service with the provided dependencies.
func NewUserService(users UserRepository, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, idGenerator, now, nil)
}

// NewUserServiceWithLogger constructs a user service with a specified logger.
func NewUserServiceWithLogger(users UserRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// Register creates a new reader account with the default role.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Register", "email", params.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	vErr := validateRegisterParams(params)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	hash, err := CreatePasswordHash(params.Password, DefaultArgon2idParams)
	if err != nil {
		err = fmt.Errorf("failed to hash password: %w", err)
		return
	}

	now := s.now()
	user = User{
		ID:           s.idGenerator(),
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		Name:         strings.TrimSpace(params.Name),
		PasswordHash: hash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err = s.users.CreateUser(ctx, user); err != nil {
		err = mapUserRepoError(err)
		user = User{}
		return
	}

	user.PasswordHash = ""
	return
}

// GetUser retrieves an account by ID. Non-admin callers may only read their
// own account.
func (s *UserService) GetUser(ctx context.Context, principal Principal, id string) (user User, err error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	if id != principal.UserID && !principal.IsAdmin {
		return User{}, ErrForbidden
	}

	user, err = s.users.GetUser(ctx, id)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}

	user.PasswordHash = ""
	return user, nil
}

// ListUsers returns every account. Administrators only.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return nil, fmt.Errorf("user repository not configured")
	}
	if !principal.IsAdmin {
		return nil, ErrForbidden
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// AdminStatus reports whether the account behind the email holds the admin
// role. Callers may only ask about their own email unless they are admins.
func (s *UserService) AdminStatus(ctx context.Context, principal Principal, email string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return false, fmt.Errorf("user repository not configured")
	}

	email = strings.TrimSpace(email)
	if email == "" {
		email = principal.Email
	}
	if !strings.EqualFold(email, principal.Email) && !principal.IsAdmin {
		return false, ErrForbidden
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return false, mapUserRepoError(err)
	}

	return user.Role == RoleAdmin, nil
}

// SetRole changes an account's role. Administrators only.
func (s *UserService) SetRole(ctx context.Context, principal Principal, userID, role string) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SetRole",
		"principal_id", principal.UserID,
		"user_id", userID,
		"role", role,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set role", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "role set")
	}()

	if !principal.IsAdmin {
		err = ErrForbidden
		return
	}
	if role != RoleUser && role != RoleAdmin {
		vErr := &ValidationError{}
		vErr.add("role", "must be user or admin")
		err = vErr
		return
	}

	user, err = s.users.GetUser(ctx, userID)
	if err != nil {
		err = mapUserRepoError(err)
		user = User{}
		return
	}

	user.Role = role
	user.UpdatedAt = s.now()

	if err = s.users.UpdateUser(ctx, user); err != nil {
		err = mapUserRepoError(err)
		user = User{}
		return
	}

	user.PasswordHash = ""
	return
}

// DeleteUser removes an account. Administrators only; accounts with borrow
// history cannot be removed.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, id string) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteUser",
		"principal_id", principal.UserID,
		"user_id", id,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user deleted")
	}()

	if !principal.IsAdmin {
		return ErrForbidden
	}

	if err = s.users.DeleteUser(ctx, id); err != nil {
		err = mapUserRepoError(err)
		return
	}

	return nil
}

func validateRegisterParams(params RegisterParams) *ValidationError {
	vErr := &ValidationError{}
	email := strings.TrimSpace(params.Email)
	if email == "" {
		vErr.add("email", "is required")
	} else if !strings.Contains(email, "@") {
		vErr.add("email", "must be a valid address")
	}
	if strings.TrimSpace(params.Name) == "" {
		vErr.add("name", "is required")
	}
	if len(params.Password) < 8 {
		vErr.add("password", "must be at least 8 characters")
	}
	return vErr
}

// mapUserRepoError converts persistence sentinels to application errors.
func mapUserRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return &InvalidStateError{Reason: "user has borrow records"}
	default:
		return err
	}
}
