package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/librarian/internal/persistence"
)

// TokenRevocations captures the persistence operations for logged-out tokens.
type TokenRevocations interface {
	RevokeToken(ctx context.Context, tokenID string, expiresAt, revokedAt time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
	DeleteExpiredTokens(ctx context.Context, reference time.Time) error
}

// LoginParams wraps the credentials presented at login.
type LoginParams struct {
	Email    string
	Password string
}

// LoginResult carries the signed token and the authenticated account.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      User
}

// AuthService issues, verifies, and revokes the bearer tokens that identify
// callers. Tokens are stateless JWTs; logout places the token ID on a
// revocation list checked during verification.
type AuthService struct {
	users       UserRepository
	revocations TokenRevocations
	secret      []byte
	tokenTTL    time.Duration
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAuthService constructs an auth service with the provided dependencies.
func NewAuthService(users UserRepository, revocations TokenRevocations, secret string, tokenTTL time.Duration, idGenerator func() string, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(users, revocations, secret, tokenTTL, idGenerator, now, nil)
}

// NewAuthServiceWithLogger constructs an auth service with a specified logger.
func NewAuthServiceWithLogger(users UserRepository, revocations TokenRevocations, secret string, tokenTTL time.Duration, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AuthService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		users:       users,
		revocations: revocations,
		secret:      []byte(secret),
		tokenTTL:    tokenTTL,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Login verifies credentials and issues a signed token.
func (s *AuthService) Login(ctx context.Context, params LoginParams) (result LoginResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "Login", "email", params.Email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to log in", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "user logged in")
	}()

	email := strings.TrimSpace(params.Email)
	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			// Same failure as a wrong password so lookups cannot probe for
			// registered addresses.
			err = ErrInvalidCredentials
			return
		}
		return
	}

	if err = VerifyPassword(user.PasswordHash, params.Password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := tokenClaims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        s.idGenerator(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		err = fmt.Errorf("failed to sign token: %w", err)
		return
	}

	user.PasswordHash = ""
	result = LoginResult{Token: token, ExpiresAt: expiresAt, User: user}
	return
}

// Verify parses and validates a token and resolves the identity behind it.
func (s *AuthService) Verify(ctx context.Context, tokenString string) (identity Identity, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if tokenString == "" {
		err = ErrUnauthenticated
		return
	}

	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			err = ErrTokenExpired
			return
		}
		err = ErrUnauthenticated
		return
	}
	if !token.Valid {
		err = ErrUnauthenticated
		return
	}

	if s.revocations != nil && claims.ID != "" {
		revoked, revErr := s.revocations.IsTokenRevoked(ctx, claims.ID)
		if revErr != nil {
			err = revErr
			return
		}
		if revoked {
			err = ErrTokenRevoked
			return
		}
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	identity = Identity{
		Principal: Principal{
			UserID:  claims.Subject,
			Email:   claims.Email,
			IsAdmin: claims.Role == RoleAdmin,
		},
		TokenID:   claims.ID,
		ExpiresAt: expiresAt,
	}
	return
}

// Logout places the caller's token on the revocation list.
func (s *AuthService) Logout(ctx context.Context, identity Identity) (err error) {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.revocations == nil {
		return fmt.Errorf("token revocation store not configured")
	}

	logger := s.loggerWith(ctx, "Logout", "principal_id", identity.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to log out", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user logged out")
	}()

	if identity.TokenID == "" {
		return ErrUnauthenticated
	}

	return s.revocations.RevokeToken(ctx, identity.TokenID, identity.ExpiresAt, s.now())
}

// PruneRevokedTokens drops revocation entries for tokens that have expired on
// their own. Intended to run on a schedule.
func (s *AuthService) PruneRevokedTokens(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.revocations == nil {
		return fmt.Errorf("token revocation store not configured")
	}

	logger := s.loggerWith(ctx, "PruneRevokedTokens")
	if err := s.revocations.DeleteExpiredTokens(ctx, s.now()); err != nil {
		logger.ErrorContext(ctx, "failed to prune revoked tokens", "error", err)
		return err
	}

	logger.InfoContext(ctx, "revoked tokens pruned")
	return nil
}
