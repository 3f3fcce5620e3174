package sqlite

import (
	"context"
	"time"

	"github.com/example/librarian/internal/persistence"
)

// TokenRepository implements persistence.TokenRepository using SQLite.
type TokenRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewTokenRepository creates a new SQLite token repository.
func NewTokenRepository(pool *ConnectionPool) *TokenRepository {
	return &TokenRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// RevokeToken records a token on the revocation list. Revoking an already
// revoked token is a no-op.
func (r *TokenRepository) RevokeToken(ctx context.Context, token persistence.RevokedToken) error {
	if token.TokenID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx, `
		INSERT OR IGNORE INTO revoked_tokens (token_id, expires_at, revoked_at)
		VALUES (?, ?, ?)
	`,
		token.TokenID,
		token.ExpiresAt.UTC().Format(time.RFC3339),
		token.RevokedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}

// IsTokenRevoked reports whether the token appears on the revocation list.
func (r *TokenRepository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}

	var count int
	err := r.helper.QueryRow(ctx, "SELECT COUNT(*) FROM revoked_tokens WHERE token_id = ?", tokenID).Scan(&count)
	if err != nil {
		return false, r.mapper.MapError(err)
	}

	return count > 0, nil
}

// DeleteExpiredTokens removes revocation entries whose tokens have already
// expired and no longer need blocking.
func (r *TokenRepository) DeleteExpiredTokens(ctx context.Context, reference time.Time) error {
	_, err := r.helper.Exec(ctx, "DELETE FROM revoked_tokens WHERE expires_at < ?",
		reference.UTC().Format(time.RFC3339))
	if err != nil {
		return r.mapper.MapError(err)
	}

	return nil
}
