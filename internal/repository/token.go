package repository

import (
	"context"
	"time"

	"github.com/forgo/atelier/internal/database"
	"github.com/forgo/atelier/internal/model"
)

// TokenRepository handles refresh token data access
type TokenRepository struct {
	db database.Database
}

// NewTokenRepository creates a new token repository
func NewTokenRepository(db database.Database) *TokenRepository {
	return &TokenRepository{db: db}
}

// CreateRefreshToken stores a new refresh token
func (r *TokenRepository) CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	query := `
		CREATE refresh_token SET
			user_id = type::record($user_id),
			token_hash = $token_hash,
			expires_at = <datetime>$expires_at,
			created_at = time::now(),
			revoked = false
	`
	vars := map[string]interface{}{
		"user_id":    token.UserID,
		"token_hash": token.TokenHash,
		"expires_at": token.ExpiresAt.UTC().Format(time.RFC3339),
	}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return err
	}

	created, err := extractCreatedRecord(result)
	if err != nil {
		return err
	}

	token.ID = created.ID
	return nil
}

// GetRefreshTokenByHash retrieves a refresh token by its hash
func (r *TokenRepository) GetRefreshTokenByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	query := `SELECT * FROM refresh_token WHERE token_hash = $hash LIMIT 1`
	vars := map[string]interface{}{"hash": hash}

	result, err := r.db.QueryOne(ctx, query, vars)
	if err != nil {
		return notFoundToNil[model.RefreshToken](nil, err)
	}
	token, err := parseRefreshTokenResult(result)
	return notFoundToNil(token, err)
}

// ConsumeRefreshToken revokes an unrevoked token and reports whether this
// call did it. The check and the write are one statement, so two requests
// racing with the same token cannot both win.
func (r *TokenRepository) ConsumeRefreshToken(ctx context.Context, hash string) (bool, error) {
	query := `
		UPDATE refresh_token SET revoked = true, revoked_at = time::now()
		WHERE token_hash = $hash AND revoked = false
		RETURN AFTER
	`
	vars := map[string]interface{}{"hash": hash}

	result, err := r.db.Query(ctx, query, vars)
	if err != nil {
		return false, err
	}
	return len(lastStatementRecords(result)) == 1, nil
}

// RevokeAllUserTokens revokes every live refresh token of a user
func (r *TokenRepository) RevokeAllUserTokens(ctx context.Context, userID string) error {
	query := `
		UPDATE refresh_token SET revoked = true, revoked_at = time::now()
		WHERE user_id = type::record($user_id) AND revoked = false
	`
	vars := map[string]interface{}{"user_id": userID}

	return r.db.Execute(ctx, query, vars)
}

// DeleteExpiredTokens removes expired tokens and tokens revoked more than
// a week ago, returning how many were removed. Revoked tokens are kept that
// long so a replayed one is still recognised as reuse.
func (r *TokenRepository) DeleteExpiredTokens(ctx context.Context) (int, error) {
	query := `
		DELETE refresh_token
		WHERE expires_at < time::now()
			OR (revoked = true AND revoked_at < time::now() - 7d)
		RETURN BEFORE
	`
	result, err := r.db.Query(ctx, query, nil)
	if err != nil {
		return 0, err
	}
	return len(lastStatementRecords(result)), nil
}

func parseRefreshTokenResult(result interface{}) (*model.RefreshToken, error) {
	var token model.RefreshToken
	data, err := decodeRecord(result, &token, "user_id")
	if err != nil {
		return nil, err
	}
	setTime(data, "expires_at", &token.ExpiresAt)
	setTime(data, "created_at", &token.CreatedAt)
	token.RevokedAt = getTime(data, "revoked_at")
	return &token, nil
}
