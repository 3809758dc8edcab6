package repository

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorekeep/lorekeep/internal/domain"
)

// TokenRepository validates API bearer tokens. Tokens are stored hashed;
// the plaintext is only ever seen at issue time.
type TokenRepository struct {
	db dbtx
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{db: pool}
}

func NewTokenRepositoryWithTx(tx pgx.Tx) *TokenRepository {
	return &TokenRepository{db: tx}
}

// Identity is the authenticated principal a token resolves to.
type Identity struct {
	UserID      string
	WorkspaceID string
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Validate resolves a plaintext bearer token to an identity. Unknown tokens
// return ErrInvalidToken; revoked tokens return ErrTokenRevoked.
func (r *TokenRepository) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}

	var (
		identity  Identity
		revokedAt *time.Time
	)
	err := r.db.QueryRow(ctx,
		`SELECT user_id, workspace_id, revoked_at FROM api_tokens WHERE token_hash = $1`,
		hashToken(token),
	).Scan(&identity.UserID, &identity.WorkspaceID, &revokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	if revokedAt != nil {
		return nil, domain.ErrTokenRevoked
	}

	_, _ = r.db.Exec(ctx,
		`UPDATE api_tokens SET last_used_at = $1 WHERE token_hash = $2`,
		time.Now().UTC(), hashToken(token),
	)

	return &identity, nil
}

// Create mints a token for a user in a workspace and returns the token ID
// and its plaintext. The plaintext is shown exactly once.
func (r *TokenRepository) Create(ctx context.Context, userID, workspaceID, name string) (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	plaintext := "lk_" + hex.EncodeToString(raw)

	id := uuid.NewString()
	_, err := r.db.Exec(ctx,
		`INSERT INTO api_tokens (id, token_hash, user_id, workspace_id, name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, hashToken(plaintext), userID, workspaceID, name, time.Now().UTC(),
	)
	if err != nil {
		return "", "", err
	}

	return id, plaintext, nil
}

// Revoke marks a token revoked by its ID. Validation rejects it from then on.
func (r *TokenRepository) Revoke(ctx context.Context, tokenID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE api_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`,
		time.Now().UTC(), tokenID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidToken
	}
	return nil
}
