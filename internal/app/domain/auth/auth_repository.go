package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

type AuthRepo interface {
	// GetUserByEmail fetches the account regardless of activation status;
	// the service decides how a deactivated account surfaces.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByID fetches the account by ID, again regardless of status.
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	// CreateUser stores a new account with a HASHED password.
	CreateUser(ctx context.Context, name, email, hashedPassword string, role models.Role) (*models.User, error)
	// CountUsers returns the total number of accounts.
	CountUsers(ctx context.Context) (int, error)
	// UpdateProfile updates mutable profile fields.
	UpdateProfile(ctx context.Context, userID, name, avatarURL string) error
	// UpdatePassword updates the user's HASHED password.
	UpdatePassword(ctx context.Context, userID, newHashedPassword string) error

	// --- Refresh Token Handling ---
	StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	ValidateRefreshTokenAndGetUserID(ctx context.Context, refreshToken string) (string, error)
	InvalidateRefreshToken(ctx context.Context, refreshToken string) error
	InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error
}

type PostgresAuthRepo struct {
	logger *zap.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresAuthRepo(pgpool *pgxpool.Pool, logger *zap.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{logger: logger, pgpool: pgpool}
}

const userColumns = `id, name, email, password_hash, role, is_active, avatar_url, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.pgpool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user with email %s not found: %w", email, models.ErrNotFound)
		}
		r.logger.Error("Error fetching user by email", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("database error fetching user: %w", err)
	}
	return user, nil
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.pgpool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user with ID %s not found: %w", userID, models.ErrNotFound)
		}
		r.logger.Error("Error fetching user by ID", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("database error fetching user by ID: %w", err)
	}
	return user, nil
}

// CreateUser implements auth.AuthRepo. Expects a HASHED password.
func (r *PostgresAuthRepo) CreateUser(ctx context.Context, name, email, hashedPassword string, role models.Role) (*models.User, error) {
	query := `INSERT INTO users (name, email, password_hash, role, is_active)
	          VALUES ($1, $2, $3, $4, TRUE)
	          RETURNING ` + userColumns
	user, err := scanUser(r.pgpool.QueryRow(ctx, query, name, email, hashedPassword, role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("email already registered: %w", models.ErrConflict)
		}
		r.logger.Error("Error inserting user", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("database error registering user: %w", err)
	}
	r.logger.Info("User registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

func (r *PostgresAuthRepo) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := r.pgpool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("database error counting users: %w", err)
	}
	return count, nil
}

func (r *PostgresAuthRepo) UpdateProfile(ctx context.Context, userID, name, avatarURL string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET name = $2, avatar_url = $3, updated_at = NOW() WHERE id = $1`,
		userID, name, avatarURL)
	if err != nil {
		r.logger.Error("Error updating profile", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("database error updating profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID, newHashedPassword string) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		userID, newHashedPassword)
	if err != nil {
		r.logger.Error("Error updating password", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("database error updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

func (r *PostgresAuthRepo) StoreRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := r.pgpool.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token, expires_at) VALUES ($1, $2, $3)`,
		userID, token, expiresAt)
	if err != nil {
		r.logger.Error("Error storing refresh token", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("database error storing refresh token: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) ValidateRefreshTokenAndGetUserID(ctx context.Context, refreshToken string) (string, error) {
	var userID string
	query := `SELECT user_id FROM refresh_tokens
	          WHERE token = $1 AND revoked = FALSE AND expires_at > NOW()`
	err := r.pgpool.QueryRow(ctx, query, refreshToken).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("refresh token invalid or expired: %w", models.ErrUnauthenticated)
		}
		r.logger.Error("Error validating refresh token", zap.Error(err))
		return "", fmt.Errorf("database error validating refresh token: %w", err)
	}
	return userID, nil
}

func (r *PostgresAuthRepo) InvalidateRefreshToken(ctx context.Context, refreshToken string) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE token = $1`, refreshToken)
	if err != nil {
		r.logger.Error("Error invalidating refresh token", zap.Error(err))
		return fmt.Errorf("database error invalidating refresh token: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) InvalidateAllUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1`, userID)
	if err != nil {
		r.logger.Error("Error invalidating user refresh tokens", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("database error invalidating refresh tokens: %w", err)
	}
	return nil
}
