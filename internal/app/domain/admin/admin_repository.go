package admin

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
)

var _ AdminRepo = (*PostgresAdminRepo)(nil)

type AdminRepo interface {
	CountAdmins(ctx context.Context) (int, error)
	ListUsers(ctx context.Context, roleFilter models.Role) ([]models.User, error)
	SetUserActive(ctx context.Context, userID string, active bool) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
}

type PostgresAdminRepo struct {
	logger *zap.Logger
	pgpool *pgxpool.Pool
	sb     sq.StatementBuilderType
}

func NewPostgresAdminRepo(pgpool *pgxpool.Pool, logger *zap.Logger) *PostgresAdminRepo {
	return &PostgresAdminRepo{
		logger: logger,
		pgpool: pgpool,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresAdminRepo) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.pgpool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1 AND is_active = TRUE`,
		models.RoleAdmin).Scan(&count)
	if err != nil {
		r.logger.Error("Error counting admins", zap.Error(err))
		return 0, fmt.Errorf("database error counting admins: %w", err)
	}
	return count, nil
}

func (r *PostgresAdminRepo) ListUsers(ctx context.Context, roleFilter models.Role) ([]models.User, error) {
	builder := r.sb.
		Select("id", "name", "email", "password_hash", "role", "is_active", "avatar_url", "created_at", "updated_at").
		From("users").
		OrderBy("created_at DESC")
	if roleFilter != "" {
		builder = builder.Where(sq.Eq{"role": roleFilter})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building user listing query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Error listing users", zap.Error(err))
		return nil, fmt.Errorf("database error listing users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
			&u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PostgresAdminRepo) SetUserActive(ctx context.Context, userID string, active bool) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`,
		userID, active)
	if err != nil {
		r.logger.Error("Error updating user activation", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("database error updating user activation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

func (r *PostgresAdminRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.pgpool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1`, userID)
	if err != nil {
		r.logger.Error("Error revoking refresh tokens", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("database error revoking refresh tokens: %w", err)
	}
	return nil
}
