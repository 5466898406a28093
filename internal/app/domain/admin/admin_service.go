package admin

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
)

var _ AdminService = (*AdminServiceImpl)(nil)

// AdminStatus feeds the initial-setup probe on the registration page.
type AdminStatus struct {
	IsFirstUser bool `json:"isFirstUser"`
	AdminCount  int  `json:"adminCount"`
}

type AdminService interface {
	// CheckAdmins never fails: when the backend is unreachable it reports
	// the optimistic first-user answer so registration stays usable.
	CheckAdmins(ctx context.Context) AdminStatus
	ListUsers(ctx context.Context, roleFilter models.Role) ([]models.User, error)
	SetUserActive(ctx context.Context, userID string, active bool) error
}

type AdminServiceImpl struct {
	logger *zap.Logger
	repo   AdminRepo
	cache  *cache.Cache
}

const adminStatusCacheKey = "admin-status"

func NewAdminService(repo AdminRepo, logger *zap.Logger) *AdminServiceImpl {
	return &AdminServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  cache.New(10*time.Second, time.Minute),
	}
}

func (s *AdminServiceImpl) CheckAdmins(ctx context.Context) AdminStatus {
	if cached, found := s.cache.Get(adminStatusCacheKey); found {
		if status, ok := cached.(AdminStatus); ok {
			return status
		}
	}

	count, err := s.repo.CountAdmins(ctx)
	if err != nil {
		s.logger.Warn("Admin count unavailable, reporting first-user defaults", zap.Error(err))
		return AdminStatus{IsFirstUser: true, AdminCount: 0}
	}

	status := AdminStatus{IsFirstUser: count == 0, AdminCount: count}
	s.cache.Set(adminStatusCacheKey, status, cache.DefaultExpiration)
	return status
}

func (s *AdminServiceImpl) ListUsers(ctx context.Context, roleFilter models.Role) ([]models.User, error) {
	return s.repo.ListUsers(ctx, roleFilter)
}

// SetUserActive toggles an account. Deactivation also revokes the
// account's refresh tokens so live sessions die at the next refresh.
func (s *AdminServiceImpl) SetUserActive(ctx context.Context, userID string, active bool) error {
	if err := s.repo.SetUserActive(ctx, userID, active); err != nil {
		return err
	}
	if !active {
		if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
			s.logger.Warn("Failed to revoke tokens after deactivation",
				zap.Error(err), zap.String("user_id", userID))
		}
	}
	s.cache.Delete(adminStatusCacheKey)
	s.logger.Info("User activation changed",
		zap.String("user_id", userID), zap.Bool("active", active))
	return nil
}
