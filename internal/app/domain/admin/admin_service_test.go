package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
)

type MockAdminRepo struct {
	mock.Mock
}

func (m *MockAdminRepo) CountAdmins(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockAdminRepo) ListUsers(ctx context.Context, roleFilter models.Role) ([]models.User, error) {
	args := m.Called(ctx, roleFilter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockAdminRepo) SetUserActive(ctx context.Context, userID string, active bool) error {
	args := m.Called(ctx, userID, active)
	return args.Error(0)
}

func (m *MockAdminRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func TestCheckAdmins(t *testing.T) {
	logger := zap.NewNop()

	t.Run("NoAdminsYet", func(t *testing.T) {
		mockRepo := new(MockAdminRepo)
		service := NewAdminService(mockRepo, logger)
		mockRepo.On("CountAdmins", mock.Anything).Return(0, nil)

		status := service.CheckAdmins(context.Background())
		assert.True(t, status.IsFirstUser)
		assert.Equal(t, 0, status.AdminCount)
	})

	t.Run("AdminsExist", func(t *testing.T) {
		mockRepo := new(MockAdminRepo)
		service := NewAdminService(mockRepo, logger)
		mockRepo.On("CountAdmins", mock.Anything).Return(2, nil)

		status := service.CheckAdmins(context.Background())
		assert.False(t, status.IsFirstUser)
		assert.Equal(t, 2, status.AdminCount)
	})

	t.Run("BackendFailureDegradesToFirstUser", func(t *testing.T) {
		// The registration page must stay usable even with the database
		// down, so the probe reports the optimistic defaults.
		mockRepo := new(MockAdminRepo)
		service := NewAdminService(mockRepo, logger)
		mockRepo.On("CountAdmins", mock.Anything).Return(0, errors.New("connection refused"))

		status := service.CheckAdmins(context.Background())
		assert.True(t, status.IsFirstUser)
		assert.Equal(t, 0, status.AdminCount)
	})

	t.Run("ResultIsCached", func(t *testing.T) {
		mockRepo := new(MockAdminRepo)
		service := NewAdminService(mockRepo, logger)
		mockRepo.On("CountAdmins", mock.Anything).Return(1, nil).Once()

		first := service.CheckAdmins(context.Background())
		second := service.CheckAdmins(context.Background())
		assert.Equal(t, first, second)
		mockRepo.AssertNumberOfCalls(t, "CountAdmins", 1)
	})
}

func TestCheckAdminsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	t.Run("Always200EvenOnFailure", func(t *testing.T) {
		mockRepo := new(MockAdminRepo)
		service := NewAdminService(mockRepo, logger)
		mockRepo.On("CountAdmins", mock.Anything).Return(0, errors.New("db down"))

		h := NewAdminHandlers(service, logger)
		r := gin.New()
		r.GET("/api/check-admins", h.CheckAdminsHandler)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/check-admins", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"isFirstUser":true,"adminCount":0}`, w.Body.String())
	})
}

func TestSetUserActive(t *testing.T) {
	logger := zap.NewNop()

	t.Run("DeactivationRevokesTokens", func(t *testing.T) {
		mockRepo := new(MockAdminRepo)
		service := NewAdminService(mockRepo, logger)
		mockRepo.On("SetUserActive", mock.Anything, "u-1", false).Return(nil)
		mockRepo.On("RevokeUserRefreshTokens", mock.Anything, "u-1").Return(nil)

		err := service.SetUserActive(context.Background(), "u-1", false)
		assert.NoError(t, err)
		mockRepo.AssertCalled(t, "RevokeUserRefreshTokens", mock.Anything, "u-1")
	})

	t.Run("ActivationKeepsTokens", func(t *testing.T) {
		mockRepo := new(MockAdminRepo)
		service := NewAdminService(mockRepo, logger)
		mockRepo.On("SetUserActive", mock.Anything, "u-1", true).Return(nil)

		err := service.SetUserActive(context.Background(), "u-1", true)
		assert.NoError(t, err)
		mockRepo.AssertNotCalled(t, "RevokeUserRefreshTokens", mock.Anything, "u-1")
	})

	t.Run("UnknownUser", func(t *testing.T) {
		mockRepo := new(MockAdminRepo)
		service := NewAdminService(mockRepo, logger)
		mockRepo.On("SetUserActive", mock.Anything, "ghost", false).Return(models.ErrNotFound)

		err := service.SetUserActive(context.Background(), "ghost", false)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
