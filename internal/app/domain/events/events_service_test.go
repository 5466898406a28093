package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
)

type MockEventsRepo struct {
	mock.Mock
}

func (m *MockEventsRepo) ListPublished(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockEventsRepo) GetByID(ctx context.Context, eventID string) (*models.Event, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventsRepo) ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	args := m.Called(ctx, organizerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockEventsRepo) Create(ctx context.Context, event *models.Event) (*models.Event, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventsRepo) Update(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventsRepo) SetPublished(ctx context.Context, eventID, organizerID string, published bool) error {
	args := m.Called(ctx, eventID, organizerID, published)
	return args.Error(0)
}

func (m *MockEventsRepo) RegisterAttendee(ctx context.Context, eventID, userID string) (*models.Registration, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Registration), args.Error(1)
}

func (m *MockEventsRepo) ListRegistrationsForUser(ctx context.Context, userID string) ([]models.Event, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func draftEvent() *models.Event {
	return &models.Event{
		Title:    "Jazz Night",
		City:     "Lisbon",
		Capacity: 50,
		StartsAt: time.Now().Add(48 * time.Hour),
	}
}

func TestListPublishedCaching(t *testing.T) {
	mockRepo := new(MockEventsRepo)
	service := NewEventsService(mockRepo, zap.NewNop())
	ctx := context.Background()

	filter := models.EventFilter{City: "Lisbon", Limit: 20}
	listing := []models.Event{{ID: "e-1", Title: "Jazz Night", City: "Lisbon"}}
	mockRepo.On("ListPublished", ctx, filter).Return(listing, nil).Once()

	first, err := service.ListPublished(ctx, filter)
	assert.NoError(t, err)
	second, err := service.ListPublished(ctx, filter)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	mockRepo.AssertNumberOfCalls(t, "ListPublished", 1)
}

func TestListPublishedDistinctFilters(t *testing.T) {
	mockRepo := new(MockEventsRepo)
	service := NewEventsService(mockRepo, zap.NewNop())
	ctx := context.Background()

	lisbon := models.EventFilter{City: "Lisbon"}
	porto := models.EventFilter{City: "Porto"}
	mockRepo.On("ListPublished", ctx, lisbon).Return([]models.Event{{ID: "e-1"}}, nil).Once()
	mockRepo.On("ListPublished", ctx, porto).Return([]models.Event{{ID: "e-2"}}, nil).Once()

	a, err := service.ListPublished(ctx, lisbon)
	assert.NoError(t, err)
	b, err := service.ListPublished(ctx, porto)
	assert.NoError(t, err)

	assert.NotEqual(t, a[0].ID, b[0].ID)
	mockRepo.AssertExpectations(t)
}

func TestCreateEvent(t *testing.T) {
	t.Run("AssignsOrganizer", func(t *testing.T) {
		mockRepo := new(MockEventsRepo)
		service := NewEventsService(mockRepo, zap.NewNop())
		ctx := context.Background()

		mockRepo.On("Create", ctx, mock.MatchedBy(func(e *models.Event) bool {
			return e.OrganizerID == "org-1"
		})).Return(&models.Event{ID: "e-1", OrganizerID: "org-1"}, nil)

		created, err := service.Create(ctx, "org-1", draftEvent())
		assert.NoError(t, err)
		assert.Equal(t, "org-1", created.OrganizerID)
	})

	t.Run("Validation", func(t *testing.T) {
		mockRepo := new(MockEventsRepo)
		service := NewEventsService(mockRepo, zap.NewNop())
		ctx := context.Background()

		cases := map[string]func(*models.Event){
			"MissingTitle":   func(e *models.Event) { e.Title = "" },
			"MissingCity":    func(e *models.Event) { e.City = "" },
			"ZeroCapacity":   func(e *models.Event) { e.Capacity = 0 },
			"MissingStart":   func(e *models.Event) { e.StartsAt = time.Time{} },
			"EndBeforeStart": func(e *models.Event) { e.EndsAt = e.StartsAt.Add(-time.Hour) },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				e := draftEvent()
				mutate(e)
				_, err := service.Create(ctx, "org-1", e)
				assert.ErrorIs(t, err, models.ErrValidation)
			})
		}
		mockRepo.AssertNotCalled(t, "Create")
	})
}

func TestRegisterInvalidatesListingCache(t *testing.T) {
	mockRepo := new(MockEventsRepo)
	service := NewEventsService(mockRepo, zap.NewNop())
	ctx := context.Background()

	filter := models.EventFilter{City: "Lisbon"}
	mockRepo.On("ListPublished", ctx, filter).Return([]models.Event{{ID: "e-1"}}, nil).Twice()
	mockRepo.On("RegisterAttendee", ctx, "e-1", "u-1").
		Return(&models.Registration{ID: "r-1", EventID: "e-1", UserID: "u-1"}, nil)

	_, err := service.ListPublished(ctx, filter)
	assert.NoError(t, err)

	_, err = service.Register(ctx, "e-1", "u-1")
	assert.NoError(t, err)

	// Registration changed the listing's registered counts.
	_, err = service.ListPublished(ctx, filter)
	assert.NoError(t, err)
	mockRepo.AssertNumberOfCalls(t, "ListPublished", 2)
}

func TestRegisterErrors(t *testing.T) {
	mockRepo := new(MockEventsRepo)
	service := NewEventsService(mockRepo, zap.NewNop())
	ctx := context.Background()

	mockRepo.On("RegisterAttendee", ctx, "full", "u-1").Return(nil, models.ErrEventFull)
	mockRepo.On("RegisterAttendee", ctx, "dup", "u-1").Return(nil, models.ErrConflict)

	_, err := service.Register(ctx, "full", "u-1")
	assert.ErrorIs(t, err, models.ErrEventFull)

	_, err = service.Register(ctx, "dup", "u-1")
	assert.ErrorIs(t, err, models.ErrConflict)
}
