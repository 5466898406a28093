package events

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/observability/metrics"
)

var _ EventsService = (*EventsServiceImpl)(nil)

// EventsService is the business logic contract for event discovery and
// organizer management.
type EventsService interface {
	ListPublished(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	GetByID(ctx context.Context, eventID string) (*models.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error)
	Create(ctx context.Context, organizerID string, event *models.Event) (*models.Event, error)
	Update(ctx context.Context, organizerID string, event *models.Event) error
	SetPublished(ctx context.Context, eventID, organizerID string, published bool) error
	Register(ctx context.Context, eventID, userID string) (*models.Registration, error)
	MyEvents(ctx context.Context, userID string) ([]models.Event, error)
}

type EventsServiceImpl struct {
	logger *zap.Logger
	repo   EventsRepo
	cache  *cache.Cache
}

const listingCacheTTL = 30 * time.Second

func NewEventsService(repo EventsRepo, logger *zap.Logger) *EventsServiceImpl {
	return &EventsServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  cache.New(listingCacheTTL, 5*time.Minute),
	}
}

// ListPublished serves the public discovery listing. Results are cached
// briefly per filter since the landing page hits this on every visit.
func (s *EventsServiceImpl) ListPublished(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	key := listingCacheKey(filter)
	if cached, found := s.cache.Get(key); found {
		if events, ok := cached.([]models.Event); ok {
			recordSearch(ctx, true)
			return events, nil
		}
	}

	events, err := s.repo.ListPublished(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, events, cache.DefaultExpiration)
	recordSearch(ctx, false)
	return events, nil
}

func (s *EventsServiceImpl) GetByID(ctx context.Context, eventID string) (*models.Event, error) {
	return s.repo.GetByID(ctx, eventID)
}

func (s *EventsServiceImpl) ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	return s.repo.ListByOrganizer(ctx, organizerID)
}

func (s *EventsServiceImpl) Create(ctx context.Context, organizerID string, event *models.Event) (*models.Event, error) {
	if err := validateEvent(event); err != nil {
		return nil, err
	}
	event.OrganizerID = organizerID

	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return nil, err
	}
	s.cache.Flush()
	s.logger.Info("Event created",
		zap.String("event_id", created.ID),
		zap.String("organizer_id", organizerID))
	return created, nil
}

func (s *EventsServiceImpl) Update(ctx context.Context, organizerID string, event *models.Event) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	event.OrganizerID = organizerID

	if err := s.repo.Update(ctx, event); err != nil {
		return err
	}
	s.cache.Flush()
	return nil
}

func (s *EventsServiceImpl) SetPublished(ctx context.Context, eventID, organizerID string, published bool) error {
	if err := s.repo.SetPublished(ctx, eventID, organizerID, published); err != nil {
		return err
	}
	s.cache.Flush()
	s.logger.Info("Event publication toggled",
		zap.String("event_id", eventID),
		zap.Bool("published", published))
	return nil
}

func (s *EventsServiceImpl) Register(ctx context.Context, eventID, userID string) (*models.Registration, error) {
	reg, err := s.repo.RegisterAttendee(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	s.cache.Flush()
	if m := metrics.Get(); m != nil {
		m.RegistrationsTotal.Add(ctx, 1)
	}
	s.logger.Info("Attendee registered",
		zap.String("event_id", eventID),
		zap.String("user_id", userID))
	return reg, nil
}

func (s *EventsServiceImpl) MyEvents(ctx context.Context, userID string) ([]models.Event, error) {
	return s.repo.ListRegistrationsForUser(ctx, userID)
}

func validateEvent(event *models.Event) error {
	switch {
	case event.Title == "":
		return fmt.Errorf("title is required: %w", models.ErrValidation)
	case event.City == "":
		return fmt.Errorf("city is required: %w", models.ErrValidation)
	case event.Capacity <= 0:
		return fmt.Errorf("capacity must be positive: %w", models.ErrValidation)
	case event.StartsAt.IsZero():
		return fmt.Errorf("start time is required: %w", models.ErrValidation)
	case !event.EndsAt.IsZero() && event.EndsAt.Before(event.StartsAt):
		return fmt.Errorf("end time precedes start time: %w", models.ErrValidation)
	}
	return nil
}

func recordSearch(ctx context.Context, cached bool) {
	m := metrics.Get()
	if m == nil {
		return
	}
	m.EventSearchesTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("cached", cached)))
}

func listingCacheKey(filter models.EventFilter) string {
	from := ""
	if filter.From != nil {
		from = filter.From.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("listing:%s:%s:%s:%d:%d", filter.City, filter.Query, from, filter.Limit, filter.Offset)
}
