package events

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/middleware"
	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
)

type EventRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	City        string    `json:"city" binding:"required"`
	Venue       string    `json:"venue"`
	PriceCents  int64     `json:"priceCents"`
	Capacity    int       `json:"capacity" binding:"required,gt=0"`
	StartsAt    time.Time `json:"startsAt" binding:"required"`
	EndsAt      time.Time `json:"endsAt"`
}

type PublishRequest struct {
	Published bool `json:"published"`
}

type EventsHandlers struct {
	eventsService EventsService
	logger        *zap.Logger
}

func NewEventsHandlers(eventsService EventsService, logger *zap.Logger) *EventsHandlers {
	return &EventsHandlers{eventsService: eventsService, logger: logger}
}

// ListHandler serves the public discovery listing with optional city,
// text, and date filters.
func (h *EventsHandlers) ListHandler(c *gin.Context) {
	filter := models.EventFilter{
		City:  c.Query("city"),
		Query: c.Query("q"),
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC 3339 timestamp"})
			return
		}
		filter.From = &from
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, err := h.eventsService.ListPublished(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Event listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load events"})
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetHandler serves a single event page payload.
func (h *EventsHandlers) GetHandler(c *gin.Context) {
	event, err := h.eventsService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.logger.Error("Event fetch failed", zap.Error(err), zap.String("event_id", c.Param("id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load event"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

// OrganizerListHandler lists the signed-in organizer's own events,
// drafts included.
func (h *EventsHandlers) OrganizerListHandler(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	events, err := h.eventsService.ListByOrganizer(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("Organizer listing failed", zap.Error(err), zap.String("organizer_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load events"})
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// CreateHandler creates a draft event owned by the signed-in organizer.
func (h *EventsHandlers) CreateHandler(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, city, capacity and start time are required"})
		return
	}

	created, err := h.eventsService.Create(c.Request.Context(), user.ID, &models.Event{
		Title:       req.Title,
		Description: req.Description,
		City:        req.City,
		Venue:       req.Venue,
		PriceCents:  req.PriceCents,
		Capacity:    req.Capacity,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event data"})
			return
		}
		h.logger.Error("Event creation failed", zap.Error(err), zap.String("organizer_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create event"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": created})
}

// UpdateHandler edits an event the signed-in organizer owns.
func (h *EventsHandlers) UpdateHandler(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title, city, capacity and start time are required"})
		return
	}

	err := h.eventsService.Update(c.Request.Context(), user.ID, &models.Event{
		ID:          c.Param("id"),
		Title:       req.Title,
		Description: req.Description,
		City:        req.City,
		Venue:       req.Venue,
		PriceCents:  req.PriceCents,
		Capacity:    req.Capacity,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		case errors.Is(err, models.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event data"})
		default:
			h.logger.Error("Event update failed", zap.Error(err), zap.String("event_id", c.Param("id")))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update event"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// PublishHandler toggles an event's visibility on the public listing.
func (h *EventsHandlers) PublishHandler(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "published flag is required"})
		return
	}

	err := h.eventsService.SetPublished(c.Request.Context(), c.Param("id"), user.ID, req.Published)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.logger.Error("Publish toggle failed", zap.Error(err), zap.String("event_id", c.Param("id")))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update event"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated", "published": req.Published})
}

// RegisterHandler signs the current user up for an event.
func (h *EventsHandlers) RegisterHandler(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	reg, err := h.eventsService.Register(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		case errors.Is(err, models.ErrEventFull):
			c.JSON(http.StatusConflict, gin.H{"error": "event is full or not open for registration"})
		case errors.Is(err, models.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "already registered for this event"})
		default:
			h.logger.Error("Registration failed", zap.Error(err),
				zap.String("event_id", c.Param("id")), zap.String("user_id", user.ID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"registration": reg})
}

// MyEventsHandler lists events the current user is registered for.
func (h *EventsHandlers) MyEventsHandler(c *gin.Context) {
	user := middleware.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	events, err := h.eventsService.MyEvents(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("My-events listing failed", zap.Error(err), zap.String("user_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load registrations"})
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
