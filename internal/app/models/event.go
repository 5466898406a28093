package models

import "time"

// Event is a published or draft listing owned by an organizer.
type Event struct {
	ID          string    `json:"id"`
	OrganizerID string    `json:"organizerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	City        string    `json:"city"`
	Venue       string    `json:"venue"`
	PriceCents  int64     `json:"priceCents"`
	Capacity    int       `json:"capacity"`
	Registered  int       `json:"registered"`
	Published   bool      `json:"published"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Registration links an attendee to an event.
type Registration struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventFilter narrows a published-events listing.
type EventFilter struct {
	City   string
	Query  string
	From   *time.Time
	Limit  int
	Offset int
}
