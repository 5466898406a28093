package events

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Baktybeks/city-event-search-sub001/internal/app/models"
)

var _ EventsRepo = (*PostgresEventsRepo)(nil)

type EventsRepo interface {
	ListPublished(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	GetByID(ctx context.Context, eventID string) (*models.Event, error)
	ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error)
	Create(ctx context.Context, event *models.Event) (*models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	SetPublished(ctx context.Context, eventID, organizerID string, published bool) error
	RegisterAttendee(ctx context.Context, eventID, userID string) (*models.Registration, error)
	ListRegistrationsForUser(ctx context.Context, userID string) ([]models.Event, error)
}

type PostgresEventsRepo struct {
	logger *zap.Logger
	pgpool *pgxpool.Pool
	sb     sq.StatementBuilderType
}

func NewPostgresEventsRepo(pgpool *pgxpool.Pool, logger *zap.Logger) *PostgresEventsRepo {
	return &PostgresEventsRepo{
		logger: logger,
		pgpool: pgpool,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const eventColumns = `e.id, e.organizer_id, e.title, e.description, e.city, e.venue,
	e.price_cents, e.capacity, e.registered, e.published, e.starts_at, e.ends_at,
	e.created_at, e.updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.City, &e.Venue,
		&e.PriceCents, &e.Capacity, &e.Registered, &e.Published, &e.StartsAt, &e.EndsAt,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListPublished builds the listing query dynamically from the filter.
func (r *PostgresEventsRepo) ListPublished(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	builder := r.sb.
		Select(eventColumns).
		From("events e").
		Where(sq.Eq{"e.published": true}).
		OrderBy("e.starts_at ASC")

	if filter.City != "" {
		builder = builder.Where(sq.Eq{"e.city": filter.City})
	}
	if filter.Query != "" {
		builder = builder.Where(sq.ILike{"e.title": "%" + filter.Query + "%"})
	}
	if filter.From != nil {
		builder = builder.Where(sq.GtOrEq{"e.starts_at": *filter.From})
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	builder = builder.Limit(uint64(limit))
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building event listing query: %w", err)
	}

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Error listing events", zap.Error(err))
		return nil, fmt.Errorf("database error listing events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *PostgresEventsRepo) GetByID(ctx context.Context, eventID string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.id = $1`
	event, err := scanEvent(r.pgpool.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("event %s: %w", eventID, models.ErrNotFound)
		}
		r.logger.Error("Error fetching event", zap.Error(err), zap.String("event_id", eventID))
		return nil, fmt.Errorf("database error fetching event: %w", err)
	}
	return event, nil
}

func (r *PostgresEventsRepo) ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.organizer_id = $1 ORDER BY e.starts_at DESC`
	rows, err := r.pgpool.Query(ctx, query, organizerID)
	if err != nil {
		r.logger.Error("Error listing organizer events", zap.Error(err), zap.String("organizer_id", organizerID))
		return nil, fmt.Errorf("database error listing organizer events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *PostgresEventsRepo) Create(ctx context.Context, event *models.Event) (*models.Event, error) {
	query := `INSERT INTO events
		(organizer_id, title, description, city, venue, price_cents, capacity, published, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, organizer_id, title, description, city, venue, price_cents, capacity,
		          registered, published, starts_at, ends_at, created_at, updated_at`
	created, err := scanEvent(r.pgpool.QueryRow(ctx, query,
		event.OrganizerID, event.Title, event.Description, event.City, event.Venue,
		event.PriceCents, event.Capacity, event.Published, event.StartsAt, event.EndsAt))
	if err != nil {
		r.logger.Error("Error creating event", zap.Error(err), zap.String("organizer_id", event.OrganizerID))
		return nil, fmt.Errorf("database error creating event: %w", err)
	}
	return created, nil
}

func (r *PostgresEventsRepo) Update(ctx context.Context, event *models.Event) error {
	tag, err := r.pgpool.Exec(ctx, `UPDATE events SET
			title = $3, description = $4, city = $5, venue = $6,
			price_cents = $7, capacity = $8, starts_at = $9, ends_at = $10,
			updated_at = NOW()
		WHERE id = $1 AND organizer_id = $2`,
		event.ID, event.OrganizerID, event.Title, event.Description, event.City, event.Venue,
		event.PriceCents, event.Capacity, event.StartsAt, event.EndsAt)
	if err != nil {
		r.logger.Error("Error updating event", zap.Error(err), zap.String("event_id", event.ID))
		return fmt.Errorf("database error updating event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", event.ID, models.ErrNotFound)
	}
	return nil
}

func (r *PostgresEventsRepo) SetPublished(ctx context.Context, eventID, organizerID string, published bool) error {
	tag, err := r.pgpool.Exec(ctx,
		`UPDATE events SET published = $3, updated_at = NOW() WHERE id = $1 AND organizer_id = $2`,
		eventID, organizerID, published)
	if err != nil {
		r.logger.Error("Error toggling event publication", zap.Error(err), zap.String("event_id", eventID))
		return fmt.Errorf("database error updating event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", eventID, models.ErrNotFound)
	}
	return nil
}

// RegisterAttendee inserts a registration and bumps the counter in one
// transaction; a full event or a duplicate registration rolls back.
func (r *PostgresEventsRepo) RegisterAttendee(ctx context.Context, eventID, userID string) (*models.Registration, error) {
	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting registration transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE events SET registered = registered + 1
		 WHERE id = $1 AND published = TRUE AND registered < capacity`, eventID)
	if err != nil {
		return nil, fmt.Errorf("database error reserving capacity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Nothing matched: either the event is at capacity, or there is no
		// published event with this id at all. Look at the row to tell the
		// two apart; a draft is as invisible as a missing event.
		var published bool
		err := tx.QueryRow(ctx, `SELECT published FROM events WHERE id = $1`, eventID).Scan(&published)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !published) {
			return nil, fmt.Errorf("event %s: %w", eventID, models.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("database error inspecting event: %w", err)
		}
		return nil, fmt.Errorf("event %s: %w", eventID, models.ErrEventFull)
	}

	var reg models.Registration
	err = tx.QueryRow(ctx,
		`INSERT INTO registrations (event_id, user_id) VALUES ($1, $2)
		 RETURNING id, event_id, user_id, created_at`,
		eventID, userID).Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("already registered for event %s: %w", eventID, models.ErrConflict)
		}
		r.logger.Error("Error inserting registration", zap.Error(err),
			zap.String("event_id", eventID), zap.String("user_id", userID))
		return nil, fmt.Errorf("database error registering attendee: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing registration: %w", err)
	}
	return &reg, nil
}

func (r *PostgresEventsRepo) ListRegistrationsForUser(ctx context.Context, userID string) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM events e
		JOIN registrations reg ON reg.event_id = e.id
		WHERE reg.user_id = $1
		ORDER BY e.starts_at ASC`
	rows, err := r.pgpool.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Error listing user registrations", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("database error listing registrations: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
