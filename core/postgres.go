package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tzevents/pkg/resources"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

const eventColumns = `e.id::text, e.shareable_id, e.title, e.description, e.start_time, e.end_time, e.timezone,
	e.created_at, e.updated_at, e.user_id::text, u.id::text, u.username, u.email`

const selectEvents = `SELECT ` + eventColumns + `
	FROM events e
	LEFT JOIN users u ON u.id = e.user_id`

const insertEvent = `WITH e AS (
		INSERT INTO events (id, shareable_id, title, description, start_time, end_time, timezone, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	)
	SELECT ` + eventColumns + `
	FROM e
	LEFT JOIN users u ON u.id = e.user_id`

const updateEvent = `WITH e AS (
		UPDATE events SET shareable_id = $2, title = $3, description = $4, start_time = $5, end_time = $6, timezone = $7, user_id = $8, updated_at = now()
		WHERE id = $1
		RETURNING *
	)
	SELECT ` + eventColumns + `
	FROM e
	LEFT JOIN users u ON u.id = e.user_id`

type Repository interface {
	ListEvents(ctx context.Context) ([]Event, error)
	GetEventById(ctx context.Context, id string) (*Event, error)
	GetEventByShareableId(ctx context.Context, shareableId string) (*Event, error)
	SaveEvent(ctx context.Context, event *Event) (*Event, error)
	UpdateEvent(ctx context.Context, event *Event) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

type repository struct {
	tracer  trace.Tracer
	metrics *DBMetrics
	pool    resources.DBInstance
}

func NewRepository(pool resources.DBInstance) Repository {
	return &repository{
		tracer:  otel.GetTracerProvider().Tracer("tzevents/core"),
		metrics: NewDBMetrics(),
		pool:    pool,
	}
}

func (r *repository) ListEvents(ctx context.Context) ([]Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "list_events", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.ListEvents")
	defer func() { endSpan(span, err) }()

	rows, err := r.pool.Query(ctx, selectEvents+"\n\tORDER BY e.start_time, e.created_at")
	if err != nil {
		err = fmt.Errorf("failed to list events: %w", err)
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0)

	for rows.Next() {
		var event *Event

		event, err = scanEvent(rows)
		if err != nil {
			err = fmt.Errorf("failed to scan event: %w", err)
			return nil, err
		}

		events = append(events, *event)
	}

	if err = rows.Err(); err != nil {
		err = fmt.Errorf("failed to list events: %w", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("events.count", len(events)))

	return events, nil
}

func (r *repository) GetEventById(ctx context.Context, id string) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "get_event_by_id", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.GetEventById", trace.WithAttributes(attribute.String("event.id", id)))
	defer func() { endSpan(span, err) }()

	event, err := scanEvent(r.pool.QueryRow(ctx, selectEvents+"\n\tWHERE e.id = $1", id))
	if err != nil {
		err = fmt.Errorf("failed to get event by id: %w", translate(err))
		return nil, err
	}

	return event, nil
}

func (r *repository) GetEventByShareableId(ctx context.Context, shareableId string) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "get_event_by_shareable_id", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.GetEventByShareableId",
		trace.WithAttributes(attribute.String("event.shareable_id", shareableId)))
	defer func() { endSpan(span, err) }()

	event, err := scanEvent(r.pool.QueryRow(ctx, selectEvents+"\n\tWHERE e.shareable_id = $1", shareableId))
	if err != nil {
		err = fmt.Errorf("failed to get event by shareable id: %w", translate(err))
		return nil, err
	}

	return event, nil
}

// SaveEvent inserts a new event with a fresh id. A missing shareable id is
// generated; a taken one fails with ErrShareableIdTaken.
func (r *repository) SaveEvent(ctx context.Context, event *Event) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "save_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.SaveEvent")
	defer func() { endSpan(span, err) }()

	id := uuid.NewString()

	shareableId := event.ShareableId
	if shareableId == "" {
		shareableId = uuid.NewString()
	}

	span.SetAttributes(attribute.String("event.id", id), attribute.String("event.shareable_id", shareableId))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		err = fmt.Errorf("failed to begin transaction: %w", err)
		return nil, err
	}

	savedEvent, err := scanEvent(tx.QueryRow(ctx, insertEvent,
		id, shareableId, event.Title, event.Description, event.StartTime, event.EndTime, event.Timezone, event.UserId))
	if err != nil {
		_ = tx.Rollback(ctx)
		err = fmt.Errorf("failed to save event: %w", translate(err))

		return nil, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		err = fmt.Errorf("failed to commit transaction: %w", translate(err))

		return nil, err
	}

	return savedEvent, nil
}

func (r *repository) UpdateEvent(ctx context.Context, event *Event) (*Event, error) {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "update_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.UpdateEvent", trace.WithAttributes(attribute.String("event.id", event.Id)))
	defer func() { endSpan(span, err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		err = fmt.Errorf("failed to begin transaction: %w", err)
		return nil, err
	}

	updatedEvent, err := scanEvent(tx.QueryRow(ctx, updateEvent,
		event.Id, event.ShareableId, event.Title, event.Description, event.StartTime, event.EndTime, event.Timezone, event.UserId))
	if err != nil {
		_ = tx.Rollback(ctx)
		err = fmt.Errorf("failed to update event: %w", translate(err))

		return nil, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		err = fmt.Errorf("failed to commit transaction: %w", translate(err))

		return nil, err
	}

	return updatedEvent, nil
}

func (r *repository) DeleteEvent(ctx context.Context, id string) error {
	start := time.Now()

	var err error

	defer func() { r.metrics.Observe(ctx, "delete_event", start, err) }()

	ctx, span := r.tracer.Start(ctx, "repository.DeleteEvent", trace.WithAttributes(attribute.String("event.id", id)))
	defer func() { endSpan(span, err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		err = fmt.Errorf("failed to begin transaction: %w", err)
		return err
	}

	tag, err := tx.Exec(ctx, "DELETE FROM events WHERE id = $1", id)
	if err == nil && tag.RowsAffected() == 0 {
		err = ErrEventNotFound
	}

	if err != nil {
		_ = tx.Rollback(ctx)
		err = fmt.Errorf("failed to delete event: %w", err)

		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		err = fmt.Errorf("failed to commit transaction: %w", err)

		return err
	}

	return nil
}

func scanEvent(row pgx.Row) (*Event, error) {
	var (
		e                            Event
		userId, username, userEmail *string
	)

	err := row.Scan(
		&e.Id,
		&e.ShareableId,
		&e.Title,
		&e.Description,
		&e.StartTime,
		&e.EndTime,
		&e.Timezone,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.UserId,
		&userId,
		&username,
		&userEmail,
	)
	if err != nil {
		return nil, err
	}

	e.StartTime = e.StartTime.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()

	if e.EndTime != nil {
		end := e.EndTime.UTC()
		e.EndTime = &end
	}

	if userId != nil {
		e.User = &UserRef{Id: *userId}

		if username != nil {
			e.User.Username = *username
		}

		if userEmail != nil {
			e.User.Email = *userEmail
		}
	}

	return &e, nil
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrEventNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", ErrShareableIdTaken, pgErr.ConstraintName)
		case foreignKeyViolation:
			return fmt.Errorf("%w: referenced user does not exist", ErrValidation)
		}
	}

	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}
