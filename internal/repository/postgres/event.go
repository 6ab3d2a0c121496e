package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
)

type EventStore struct {
	db DBTX
}

func NewEventStore(db DBTX) *EventStore {
	return &EventStore{db: db}
}

func (s *EventStore) Create(ctx context.Context, e models.Event) (int64, error) {
	query := `
		INSERT INTO events (title, description, location, date, image_url, max_attendees, audience, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := s.db.QueryRow(ctx, query,
		e.Title, e.Description, e.Location, e.Date, e.ImageURL, e.MaxAttendees, e.Audience, e.UserID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

func (s *EventStore) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	query := `
		SELECT id, title, description, location, date, image_url, max_attendees, audience, interested, user_id
		FROM events
		WHERE id = $1`

	var e models.Event
	err := s.db.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.Location,
		&e.Date,
		&e.ImageURL,
		&e.MaxAttendees,
		&e.Audience,
		&e.Interested,
		&e.UserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

func (s *EventStore) Query(ctx context.Context, q repository.EventQuery) ([]models.EventCard, error) {
	query, args, err := BuildEventQuery(q)
	if err != nil {
		return nil, err
	}
	return s.cards(ctx, query, args...)
}

func (s *EventStore) ListByOrganizer(ctx context.Context, userID int64) ([]models.EventCard, error) {
	query := `SELECT` + eventCardColumns + `
		FROM events e
		JOIN users u ON u.id = e.user_id
		WHERE e.user_id = $1
		ORDER BY e.date DESC, e.id DESC`

	return s.cards(ctx, query, userID)
}

func (s *EventStore) cards(ctx context.Context, query string, args ...any) ([]models.EventCard, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	cards := make([]models.EventCard, 0)
	for rows.Next() {
		var c models.EventCard
		if err := rows.Scan(
			&c.ID,
			&c.Title,
			&c.Description,
			&c.Location,
			&c.Date,
			&c.Image,
			&c.MaxAttendees,
			&c.Audience,
			&c.Organizer.ID,
			&c.Organizer.Name,
			&c.Organizer.Avatar,
			&c.Attendees,
			&c.Interested,
			&c.Comments,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return cards, nil
}

func (s *EventStore) Attendees(ctx context.Context, eventID int64) ([]models.Attendee, error) {
	query := `
		SELECT u.id, u.name, u.profile_picture
		FROM event_attendees a
		JOIN users u ON u.id = a.user_id
		WHERE a.event_id = $1
		ORDER BY u.id`

	rows, err := s.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	attendees := make([]models.Attendee, 0)
	for rows.Next() {
		var a models.Attendee
		if err := rows.Scan(&a.ID, &a.Name, &a.Avatar); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		attendees = append(attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendees: %w", err)
	}
	return attendees, nil
}

func (s *EventStore) Organizer(ctx context.Context, userID int64) (models.Organizer, error) {
	var o models.Organizer
	err := s.db.QueryRow(ctx, `SELECT id, name, profile_picture FROM users WHERE id = $1`, userID).
		Scan(&o.ID, &o.Name, &o.Avatar)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, repository.ErrNotFound
		}
		return o, fmt.Errorf("get organizer: %w", err)
	}
	return o, nil
}

func (s *EventStore) MarkInterested(ctx context.Context, userID, eventID int64) (bool, error) {
	return s.toggleInterest(ctx,
		`INSERT INTO event_interests (user_id, event_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		`UPDATE events SET interested = interested + 1 WHERE id = $1`,
		userID, eventID)
}

func (s *EventStore) UnmarkInterested(ctx context.Context, userID, eventID int64) (bool, error) {
	return s.toggleInterest(ctx,
		`DELETE FROM event_interests WHERE user_id = $1 AND event_id = $2`,
		`UPDATE events SET interested = GREATEST(interested - 1, 0) WHERE id = $1`,
		userID, eventID)
}

// toggleInterest writes the join row and, only if that changed a row,
// moves the counter in the same transaction.
func (s *EventStore) toggleInterest(ctx context.Context, joinSQL, counterSQL string, userID, eventID int64) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin interest tx: %w", err)
	}

	tag, err := tx.Exec(ctx, joinSQL, userID, eventID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return false, fmt.Errorf("write interest: %w", err)
	}

	changed := tag.RowsAffected() == 1
	if changed {
		if _, err := tx.Exec(ctx, counterSQL, eventID); err != nil {
			_ = tx.Rollback(ctx)
			return false, fmt.Errorf("update interest counter: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit interest tx: %w", err)
	}
	return changed, nil
}

func (s *EventStore) InterestState(ctx context.Context, userID, eventID int64) (bool, int, error) {
	query := `
		SELECT
			EXISTS (SELECT 1 FROM event_interests WHERE user_id = $1 AND event_id = $2),
			(SELECT COUNT(*) FROM event_interests WHERE event_id = $2)`

	var (
		interested bool
		count      int
	)
	if err := s.db.QueryRow(ctx, query, userID, eventID).Scan(&interested, &count); err != nil {
		return false, 0, fmt.Errorf("get interest state: %w", err)
	}
	return interested, count, nil
}
