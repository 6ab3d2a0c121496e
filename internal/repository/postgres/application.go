package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
)

type ApplicationStore struct {
	db DBTX
}

func NewApplicationStore(db DBTX) *ApplicationStore {
	return &ApplicationStore{db: db}
}

func (s *ApplicationStore) Apply(ctx context.Context, userID, eventID int64) error {
	query := `
		INSERT INTO event_applications (user_id, event_id, status)
		VALUES ($1, $2, 'pending')
		ON CONFLICT (user_id, event_id) DO NOTHING`

	if _, err := s.db.Exec(ctx, query, userID, eventID); err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *ApplicationStore) Status(ctx context.Context, userID, eventID int64) (*string, error) {
	var status string
	err := s.db.QueryRow(ctx,
		`SELECT status FROM event_applications WHERE user_id = $1 AND event_id = $2`,
		userID, eventID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get application status: %w", err)
	}
	return &status, nil
}

// Respond locks the event row before counting attendees so two accepts
// racing for the last seat serialize on it.
func (s *ApplicationStore) Respond(ctx context.Context, userID, eventID int64, decision string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin respond tx: %w", err)
	}

	accept := decision == models.StatusAccepted

	if accept {
		var capacity *int
		err := tx.QueryRow(ctx, `SELECT max_attendees FROM events WHERE id = $1 FOR UPDATE`, eventID).Scan(&capacity)
		if err != nil {
			_ = tx.Rollback(ctx)
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrNotFound
			}
			return fmt.Errorf("lock event: %w", err)
		}

		if capacity != nil {
			var count int
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM event_attendees WHERE event_id = $1`, eventID).Scan(&count); err != nil {
				_ = tx.Rollback(ctx)
				return fmt.Errorf("count attendees: %w", err)
			}
			if count >= *capacity {
				_ = tx.Rollback(ctx)
				return repository.ErrEventFull
			}
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE event_applications
		SET status = $1
		WHERE user_id = $2 AND event_id = $3 AND status = 'pending'`,
		decision, userID, eventID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return repository.ErrNotFound
	}

	if accept {
		_, err := tx.Exec(ctx, `
			INSERT INTO event_attendees (user_id, event_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			userID, eventID)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("insert attendee: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit respond tx: %w", err)
	}
	return nil
}

func (s *ApplicationStore) PendingForOrganizer(ctx context.Context, organizerID int64) ([]models.Application, error) {
	query := `
		SELECT a.user_id, a.event_id
		FROM event_applications a
		JOIN events e ON e.id = a.event_id
		WHERE e.user_id = $1 AND a.status = 'pending'
		ORDER BY a.event_id, a.user_id`

	rows, err := s.db.Query(ctx, query, organizerID)
	if err != nil {
		return nil, fmt.Errorf("list pending applications: %w", err)
	}
	defer rows.Close()

	apps := make([]models.Application, 0)
	for rows.Next() {
		var a models.Application
		if err := rows.Scan(&a.UserID, &a.EventID); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return apps, nil
}
