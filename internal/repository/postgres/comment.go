package postgres

import (
	"context"
	"fmt"

	"github.com/lalith-99/excursia/internal/models"
)

type CommentStore struct {
	db DBTX
}

func NewCommentStore(db DBTX) *CommentStore {
	return &CommentStore{db: db}
}

// Create returns the comment with its author filled in.
func (s *CommentStore) Create(ctx context.Context, eventID, userID int64, content string) (*models.Comment, error) {
	query := `
		WITH inserted AS (
			INSERT INTO event_comments (event_id, user_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, event_id, user_id, content, created_at
		)
		SELECT i.id, i.event_id, i.content, i.created_at, u.id, u.name, u.profile_picture
		FROM inserted i
		JOIN users u ON u.id = i.user_id`

	var c models.Comment
	err := s.db.QueryRow(ctx, query, eventID, userID, content).Scan(
		&c.ID,
		&c.EventID,
		&c.Content,
		&c.CreatedAt,
		&c.User.ID,
		&c.User.Name,
		&c.User.Avatar,
	)
	if err != nil {
		return nil, fmt.Errorf("insert comment: %w", err)
	}
	return &c, nil
}

func (s *CommentStore) ListByEvent(ctx context.Context, eventID int64) ([]models.Comment, error) {
	query := `
		SELECT c.id, c.event_id, c.content, c.created_at, u.id, u.name, u.profile_picture
		FROM event_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.event_id = $1
		ORDER BY c.created_at DESC, c.id DESC`

	rows, err := s.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(
			&c.ID,
			&c.EventID,
			&c.Content,
			&c.CreatedAt,
			&c.User.ID,
			&c.User.Name,
			&c.User.Avatar,
		); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}
