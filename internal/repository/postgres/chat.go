package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/excursia/internal/models"
)

type ChatStore struct {
	db DBTX
}

func NewChatStore(db DBTX) *ChatStore {
	return &ChatStore{db: db}
}

// GetOrCreate stores the pair as (min, max), which the table's CHECK and
// UNIQUE constraints also enforce. The insert is ON CONFLICT DO NOTHING
// so two users starting a chat at the same time converge on one row:
// the loser gets no RETURNING row and reads the winner's.
func (s *ChatStore) GetOrCreate(ctx context.Context, a, b int64) (*models.Chat, bool, error) {
	user1, user2 := models.CanonicalPair(a, b)

	insert := `
		INSERT INTO chats (user1_id, user2_id)
		VALUES ($1, $2)
		ON CONFLICT (user1_id, user2_id) DO NOTHING
		RETURNING id, user1_id, user2_id, created_at`

	var c models.Chat
	err := s.db.QueryRow(ctx, insert, user1, user2).Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt)
	if err == nil {
		return &c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert chat: %w", err)
	}

	existing := `
		SELECT id, user1_id, user2_id, created_at
		FROM chats
		WHERE user1_id = $1 AND user2_id = $2`

	if err := s.db.QueryRow(ctx, existing, user1, user2).Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt); err != nil {
		return nil, false, fmt.Errorf("get chat by pair: %w", err)
	}
	return &c, false, nil
}

func (s *ChatStore) GetByID(ctx context.Context, id int64) (*models.Chat, error) {
	query := `SELECT id, user1_id, user2_id, created_at FROM chats WHERE id = $1`

	var c models.Chat
	if err := s.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &c, nil
}

func (s *ChatStore) ListForUser(ctx context.Context, userID int64) ([]models.ChatSummary, error) {
	query := `
		SELECT c.id, u.id, u.name, u.profile_picture, c.created_at
		FROM chats c
		JOIN users u ON
			(u.id = c.user1_id AND c.user2_id = $1) OR
			(u.id = c.user2_id AND c.user1_id = $1)
		ORDER BY c.created_at DESC, c.id DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]models.ChatSummary, 0)
	for rows.Next() {
		var cs models.ChatSummary
		if err := rows.Scan(&cs.ChatID, &cs.PartnerID, &cs.Name, &cs.ProfilePicture, &cs.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}
