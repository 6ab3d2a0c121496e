package postgres

import (
	"context"
	"fmt"

	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
)

type FriendshipStore struct {
	db    DBTX
	users *UserStore
}

func NewFriendshipStore(db DBTX) *FriendshipStore {
	return &FriendshipStore{db: db, users: NewUserStore(db)}
}

// Request skips the insert when the reverse row exists, so a pair is
// never linked twice.
func (s *FriendshipStore) Request(ctx context.Context, from, to int64) error {
	query := `
		INSERT INTO friendships (user_id1, user_id2, status)
		SELECT $1::bigint, $2::bigint, 'pending'
		WHERE NOT EXISTS (
			SELECT 1 FROM friendships WHERE user_id1 = $2 AND user_id2 = $1
		)
		ON CONFLICT (user_id1, user_id2) DO NOTHING`

	if _, err := s.db.Exec(ctx, query, from, to); err != nil {
		return fmt.Errorf("insert friend request: %w", err)
	}
	return nil
}

func (s *FriendshipStore) Respond(ctx context.Context, from, to int64, decision string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE friendships
		SET status = $1
		WHERE user_id1 = $2 AND user_id2 = $3 AND status = 'pending'`,
		decision, from, to)
	if err != nil {
		return fmt.Errorf("update friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *FriendshipStore) PendingFor(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id1
		FROM friendships
		WHERE user_id2 = $1 AND status = 'pending'
		ORDER BY user_id1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend requests: %w", err)
	}
	return ids, nil
}

func (s *FriendshipStore) Friends(ctx context.Context, userID int64) ([]models.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE id IN (` + friendIDs("$1") + `)
		ORDER BY id`

	return s.users.list(ctx, query, userID)
}

func (s *FriendshipStore) AreFriends(ctx context.Context, a, b int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM friendships
			WHERE status = 'accepted'
			  AND ((user_id1 = $1 AND user_id2 = $2) OR (user_id1 = $2 AND user_id2 = $1))
		)`

	var ok bool
	if err := s.db.QueryRow(ctx, query, a, b).Scan(&ok); err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return ok, nil
}
