package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/excursia/internal/models"
)

const userColumns = `id, email, name, profile_picture, cover_image, location, website, bio, role, joined_at`

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func scanUser(row pgx.Row, u *models.User) error {
	return row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.ProfilePicture,
		&u.CoverImage,
		&u.Location,
		&u.Website,
		&u.Bio,
		&u.Role,
		&u.JoinedAt,
	)
}

// Create inserts a user row. Postgres generates the id and join time.
func (s *UserStore) Create(ctx context.Context, email string) (*models.User, error) {
	query := `
		INSERT INTO users (email)
		VALUES ($1)
		RETURNING ` + userColumns

	var u models.User
	if err := scanUser(s.db.QueryRow(ctx, query, email), &u); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u models.User
	if err := scanUser(s.db.QueryRow(ctx, query, id), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetByEmail is the OTP login lookup. Emails are stored lowercased.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var u models.User
	if err := scanUser(s.db.QueryRow(ctx, query, email), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	return s.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

func (s *UserStore) list(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (s *UserStore) Update(ctx context.Context, u models.User) error {
	query := `
		UPDATE users
		SET name = $1, profile_picture = $2, cover_image = $3,
		    location = $4, website = $5, bio = $6
		WHERE id = $7`

	_, err := s.db.Exec(ctx, query,
		u.Name, u.ProfilePicture, u.CoverImage, u.Location, u.Website, u.Bio, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *UserStore) Tags(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT tag FROM user_tags WHERE user_id = $1 ORDER BY tag`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

func (s *UserStore) AddTag(ctx context.Context, userID int64, tag string) error {
	query := `
		INSERT INTO user_tags (user_id, tag)
		VALUES ($1, $2)
		ON CONFLICT (user_id, tag) DO NOTHING`

	if _, err := s.db.Exec(ctx, query, userID, tag); err != nil {
		return fmt.Errorf("add tag: %w", err)
	}
	return nil
}

func (s *UserStore) RemoveTag(ctx context.Context, userID int64, tag string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM user_tags WHERE user_id = $1 AND tag = $2`, userID, tag); err != nil {
		return fmt.Errorf("remove tag: %w", err)
	}
	return nil
}
