package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/excursia/internal/models"
)

type ImageStore struct {
	db DBTX
}

func NewImageStore(db DBTX) *ImageStore {
	return &ImageStore{db: db}
}

func (s *ImageStore) Add(ctx context.Context, userID int64, url string) (*models.UserImage, error) {
	query := `
		INSERT INTO user_images (user_id, image_url)
		VALUES ($1, $2)
		RETURNING id, user_id, image_url, uploaded_at`

	var img models.UserImage
	err := s.db.QueryRow(ctx, query, userID, url).Scan(&img.ID, &img.UserID, &img.ImageURL, &img.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("insert image: %w", err)
	}
	return &img, nil
}

func (s *ImageStore) GetByID(ctx context.Context, id int64) (*models.UserImage, error) {
	query := `SELECT id, user_id, image_url, uploaded_at FROM user_images WHERE id = $1`

	var img models.UserImage
	err := s.db.QueryRow(ctx, query, id).Scan(&img.ID, &img.UserID, &img.ImageURL, &img.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get image: %w", err)
	}
	return &img, nil
}

func (s *ImageStore) ListByUser(ctx context.Context, userID int64) ([]models.UserImage, error) {
	query := `
		SELECT id, user_id, image_url, uploaded_at
		FROM user_images
		WHERE user_id = $1
		ORDER BY uploaded_at DESC, id DESC`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images := make([]models.UserImage, 0)
	for rows.Next() {
		var img models.UserImage
		if err := rows.Scan(&img.ID, &img.UserID, &img.ImageURL, &img.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

func (s *ImageStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM user_images WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}
