package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/excursia/internal/models"
)

type OTPStore struct {
	db DBTX
}

func NewOTPStore(db DBTX) *OTPStore {
	return &OTPStore{db: db}
}

// Upsert keeps a single active code per email: a new request overwrites
// the previous hash and expiry.
func (s *OTPStore) Upsert(ctx context.Context, rec models.OTPRecord) error {
	query := `
		INSERT INTO otps (email, code_hash, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at`

	if _, err := s.db.Exec(ctx, query, rec.Email, rec.CodeHash, rec.ExpiresAt); err != nil {
		return fmt.Errorf("upsert otp: %w", err)
	}
	return nil
}

func (s *OTPStore) Get(ctx context.Context, email string) (*models.OTPRecord, error) {
	query := `SELECT email, code_hash, expires_at FROM otps WHERE email = $1`

	var rec models.OTPRecord
	if err := s.db.QueryRow(ctx, query, email).Scan(&rec.Email, &rec.CodeHash, &rec.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get otp: %w", err)
	}
	return &rec, nil
}

func (s *OTPStore) Delete(ctx context.Context, email string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM otps WHERE email = $1`, email); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

func (s *OTPStore) Consume(ctx context.Context, email, codeHash string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM otps WHERE email = $1 AND code_hash = $2`, email, codeHash)
	if err != nil {
		return false, fmt.Errorf("consume otp: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
