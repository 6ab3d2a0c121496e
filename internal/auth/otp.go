package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/lalith-99/excursia/internal/mail"
	"github.com/lalith-99/excursia/internal/models"
	"github.com/lalith-99/excursia/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidEmail   = errors.New("invalid email format")
	ErrInvalidOTP     = errors.New("invalid or expired OTP")
	ErrOTPRateLimited = errors.New("too many OTP requests")
	ErrMailFailed     = errors.New("failed to send OTP email")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lowercases an address and checks its shape.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}

type OTPConfig struct {
	TTL             time.Duration
	RequestsPerHour int
	MaxAttempts     int
}

// LoginResult is what a successful verification hands back to the client.
type LoginResult struct {
	Token   string
	User    *models.User
	NewUser bool
}

// OTPService runs passwordless login: a six-digit code is mailed to the
// address and exchanged for a bearer token. Codes are stored as bcrypt
// hashes. Redis holds the per-email request quota and failed attempt
// counter.
type OTPService struct {
	otps   repository.OTPRepository
	users  repository.UserRepository
	tokens *Tokens
	mailer mail.Sender
	redis  *redis.Client
	cfg    OTPConfig
	logger *zap.Logger

	now        func() time.Time
	generate   func() (string, error)
	bcryptCost int
}

func NewOTPService(
	otps repository.OTPRepository,
	users repository.UserRepository,
	tokens *Tokens,
	mailer mail.Sender,
	rdb *redis.Client,
	cfg OTPConfig,
	logger *zap.Logger,
) *OTPService {
	return &OTPService{
		otps:       otps,
		users:      users,
		tokens:     tokens,
		mailer:     mailer,
		redis:      rdb,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		generate:   generateCode,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// generateCode returns a uniformly random code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func requestKey(email string) string { return "otp:requests:" + email }
func attemptKey(email string) string { return "otp:attempts:" + email }

// RequestOTP replaces any earlier code for the address and mails the new one.
func (s *OTPService) RequestOTP(ctx context.Context, rawEmail string) error {
	email, err := NormalizeEmail(rawEmail)
	if err != nil {
		return err
	}

	count, err := s.redis.Incr(ctx, requestKey(email)).Result()
	if err != nil {
		return fmt.Errorf("increment otp quota: %w", err)
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, requestKey(email), time.Hour).Err(); err != nil {
			return fmt.Errorf("expire otp quota: %w", err)
		}
	}
	if count > int64(s.cfg.RequestsPerHour) {
		return ErrOTPRateLimited
	}

	code, err := s.generate()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash otp: %w", err)
	}

	rec := models.OTPRecord{
		Email:     email,
		CodeHash:  string(hash),
		ExpiresAt: s.now().Add(s.cfg.TTL),
	}
	if err := s.otps.Upsert(ctx, rec); err != nil {
		return err
	}
	// A fresh code gets a fresh set of attempts.
	if err := s.redis.Del(ctx, attemptKey(email)).Err(); err != nil {
		return fmt.Errorf("reset otp attempts: %w", err)
	}

	msg := mail.Message{
		To:      email,
		Subject: "Your OTP Code",
		Body:    "Your OTP code is: " + code,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("failed to send otp email", zap.String("email", email), zap.Error(err))
		return ErrMailFailed
	}
	return nil
}

// VerifyOTP consumes the code for email. A code is good for one
// successful verification; MaxAttempts wrong guesses burn it.
func (s *OTPService) VerifyOTP(ctx context.Context, rawEmail, code string) (*LoginResult, error) {
	email, err := NormalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}

	rec, err := s.otps.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrInvalidOTP
	}

	if s.now().After(rec.ExpiresAt) {
		if err := s.otps.Delete(ctx, email); err != nil {
			return nil, err
		}
		return nil, ErrInvalidOTP
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(strings.TrimSpace(code))) != nil {
		if err := s.recordFailure(ctx, email); err != nil {
			return nil, err
		}
		return nil, ErrInvalidOTP
	}

	consumed, err := s.otps.Consume(ctx, email, rec.CodeHash)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrInvalidOTP
	}
	if err := s.redis.Del(ctx, attemptKey(email)).Err(); err != nil {
		s.logger.Warn("failed to clear otp attempts", zap.String("email", email), zap.Error(err))
	}

	user, created, err := s.findOrCreateUser(ctx, email)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, User: user, NewUser: created}, nil
}

func (s *OTPService) recordFailure(ctx context.Context, email string) error {
	attempts, err := s.redis.Incr(ctx, attemptKey(email)).Result()
	if err != nil {
		return fmt.Errorf("increment otp attempts: %w", err)
	}
	if attempts == 1 {
		if err := s.redis.Expire(ctx, attemptKey(email), s.cfg.TTL).Err(); err != nil {
			return fmt.Errorf("expire otp attempts: %w", err)
		}
	}
	if attempts < int64(s.cfg.MaxAttempts) {
		return nil
	}

	s.logger.Warn("otp locked after repeated failures", zap.String("email", email), zap.Int64("attempts", attempts))
	if err := s.otps.Delete(ctx, email); err != nil {
		return err
	}
	return s.redis.Del(ctx, attemptKey(email)).Err()
}

// findOrCreateUser tolerates a concurrent first login for the same
// address: if the insert loses the race, the winner's row is returned.
func (s *OTPService) findOrCreateUser(ctx context.Context, email string) (*models.User, bool, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}

	user, createErr := s.users.Create(ctx, email)
	if createErr == nil {
		return user, true, nil
	}

	user, err = s.users.GetByEmail(ctx, email)
	if err != nil || user == nil {
		return nil, false, createErr
	}
	return user, false, nil
}
