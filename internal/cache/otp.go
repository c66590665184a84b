package cache

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"luna/internal/model"
)

const (
	otpCodePrefix     = "otp:code:"
	otpAttemptsPrefix = "otp:attempts:"
)

// OTPStore keeps short-lived email verification codes. Codes expire on their
// own via TTL; a per-email attempt counter caps brute-force guessing.
type OTPStore interface {
	// Set stores a fresh code for the email, replacing any previous one and
	// resetting the attempt counter.
	Set(ctx context.Context, email, code string, ttl time.Duration) error

	// Verify checks the code for the email. On success the code is consumed.
	// Returns model.ErrOTPExpired when no live code exists,
	// model.ErrTooManyOTPAttempts once the budget is spent, and
	// model.ErrInvalidOTP on a mismatch.
	Verify(ctx context.Context, email, code string) error
}

// RedisOTPStore implements OTPStore on plain Redis keys with TTLs.
type RedisOTPStore struct {
	client *redis.Client
}

// NewOTPStore creates an OTPStore backed by Redis.
func NewOTPStore(client *redis.Client) OTPStore {
	return &RedisOTPStore{client: client}
}

func otpCodeKey(email string) string     { return otpCodePrefix + email }
func otpAttemptsKey(email string) string { return otpAttemptsPrefix + email }

func (s *RedisOTPStore) Set(ctx context.Context, email, code string, ttl time.Duration) error {
	pipe := s.client.Pipeline()
	pipe.Set(ctx, otpCodeKey(email), code, ttl)
	pipe.Set(ctx, otpAttemptsKey(email), 0, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[OTPStore] Set FAILED: email=%s err=%v", email, err)
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

func (s *RedisOTPStore) Verify(ctx context.Context, email, code string) error {
	stored, err := s.client.Get(ctx, otpCodeKey(email)).Result()
	if err == redis.Nil {
		return model.ErrOTPExpired
	}
	if err != nil {
		return fmt.Errorf("get otp: %w", err)
	}

	attempts, err := s.client.Incr(ctx, otpAttemptsKey(email)).Result()
	if err != nil {
		return fmt.Errorf("count otp attempt: %w", err)
	}
	if attempts > model.OTPMaxAttempts {
		return model.ErrTooManyOTPAttempts
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return model.ErrInvalidOTP
	}

	// Consume the code so it cannot be replayed
	pipe := s.client.Pipeline()
	pipe.Del(ctx, otpCodeKey(email))
	pipe.Del(ctx, otpAttemptsKey(email))
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[OTPStore] Consume FAILED: email=%s err=%v", email, err)
	}

	return nil
}
