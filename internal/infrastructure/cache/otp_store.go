package cache

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const otpPrefix = "otp:"

// OTPStore keeps one-time codes in Redis. Expiry is the key TTL; a verified
// code is deleted so it cannot be used twice.
type OTPStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewOTPStore(rdb *redis.Client, ttl time.Duration) *OTPStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &OTPStore{rdb: rdb, ttl: ttl}
}

// Issue generates a 6-digit code for subject, replacing any previous one.
func (s *OTPStore) Issue(ctx context.Context, subject string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	if err := s.rdb.Set(ctx, otpKey(subject), code, s.ttl).Err(); err != nil {
		return "", err
	}
	return code, nil
}

// Verify reports whether code matches the stored one and consumes it on success.
// A missing key (never issued or expired) is a mismatch, not an error.
func (s *OTPStore) Verify(ctx context.Context, subject, code string) (bool, error) {
	key := otpKey(subject)
	stored, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return false, nil
	}
	// Del count guards against two concurrent verifies of the same code.
	deleted, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return deleted == 1, nil
}

// TTL returns the configured lifetime of issued codes.
func (s *OTPStore) TTL() time.Duration {
	return s.ttl
}

func otpKey(subject string) string {
	return otpPrefix + strings.ToLower(strings.TrimSpace(subject))
}
