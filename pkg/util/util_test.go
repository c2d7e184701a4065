package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJWT_RoundTrip(t *testing.T) {
	token, err := GenerateJWT(42, "contributor", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, "contributor", claims.Role)
}

func TestJWT_RejectsWrongSecretAndExpired(t *testing.T) {
	token, err := GenerateJWT(1, "client", "secret", time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(token, "other")
	require.Error(t, err)

	past := time.Now().Add(-time.Hour)
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           1,
		Role:             "client",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(past)},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseJWT(expired, "secret")
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestExtractBearer(t *testing.T) {
	require.Equal(t, "abc", ExtractBearer("Bearer abc"))
	require.Equal(t, "abc", ExtractBearer("bearer abc"))
	require.Equal(t, "", ExtractBearer("Basic abc"))
	require.Equal(t, "", ExtractBearer("abc"))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.True(t, CheckPassword("hunter2", hash))
	require.False(t, CheckPassword("hunter3", hash))
}

func TestClassifyError(t *testing.T) {
	var syntaxErr error
	var v map[string]any
	syntaxErr = json.Unmarshal([]byte("{"), &v)

	cases := []struct {
		name      string
		err       error
		retryable bool
		class     string
	}{
		{"decode", fmt.Errorf("wrap: %w", syntaxErr), false, ErrClassDecode},
		{"no rows", pgx.ErrNoRows, false, ErrClassNotFound},
		{"duplicate", &pgconn.PgError{Code: "23505"}, false, ErrClassDuplicate},
		{"fk", &pgconn.PgError{Code: "23503"}, false, ErrClassConstraint},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true, ErrClassDBUnavailable},
		{"deadline", context.DeadlineExceeded, true, ErrClassTimeout},
		{"canceled", context.Canceled, false, ErrClassCanceled},
		{"other", errors.New("weird"), false, ErrClassUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retryable, class := ClassifyError(tc.err)
			require.Equal(t, tc.retryable, retryable)
			require.Equal(t, tc.class, class)
		})
	}
}

func TestShouldRetry(t *testing.T) {
	require.True(t, ShouldRetry(3, 3, true))
	require.False(t, ShouldRetry(4, 3, true))
	require.False(t, ShouldRetry(1, 3, false))
}

func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestDeduper_FailsOpenWhenRedisDown(t *testing.T) {
	rdb := unreachableRedis()
	defer rdb.Close()

	d := NewDeduper(rdb, time.Minute, zap.NewNop())
	require.True(t, d.AcquireOnce(context.Background(), "notification_created", "7"))
	require.Equal(t, "dedup:notification_created:7", DedupKey("notification_created", "7"))
}

func TestRetryCounter_PropagatesRedisError(t *testing.T) {
	rdb := unreachableRedis()
	defer rdb.Close()

	_, err := NewRetryCounter(rdb, time.Minute).IncrementAndGet(context.Background(), FormatRetryKey("h", "1"))
	require.Error(t, err)
	require.Equal(t, "retry:h:1", FormatRetryKey("h", "1"))
}
