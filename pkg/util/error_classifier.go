package util

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error classes reported by ClassifyError.
const (
	ErrClassDecode        = "json_decode_error"
	ErrClassNotFound      = "not_found"
	ErrClassDuplicate     = "duplicate_key"
	ErrClassConstraint    = "constraint_violation"
	ErrClassDBUnavailable = "db_connection_error"
	ErrClassNetwork       = "network_error"
	ErrClassTimeout       = "timeout"
	ErrClassCanceled      = "context_canceled"
	ErrClassUnknown       = "unknown_error"
)

// ClassifyError decides whether a consumer should requeue a failed message.
func ClassifyError(err error) (retryable bool, class string) {
	if err == nil {
		return false, ""
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false, ErrClassDecode
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrClassNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return false, ErrClassDuplicate
		case strings.HasPrefix(pgErr.Code, "23"):
			// integrity violations will fail the same way on every retry
			return false, ErrClassConstraint
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"), pgErr.Code == "40001", pgErr.Code == "40P01":
			return true, ErrClassDBUnavailable
		}
		return false, ErrClassUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true, ErrClassTimeout
	}
	if errors.Is(err, context.Canceled) {
		return false, ErrClassCanceled
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, ErrClassTimeout
		}
		return true, ErrClassNetwork
	}

	if pgconn.SafeToRetry(err) || strings.Contains(err.Error(), "connection") {
		return true, ErrClassDBUnavailable
	}

	return false, ErrClassUnknown
}

// ShouldRetry reports whether attempt (1-based) may be requeued.
func ShouldRetry(attempt, maxRetries int64, retryable bool) bool {
	return retryable && attempt <= maxRetries
}
