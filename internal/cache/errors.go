package cache

import (
	"fmt"

	"github.com/rohmanhakim/parkfetch/internal/metadata"
	"github.com/rohmanhakim/parkfetch/pkg/failure"
)

type CacheErrorCause string

const (
	// ErrCauseCacheUnavailable is recovered inside Load and never returned.
	ErrCauseCacheUnavailable CacheErrorCause = "cache unavailable"
	ErrCauseEncodeFailure    CacheErrorCause = "encode failed"
	ErrCausePersistFailure   CacheErrorCause = "persist failed"
	ErrCauseInvalidKey       CacheErrorCause = "invalid key"
)

type CacheError struct {
	Message   string
	Retryable bool
	Cause     CacheErrorCause
	Path      string
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: %s: %s", e.Cause, e.Message)
}

func (e *CacheError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapCacheErrorToMetadataCause maps cache-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapCacheErrorToMetadataCause(err *CacheError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseCacheUnavailable, ErrCausePersistFailure:
		return metadata.CauseStorageFailure
	case ErrCauseEncodeFailure:
		return metadata.CauseContentInvalid
	case ErrCauseInvalidKey:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
