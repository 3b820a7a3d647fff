package service

import (
	"errors"

	"github.com/njprem/ReviewHub_BackEnd/internal/repository/ports"
)

var (
	ErrInvalidVoteValue  = errors.New("vote value must be 1 or -1")
	ErrReviewNotFound    = errors.New("review not found")
	ErrSelfVoteForbidden = errors.New("cannot vote on your own review")
	ErrAccessDenied      = errors.New("not allowed to manage this review")
	ErrReviewValidation  = errors.New("review validation failed")
	ErrVoteConflict      = errors.New("vote conflicted with a concurrent vote, retry the request")
)

// ErrorKind is the stable, client-facing classification of a service error.
type ErrorKind string

const (
	KindInvalidVoteValue  ErrorKind = "INVALID_VOTE_VALUE"
	KindReviewNotFound    ErrorKind = "REVIEW_NOT_FOUND"
	KindSelfVoteForbidden ErrorKind = "SELF_VOTE_FORBIDDEN"
	KindAccessDenied      ErrorKind = "ACCESS_DENIED"
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindConflictRetryable ErrorKind = "CONFLICT_RETRYABLE"
	KindInternal          ErrorKind = "INTERNAL"
)

func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidVoteValue):
		return KindInvalidVoteValue
	case errors.Is(err, ErrReviewNotFound):
		return KindReviewNotFound
	case errors.Is(err, ErrSelfVoteForbidden):
		return KindSelfVoteForbidden
	case errors.Is(err, ErrAccessDenied):
		return KindAccessDenied
	case errors.Is(err, ErrReviewValidation):
		return KindValidation
	case errors.Is(err, ErrVoteConflict):
		return KindConflictRetryable
	default:
		return KindInternal
	}
}

// IsRetryable reports whether repeating the same operation may succeed.
func IsRetryable(err error) bool {
	return KindOf(err) == KindConflictRetryable
}

func isNotFound(err error) bool {
	return errors.Is(err, ports.ErrNotFound)
}

func isWriteConflict(err error) bool {
	return errors.Is(err, ports.ErrDuplicate) || errors.Is(err, ports.ErrConcurrentUpdate)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(KindOf(err))
}
