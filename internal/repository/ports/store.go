package ports

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record violates a uniqueness constraint")
	// ErrConcurrentUpdate is returned when the database aborted a transaction
	// because of a competing one (serialization failure or deadlock).
	ErrConcurrentUpdate = errors.New("transaction aborted by a concurrent update")
)

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Reviews() ReviewRepository
	Votes() VoteRepository
}

// Store hands out repositories for single-statement reads and runs multi-step
// mutations as one atomic unit of work. If fn returns an error nothing it wrote
// is kept.
type Store interface {
	Repositories
	InTx(ctx context.Context, fn func(tx Repositories) error) error
}
