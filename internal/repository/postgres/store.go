package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/njprem/ReviewHub_BackEnd/internal/repository/ports"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Reviews() ports.ReviewRepository {
	return NewReviewRepo(s.db)
}

func (s *Store) Votes() ports.VoteRepository {
	return NewVoteRepo(s.db)
}

// InTx runs fn inside a READ COMMITTED transaction. Writers serialize on the
// review row through GetForUpdate, which is all the ledger needs; anything
// fn returns rolls the transaction back.
func (s *Store) InTx(ctx context.Context, fn func(tx ports.Repositories) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txRepositories{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", translateError(err))
	}
	return nil
}

type txRepositories struct {
	tx *sqlx.Tx
}

func (r txRepositories) Reviews() ports.ReviewRepository {
	return NewReviewRepo(r.tx)
}

func (r txRepositories) Votes() ports.VoteRepository {
	return NewVoteRepo(r.tx)
}

var _ ports.Store = (*Store)(nil)
