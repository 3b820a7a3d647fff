// Package memory keeps reviews and the vote ledger in process memory. Units of
// work hold the store-wide writer lock and operate on a private copy of the
// state that replaces the live state only when the unit of work succeeds.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
	"github.com/njprem/ReviewHub_BackEnd/internal/repository/ports"
)

type voteKey struct {
	voterID  uuid.UUID
	reviewID uuid.UUID
}

type state struct {
	reviews  map[uuid.UUID]domain.Review
	votes    map[uuid.UUID]domain.Vote
	voteKeys map[voteKey]uuid.UUID
	users    map[uuid.UUID]domain.User
	lastTime time.Time
}

func newState() *state {
	return &state{
		reviews:  make(map[uuid.UUID]domain.Review),
		votes:    make(map[uuid.UUID]domain.Vote),
		voteKeys: make(map[voteKey]uuid.UUID),
		users:    make(map[uuid.UUID]domain.User),
	}
}

func (s *state) clone() *state {
	out := &state{
		reviews:  make(map[uuid.UUID]domain.Review, len(s.reviews)),
		votes:    make(map[uuid.UUID]domain.Vote, len(s.votes)),
		voteKeys: make(map[voteKey]uuid.UUID, len(s.voteKeys)),
		users:    s.users,
		lastTime: s.lastTime,
	}
	for k, v := range s.reviews {
		out.reviews[k] = v
	}
	for k, v := range s.votes {
		out.votes[k] = v
	}
	for k, v := range s.voteKeys {
		out.voteKeys[k] = v
	}
	return out
}

type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

func NewStore() *Store {
	return &Store{
		state: newState(),
		now:   time.Now,
	}
}

// SeedUser registers an owner record so views can show a display name and role.
func (s *Store) SeedUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make(map[uuid.UUID]domain.User, len(s.state.users)+1)
	for k, v := range s.state.users {
		users[k] = v
	}
	users[user.ID] = user
	s.state.users = users
}

func (s *Store) Reviews() ports.ReviewRepository {
	return &ReviewRepository{store: s}
}

func (s *Store) Votes() ports.VoteRepository {
	return &VoteRepository{store: s}
}

func (s *Store) InTx(ctx context.Context, fn func(tx ports.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(txRepositories{store: s, tx: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

// tick returns a strictly increasing timestamp so creation order is total.
func (s *Store) tick(st *state) time.Time {
	now := s.now().UTC()
	if !now.After(st.lastTime) {
		now = st.lastTime.Add(time.Microsecond)
	}
	st.lastTime = now
	return now
}

func (s *Store) read(tx *state, fn func(st *state) error) error {
	if tx != nil {
		return fn(tx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// write outside a unit of work is a single-statement transaction.
func (s *Store) write(tx *state, fn func(st *state) error) error {
	if tx != nil {
		return fn(tx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(working); err != nil {
		return err
	}
	s.state = working
	return nil
}

type txRepositories struct {
	store *Store
	tx    *state
}

func (r txRepositories) Reviews() ports.ReviewRepository {
	return &ReviewRepository{store: r.store, tx: r.tx}
}

func (r txRepositories) Votes() ports.VoteRepository {
	return &VoteRepository{store: r.store, tx: r.tx}
}

var _ ports.Store = (*Store)(nil)
