package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
	"github.com/njprem/ReviewHub_BackEnd/internal/repository/ports"
)

type ReviewRepository struct {
	store *Store
	tx    *state
}

func (r *ReviewRepository) Create(_ context.Context, review *domain.Review) (*domain.Review, error) {
	var out *domain.Review
	err := r.store.write(r.tx, func(st *state) error {
		stored := *review
		if stored.ID == uuid.Nil {
			stored.ID = uuid.New()
		}
		if _, exists := st.reviews[stored.ID]; exists {
			return fmt.Errorf("%w: review_pkey", ports.ErrDuplicate)
		}
		now := r.store.tick(st)
		stored.Upvotes = 0
		stored.Downvotes = 0
		stored.CreatedAt = now
		stored.UpdatedAt = now
		stored.OwnerName = nil
		stored.OwnerRole = nil
		st.reviews[stored.ID] = stored
		out = withOwner(st, stored)
		return nil
	})
	return out, err
}

func (r *ReviewRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Review, error) {
	var out *domain.Review
	err := r.store.read(r.tx, func(st *state) error {
		review, ok := st.reviews[id]
		if !ok {
			return ports.ErrNotFound
		}
		out = withOwner(st, review)
		return nil
	})
	return out, err
}

// GetForUpdate needs no extra locking: a unit of work already holds the writer lock.
func (r *ReviewRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	return r.GetByID(ctx, id)
}

func (r *ReviewRepository) List(_ context.Context) ([]domain.Review, error) {
	var out []domain.Review
	err := r.store.read(r.tx, func(st *state) error {
		out = make([]domain.Review, 0, len(st.reviews))
		for _, review := range st.reviews {
			out = append(out, *withOwner(st, review))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) > 0
	})
	return out, nil
}

func (r *ReviewRepository) UpdateContent(_ context.Context, id uuid.UUID, title, text string, rating int) (*domain.Review, error) {
	return r.mutate(id, func(st *state, review *domain.Review) error {
		review.Title = title
		review.Text = text
		review.Rating = rating
		review.UpdatedAt = r.store.tick(st)
		return nil
	})
}

func (r *ReviewRepository) AdjustCounters(_ context.Context, id uuid.UUID, upDelta, downDelta int) (*domain.Review, error) {
	return r.mutate(id, func(_ *state, review *domain.Review) error {
		up := review.Upvotes + upDelta
		down := review.Downvotes + downDelta
		if up < 0 || down < 0 {
			return fmt.Errorf("review %s: counters would become negative (%d/%d)", id, up, down)
		}
		review.Upvotes = up
		review.Downvotes = down
		return nil
	})
}

func (r *ReviewRepository) SetCounters(_ context.Context, id uuid.UUID, tally domain.VoteTally) (*domain.Review, error) {
	return r.mutate(id, func(_ *state, review *domain.Review) error {
		review.Upvotes = tally.Upvotes
		review.Downvotes = tally.Downvotes
		return nil
	})
}

// Delete mirrors the ON DELETE RESTRICT foreign key of the SQL schema.
func (r *ReviewRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.store.write(r.tx, func(st *state) error {
		if _, ok := st.reviews[id]; !ok {
			return ports.ErrNotFound
		}
		for _, vote := range st.votes {
			if vote.ReviewID == id {
				return fmt.Errorf("review %s is still referenced by vote %s", id, vote.ID)
			}
		}
		delete(st.reviews, id)
		return nil
	})
}

func (r *ReviewRepository) mutate(id uuid.UUID, fn func(st *state, review *domain.Review) error) (*domain.Review, error) {
	var out *domain.Review
	err := r.store.write(r.tx, func(st *state) error {
		review, ok := st.reviews[id]
		if !ok {
			return ports.ErrNotFound
		}
		if err := fn(st, &review); err != nil {
			return err
		}
		st.reviews[id] = review
		out = withOwner(st, review)
		return nil
	})
	return out, err
}

func withOwner(st *state, review domain.Review) *domain.Review {
	if user, ok := st.users[review.OwnerID]; ok {
		name := user.DisplayName
		role := string(user.Role)
		review.OwnerName = &name
		review.OwnerRole = &role
	}
	return &review
}

var _ ports.ReviewRepository = (*ReviewRepository)(nil)
