package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
)

type VoteRepository interface {
	Find(ctx context.Context, voterID, reviewID uuid.UUID) (*domain.Vote, error)
	// Insert returns ErrDuplicate when (voter, review) already has an entry.
	Insert(ctx context.Context, vote *domain.Vote) (*domain.Vote, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByReview(ctx context.Context, reviewID uuid.UUID) (int64, error)
	ValuesByVoter(ctx context.Context, voterID uuid.UUID, reviewIDs []uuid.UUID) (map[uuid.UUID]int, error)
	TallyByReview(ctx context.Context, reviewID uuid.UUID) (domain.VoteTally, error)
}
