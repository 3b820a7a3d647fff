package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *domain.Review) (*domain.Review, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error)
	// GetForUpdate reads the review and holds its row lock until the surrounding tx ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Review, error)
	List(ctx context.Context) ([]domain.Review, error)
	UpdateContent(ctx context.Context, id uuid.UUID, title, text string, rating int) (*domain.Review, error)
	AdjustCounters(ctx context.Context, id uuid.UUID, upDelta, downDelta int) (*domain.Review, error)
	SetCounters(ctx context.Context, id uuid.UUID, tally domain.VoteTally) (*domain.Review, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
