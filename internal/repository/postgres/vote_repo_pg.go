package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
	"github.com/njprem/ReviewHub_BackEnd/internal/repository/ports"
)

type VoteRepository struct {
	db sqlx.ExtContext
}

func NewVoteRepo(db sqlx.ExtContext) *VoteRepository {
	return &VoteRepository{db: db}
}

func (r *VoteRepository) Find(ctx context.Context, voterID, reviewID uuid.UUID) (*domain.Vote, error) {
	const query = `
		SELECT id, voter_id, review_id, value, created_at
		FROM review_vote
		WHERE voter_id = $1 AND review_id = $2
	`
	var vote domain.Vote
	if err := sqlx.GetContext(ctx, r.db, &vote, query, voterID, reviewID); err != nil {
		return nil, translateError(err)
	}
	return &vote, nil
}

// Insert relies on review_vote_voter_review_key; a racing first vote from the
// same voter surfaces as ports.ErrDuplicate.
func (r *VoteRepository) Insert(ctx context.Context, vote *domain.Vote) (*domain.Vote, error) {
	const query = `
		INSERT INTO review_vote (id, voter_id, review_id, value)
		VALUES ($1, $2, $3, $4)
		RETURNING id, voter_id, review_id, value, created_at
	`
	id := vote.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	var stored domain.Vote
	if err := sqlx.GetContext(ctx, r.db, &stored, query, id, vote.VoterID, vote.ReviewID, vote.Value); err != nil {
		return nil, translateError(err)
	}
	return &stored, nil
}

func (r *VoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM review_vote WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *VoteRepository) DeleteByReview(ctx context.Context, reviewID uuid.UUID) (int64, error) {
	const query = `DELETE FROM review_vote WHERE review_id = $1`
	result, err := r.db.ExecContext(ctx, query, reviewID)
	if err != nil {
		return 0, translateError(err)
	}
	return result.RowsAffected()
}

func (r *VoteRepository) ValuesByVoter(ctx context.Context, voterID uuid.UUID, reviewIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	result := make(map[uuid.UUID]int, len(reviewIDs))
	if voterID == uuid.Nil || len(reviewIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
		SELECT review_id, value
		FROM review_vote
		WHERE voter_id = ? AND review_id IN (?)
	`, voterID, reviewIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			reviewID uuid.UUID
			value    int
		)
		if err := rows.Scan(&reviewID, &value); err != nil {
			return nil, err
		}
		result[reviewID] = value
	}
	return result, rows.Err()
}

func (r *VoteRepository) TallyByReview(ctx context.Context, reviewID uuid.UUID) (domain.VoteTally, error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE value = 1)::int AS upvotes,
			COUNT(*) FILTER (WHERE value = -1)::int AS downvotes
		FROM review_vote
		WHERE review_id = $1
	`
	var tally domain.VoteTally
	if err := sqlx.GetContext(ctx, r.db, &tally, query, reviewID); err != nil {
		return domain.VoteTally{}, translateError(err)
	}
	return tally, nil
}

var _ ports.VoteRepository = (*VoteRepository)(nil)
