package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
	"github.com/njprem/ReviewHub_BackEnd/internal/repository/ports"
)

type VoteRepository struct {
	store *Store
	tx    *state
}

func (r *VoteRepository) Find(_ context.Context, voterID, reviewID uuid.UUID) (*domain.Vote, error) {
	var out *domain.Vote
	err := r.store.read(r.tx, func(st *state) error {
		id, ok := st.voteKeys[voteKey{voterID: voterID, reviewID: reviewID}]
		if !ok {
			return ports.ErrNotFound
		}
		vote := st.votes[id]
		out = &vote
		return nil
	})
	return out, err
}

func (r *VoteRepository) Insert(_ context.Context, vote *domain.Vote) (*domain.Vote, error) {
	var out *domain.Vote
	err := r.store.write(r.tx, func(st *state) error {
		if _, ok := st.reviews[vote.ReviewID]; !ok {
			return fmt.Errorf("vote references unknown review %s", vote.ReviewID)
		}
		key := voteKey{voterID: vote.VoterID, reviewID: vote.ReviewID}
		if _, exists := st.voteKeys[key]; exists {
			return fmt.Errorf("%w: review_vote_voter_review_key", ports.ErrDuplicate)
		}
		stored := *vote
		if stored.ID == uuid.Nil {
			stored.ID = uuid.New()
		}
		stored.CreatedAt = r.store.tick(st)
		st.votes[stored.ID] = stored
		st.voteKeys[key] = stored.ID
		out = &stored
		return nil
	})
	return out, err
}

func (r *VoteRepository) Delete(_ context.Context, id uuid.UUID) error {
	return r.store.write(r.tx, func(st *state) error {
		vote, ok := st.votes[id]
		if !ok {
			return ports.ErrNotFound
		}
		delete(st.votes, id)
		delete(st.voteKeys, voteKey{voterID: vote.VoterID, reviewID: vote.ReviewID})
		return nil
	})
}

func (r *VoteRepository) DeleteByReview(_ context.Context, reviewID uuid.UUID) (int64, error) {
	var removed int64
	err := r.store.write(r.tx, func(st *state) error {
		for id, vote := range st.votes {
			if vote.ReviewID != reviewID {
				continue
			}
			delete(st.votes, id)
			delete(st.voteKeys, voteKey{voterID: vote.VoterID, reviewID: vote.ReviewID})
			removed++
		}
		return nil
	})
	return removed, err
}

func (r *VoteRepository) ValuesByVoter(_ context.Context, voterID uuid.UUID, reviewIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	result := make(map[uuid.UUID]int, len(reviewIDs))
	if voterID == uuid.Nil || len(reviewIDs) == 0 {
		return result, nil
	}
	err := r.store.read(r.tx, func(st *state) error {
		for _, reviewID := range reviewIDs {
			if id, ok := st.voteKeys[voteKey{voterID: voterID, reviewID: reviewID}]; ok {
				result[reviewID] = st.votes[id].Value
			}
		}
		return nil
	})
	return result, err
}

func (r *VoteRepository) TallyByReview(_ context.Context, reviewID uuid.UUID) (domain.VoteTally, error) {
	var tally domain.VoteTally
	err := r.store.read(r.tx, func(st *state) error {
		for _, vote := range st.votes {
			if vote.ReviewID != reviewID {
				continue
			}
			switch vote.Value {
			case domain.VoteUp:
				tally.Upvotes++
			case domain.VoteDown:
				tally.Downvotes++
			}
		}
		return nil
	})
	return tally, err
}

var _ ports.VoteRepository = (*VoteRepository)(nil)
