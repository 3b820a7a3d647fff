package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	VoteUp   = 1
	VoteDown = -1
)

type Vote struct {
	ID        uuid.UUID `db:"id" json:"id"`
	VoterID   uuid.UUID `db:"voter_id" json:"voter_id"`
	ReviewID  uuid.UUID `db:"review_id" json:"review_id"`
	Value     int       `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func ValidVoteValue(value int) bool {
	return value == VoteUp || value == VoteDown
}

// VoteTally is the ledger-derived count of votes on one review.
type VoteTally struct {
	Upvotes   int `db:"upvotes"`
	Downvotes int `db:"downvotes"`
}

// CounterDelta returns the (up, down) counter change for adding one vote of value.
func CounterDelta(value int) (int, int) {
	if value == VoteUp {
		return 1, 0
	}
	return 0, 1
}
