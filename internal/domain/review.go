package domain

import (
	"time"

	"github.com/google/uuid"
)

type Review struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	Title     string    `db:"title" json:"title"`
	Text      string    `db:"text" json:"text"`
	Rating    int       `db:"rating" json:"rating"`
	Upvotes   int       `db:"upvotes" json:"upvotes"`
	Downvotes int       `db:"downvotes" json:"downvotes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	PhotoData        []byte  `db:"photo_data" json:"-"`
	PhotoContentType *string `db:"photo_content_type" json:"-"`
	PhotoObjectKey   *string `db:"photo_object_key" json:"-"`

	OwnerName *string `db:"owner_name" json:"-"`
	OwnerRole *string `db:"owner_role" json:"-"`
}

// HasAttachment reports whether the review carries an inline or offloaded photo.
func (r *Review) HasAttachment() bool {
	if r.PhotoContentType == nil {
		return false
	}
	return len(r.PhotoData) > 0 || (r.PhotoObjectKey != nil && *r.PhotoObjectKey != "")
}

type Attachment struct {
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

type OwnerSummary struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
}

// ReviewView is a review as seen by one caller: aggregate counts plus the caller's own vote.
type ReviewView struct {
	ID         uuid.UUID    `json:"id"`
	Title      string       `json:"title"`
	Text       string       `json:"text"`
	Rating     int          `json:"rating"`
	Upvotes    int          `json:"upvotes"`
	Downvotes  int          `json:"downvotes"`
	Attachment *Attachment  `json:"attachment,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	MyVote     *int         `json:"my_vote,omitempty"`
	Owner      OwnerSummary `json:"owner"`
}
