package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
	"github.com/njprem/ReviewHub_BackEnd/internal/repository/ports"
)

const reviewColumns = `
	r.id,
	r.owner_id,
	r.title,
	r.text,
	r.rating,
	r.upvotes,
	r.downvotes,
	r.created_at,
	r.updated_at,
	r.photo_data,
	r.photo_content_type,
	r.photo_object_key,
	u.display_name AS owner_name,
	u.role AS owner_role
`

// ReviewRepository works against either the pool or an open transaction.
type ReviewRepository struct {
	db sqlx.ExtContext
}

func NewReviewRepo(db sqlx.ExtContext) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	const query = `
		INSERT INTO review (id, owner_id, title, text, rating, photo_data, photo_content_type, photo_object_key)
		VALUES (:id, :owner_id, :title, :text, :rating, :photo_data, :photo_content_type, :photo_object_key)
		RETURNING id
	`
	id := review.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	args := map[string]any{
		"id":                 id,
		"owner_id":           review.OwnerID,
		"title":              review.Title,
		"text":               review.Text,
		"rating":             review.Rating,
		"photo_data":         nullBytes(review.PhotoData),
		"photo_content_type": nullString(review.PhotoContentType),
		"photo_object_key":   nullString(review.PhotoObjectKey),
	}

	rows, err := sqlx.NamedQueryContext(ctx, r.db, query, args)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var stored uuid.UUID
	if rows.Next() {
		if err := rows.Scan(&stored); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	rows.Close()
	if stored == uuid.Nil {
		return nil, ports.ErrNotFound
	}
	return r.GetByID(ctx, stored)
}

func (r *ReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	query := `
		SELECT` + reviewColumns + `
		FROM review r
		LEFT JOIN user_account u ON u.id = r.owner_id
		WHERE r.id = $1
	`
	var review domain.Review
	if err := sqlx.GetContext(ctx, r.db, &review, query, id); err != nil {
		return nil, translateError(err)
	}
	return &review, nil
}

func (r *ReviewRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	// FOR UPDATE OF r: the owner join is nullable and must not be locked.
	query := `
		SELECT` + reviewColumns + `
		FROM review r
		LEFT JOIN user_account u ON u.id = r.owner_id
		WHERE r.id = $1
		FOR UPDATE OF r
	`
	var review domain.Review
	if err := sqlx.GetContext(ctx, r.db, &review, query, id); err != nil {
		return nil, translateError(err)
	}
	return &review, nil
}

func (r *ReviewRepository) List(ctx context.Context) ([]domain.Review, error) {
	query := `
		SELECT` + reviewColumns + `
		FROM review r
		LEFT JOIN user_account u ON u.id = r.owner_id
		ORDER BY r.created_at DESC, r.id DESC
	`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		var review domain.Review
		if err := rows.StructScan(&review); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (r *ReviewRepository) UpdateContent(ctx context.Context, id uuid.UUID, title, text string, rating int) (*domain.Review, error) {
	const query = `
		UPDATE review
		SET title = $2, text = $3, rating = $4, updated_at = NOW()
		WHERE id = $1
	`
	if err := r.execOne(ctx, query, id, title, text, rating); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// AdjustCounters applies relative deltas in SQL so concurrent writers can never
// overwrite each other's increments.
func (r *ReviewRepository) AdjustCounters(ctx context.Context, id uuid.UUID, upDelta, downDelta int) (*domain.Review, error) {
	const query = `
		UPDATE review
		SET upvotes = upvotes + $2, downvotes = downvotes + $3
		WHERE id = $1
	`
	if err := r.execOne(ctx, query, id, upDelta, downDelta); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *ReviewRepository) SetCounters(ctx context.Context, id uuid.UUID, tally domain.VoteTally) (*domain.Review, error) {
	const query = `
		UPDATE review
		SET upvotes = $2, downvotes = $3
		WHERE id = $1
	`
	if err := r.execOne(ctx, query, id, tally.Upvotes, tally.Downvotes); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *ReviewRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM review WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *ReviewRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
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

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullBytes(value []byte) any {
	if len(value) == 0 {
		return nil
	}
	return value
}

var _ ports.ReviewRepository = (*ReviewRepository)(nil)
