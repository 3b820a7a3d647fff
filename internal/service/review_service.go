package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
	"github.com/njprem/ReviewHub_BackEnd/internal/metrics"
	"github.com/njprem/ReviewHub_BackEnd/internal/repository/ports"
)

const (
	defaultVoteMaxAttempts  = 3
	defaultVoteRetryBackoff = 20 * time.Millisecond
	anonymousDisplayName    = "Anonymous"
)

type ReviewServiceConfig struct {
	// Bucket is used only when an ObjectStorage is supplied.
	Bucket           string
	VoteMaxAttempts  int
	VoteRetryBackoff time.Duration
	Logger           *slog.Logger
	Metrics          *metrics.Recorder
}

type ReviewInput struct {
	Title      string
	Text       string
	Rating     int
	Attachment *AttachmentUpload
}

type ReviewUpdateInput struct {
	Title  string
	Text   string
	Rating int
}

type ReviewService struct {
	store   ports.Store
	storage ports.ObjectStorage

	bucket          string
	voteMaxAttempts int
	retryBackoff    time.Duration
	logger          *slog.Logger
	metrics         *metrics.Recorder
	sleep           func(ctx context.Context, d time.Duration) error
}

// NewReviewService wires the store and, optionally, object storage for
// attachments. With a nil storage attachments are kept inline in the row.
func NewReviewService(store ports.Store, storage ports.ObjectStorage, cfg ReviewServiceConfig) *ReviewService {
	attempts := cfg.VoteMaxAttempts
	if attempts <= 0 {
		attempts = defaultVoteMaxAttempts
	}
	backoff := cfg.VoteRetryBackoff
	if backoff <= 0 {
		backoff = defaultVoteRetryBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{
		store:           store,
		storage:         storage,
		bucket:          strings.TrimSpace(cfg.Bucket),
		voteMaxAttempts: attempts,
		retryBackoff:    backoff,
		logger:          logger,
		metrics:         cfg.Metrics,
		sleep:           sleepContext,
	}
}

func (s *ReviewService) CreateReview(ctx context.Context, principal domain.Principal, input ReviewInput) (view *domain.ReviewView, err error) {
	defer func() { s.metrics.Operation("create_review", outcome(err)) }()

	if principal.IsAnonymous() {
		return nil, ErrAccessDenied
	}
	title, text, err := normalizeContent(input.Title, input.Text)
	if err != nil {
		return nil, err
	}
	if err := validateAttachment(input.Attachment); err != nil {
		return nil, err
	}

	review := &domain.Review{
		ID:      uuid.New(),
		OwnerID: principal.ID,
		Title:   title,
		Text:    text,
		Rating:  input.Rating,
	}
	objectKey, err := s.storeAttachment(ctx, review, input.Attachment)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Reviews().Create(ctx, review)
	if err != nil {
		s.removeObject(ctx, review.ID, objectKey)
		return nil, fmt.Errorf("create review: %w", err)
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", stored.ID.String()),
		slog.String("owner_id", stored.OwnerID.String()),
		slog.Int("rating", stored.Rating),
		slog.Bool("attachment", stored.HasAttachment()),
	)
	return s.buildView(ctx, *stored, nil), nil
}

// ListReviews returns every review, newest first. viewer may be anonymous, in
// which case no caller vote is attached.
func (s *ReviewService) ListReviews(ctx context.Context, viewer domain.Principal) ([]domain.ReviewView, error) {
	reviews, err := s.store.Reviews().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(reviews))
	for _, review := range reviews {
		ids = append(ids, review.ID)
	}
	myVotes, err := s.store.Votes().ValuesByVoter(ctx, viewer.ID, ids)
	if err != nil {
		return nil, fmt.Errorf("list caller votes: %w", err)
	}

	views := make([]domain.ReviewView, 0, len(reviews))
	for _, review := range reviews {
		var myVote *int
		if value, ok := myVotes[review.ID]; ok {
			myVote = &value
		}
		views = append(views, *s.buildView(ctx, review, myVote))
	}
	return views, nil
}

func (s *ReviewService) GetReview(ctx context.Context, id uuid.UUID, viewer domain.Principal) (*domain.ReviewView, error) {
	review, err := s.store.Reviews().GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	myVote, err := s.callerVote(ctx, s.store, viewer.ID, id)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, *review, myVote), nil
}

func (s *ReviewService) UpdateReview(ctx context.Context, id uuid.UUID, principal domain.Principal, input ReviewUpdateInput) (view *domain.ReviewView, err error) {
	defer func() { s.metrics.Operation("update_review", outcome(err)) }()

	title, text, err := normalizeContent(input.Title, input.Text)
	if err != nil {
		return nil, err
	}

	var (
		updated *domain.Review
		myVote  *int
	)
	err = s.store.InTx(ctx, func(tx ports.Repositories) error {
		review, err := lockReview(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := authorize(principal, *review, ActionUpdate); err != nil {
			return err
		}
		updated, err = tx.Reviews().UpdateContent(ctx, id, title, text, input.Rating)
		if err != nil {
			return err
		}
		myVote, err = s.callerVote(ctx, tx, principal.ID, id)
		return err
	})
	if err != nil {
		return nil, wrapStorage("update review", err)
	}

	s.logger.InfoContext(ctx, "review updated",
		slog.String("review_id", id.String()),
		slog.String("principal_id", principal.ID.String()),
		slog.String("role", string(principal.Role)),
	)
	return s.buildView(ctx, *updated, myVote), nil
}

// DeleteReview removes the review's ledger entries and then the review itself
// in one unit of work.
func (s *ReviewService) DeleteReview(ctx context.Context, id uuid.UUID, principal domain.Principal) (err error) {
	defer func() { s.metrics.Operation("delete_review", outcome(err)) }()

	var (
		removed   int64
		objectKey string
	)
	err = s.store.InTx(ctx, func(tx ports.Repositories) error {
		review, err := lockReview(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := authorize(principal, *review, ActionDelete); err != nil {
			return err
		}
		if review.PhotoObjectKey != nil {
			objectKey = *review.PhotoObjectKey
		}
		removed, err = tx.Votes().DeleteByReview(ctx, id)
		if err != nil {
			return err
		}
		return tx.Reviews().Delete(ctx, id)
	})
	if err != nil {
		return wrapStorage("delete review", err)
	}

	s.removeObject(ctx, id, objectKey)
	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", id.String()),
		slog.String("principal_id", principal.ID.String()),
		slog.Int64("votes_removed", removed),
	)
	return nil
}

// CastVote records principal's +1/-1 on the review, replacing any earlier vote
// by the same principal. Casting the same value again retracts and re-adds the
// entry, so the counters stay where they were.
func (s *ReviewService) CastVote(ctx context.Context, id uuid.UUID, principal domain.Principal, value int) (view *domain.ReviewView, err error) {
	defer func() { s.metrics.Operation("cast_vote", outcome(err)) }()

	if !domain.ValidVoteValue(value) {
		return nil, ErrInvalidVoteValue
	}
	if principal.IsAnonymous() {
		return nil, ErrAccessDenied
	}

	for attempt := 1; ; attempt++ {
		review, err := s.castVoteOnce(ctx, id, principal.ID, value)
		if err == nil {
			s.metrics.VoteCast(value)
			s.logger.InfoContext(ctx, "vote cast",
				slog.String("review_id", id.String()),
				slog.String("voter_id", principal.ID.String()),
				slog.Int("value", value),
				slog.Int("upvotes", review.Upvotes),
				slog.Int("downvotes", review.Downvotes),
			)
			return s.buildView(ctx, *review, &value), nil
		}
		if !errors.Is(err, ErrVoteConflict) {
			return nil, err
		}

		s.metrics.VoteConflict()
		s.logger.WarnContext(ctx, "vote conflict",
			slog.String("review_id", id.String()),
			slog.String("voter_id", principal.ID.String()),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", s.voteMaxAttempts),
		)
		if attempt >= s.voteMaxAttempts {
			return nil, err
		}
		if sleepErr := s.sleep(ctx, retryBackoff(s.retryBackoff, attempt)); sleepErr != nil {
			return nil, err
		}
	}
}

func (s *ReviewService) castVoteOnce(ctx context.Context, id, voterID uuid.UUID, value int) (*domain.Review, error) {
	var updated *domain.Review
	err := s.store.InTx(ctx, func(tx ports.Repositories) error {
		review, err := lockReview(ctx, tx, id)
		if err != nil {
			return err
		}
		if review.OwnerID == voterID {
			return ErrSelfVoteForbidden
		}
		updated, err = applyVote(ctx, tx, voterID, id, value)
		return err
	})
	if err != nil {
		if isWriteConflict(err) {
			return nil, fmt.Errorf("%w: %v", ErrVoteConflict, err)
		}
		return nil, wrapStorage("cast vote", err)
	}
	return updated, nil
}

// applyVote retracts the voter's existing entry, if any, and casts the new one.
// It must run while the review row is locked by the current unit of work.
func applyVote(ctx context.Context, tx ports.Repositories, voterID, reviewID uuid.UUID, value int) (*domain.Review, error) {
	existing, err := tx.Votes().Find(ctx, voterID, reviewID)
	switch {
	case err == nil:
		up, down := domain.CounterDelta(existing.Value)
		if _, err := tx.Reviews().AdjustCounters(ctx, reviewID, -up, -down); err != nil {
			return nil, err
		}
		if err := tx.Votes().Delete(ctx, existing.ID); err != nil {
			return nil, err
		}
	case !isNotFound(err):
		return nil, err
	}

	if _, err := tx.Votes().Insert(ctx, &domain.Vote{
		VoterID:  voterID,
		ReviewID: reviewID,
		Value:    value,
	}); err != nil {
		return nil, err
	}
	up, down := domain.CounterDelta(value)
	return tx.Reviews().AdjustCounters(ctx, reviewID, up, down)
}

// RecountVotes rebuilds the review's counters from the ledger. Administrators only.
func (s *ReviewService) RecountVotes(ctx context.Context, id uuid.UUID, principal domain.Principal) (view *domain.ReviewView, err error) {
	defer func() { s.metrics.Operation("recount_votes", outcome(err)) }()

	if principal.IsAnonymous() || !principal.IsAdmin() {
		return nil, ErrAccessDenied
	}

	var (
		updated *domain.Review
		myVote  *int
		before  domain.VoteTally
		after   domain.VoteTally
	)
	err = s.store.InTx(ctx, func(tx ports.Repositories) error {
		review, err := lockReview(ctx, tx, id)
		if err != nil {
			return err
		}
		before = domain.VoteTally{Upvotes: review.Upvotes, Downvotes: review.Downvotes}
		after, err = tx.Votes().TallyByReview(ctx, id)
		if err != nil {
			return err
		}
		updated = review
		if after != before {
			updated, err = tx.Reviews().SetCounters(ctx, id, after)
			if err != nil {
				return err
			}
		}
		myVote, err = s.callerVote(ctx, tx, principal.ID, id)
		return err
	})
	if err != nil {
		return nil, wrapStorage("recount votes", err)
	}

	if after != before {
		s.metrics.LedgerDrift()
		s.logger.WarnContext(ctx, "review counters repaired from ledger",
			slog.String("review_id", id.String()),
			slog.Int("upvotes_before", before.Upvotes),
			slog.Int("downvotes_before", before.Downvotes),
			slog.Int("upvotes", after.Upvotes),
			slog.Int("downvotes", after.Downvotes),
		)
	}
	return s.buildView(ctx, *updated, myVote), nil
}

func (s *ReviewService) callerVote(ctx context.Context, repos ports.Repositories, voterID, reviewID uuid.UUID) (*int, error) {
	if voterID == uuid.Nil {
		return nil, nil
	}
	vote, err := repos.Votes().Find(ctx, voterID, reviewID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find caller vote: %w", err)
	}
	value := vote.Value
	return &value, nil
}

func (s *ReviewService) buildView(ctx context.Context, review domain.Review, myVote *int) *domain.ReviewView {
	return &domain.ReviewView{
		ID:         review.ID,
		Title:      review.Title,
		Text:       review.Text,
		Rating:     review.Rating,
		Upvotes:    review.Upvotes,
		Downvotes:  review.Downvotes,
		Attachment: s.loadAttachment(ctx, review),
		CreatedAt:  review.CreatedAt,
		UpdatedAt:  review.UpdatedAt,
		MyVote:     myVote,
		Owner:      ownerSummary(review),
	}
}

func ownerSummary(review domain.Review) domain.OwnerSummary {
	summary := domain.OwnerSummary{
		ID:          review.OwnerID,
		DisplayName: anonymousDisplayName,
		Role:        domain.RoleUser,
	}
	if review.OwnerName != nil {
		if trimmed := strings.TrimSpace(*review.OwnerName); trimmed != "" {
			summary.DisplayName = trimmed
		}
	}
	if review.OwnerRole != nil {
		if role, ok := domain.ParseRole(*review.OwnerRole); ok {
			summary.Role = role
		}
	}
	return summary
}

func lockReview(ctx context.Context, tx ports.Repositories, id uuid.UUID) (*domain.Review, error) {
	review, err := tx.Reviews().GetForUpdate(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return review, nil
}

func normalizeContent(title, text string) (string, string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", fmt.Errorf("%w: title is required", ErrReviewValidation)
	}
	return title, strings.TrimSpace(text), nil
}

func validateAttachment(upload *AttachmentUpload) error {
	if upload == nil {
		return nil
	}
	if len(upload.Data) == 0 {
		return fmt.Errorf("%w: attachment is empty", ErrReviewValidation)
	}
	if strings.TrimSpace(upload.ContentType) == "" {
		return fmt.Errorf("%w: attachment content type is required", ErrReviewValidation)
	}
	return nil
}

// wrapStorage leaves business errors untouched so callers can match them.
func wrapStorage(op string, err error) error {
	if KindOf(err) != KindInternal {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// retryBackoff doubles base per attempt with ±25% jitter.
func retryBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := base << (attempt - 1)
	jitter := time.Duration(float64(wait) * 0.25 * (2*rand.Float64() - 1))
	return wait + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
