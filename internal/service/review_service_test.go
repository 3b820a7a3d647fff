package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
	"github.com/njprem/ReviewHub_BackEnd/internal/repository/memory"
	"github.com/njprem/ReviewHub_BackEnd/internal/repository/ports"
)

func TestReviewService_ScenarioWalkthrough(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewReviewService(store, nil, ReviewServiceConfig{})

	ownerA := userPrincipal()
	voterB := userPrincipal()
	voterC := userPrincipal()
	voterD := userPrincipal()
	admin := domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}

	created, err := svc.CreateReview(ctx, ownerA, ReviewInput{Title: "Pad thai", Text: "Solid", Rating: 4})
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	assertCounts(t, created, 0, 0)
	id := created.ID

	view, err := svc.CastVote(ctx, id, voterB, domain.VoteUp)
	if err != nil {
		t.Fatalf("B upvote: %v", err)
	}
	assertCounts(t, view, 1, 0)
	if view.MyVote == nil || *view.MyVote != domain.VoteUp {
		t.Fatalf("expected B's vote to be +1, got %v", view.MyVote)
	}

	view, err = svc.CastVote(ctx, id, voterB, domain.VoteDown)
	if err != nil {
		t.Fatalf("B downvote: %v", err)
	}
	assertCounts(t, view, 0, 1)

	for _, value := range []int{domain.VoteUp, domain.VoteDown} {
		if _, err := svc.CastVote(ctx, id, ownerA, value); !errors.Is(err, ErrSelfVoteForbidden) {
			t.Fatalf("owner vote %d: expected ErrSelfVoteForbidden, got %v", value, err)
		}
	}
	view, err = svc.GetReview(ctx, id, ownerA)
	if err != nil {
		t.Fatalf("GetReview: %v", err)
	}
	assertCounts(t, view, 0, 1)

	var g errgroup.Group
	g.Go(func() error {
		_, err := svc.CastVote(ctx, id, voterC, domain.VoteUp)
		return err
	})
	g.Go(func() error {
		_, err := svc.CastVote(ctx, id, voterD, domain.VoteDown)
		return err
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent votes: %v", err)
	}
	view, err = svc.GetReview(ctx, id, voterC)
	if err != nil {
		t.Fatalf("GetReview: %v", err)
	}
	assertCounts(t, view, 1, 2)
	assertLedgerMatches(t, store, id, 3)

	if err := svc.DeleteReview(ctx, id, admin); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	assertLedgerMatches(t, store, id, 0)
	if _, err := svc.CastVote(ctx, id, voterB, domain.VoteUp); !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound after delete, got %v", err)
	}
}

func TestReviewService_CastVote_InvalidValue(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewReviewService(store, nil, ReviewServiceConfig{})

	review := mustCreate(t, svc, userPrincipal())
	voter := userPrincipal()
	if _, err := svc.CastVote(ctx, review.ID, voter, domain.VoteUp); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	for _, value := range []int{0, 2, -2, 100} {
		if _, err := svc.CastVote(ctx, review.ID, voter, value); !errors.Is(err, ErrInvalidVoteValue) {
			t.Fatalf("value %d: expected ErrInvalidVoteValue, got %v", value, err)
		}
	}
	// Value is checked before the review is looked up.
	if _, err := svc.CastVote(ctx, uuid.New(), voter, 0); !errors.Is(err, ErrInvalidVoteValue) {
		t.Fatalf("expected ErrInvalidVoteValue for unknown review, got %v", err)
	}

	view, err := svc.GetReview(ctx, review.ID, voter)
	if err != nil {
		t.Fatalf("GetReview: %v", err)
	}
	assertCounts(t, view, 1, 0)
	if view.MyVote == nil || *view.MyVote != domain.VoteUp {
		t.Fatalf("expected caller vote to stay +1, got %v", view.MyVote)
	}
}

func TestReviewService_CastVote_SameValueTwiceKeepsCounts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewReviewService(store, nil, ReviewServiceConfig{})

	review := mustCreate(t, svc, userPrincipal())
	voter := userPrincipal()
	for i := 0; i < 2; i++ {
		view, err := svc.CastVote(ctx, review.ID, voter, domain.VoteDown)
		if err != nil {
			t.Fatalf("CastVote #%d: %v", i+1, err)
		}
		assertCounts(t, view, 0, 1)
	}
	assertLedgerMatches(t, store, review.ID, 1)
}

func TestReviewService_CastVote_RejectsAnonymous(t *testing.T) {
	svc := NewReviewService(memory.NewStore(), nil, ReviewServiceConfig{})
	review := mustCreate(t, svc, userPrincipal())

	if _, err := svc.CastVote(context.Background(), review.ID, domain.Principal{}, domain.VoteUp); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestReviewService_UpdateAndDelete_Permissions(t *testing.T) {
	ctx := context.Background()
	owner := userPrincipal()
	stranger := userPrincipal()
	admin := domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}
	update := ReviewUpdateInput{Title: "Changed", Text: "changed text", Rating: 1}

	t.Run("stranger is denied and review is unchanged", func(t *testing.T) {
		svc := NewReviewService(memory.NewStore(), nil, ReviewServiceConfig{})
		review := mustCreate(t, svc, owner)

		if _, err := svc.UpdateReview(ctx, review.ID, stranger, update); !errors.Is(err, ErrAccessDenied) {
			t.Fatalf("update: expected ErrAccessDenied, got %v", err)
		}
		if err := svc.DeleteReview(ctx, review.ID, stranger); !errors.Is(err, ErrAccessDenied) {
			t.Fatalf("delete: expected ErrAccessDenied, got %v", err)
		}
		got, err := svc.GetReview(ctx, review.ID, owner)
		if err != nil {
			t.Fatalf("GetReview: %v", err)
		}
		if got.Title != review.Title || got.Rating != review.Rating || !got.UpdatedAt.Equal(review.UpdatedAt) {
			t.Fatalf("review modified by denied caller: %+v", got)
		}
	})

	t.Run("owner may update and delete", func(t *testing.T) {
		svc := NewReviewService(memory.NewStore(), nil, ReviewServiceConfig{})
		review := mustCreate(t, svc, owner)

		got, err := svc.UpdateReview(ctx, review.ID, owner, update)
		if err != nil {
			t.Fatalf("UpdateReview: %v", err)
		}
		if got.Title != "Changed" || got.Rating != 1 {
			t.Fatalf("unexpected update result: %+v", got)
		}
		if !got.UpdatedAt.After(review.UpdatedAt) {
			t.Fatalf("expected updated_at to advance")
		}
		if err := svc.DeleteReview(ctx, review.ID, owner); err != nil {
			t.Fatalf("DeleteReview: %v", err)
		}
	})

	t.Run("admin may update and delete any review", func(t *testing.T) {
		svc := NewReviewService(memory.NewStore(), nil, ReviewServiceConfig{})
		review := mustCreate(t, svc, owner)

		if _, err := svc.UpdateReview(ctx, review.ID, admin, update); err != nil {
			t.Fatalf("UpdateReview: %v", err)
		}
		if err := svc.DeleteReview(ctx, review.ID, admin); err != nil {
			t.Fatalf("DeleteReview: %v", err)
		}
		if _, err := svc.GetReview(ctx, review.ID, admin); !errors.Is(err, ErrReviewNotFound) {
			t.Fatalf("expected ErrReviewNotFound, got %v", err)
		}
	})

	t.Run("missing review", func(t *testing.T) {
		svc := NewReviewService(memory.NewStore(), nil, ReviewServiceConfig{})
		if _, err := svc.UpdateReview(ctx, uuid.New(), admin, update); !errors.Is(err, ErrReviewNotFound) {
			t.Fatalf("update: expected ErrReviewNotFound, got %v", err)
		}
		if err := svc.DeleteReview(ctx, uuid.New(), admin); !errors.Is(err, ErrReviewNotFound) {
			t.Fatalf("delete: expected ErrReviewNotFound, got %v", err)
		}
	})
}

func TestReviewService_UpdateKeepsCounters(t *testing.T) {
	ctx := context.Background()
	svc := NewReviewService(memory.NewStore(), nil, ReviewServiceConfig{})
	owner := userPrincipal()
	review := mustCreate(t, svc, owner)
	if _, err := svc.CastVote(ctx, review.ID, userPrincipal(), domain.VoteUp); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	got, err := svc.UpdateReview(ctx, review.ID, owner, ReviewUpdateInput{Title: "New", Text: "t", Rating: 2})
	if err != nil {
		t.Fatalf("UpdateReview: %v", err)
	}
	assertCounts(t, got, 1, 0)
}

func TestReviewService_CreateReview_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewReviewService(memory.NewStore(), nil, ReviewServiceConfig{})

	if _, err := svc.CreateReview(ctx, userPrincipal(), ReviewInput{Title: "   ", Rating: 3}); !errors.Is(err, ErrReviewValidation) {
		t.Fatalf("blank title: expected ErrReviewValidation, got %v", err)
	}
	if _, err := svc.CreateReview(ctx, domain.Principal{}, ReviewInput{Title: "ok", Rating: 3}); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("anonymous: expected ErrAccessDenied, got %v", err)
	}
	_, err := svc.CreateReview(ctx, userPrincipal(), ReviewInput{
		Title:      "ok",
		Rating:     3,
		Attachment: &AttachmentUpload{ContentType: "image/png"},
	})
	if !errors.Is(err, ErrReviewValidation) {
		t.Fatalf("empty attachment: expected ErrReviewValidation, got %v", err)
	}
}

func TestReviewService_ListReviews(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	owner := domain.User{ID: uuid.New(), DisplayName: "Mali", Role: domain.RoleAdmin}
	store.SeedUser(owner)
	svc := NewReviewService(store, nil, ReviewServiceConfig{})

	first := mustCreate(t, svc, domain.Principal{ID: owner.ID, Role: owner.Role})
	second := mustCreate(t, svc, userPrincipal())
	viewer := userPrincipal()
	if _, err := svc.CastVote(ctx, first.ID, viewer, domain.VoteDown); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	views, err := svc.ListReviews(ctx, viewer)
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(views))
	}
	if views[0].ID != second.ID || views[1].ID != first.ID {
		t.Fatalf("expected newest first")
	}
	if views[0].MyVote != nil {
		t.Fatalf("expected no caller vote on second review")
	}
	if views[1].MyVote == nil || *views[1].MyVote != domain.VoteDown {
		t.Fatalf("expected caller vote -1 on first review, got %v", views[1].MyVote)
	}
	if views[1].Owner.DisplayName != "Mali" || views[1].Owner.Role != domain.RoleAdmin {
		t.Fatalf("unexpected owner summary: %+v", views[1].Owner)
	}
	if views[0].Owner.DisplayName != anonymousDisplayName || views[0].Owner.Role != domain.RoleUser {
		t.Fatalf("expected fallback owner summary, got %+v", views[0].Owner)
	}

	anonymous, err := svc.ListReviews(ctx, domain.Principal{})
	if err != nil {
		t.Fatalf("ListReviews anonymous: %v", err)
	}
	for _, view := range anonymous {
		if view.MyVote != nil {
			t.Fatalf("anonymous viewer should not see a vote")
		}
	}
}

func TestReviewService_ConcurrentVoters(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewReviewService(store, nil, ReviewServiceConfig{})
	review := mustCreate(t, svc, userPrincipal())

	const voters = 40
	var g errgroup.Group
	for i := 0; i < voters; i++ {
		value := domain.VoteUp
		if i%3 == 0 {
			value = domain.VoteDown
		}
		voter := userPrincipal()
		g.Go(func() error {
			// Each voter flips once to exercise retract-and-recast under contention.
			if _, err := svc.CastVote(ctx, review.ID, voter, -value); err != nil {
				return err
			}
			_, err := svc.CastVote(ctx, review.ID, voter, value)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent votes: %v", err)
	}

	view, err := svc.GetReview(ctx, review.ID, domain.Principal{})
	if err != nil {
		t.Fatalf("GetReview: %v", err)
	}
	down := (voters + 2) / 3
	assertCounts(t, view, voters-down, down)
	assertLedgerMatches(t, store, review.ID, voters)
}

func TestReviewService_CastVote_RetriesConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient conflicts", func(t *testing.T) {
		store := &conflictStore{Store: memory.NewStore(), failures: 2}
		svc := NewReviewService(store, nil, ReviewServiceConfig{VoteMaxAttempts: 3, VoteRetryBackoff: time.Millisecond})
		svc.sleep = func(context.Context, time.Duration) error { return nil }
		review := mustCreate(t, svc, userPrincipal())

		view, err := svc.CastVote(ctx, review.ID, userPrincipal(), domain.VoteUp)
		if err != nil {
			t.Fatalf("CastVote: %v", err)
		}
		assertCounts(t, view, 1, 0)
		if store.attempts() != 3 {
			t.Fatalf("expected 3 attempts, got %d", store.attempts())
		}
	})

	t.Run("gives up with a retryable error", func(t *testing.T) {
		store := &conflictStore{Store: memory.NewStore(), failures: 10}
		svc := NewReviewService(store, nil, ReviewServiceConfig{VoteMaxAttempts: 2})
		svc.sleep = func(context.Context, time.Duration) error { return nil }
		review := mustCreate(t, svc, userPrincipal())

		_, err := svc.CastVote(ctx, review.ID, userPrincipal(), domain.VoteUp)
		if !errors.Is(err, ErrVoteConflict) || !IsRetryable(err) {
			t.Fatalf("expected retryable ErrVoteConflict, got %v", err)
		}
		if KindOf(err) != KindConflictRetryable {
			t.Fatalf("unexpected kind %s", KindOf(err))
		}
		if store.attempts() != 2 {
			t.Fatalf("expected 2 attempts, got %d", store.attempts())
		}
		view, err := svc.GetReview(ctx, review.ID, domain.Principal{})
		if err != nil {
			t.Fatalf("GetReview: %v", err)
		}
		assertCounts(t, view, 0, 0)
		assertLedgerMatches(t, store.Store, review.ID, 0)
	})
}

func TestReviewService_RecountVotes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewReviewService(store, nil, ReviewServiceConfig{})
	owner := userPrincipal()
	admin := domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}
	review := mustCreate(t, svc, owner)
	if _, err := svc.CastVote(ctx, review.ID, userPrincipal(), domain.VoteUp); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	// Simulate drift introduced outside the service.
	if _, err := store.Reviews().SetCounters(ctx, review.ID, domain.VoteTally{Upvotes: 7, Downvotes: 3}); err != nil {
		t.Fatalf("SetCounters: %v", err)
	}

	if _, err := svc.RecountVotes(ctx, review.ID, owner); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for owner, got %v", err)
	}
	view, err := svc.RecountVotes(ctx, review.ID, admin)
	if err != nil {
		t.Fatalf("RecountVotes: %v", err)
	}
	assertCounts(t, view, 1, 0)
	if _, err := svc.RecountVotes(ctx, uuid.New(), admin); !errors.Is(err, ErrReviewNotFound) {
		t.Fatalf("expected ErrReviewNotFound, got %v", err)
	}
}

func TestReviewService_AttachmentOffload(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjectStorage()
	svc := NewReviewService(memory.NewStore(), objects, ReviewServiceConfig{Bucket: "reviews"})
	owner := userPrincipal()
	payload := []byte{0x89, 'P', 'N', 'G'}

	view, err := svc.CreateReview(ctx, owner, ReviewInput{
		Title:      "With photo",
		Rating:     5,
		Attachment: &AttachmentUpload{ContentType: "image/png", Data: payload},
	})
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	key := fmt.Sprintf("reviews/%s/attachment.png", view.ID)
	if _, ok := objects.get("reviews", key); !ok {
		t.Fatalf("expected object %s to be uploaded", key)
	}
	if view.Attachment == nil || !bytes.Equal(view.Attachment.Data, payload) || view.Attachment.ContentType != "image/png" {
		t.Fatalf("unexpected attachment: %+v", view.Attachment)
	}

	objects.failDownloads = true
	got, err := svc.GetReview(ctx, view.ID, owner)
	if err != nil {
		t.Fatalf("GetReview with failing storage: %v", err)
	}
	if got.Attachment != nil {
		t.Fatalf("expected attachment to be omitted when download fails")
	}

	if err := svc.DeleteReview(ctx, view.ID, owner); err != nil {
		t.Fatalf("DeleteReview: %v", err)
	}
	if _, ok := objects.get("reviews", key); ok {
		t.Fatalf("expected object %s to be removed", key)
	}
}

func TestReviewService_CreateReview_FailedInsertRemovesObject(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjectStorage()
	store := failingCreateStore{Store: memory.NewStore()}
	svc := NewReviewService(store, objects, ReviewServiceConfig{Bucket: "reviews"})

	_, err := svc.CreateReview(ctx, userPrincipal(), ReviewInput{
		Title:      "Lost",
		Rating:     2,
		Attachment: &AttachmentUpload{ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
	})
	if KindOf(err) != KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}

	uploads := objects.uploads()
	if len(uploads) != 1 {
		t.Fatalf("expected one upload, got %v", uploads)
	}
	if !strings.HasPrefix(uploads[0], "reviews/") || !strings.HasSuffix(uploads[0], "/attachment.png") {
		t.Fatalf("unexpected object key %q", uploads[0])
	}
	if _, ok := objects.get("reviews", uploads[0]); ok {
		t.Fatalf("expected object %s to be removed after the insert failed", uploads[0])
	}
	if objects.count() != 0 {
		t.Fatalf("expected empty bucket, got %d objects", objects.count())
	}
}

func TestReviewService_CreateReview_UploadFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjectStorage()
	objects.failUploads = true
	store := memory.NewStore()
	svc := NewReviewService(store, objects, ReviewServiceConfig{Bucket: "reviews"})

	_, err := svc.CreateReview(ctx, userPrincipal(), ReviewInput{
		Title:      "Unsaved",
		Rating:     4,
		Attachment: &AttachmentUpload{ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}},
	})
	if err == nil || KindOf(err) != KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}

	reviews, err := store.Reviews().List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(reviews) != 0 {
		t.Fatalf("expected no review rows, got %d", len(reviews))
	}
	if len(objects.uploads()) != 1 || objects.count() != 0 {
		t.Fatalf("expected one rejected upload and no stored objects")
	}
}

func TestReviewService_InlineAttachment(t *testing.T) {
	ctx := context.Background()
	svc := NewReviewService(memory.NewStore(), nil, ReviewServiceConfig{})
	payload := []byte("GIF89a")

	view, err := svc.CreateReview(ctx, userPrincipal(), ReviewInput{
		Title:      "Inline",
		Rating:     3,
		Attachment: &AttachmentUpload{ContentType: " IMAGE/GIF ", Data: payload},
	})
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	if view.Attachment == nil || view.Attachment.ContentType != "image/gif" || !bytes.Equal(view.Attachment.Data, payload) {
		t.Fatalf("unexpected attachment: %+v", view.Attachment)
	}
}

func TestCanMutate(t *testing.T) {
	ownerID := uuid.New()
	review := domain.Review{ID: uuid.New(), OwnerID: ownerID}

	cases := []struct {
		name      string
		principal domain.Principal
		action    ReviewAction
		want      bool
	}{
		{"owner update", domain.Principal{ID: ownerID, Role: domain.RoleUser}, ActionUpdate, true},
		{"owner delete", domain.Principal{ID: ownerID, Role: domain.RoleUser}, ActionDelete, true},
		{"admin update", domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}, ActionUpdate, true},
		{"admin delete", domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin}, ActionDelete, true},
		{"stranger update", domain.Principal{ID: uuid.New(), Role: domain.RoleUser}, ActionUpdate, false},
		{"stranger delete", domain.Principal{ID: uuid.New(), Role: domain.RoleUser}, ActionDelete, false},
		{"unknown role", domain.Principal{ID: uuid.New(), Role: "MODERATOR"}, ActionDelete, false},
		{"anonymous admin", domain.Principal{Role: domain.RoleAdmin}, ActionUpdate, false},
		{"unknown action", domain.Principal{ID: ownerID, Role: domain.RoleUser}, ReviewAction("publish"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanMutate(tc.principal, review, tc.action); got != tc.want {
				t.Fatalf("CanMutate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRetryBackoff(t *testing.T) {
	base := 20 * time.Millisecond
	for attempt := 1; attempt <= 3; attempt++ {
		want := base << (attempt - 1)
		got := retryBackoff(base, attempt)
		if got < want*3/4 || got > want*5/4 {
			t.Fatalf("attempt %d: backoff %s outside [%s, %s]", attempt, got, want*3/4, want*5/4)
		}
	}
}

func userPrincipal() domain.Principal {
	return domain.Principal{ID: uuid.New(), Role: domain.RoleUser}
}

func mustCreate(t *testing.T, svc *ReviewService, owner domain.Principal) *domain.ReviewView {
	t.Helper()
	view, err := svc.CreateReview(context.Background(), owner, ReviewInput{Title: "Review", Text: "text", Rating: 4})
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	return view
}

func assertCounts(t *testing.T, view *domain.ReviewView, up, down int) {
	t.Helper()
	if view.Upvotes != up || view.Downvotes != down {
		t.Fatalf("expected %d/%d, got %d/%d", up, down, view.Upvotes, view.Downvotes)
	}
}

// assertLedgerMatches checks the stored counters against the ledger tally.
func assertLedgerMatches(t *testing.T, store *memory.Store, reviewID uuid.UUID, entries int) {
	t.Helper()
	ctx := context.Background()
	tally, err := store.Votes().TallyByReview(ctx, reviewID)
	if err != nil {
		t.Fatalf("TallyByReview: %v", err)
	}
	if got := tally.Upvotes + tally.Downvotes; got != entries {
		t.Fatalf("expected %d ledger entries, got %d", entries, got)
	}
	review, err := store.Reviews().GetByID(ctx, reviewID)
	if errors.Is(err, ports.ErrNotFound) {
		return
	}
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if review.Upvotes != tally.Upvotes || review.Downvotes != tally.Downvotes {
		t.Fatalf("counters %d/%d drifted from ledger %d/%d", review.Upvotes, review.Downvotes, tally.Upvotes, tally.Downvotes)
	}
}

// conflictStore fails the first `failures` vote inserts with a uniqueness violation.
type conflictStore struct {
	*memory.Store

	mu       sync.Mutex
	failures int
	calls    int
}

func (s *conflictStore) InTx(ctx context.Context, fn func(tx ports.Repositories) error) error {
	return s.Store.InTx(ctx, func(tx ports.Repositories) error {
		return fn(conflictRepos{Repositories: tx, store: s})
	})
}

func (s *conflictStore) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *conflictStore) nextInsertFails() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.calls <= s.failures
}

type conflictRepos struct {
	ports.Repositories
	store *conflictStore
}

func (r conflictRepos) Votes() ports.VoteRepository {
	return conflictVotes{VoteRepository: r.Repositories.Votes(), store: r.store}
}

type conflictVotes struct {
	ports.VoteRepository
	store *conflictStore
}

func (v conflictVotes) Insert(ctx context.Context, vote *domain.Vote) (*domain.Vote, error) {
	if v.store.nextInsertFails() {
		return nil, fmt.Errorf("%w: review_vote_voter_review_key", ports.ErrDuplicate)
	}
	return v.VoteRepository.Insert(ctx, vote)
}

type fakeObjectStorage struct {
	mu            sync.Mutex
	objects       map[string][]byte
	uploaded      []string
	failUploads   bool
	failDownloads bool
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: make(map[string][]byte)}
}

func (s *fakeObjectStorage) Upload(_ context.Context, bucket, objectName, _ string, reader io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploaded = append(s.uploaded, objectName)
	if s.failUploads {
		return "", errors.New("bucket unreachable")
	}
	s.objects[bucket+"/"+objectName] = data
	return objectName, nil
}

func (s *fakeObjectStorage) Download(_ context.Context, bucket, objectName string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDownloads {
		return nil, errors.New("storage offline")
	}
	data, ok := s.objects[bucket+"/"+objectName]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

func (s *fakeObjectStorage) Remove(_ context.Context, bucket, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+objectName)
	return nil
}

func (s *fakeObjectStorage) get(bucket, objectName string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+objectName]
	return data, ok
}

func (s *fakeObjectStorage) uploads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploaded...)
}

func (s *fakeObjectStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// failingCreateStore rejects every review insert.
type failingCreateStore struct {
	*memory.Store
}

func (s failingCreateStore) Reviews() ports.ReviewRepository {
	return failingCreateReviews{ReviewRepository: s.Store.Reviews()}
}

type failingCreateReviews struct {
	ports.ReviewRepository
}

func (failingCreateReviews) Create(context.Context, *domain.Review) (*domain.Review, error) {
	return nil, errors.New("connection reset by peer")
}
