package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
	"github.com/njprem/ReviewHub_BackEnd/internal/service"
	"github.com/njprem/ReviewHub_BackEnd/internal/util"
)

type ReviewHandler struct {
	reviews            *service.ReviewService
	maxAttachmentBytes int64
}

type ReviewRequest struct {
	Title            string `json:"title" validate:"required,max=255"`
	Text             string `json:"text" validate:"required"`
	Rating           int    `json:"rating" validate:"gte=1,lte=5"`
	PhotoBase64      string `json:"photoBase64" validate:"omitempty,base64"`
	PhotoContentType string `json:"photoContentType" validate:"required_with=PhotoBase64,omitempty,oneof=image/jpeg image/png image/webp image/gif"`
}

type VoteRequest struct {
	Value *int `json:"value" validate:"required"`
}

type AttachmentResponse struct {
	ContentType string `json:"contentType"`
	DataBase64  string `json:"dataBase64"`
}

type OwnerResponse struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
}

type ReviewResponse struct {
	ID         uuid.UUID           `json:"id"`
	Title      string              `json:"title"`
	Text       string              `json:"text"`
	Rating     int                 `json:"rating"`
	Upvotes    int                 `json:"upvotes"`
	Downvotes  int                 `json:"downvotes"`
	Attachment *AttachmentResponse `json:"attachment,omitempty"`
	CreatedAt  string              `json:"createdAt"`
	UpdatedAt  string              `json:"updatedAt"`
	MyVote     *int                `json:"myVote,omitempty"`
	Owner      OwnerResponse       `json:"owner"`
}

func RegisterReviews(e *echo.Echo, verifier TokenVerifier, reviews *service.ReviewService, maxAttachmentBytes int64) {
	handler := &ReviewHandler{
		reviews:            reviews,
		maxAttachmentBytes: maxAttachmentBytes,
	}

	optional := OptionalAuth(verifier)
	required := RequireAuth(verifier)

	g := e.Group("/api/reviews")
	g.GET("", handler.listReviews, optional)
	g.GET("/:id", handler.getReview, optional)
	g.POST("", handler.createReview, required)
	g.PUT("/:id", handler.updateReview, required)
	g.DELETE("/:id", handler.deleteReview, required)
	g.POST("/:id/vote", handler.castVote, required)
	g.POST("/:id/recount", handler.recountVotes, required, RequireAdmin())
}

// listReviews handles GET /api/reviews
func (h *ReviewHandler) listReviews(c echo.Context) error {
	viewer, _ := CurrentPrincipal(c)
	views, err := h.reviews.ListReviews(c.Request().Context(), viewer)
	if err != nil {
		return writeServiceError(c, err, "unable to list reviews")
	}
	resp := make([]ReviewResponse, 0, len(views))
	for _, view := range views {
		resp = append(resp, toReviewResponse(view))
	}
	return c.JSON(http.StatusOK, resp)
}

// getReview handles GET /api/reviews/{id}
func (h *ReviewHandler) getReview(c echo.Context) error {
	id, ok := parseReviewID(c)
	if !ok {
		return writeValidationError(c, "invalid review id")
	}
	viewer, _ := CurrentPrincipal(c)
	view, err := h.reviews.GetReview(c.Request().Context(), id, viewer)
	if err != nil {
		return writeServiceError(c, err, "unable to load review")
	}
	return c.JSON(http.StatusOK, toReviewResponse(*view))
}

// createReview handles POST /api/reviews
func (h *ReviewHandler) createReview(c echo.Context) error {
	principal, ok := CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}

	var req ReviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeValidationError(c, err.Error())
	}
	attachment, err := h.decodeAttachment(req)
	if err != nil {
		return writeValidationError(c, err.Error())
	}

	view, err := h.reviews.CreateReview(c.Request().Context(), principal, service.ReviewInput{
		Title:      req.Title,
		Text:       req.Text,
		Rating:     req.Rating,
		Attachment: attachment,
	})
	if err != nil {
		return writeServiceError(c, err, "unable to create review")
	}
	return c.JSON(http.StatusCreated, toReviewResponse(*view))
}

// updateReview handles PUT /api/reviews/{id}. Attachments are fixed at creation.
func (h *ReviewHandler) updateReview(c echo.Context) error {
	principal, ok := CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	id, ok := parseReviewID(c)
	if !ok {
		return writeValidationError(c, "invalid review id")
	}

	var req ReviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeValidationError(c, err.Error())
	}

	view, err := h.reviews.UpdateReview(c.Request().Context(), id, principal, service.ReviewUpdateInput{
		Title:  req.Title,
		Text:   req.Text,
		Rating: req.Rating,
	})
	if err != nil {
		return writeServiceError(c, err, "unable to update review")
	}
	return c.JSON(http.StatusOK, toReviewResponse(*view))
}

// deleteReview handles DELETE /api/reviews/{id}
func (h *ReviewHandler) deleteReview(c echo.Context) error {
	principal, ok := CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	id, ok := parseReviewID(c)
	if !ok {
		return writeValidationError(c, "invalid review id")
	}
	if err := h.reviews.DeleteReview(c.Request().Context(), id, principal); err != nil {
		return writeServiceError(c, err, "unable to delete review")
	}
	return c.NoContent(http.StatusNoContent)
}

// castVote handles POST /api/reviews/{id}/vote
func (h *ReviewHandler) castVote(c echo.Context) error {
	principal, ok := CurrentPrincipal(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, util.Error("authentication required"))
	}
	id, ok := parseReviewID(c)
	if !ok {
		return writeValidationError(c, "invalid review id")
	}

	var req VoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeValidationError(c, err.Error())
	}

	view, err := h.reviews.CastVote(c.Request().Context(), id, principal, *req.Value)
	if err != nil {
		return writeServiceError(c, err, "unable to record vote")
	}
	return c.JSON(http.StatusOK, toReviewResponse(*view))
}

// recountVotes handles POST /api/reviews/{id}/recount
func (h *ReviewHandler) recountVotes(c echo.Context) error {
	principal, _ := CurrentPrincipal(c)
	id, ok := parseReviewID(c)
	if !ok {
		return writeValidationError(c, "invalid review id")
	}
	view, err := h.reviews.RecountVotes(c.Request().Context(), id, principal)
	if err != nil {
		return writeServiceError(c, err, "unable to recount votes")
	}
	return c.JSON(http.StatusOK, toReviewResponse(*view))
}

func (h *ReviewHandler) decodeAttachment(req ReviewRequest) (*service.AttachmentUpload, error) {
	if strings.TrimSpace(req.PhotoBase64) == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(req.PhotoBase64))
	if err != nil {
		return nil, errors.New("photoBase64 must be base64 encoded")
	}
	if h.maxAttachmentBytes > 0 && int64(len(data)) > h.maxAttachmentBytes {
		return nil, fmt.Errorf("photo exceeds %d bytes", h.maxAttachmentBytes)
	}
	return &service.AttachmentUpload{ContentType: req.PhotoContentType, Data: data}, nil
}

func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errors.New("invalid JSON payload")
	}
	return c.Validate(dst)
}

func parseReviewID(c echo.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeValidationError(c echo.Context, message string) error {
	c.Set(errorKindLogKey, string(service.KindValidation))
	return c.JSON(http.StatusBadRequest, util.ErrorWithCode(message, string(service.KindValidation)))
}

// writeServiceError maps a service error kind to its status. The cause of an
// internal error is handed to the request logger and never sent to the client.
func writeServiceError(c echo.Context, err error, fallback string) error {
	kind := service.KindOf(err)
	c.Set(errorKindLogKey, string(kind))
	if service.IsRetryable(err) {
		c.Response().Header().Set("Retry-After", "1")
	}

	status := http.StatusInternalServerError
	message := fallback
	switch kind {
	case service.KindInvalidVoteValue, service.KindValidation:
		status = http.StatusBadRequest
		message = err.Error()
	case service.KindReviewNotFound:
		status = http.StatusNotFound
		message = service.ErrReviewNotFound.Error()
	case service.KindSelfVoteForbidden:
		status = http.StatusForbidden
		message = service.ErrSelfVoteForbidden.Error()
	case service.KindAccessDenied:
		status = http.StatusForbidden
		message = service.ErrAccessDenied.Error()
	case service.KindConflictRetryable:
		status = http.StatusConflict
		message = service.ErrVoteConflict.Error()
	default:
		c.Set(errorCauseLogKey, fmt.Sprintf("%s: %v", fallback, err))
	}
	return c.JSON(status, util.ErrorWithCode(message, string(kind)))
}

func toReviewResponse(view domain.ReviewView) ReviewResponse {
	resp := ReviewResponse{
		ID:        view.ID,
		Title:     view.Title,
		Text:      view.Text,
		Rating:    view.Rating,
		Upvotes:   view.Upvotes,
		Downvotes: view.Downvotes,
		CreatedAt: view.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt: view.UpdatedAt.UTC().Format(timeLayout),
		MyVote:    view.MyVote,
		Owner: OwnerResponse{
			ID:          view.Owner.ID,
			DisplayName: view.Owner.DisplayName,
			Role:        string(view.Owner.Role),
		},
	}
	if view.Attachment != nil {
		resp.Attachment = &AttachmentResponse{
			ContentType: view.Attachment.ContentType,
			DataBase64:  base64.StdEncoding.EncodeToString(view.Attachment.Data),
		}
	}
	return resp
}

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"
