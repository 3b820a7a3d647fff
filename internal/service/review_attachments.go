package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/google/uuid"

	"github.com/njprem/ReviewHub_BackEnd/internal/domain"
)

type AttachmentUpload struct {
	ContentType string
	Data        []byte
}

// storeAttachment puts the upload on the review, either inline or as an
// object in the configured bucket. The returned key must be removed if the
// review row is never written.
func (s *ReviewService) storeAttachment(ctx context.Context, review *domain.Review, upload *AttachmentUpload) (string, error) {
	if upload == nil {
		return "", nil
	}
	contentType := strings.ToLower(strings.TrimSpace(upload.ContentType))
	review.PhotoContentType = &contentType

	if s.storage == nil {
		review.PhotoData = upload.Data
		return "", nil
	}

	objectKey := fmt.Sprintf("reviews/%s/attachment%s", review.ID, extensionFromContentType(contentType))
	if _, err := s.storage.Upload(ctx, s.bucket, objectKey, contentType, bytes.NewReader(upload.Data), int64(len(upload.Data))); err != nil {
		return "", fmt.Errorf("upload attachment: %w", err)
	}
	review.PhotoObjectKey = &objectKey
	return objectKey, nil
}

func (s *ReviewService) loadAttachment(ctx context.Context, review domain.Review) *domain.Attachment {
	if !review.HasAttachment() {
		return nil
	}
	attachment := &domain.Attachment{ContentType: *review.PhotoContentType}
	if len(review.PhotoData) > 0 {
		attachment.Data = review.PhotoData
		return attachment
	}
	if s.storage == nil {
		return nil
	}
	data, err := s.storage.Download(ctx, s.bucket, *review.PhotoObjectKey)
	if err != nil {
		s.logger.WarnContext(ctx, "attachment unavailable",
			slog.String("review_id", review.ID.String()),
			slog.String("object_key", *review.PhotoObjectKey),
			slog.String("error", err.Error()))
		return nil
	}
	attachment.Data = data
	return attachment
}

// removeObject is best-effort: the row is already gone or was never written.
func (s *ReviewService) removeObject(ctx context.Context, reviewID uuid.UUID, objectKey string) {
	if s.storage == nil || objectKey == "" {
		return
	}
	if err := s.storage.Remove(ctx, s.bucket, objectKey); err != nil {
		s.logger.WarnContext(ctx, "orphaned attachment object",
			slog.String("review_id", reviewID.String()),
			slog.String("object_key", objectKey),
			slog.String("error", err.Error()))
	}
}

func extensionFromContentType(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
