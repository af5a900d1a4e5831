package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.io/infrasutra/provmail/internal/notify"
	"github.io/infrasutra/provmail/internal/store"
)

// ErrContentUnavailable marks a cache miss on a deferred-content action.
var ErrContentUnavailable = errors.New("content unavailable")

// Fetcher is the slice of the provider client the handler needs.
type Fetcher interface {
	AttachmentBytes(ctx context.Context, token, mailID, attachmentID string) ([]byte, error)
}

// Cache is the slice of the store the handler reads from.
type Cache interface {
	GetBody(ctx context.Context, userID int64, mailID string) (string, error)
	GetAttachments(ctx context.Context, userID int64, mailID string) ([]store.CachedAttachment, error)
}

// Handler serves deferred content when a user presses an inline action.
type Handler struct {
	cache   Cache
	fetcher Fetcher
	channel notify.Channel
	logger  *slog.Logger
}

func New(cache Cache, fetcher Fetcher, channel notify.Channel, logger *slog.Logger) *Handler {
	return &Handler{cache: cache, fetcher: fetcher, channel: channel, logger: logger}
}

// HandleCallback routes one callback invocation. The callback is acknowledged
// no matter how the action itself went, so the channel UI never shows a stuck
// pending indicator.
func (h *Handler) HandleCallback(ctx context.Context, callbackID string, userID int64, data string) {
	defer func() {
		if err := h.channel.AckCallback(ctx, callbackID); err != nil {
			h.logger.Warn("ack callback", "user", userID, "error", err)
		}
	}()

	switch {
	case strings.HasPrefix(data, notify.ShowFullPrefix):
		h.showFull(ctx, userID, strings.TrimPrefix(data, notify.ShowFullPrefix))
	case strings.HasPrefix(data, notify.ShowAttachmentsPrefix):
		h.showAttachments(ctx, userID, strings.TrimPrefix(data, notify.ShowAttachmentsPrefix))
	default:
		h.logger.Warn("unknown callback payload", "user", userID, "data", data)
	}
}

func (h *Handler) showFull(ctx context.Context, userID int64, mailID string) {
	body, err := h.cachedBody(ctx, userID, mailID)
	if err != nil {
		if !errors.Is(err, ErrContentUnavailable) {
			h.logger.Error("load cached body", "user", userID, "mail", mailID, "error", err)
		}
		h.reply(ctx, userID, "⚠️ This message is no longer available.")
		return
	}

	chunks := notify.ChunkText("📄 Full message:\n\n"+body, notify.MaxMessageLength)
	for _, chunk := range chunks {
		if err := h.channel.SendText(ctx, userID, chunk, nil); err != nil {
			h.logger.Warn("send full body", "user", userID, "mail", mailID, "error", err)
			return
		}
	}
}

func (h *Handler) showAttachments(ctx context.Context, userID int64, mailID string) {
	attachments, err := h.cachedAttachments(ctx, userID, mailID)
	if err != nil {
		if !errors.Is(err, ErrContentUnavailable) {
			h.logger.Error("load cached attachments", "user", userID, "mail", mailID, "error", err)
		}
		h.reply(ctx, userID, "📎 Attachments are no longer available.")
		return
	}

	for _, attachment := range attachments {
		if err := h.deliver(ctx, userID, mailID, attachment); err != nil {
			h.logger.Warn("deliver attachment",
				"user", userID,
				"mail", mailID,
				"attachment", attachment.AttachmentID,
				"error", err)
			h.reply(ctx, userID, fmt.Sprintf("⚠️ Could not deliver %s.", attachment.Filename))
		}
	}
}

func (h *Handler) cachedBody(ctx context.Context, userID int64, mailID string) (string, error) {
	body, err := h.cache.GetBody(ctx, userID, mailID)
	if errors.Is(err, store.ErrNotCached) {
		return "", ErrContentUnavailable
	}
	return body, err
}

func (h *Handler) cachedAttachments(ctx context.Context, userID int64, mailID string) ([]store.CachedAttachment, error) {
	attachments, err := h.cache.GetAttachments(ctx, userID, mailID)
	if err != nil {
		return nil, err
	}
	if len(attachments) == 0 {
		return nil, ErrContentUnavailable
	}
	return attachments, nil
}

func (h *Handler) deliver(ctx context.Context, userID int64, mailID string, attachment store.CachedAttachment) error {
	data, err := h.fetcher.AttachmentBytes(ctx, attachment.Token, mailID, attachment.AttachmentID)
	if err != nil {
		return fmt.Errorf("fetch attachment bytes: %w", err)
	}

	filename := attachment.Filename
	if filename == "" {
		filename = "attachment"
	}
	switch {
	case strings.HasPrefix(attachment.ContentType, "image/"):
		err = h.channel.SendPhoto(ctx, userID, filename, data)
	case strings.HasPrefix(attachment.ContentType, "video/"):
		err = h.channel.SendVideo(ctx, userID, filename, data)
	default:
		err = h.channel.SendDocument(ctx, userID, filename, data)
	}
	if err != nil {
		return fmt.Errorf("send attachment: %w", err)
	}
	return nil
}

func (h *Handler) reply(ctx context.Context, userID int64, text string) {
	if err := h.channel.SendText(ctx, userID, text, nil); err != nil {
		h.logger.Warn("send reply", "user", userID, "error", err)
	}
}
