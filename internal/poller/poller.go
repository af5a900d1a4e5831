package poller

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.io/infrasutra/provmail/internal/events"
	"github.io/infrasutra/provmail/internal/mailtm"
	"github.io/infrasutra/provmail/internal/notify"
	"github.io/infrasutra/provmail/internal/store"
)

// MailAPI is the slice of the provider client the poll loop needs.
type MailAPI interface {
	Messages(ctx context.Context, token string) ([]mailtm.Message, error)
	Message(ctx context.Context, token, id string) (mailtm.Message, error)
}

// State is the slice of the store the poll loop needs.
type State interface {
	ListSessions(ctx context.Context) ([]store.Session, error)
	MarkSeen(ctx context.Context, userID int64, mailID string) (bool, error)
	CacheBody(ctx context.Context, userID int64, mailID, body string, now time.Time) error
	PutAttachments(ctx context.Context, userID int64, mailID, token string, attachments []store.CachedAttachment, now time.Time) error
	Sweep(ctx context.Context, olderThan time.Time) error
}

type Notifier interface {
	Notify(ctx context.Context, userID int64, mail notify.NewMail) error
}

// Poller drives the periodic mailbox checks. Failures are isolated per user
// per tick; nothing here ever terminates the loop.
type Poller struct {
	api       MailAPI
	state     State
	notifier  Notifier
	hub       *events.Hub
	logger    *slog.Logger
	interval  time.Duration
	bodyLimit int
	cacheTTL  time.Duration
}

func New(api MailAPI, state State, notifier Notifier, hub *events.Hub, logger *slog.Logger, interval time.Duration, bodyLimit int, cacheTTL time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if bodyLimit <= 0 {
		bodyLimit = 1500
	}
	return &Poller{
		api:       api,
		state:     state,
		notifier:  notifier,
		hub:       hub,
		logger:    logger,
		interval:  interval,
		bodyLimit: bodyLimit,
		cacheTTL:  cacheTTL,
	}
}

// Run polls until the context is cancelled. The first tick fires immediately.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle over a snapshot of the current sessions.
func (p *Poller) Tick(ctx context.Context) {
	sessions, err := p.state.ListSessions(ctx)
	if err != nil {
		p.logger.Error("list sessions", "error", err)
		return
	}
	for _, session := range sessions {
		p.checkSession(ctx, session)
	}

	if p.cacheTTL > 0 {
		if err := p.state.Sweep(ctx, time.Now().Add(-p.cacheTTL)); err != nil {
			p.logger.Error("sweep caches", "error", err)
		}
	}
}

func (p *Poller) checkSession(ctx context.Context, session store.Session) {
	summaries, err := p.api.Messages(ctx, session.Token)
	if err != nil {
		p.logger.Warn("list mailbox", "user", session.UserID, "error", err)
		return
	}
	for _, summary := range summaries {
		newlySeen, err := p.state.MarkSeen(ctx, session.UserID, summary.ID)
		if err != nil {
			p.logger.Error("mark seen", "user", session.UserID, "mail", summary.ID, "error", err)
			continue
		}
		if !newlySeen {
			continue
		}
		p.handleNewMail(ctx, session, summary.ID)
	}
}

func (p *Poller) handleNewMail(ctx context.Context, session store.Session, mailID string) {
	full, err := p.api.Message(ctx, session.Token, mailID)
	if err != nil {
		p.logger.Warn("fetch mail", "user", session.UserID, "mail", mailID, "error", err)
		return
	}
	now := time.Now()

	if len(full.Attachments) > 0 {
		cached := make([]store.CachedAttachment, 0, len(full.Attachments))
		for _, attachment := range full.Attachments {
			cached = append(cached, store.CachedAttachment{
				AttachmentID: attachment.ID,
				Filename:     attachment.Filename,
				ContentType:  attachment.ContentType,
			})
		}
		if err := p.state.PutAttachments(ctx, session.UserID, mailID, session.Token, cached, now); err != nil {
			p.logger.Error("cache attachments", "user", session.UserID, "mail", mailID, "error", err)
		}
	}

	// The limit counts characters, not bytes.
	truncated := utf8.RuneCountInString(full.Text) > p.bodyLimit
	if truncated {
		if err := p.state.CacheBody(ctx, session.UserID, mailID, full.Text, now); err != nil {
			p.logger.Error("cache body", "user", session.UserID, "mail", mailID, "error", err)
		}
	}

	mail := notify.NewMail{
		MailID:      mailID,
		From:        full.From.Address,
		Subject:     full.Subject,
		ReceivedAt:  full.CreatedAt,
		Body:        full.Text,
		Truncated:   truncated,
		Attachments: len(full.Attachments),
	}
	if err := p.notifier.Notify(ctx, session.UserID, mail); err != nil {
		p.logger.Warn("dispatch notification", "user", session.UserID, "mail", mailID, "error", err)
	}

	if p.hub != nil {
		p.hub.Publish(events.Event{
			ID:          uuid.NewString(),
			UserID:      session.UserID,
			MailID:      mailID,
			From:        full.From.Address,
			Subject:     full.Subject,
			Truncated:   truncated,
			Attachments: len(full.Attachments),
			DetectedAt:  now,
		})
	}
}
