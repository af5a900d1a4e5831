package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	displayTimeLayout = "02.01.2006 15:04:05"

	// Arrival times come in as UTC and are displayed with a fixed +3h shift,
	// deliberately ignoring DST.
	displayOffset = 3 * time.Hour

	// ShowFullPrefix and ShowAttachmentsPrefix form the callback payloads
	// carried by inline actions: "<prefix><mailId>".
	ShowFullPrefix        = "show_full:"
	ShowAttachmentsPrefix = "show_attachments:"
)

// DisplayTime renders an arrival timestamp for the chat.
func DisplayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Add(displayOffset).Format(displayTimeLayout)
}

// NewMail is one detected mail item handed over by the change detector.
type NewMail struct {
	MailID      string
	From        string
	Subject     string
	ReceivedAt  time.Time
	Body        string
	Truncated   bool
	Attachments int
}

// Dispatcher formats new-mail events and sends exactly one channel message
// per event.
type Dispatcher struct {
	channel Channel
}

func NewDispatcher(channel Channel) *Dispatcher {
	return &Dispatcher{channel: channel}
}

func (d *Dispatcher) Notify(ctx context.Context, userID int64, mail NewMail) error {
	if err := d.channel.SendText(ctx, userID, Render(mail), Actions(mail)); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// Render builds the notification text. Truncated bodies are replaced by a
// notice; the full text stays retrievable through the show-full action.
func Render(mail NewMail) string {
	subject := mail.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	var b strings.Builder
	b.WriteString("📬 New mail!\n")
	b.WriteString("⏰ Received – " + DisplayTime(mail.ReceivedAt) + "\n\n")
	b.WriteString("From: " + mail.From + "\n")
	b.WriteString("Subject: " + subject + "\n\n")
	if mail.Truncated {
		b.WriteString("ℹ️ Message is too long to display inline.")
	} else if mail.Body == "" {
		b.WriteString("📎 (attachments only)")
	} else {
		b.WriteString(mail.Body)
	}
	return b.String()
}

// Actions builds the inline buttons for a notification.
func Actions(mail NewMail) []Action {
	var actions []Action
	if mail.Attachments > 0 {
		actions = append(actions, Action{
			Label: fmt.Sprintf("📎 Show attachments (%d)", mail.Attachments),
			Data:  ShowAttachmentsPrefix + mail.MailID,
		})
	}
	if mail.Truncated {
		actions = append(actions, Action{
			Label: "📄 Show full message",
			Data:  ShowFullPrefix + mail.MailID,
		})
	}
	return actions
}
