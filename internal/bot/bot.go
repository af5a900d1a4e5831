package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.io/infrasutra/provmail/internal/actions"
	"github.io/infrasutra/provmail/internal/mailtm"
	"github.io/infrasutra/provmail/internal/notify"
	"github.io/infrasutra/provmail/internal/provision"
	"github.io/infrasutra/provmail/internal/store"
)

const (
	newMailboxButton = "📧 New mailbox"
	checkInboxButton = "📬 Check inbox"
)

const welcomeText = "👋 Hi!\n\n" +
	"✨ provmail creates disposable mailboxes for you.\n\n" +
	"📩 A temporary address is handy for:\n" +
	"— signing up without spam risk 🛡️\n" +
	"— testing services ⚙️\n" +
	"— keeping your real inbox private 🔒\n\n" +
	"⚡ Use the buttons below to get started."

const changelogText = "📢 What's new\n" +
	"— 🕒 fixed received-time display\n" +
	"— 📎 attachment delivery (images, documents, video)\n" +
	"— 📄 \"Show full message\" button for long mail\n" +
	"— 🛡 more reliable inbox polling\n" +
	"— 🗒️ note: new mail can take 1–2 minutes to arrive"

// InboxAPI is the slice of the provider client the inbox command needs.
type InboxAPI interface {
	Messages(ctx context.Context, token string) ([]mailtm.Message, error)
}

// Bot is the Telegram transport adapter. It consumes inbound updates and
// implements notify.Channel for the outbound side.
type Bot struct {
	api    *tgbotapi.BotAPI
	store  *store.Store
	prov   *provision.Provisioner
	mail   InboxAPI
	logger *slog.Logger
}

func New(api *tgbotapi.BotAPI, st *store.Store, prov *provision.Provisioner, mail InboxAPI, logger *slog.Logger) *Bot {
	return &Bot{api: api, store: st, prov: prov, mail: mail, logger: logger}
}

// Run consumes updates until the context is cancelled. Callback invocations
// are routed to the action handler.
func (b *Bot) Run(ctx context.Context, handler *actions.Handler) {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)

	b.logger.Info("bot listening", "username", b.api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update, handler)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update, handler *actions.Handler) {
	if update.CallbackQuery != nil {
		handler.HandleCallback(ctx, update.CallbackQuery.ID, update.CallbackQuery.From.ID, update.CallbackQuery.Data)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}

	message := update.Message
	switch {
	case message.IsCommand() && message.Command() == "start":
		b.handleStart(ctx, message)
	case message.Text == newMailboxButton:
		b.handleNewMailbox(ctx, message)
	case message.Text == checkInboxButton:
		b.handleCheckInbox(ctx, message)
	}
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) {
	reply := tgbotapi.NewMessage(message.Chat.ID, welcomeText)
	reply.ReplyMarkup = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(newMailboxButton)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(checkInboxButton)),
	)
	if _, err := b.api.Send(reply); err != nil {
		b.logger.Warn("send welcome", "user", message.From.ID, "error", err)
		return
	}

	first, err := b.store.MarkUserKnown(ctx, message.From.ID, time.Now())
	if err != nil {
		b.logger.Error("mark user known", "user", message.From.ID, "error", err)
		return
	}
	if first {
		b.replyText(message.Chat.ID, changelogText)
	}
}

func (b *Bot) handleNewMailbox(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	session, err := b.prov.Provision(ctx, userID)
	if err != nil {
		b.logger.Error("provision mailbox", "user", userID, "error", err)
		b.replyText(message.Chat.ID, "⚠️ Could not create a mailbox right now. Please try again in a moment.")
		return
	}
	if err := b.store.ReplaceSession(ctx, session); err != nil {
		b.logger.Error("install session", "user", userID, "error", err)
		b.replyText(message.Chat.ID, "⚠️ Could not create a mailbox right now. Please try again in a moment.")
		return
	}

	reply := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("📧 Your temporary address: `%s`", session.Address))
	reply.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(reply); err != nil {
		b.logger.Warn("send address", "user", userID, "error", err)
	}
}

func (b *Bot) handleCheckInbox(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	session, err := b.store.GetSession(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNoSession) {
			b.replyText(message.Chat.ID, "⚠️ Create a mailbox first with '"+newMailboxButton+"'.")
			return
		}
		b.logger.Error("get session", "user", userID, "error", err)
		b.replyText(message.Chat.ID, "⚠️ Something went wrong. Please try again.")
		return
	}

	messages, err := b.mail.Messages(ctx, session.Token)
	if err != nil {
		b.logger.Warn("list mailbox", "user", userID, "error", err)
		b.replyText(message.Chat.ID, "⚠️ Could not reach the mailbox service. Please try again.")
		return
	}
	if len(messages) == 0 {
		b.replyText(message.Chat.ID, "📭 No mail yet.")
		return
	}

	for _, chunk := range notify.ChunkText(renderInbox(messages), notify.MaxMessageLength) {
		b.replyText(message.Chat.ID, chunk)
	}
}

func renderInbox(messages []mailtm.Message) string {
	var sb strings.Builder
	sb.WriteString("📨 Inbox:\n\n")
	for _, message := range messages {
		subject := message.Subject
		if subject == "" {
			subject = "(no subject)"
		}
		attachments := "no"
		if message.HasAttachments {
			attachments = "yes"
		}
		sb.WriteString("ID: " + message.ID + "\n")
		sb.WriteString("From: " + message.From.Address + "\n")
		sb.WriteString("Subject: " + subject + "\n")
		sb.WriteString("⏰ " + notify.DisplayTime(message.CreatedAt) + "\n")
		sb.WriteString("📎 Attachments: " + attachments + "\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) replyText(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("send reply", "chat", chatID, "error", err)
	}
}
