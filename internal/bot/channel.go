package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.io/infrasutra/provmail/internal/notify"
)

// Bot implements notify.Channel; the underlying client has no context
// support, so the context parameters are accepted for interface parity only.
var _ notify.Channel = (*Bot)(nil)

func (b *Bot) SendText(_ context.Context, userID int64, text string, actions []notify.Action) error {
	message := tgbotapi.NewMessage(userID, text)
	if len(actions) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(actions))
		for _, action := range actions {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(action.Label, action.Data),
			))
		}
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	_, err := b.api.Send(message)
	return err
}

func (b *Bot) SendDocument(_ context.Context, userID int64, filename string, data []byte) error {
	_, err := b.api.Send(tgbotapi.NewDocument(userID, tgbotapi.FileBytes{Name: filename, Bytes: data}))
	return err
}

func (b *Bot) SendPhoto(_ context.Context, userID int64, filename string, data []byte) error {
	_, err := b.api.Send(tgbotapi.NewPhoto(userID, tgbotapi.FileBytes{Name: filename, Bytes: data}))
	return err
}

func (b *Bot) SendVideo(_ context.Context, userID int64, filename string, data []byte) error {
	_, err := b.api.Send(tgbotapi.NewVideo(userID, tgbotapi.FileBytes{Name: filename, Bytes: data}))
	return err
}

func (b *Bot) AckCallback(_ context.Context, callbackID string) error {
	_, err := b.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}
