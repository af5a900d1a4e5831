package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedMessage struct {
	UserID  int64
	Text    string
	Actions []Action
}

type fakeChannel struct {
	messages []recordedMessage
}

func (f *fakeChannel) SendText(_ context.Context, userID int64, text string, actions []Action) error {
	f.messages = append(f.messages, recordedMessage{UserID: userID, Text: text, Actions: actions})
	return nil
}

func (f *fakeChannel) SendDocument(context.Context, int64, string, []byte) error { return nil }
func (f *fakeChannel) SendPhoto(context.Context, int64, string, []byte) error    { return nil }
func (f *fakeChannel) SendVideo(context.Context, int64, string, []byte) error    { return nil }
func (f *fakeChannel) AckCallback(context.Context, string) error                 { return nil }

func TestDisplayTimeFixedOffset(t *testing.T) {
	arrival := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "01.01.2024 03:00:00", DisplayTime(arrival))
}

func TestDisplayTimeZero(t *testing.T) {
	assert.Equal(t, "", DisplayTime(time.Time{}))
}

func TestNotifySendsExactlyOneMessage(t *testing.T) {
	channel := &fakeChannel{}
	dispatcher := NewDispatcher(channel)

	mail := NewMail{
		MailID:     "m1",
		From:       "sender@example.test",
		Subject:    "Hello",
		ReceivedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Body:       "short body",
	}
	require.NoError(t, dispatcher.Notify(context.Background(), 42, mail))

	require.Len(t, channel.messages, 1)
	message := channel.messages[0]
	assert.Equal(t, int64(42), message.UserID)
	assert.Contains(t, message.Text, "📬 New mail!")
	assert.Contains(t, message.Text, "⏰ Received – 01.01.2024 03:00:00")
	assert.Contains(t, message.Text, "From: sender@example.test")
	assert.Contains(t, message.Text, "Subject: Hello")
	assert.Contains(t, message.Text, "short body")
	assert.Empty(t, message.Actions)
}

func TestRenderTruncatedOmitsBody(t *testing.T) {
	mail := NewMail{
		MailID:    "m1",
		From:      "sender@example.test",
		Subject:   "Hello",
		Body:      strings.Repeat("x", 2000),
		Truncated: true,
	}
	text := Render(mail)
	assert.Contains(t, text, "too long to display inline")
	assert.NotContains(t, text, "xxxx")
}

func TestRenderEmptyBodyPlaceholder(t *testing.T) {
	text := Render(NewMail{MailID: "m1", From: "a@b.test"})
	assert.Contains(t, text, "(attachments only)")
	assert.Contains(t, text, "Subject: (no subject)")
}

func TestActionsPayloads(t *testing.T) {
	actions := Actions(NewMail{MailID: "m1", Truncated: true, Attachments: 2})
	require.Len(t, actions, 2)
	assert.Equal(t, "📎 Show attachments (2)", actions[0].Label)
	assert.Equal(t, "show_attachments:m1", actions[0].Data)
	assert.Equal(t, "show_full:m1", actions[1].Data)

	assert.Empty(t, Actions(NewMail{MailID: "m1"}))
}
