package actions

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/provmail/internal/mailtm"
	"github.io/infrasutra/provmail/internal/notify"
	"github.io/infrasutra/provmail/internal/store"
)

type delivery struct {
	Kind     string
	Filename string
	Data     []byte
}

type fakeChannel struct {
	texts      []string
	deliveries []delivery
	acks       []string
	sendErr    error
}

func (f *fakeChannel) SendText(_ context.Context, _ int64, text string, _ []notify.Action) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeChannel) SendDocument(_ context.Context, _ int64, filename string, data []byte) error {
	f.deliveries = append(f.deliveries, delivery{Kind: "document", Filename: filename, Data: data})
	return nil
}

func (f *fakeChannel) SendPhoto(_ context.Context, _ int64, filename string, data []byte) error {
	f.deliveries = append(f.deliveries, delivery{Kind: "photo", Filename: filename, Data: data})
	return nil
}

func (f *fakeChannel) SendVideo(_ context.Context, _ int64, filename string, data []byte) error {
	f.deliveries = append(f.deliveries, delivery{Kind: "video", Filename: filename, Data: data})
	return nil
}

func (f *fakeChannel) AckCallback(_ context.Context, callbackID string) error {
	f.acks = append(f.acks, callbackID)
	return nil
}

type fetchCall struct {
	Token        string
	MailID       string
	AttachmentID string
}

type fakeFetcher struct {
	calls   []fetchCall
	failFor string
}

func (f *fakeFetcher) AttachmentBytes(_ context.Context, token, mailID, attachmentID string) ([]byte, error) {
	f.calls = append(f.calls, fetchCall{Token: token, MailID: mailID, AttachmentID: attachmentID})
	if attachmentID == f.failFor {
		return nil, &mailtm.UpstreamError{Op: "fetch attachment", StatusCode: 404, Body: "gone"}
	}
	return []byte("payload-" + attachmentID), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.EnsureSchema(ctx))
	return st
}

func TestShowFullSendsCachedBody(t *testing.T) {
	st := testStore(t)
	channel := &fakeChannel{}
	handler := New(st, &fakeFetcher{}, channel, testLogger())

	body := strings.Repeat("x", 1501)
	require.NoError(t, st.CacheBody(context.Background(), 42, "m1", body, time.Now()))

	handler.HandleCallback(context.Background(), "cb1", 42, "show_full:m1")

	require.NotEmpty(t, channel.texts)
	joined := strings.Join(channel.texts, "")
	assert.Contains(t, joined, "Full message")
	assert.Contains(t, joined, body)
	assert.Equal(t, []string{"cb1"}, channel.acks)
}

func TestShowFullCacheMiss(t *testing.T) {
	st := testStore(t)
	channel := &fakeChannel{}
	handler := New(st, &fakeFetcher{}, channel, testLogger())

	handler.HandleCallback(context.Background(), "cb1", 42, "show_full:missing")

	require.Len(t, channel.texts, 1)
	assert.Contains(t, channel.texts[0], "no longer available")
	assert.Equal(t, []string{"cb1"}, channel.acks)
}

func TestShowAttachmentsClassifiesByMediaType(t *testing.T) {
	st := testStore(t)
	channel := &fakeChannel{}
	fetcher := &fakeFetcher{}
	handler := New(st, fetcher, channel, testLogger())

	attachments := []store.CachedAttachment{
		{AttachmentID: "att1", Filename: "pic.png", ContentType: "image/png"},
		{AttachmentID: "att2", Filename: "clip.mp4", ContentType: "video/mp4"},
		{AttachmentID: "att3", Filename: "doc.pdf", ContentType: "application/pdf"},
	}
	require.NoError(t, st.PutAttachments(context.Background(), 42, "m1", "snapshot-token", attachments, time.Now()))

	handler.HandleCallback(context.Background(), "cb1", 42, "show_attachments:m1")

	require.Len(t, fetcher.calls, 3)
	for _, call := range fetcher.calls {
		assert.Equal(t, "snapshot-token", call.Token)
		assert.Equal(t, "m1", call.MailID)
	}

	require.Len(t, channel.deliveries, 3)
	assert.Equal(t, "photo", channel.deliveries[0].Kind)
	assert.Equal(t, "pic.png", channel.deliveries[0].Filename)
	assert.Equal(t, "video", channel.deliveries[1].Kind)
	assert.Equal(t, "document", channel.deliveries[2].Kind)
	assert.Equal(t, []byte("payload-att3"), channel.deliveries[2].Data)
	assert.Equal(t, []string{"cb1"}, channel.acks)
}

func TestShowAttachmentsPartialFailure(t *testing.T) {
	st := testStore(t)
	channel := &fakeChannel{}
	fetcher := &fakeFetcher{failFor: "att2"}
	handler := New(st, fetcher, channel, testLogger())

	attachments := []store.CachedAttachment{
		{AttachmentID: "att1", Filename: "a.pdf", ContentType: "application/pdf"},
		{AttachmentID: "att2", Filename: "b.pdf", ContentType: "application/pdf"},
		{AttachmentID: "att3", Filename: "c.pdf", ContentType: "application/pdf"},
	}
	require.NoError(t, st.PutAttachments(context.Background(), 42, "m1", "snapshot-token", attachments, time.Now()))

	handler.HandleCallback(context.Background(), "cb1", 42, "show_attachments:m1")

	assert.Len(t, fetcher.calls, 3)
	assert.Len(t, channel.deliveries, 2)
	require.Len(t, channel.texts, 1)
	assert.Contains(t, channel.texts[0], "b.pdf")
	assert.Equal(t, []string{"cb1"}, channel.acks)
}

func TestShowAttachmentsUnavailable(t *testing.T) {
	st := testStore(t)
	channel := &fakeChannel{}
	fetcher := &fakeFetcher{}
	handler := New(st, fetcher, channel, testLogger())

	handler.HandleCallback(context.Background(), "cb1", 42, "show_attachments:missing")

	assert.Empty(t, fetcher.calls)
	require.Len(t, channel.texts, 1)
	assert.Contains(t, channel.texts[0], "no longer available")
	assert.Equal(t, []string{"cb1"}, channel.acks)
}

func TestUnknownPayloadStillAcknowledged(t *testing.T) {
	st := testStore(t)
	channel := &fakeChannel{}
	handler := New(st, &fakeFetcher{}, channel, testLogger())

	handler.HandleCallback(context.Background(), "cb1", 42, "bogus:m1")

	assert.Empty(t, channel.texts)
	assert.Equal(t, []string{"cb1"}, channel.acks)
}
