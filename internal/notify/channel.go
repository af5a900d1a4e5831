package notify

import "context"

// Action is one inline button attached to a channel message. Data is the
// opaque callback payload echoed back when the user presses it.
type Action struct {
	Label string
	Data  string
}

// Channel is the outbound side of the messaging transport.
type Channel interface {
	SendText(ctx context.Context, userID int64, text string, actions []Action) error
	SendDocument(ctx context.Context, userID int64, filename string, data []byte) error
	SendPhoto(ctx context.Context, userID int64, filename string, data []byte) error
	SendVideo(ctx context.Context, userID int64, filename string, data []byte) error
	AckCallback(ctx context.Context, callbackID string) error
}
