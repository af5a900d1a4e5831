package store

import "time"

// Session is a user's currently active ephemeral mailbox credential set.
// Immutable once created; replaced wholesale by a new provisioning request.
type Session struct {
	UserID    int64
	Address   string
	Password  string
	Token     string
	CreatedAt time.Time
}

// CachedAttachment is one deferred attachment descriptor. Token is the
// session credential snapshotted at detection time, so retrieval keeps
// working after the user re-provisions.
type CachedAttachment struct {
	AttachmentID string
	Filename     string
	ContentType  string
	Token        string
}

type Stats struct {
	Sessions          int64 `json:"sessions"`
	SeenMail          int64 `json:"seenMail"`
	CachedBodies      int64 `json:"cachedBodies"`
	CachedAttachments int64 `json:"cachedAttachments"`
	KnownUsers        int64 `json:"knownUsers"`
}
