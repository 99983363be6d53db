// Package source defines the channel-message source the pipeline reads
// from, and its Telegram implementation.
package source

import (
	"context"
	"strings"

	"cloudmon/internal/model"
)

// Channel is a resolved handle for a monitored channel.
type Channel struct {
	ID         int64
	AccessHash int64
	Title      string
}

// Source provides reverse-chronological message access for channels. All
// iteration methods call fn once per message, newest first, and stop early
// when fn returns false.
type Source interface {
	// Resolve obtains a channel handle from a reference (t.me URL, @name,
	// or invite link).
	Resolve(ctx context.Context, ref string) (Channel, error)

	// JoinInvite joins a channel by its invite hash.
	JoinInvite(ctx context.Context, hash string) error

	// History iterates up to limit messages of the channel's history.
	History(ctx context.Context, ch Channel, limit int, fn func(model.Message) bool) error

	// Search iterates up to limit messages matching a server-side text
	// query.
	Search(ctx context.Context, ch Channel, query string, limit int, fn func(model.Message) bool) error
}

// InviteHash extracts the invite hash from a channel reference, or returns
// "" when the reference does not look like an invite link.
func InviteHash(ref string) string {
	if i := strings.LastIndex(ref, "joinchat/"); i >= 0 {
		return strings.Trim(ref[i+len("joinchat/"):], "/")
	}
	if i := strings.LastIndex(ref, "+"); i >= 0 {
		return strings.Trim(ref[i+1:], "/")
	}
	return ""
}

// Username extracts the public username from a channel reference.
func Username(ref string) string {
	ref = strings.TrimPrefix(ref, "https://")
	ref = strings.TrimPrefix(ref, "http://")
	ref = strings.TrimPrefix(ref, "t.me/")
	ref = strings.TrimPrefix(ref, "telegram.me/")
	ref = strings.TrimPrefix(ref, "@")
	return strings.Trim(ref, "/")
}
