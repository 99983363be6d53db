// Package storage defines the dedup persistence interface and its
// implementations.
package storage

import (
	"context"
	"time"
)

// ScannedMessage is one batch entry marking a message as examined. RuleIndex
// is written as sentinel 0; the column exists to allow per-rule granularity
// later.
type ScannedMessage struct {
	ChannelID string
	MessageID int64
	RuleIndex int
	ScannedAt time.Time
}

// Storage is the interface for all dedup persistence operations. It assumes
// a single logical writer.
type Storage interface {
	// WasMessageScanned reports whether a channel message was examined in
	// any earlier run.
	WasMessageScanned(ctx context.Context, channelID string, messageID int64) (bool, error)

	// WasLinkSent reports whether a link was already forwarded under the
	// given rule index.
	WasLinkSent(ctx context.Context, link string, ruleIdx int) (bool, error)

	// RecordLinkSent marks a link as forwarded under the given rule index.
	// Idempotent.
	RecordLinkSent(ctx context.Context, link string, ruleIdx int) error

	// RecordScannedBulk marks a batch of messages as examined. Idempotent.
	RecordScannedBulk(ctx context.Context, recs []ScannedMessage) error

	// PurgeScannedBefore deletes processed-message rows older than cutoff
	// and returns the number of rows removed. Sent-link rows are never
	// purged.
	PurgeScannedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}
