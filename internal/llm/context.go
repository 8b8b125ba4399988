package llm

import (
	"context"
	"slices"
)

// Purpose labels recorded with every completion event, one per chat route.
const (
	PurposeChat       = "chat"
	PurposeChatStream = "chat-stream"

	// PurposeUnknown is recorded for calls made outside a chat route.
	PurposeUnknown = "unknown"
)

// Purposes lists the labels the server records.
var Purposes = []string{PurposeChat, PurposeChatStream}

// ValidPurpose reports whether p is one of Purposes.
func ValidPurpose(p string) bool {
	return slices.Contains(Purposes, p)
}

type purposeKey struct{}

// WithPurpose tags ctx with the route a completion call serves.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey{}, purpose)
}

// PurposeFrom returns the label set by WithPurpose, or PurposeUnknown.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey{}).(string); ok && v != "" {
		return v
	}
	return PurposeUnknown
}
