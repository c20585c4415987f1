// Package chat is the client-side core of direct messaging: a conversation
// view kept in sync with the backend through a read-through cache, a
// realtime subscription, optimistic sends and confirmed mutations.
package chat

import (
	"context"
	"errors"

	"github.com/gymsmart/gymsmart-backend/internal/domain"
)

var (
	// ErrEmptyDraft is returned when a draft has no text, image or audio
	ErrEmptyDraft = errors.New("chat: empty draft")
	// ErrNoConversation is returned when my id or the peer id is unset
	ErrNoConversation = errors.New("chat: conversation participants not set")
	// ErrClosed is returned for operations on a closed view
	ErrClosed = errors.New("chat: conversation closed")
	// ErrUnknownMessage is returned for ids not present in the view
	ErrUnknownMessage = errors.New("chat: message not in conversation")
	// ErrNotOwnMessage is returned when editing or deleting for everyone a message the caller did not send
	ErrNotOwnMessage = errors.New("chat: only the sender may change this message")
	// ErrPendingMessage is returned when mutating an optimistic entry the server has not confirmed
	ErrPendingMessage = errors.New("chat: message not confirmed yet")
)

// Backend is everything the messaging core needs from the hosted backend.
// Calls act on behalf of the authenticated user.
type Backend interface {
	// FetchMessages returns up to limit of the newest messages the user
	// sent or received, in any order.
	FetchMessages(ctx context.Context, limit int) ([]domain.Message, error)
	InsertMessage(ctx context.Context, req domain.SendMessageRequest) (*domain.Message, error)
	EditMessage(ctx context.Context, messageID, newText string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, messageID string, forEveryone bool) error
	MarkRead(ctx context.Context, peerID string) error
	ClearConversation(ctx context.Context, peerID string) error
	CountUnread(ctx context.Context, senderID string) (int64, error)
	// Upload stores data in bucket and returns its public URL
	Upload(ctx context.Context, bucket, filename string, data []byte) (string, error)
	// Subscribe opens the realtime channel of rows inserted for the user
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription delivers inserted rows until closed
type Subscription interface {
	Events() <-chan domain.Message
	Close() error
}
