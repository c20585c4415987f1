package chat

import (
	"context"

	"github.com/gymsmart/gymsmart-backend/internal/domain"
	pkglogger "github.com/gymsmart/gymsmart-backend/pkg/logger"
	"github.com/rs/zerolog"
)

// ReadState flips the read flag of a conversation. Failures are logged and
// never returned; the callback runs after every attempt so badges refresh.
type ReadState struct {
	backend Backend
	onRead  func(peerID string)
	log     zerolog.Logger
}

// NewReadState creates a ReadState; onRead may be nil
func NewReadState(backend Backend, onRead func(peerID string)) *ReadState {
	return &ReadState{backend: backend, onRead: onRead, log: pkglogger.Component("chat.read")}
}

// MarkRead marks every unread message from peerID to myID as read and
// reports whether the backend accepted it
func (r *ReadState) MarkRead(ctx context.Context, myID, peerID string) bool {
	if myID == "" || peerID == "" {
		return false
	}
	err := r.backend.MarkRead(ctx, peerID)
	if err != nil {
		r.log.Warn().Err(err).Str("peer_id", peerID).Msg("mark read failed")
	}
	if r.onRead != nil {
		r.onRead(peerID)
	}
	return err == nil
}

// MarkRead marks the peer's messages in this view as read
func (c *Conversation) MarkRead(ctx context.Context) {
	if !c.Live() {
		return
	}
	if !c.readState.MarkRead(ctx, c.myID, c.peerID) {
		return
	}

	c.mu.Lock()
	changed := false
	for i := range c.messages {
		m := &c.messages[i]
		if m.SenderID == c.peerID && !m.IsRead {
			m.IsRead = true
			changed = true
		}
	}
	var snapshot []domain.Message
	if changed && c.live {
		snapshot = c.snapshotLocked()
	}
	c.mu.Unlock()

	if snapshot != nil {
		c.notify(snapshot)
	}
}
