package chat

import (
	"context"
	"strings"

	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
)

// ownMessageLocked checks that id is a confirmed, live message I sent
func (c *Conversation) ownMessageLocked(id string) (domain.Message, error) {
	i := c.indexLocked(id)
	if i < 0 {
		return domain.Message{}, ErrUnknownMessage
	}
	m := c.messages[i]
	if m.IsTemporary() {
		return domain.Message{}, ErrPendingMessage
	}
	if m.SenderID != c.myID {
		return domain.Message{}, ErrNotOwnMessage
	}
	if m.IsDeleted {
		return domain.Message{}, common.ErrMessageDeleted
	}
	return m, nil
}

// Edit replaces the text of one of my messages. Empty text is a no-op. The
// local list changes only after the backend accepted the edit.
func (c *Conversation) Edit(ctx context.Context, messageID, newText string) error {
	newText = strings.TrimSpace(newText)
	if newText == "" {
		return nil
	}

	c.mu.Lock()
	if !c.live {
		c.mu.Unlock()
		return ErrClosed
	}
	before, err := c.ownMessageLocked(messageID)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	row, err := c.backend.EditMessage(ctx, messageID, newText)
	if err != nil {
		return err
	}

	c.mu.Lock()
	i := c.indexLocked(messageID)
	if !c.live || i < 0 {
		c.mu.Unlock()
		return nil
	}
	if row != nil {
		c.messages[i] = row.Clone()
	} else {
		m := &c.messages[i]
		if m.EditedText == nil {
			m.EditedText = domain.StringPtr(before.Text)
		}
		m.Text = newText
		at := c.now()
		m.EditedAt = &at
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snapshot)
	return nil
}

// Delete removes a message. forEveryone turns my own message into a
// placeholder for both sides; otherwise the message is hidden for me only
// and leaves my list.
func (c *Conversation) Delete(ctx context.Context, messageID string, forEveryone bool) error {
	c.mu.Lock()
	if !c.live {
		c.mu.Unlock()
		return ErrClosed
	}
	var err error
	if forEveryone {
		_, err = c.ownMessageLocked(messageID)
	} else if i := c.indexLocked(messageID); i < 0 {
		err = ErrUnknownMessage
	} else if c.messages[i].IsTemporary() {
		err = ErrPendingMessage
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if err := c.backend.DeleteMessage(ctx, messageID, forEveryone); err != nil {
		return err
	}

	c.mu.Lock()
	if !c.live {
		c.mu.Unlock()
		return nil
	}
	if forEveryone {
		if i := c.indexLocked(messageID); i >= 0 {
			c.messages[i].MarkDeleted(c.now())
		}
	} else {
		c.removeLocked(messageID)
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snapshot)
	return nil
}

// Clear hard-deletes the whole conversation on both sides and drops the
// cache entry
func (c *Conversation) Clear(ctx context.Context) error {
	if c.myID == "" || c.peerID == "" {
		return ErrNoConversation
	}
	if !c.Live() {
		return ErrClosed
	}
	if err := c.backend.ClearConversation(ctx, c.peerID); err != nil {
		return err
	}
	if err := c.cache.Clear(c.myID, c.peerID); err != nil {
		c.log.Warn().Err(err).Msg("cache clear failed")
	}

	c.mu.Lock()
	if !c.live {
		c.mu.Unlock()
		return nil
	}
	c.messages = nil
	c.buffered = nil
	c.mu.Unlock()

	c.notify(nil)
	return nil
}
