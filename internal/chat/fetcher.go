package chat

import (
	"context"
	"time"

	"github.com/gymsmart/gymsmart-backend/internal/domain"
)

// Fetch reconciles the view with the backend. It over-fetches the newest
// messages I take part in, narrows them to this pair and replaces both the
// visible list and the cache entry.
//
// Every pass takes a generation number; only the newest pass may apply.
// Pushes received while a pass is in flight are merged into its result.
// On failure the current (cached) list stays and the error is returned.
func (c *Conversation) Fetch(ctx context.Context) error {
	if c.myID == "" || c.peerID == "" {
		return ErrNoConversation
	}

	c.mu.Lock()
	if !c.live {
		c.mu.Unlock()
		return ErrClosed
	}
	c.generation++
	gen := c.generation
	c.inFlight++
	c.loading = true
	c.mu.Unlock()

	rows, err := c.backend.FetchMessages(ctx, c.fetchLimit)

	c.mu.Lock()
	c.inFlight--
	if c.inFlight == 0 {
		c.loading = false
	}
	if !c.live {
		c.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		c.mu.Unlock()
		c.log.Warn().Err(err).Msg("fetch messages failed, keeping cached list")
		return err
	}
	if gen != c.generation {
		// a newer pass owns the view
		c.mu.Unlock()
		return nil
	}

	fetched := c.visible(rows)
	entry := Entry{
		OwnerID:       c.myID,
		PeerID:        c.peerID,
		Messages:      cloneMessages(fetched),
		LastWrittenAt: time.Now(),
	}

	merged := c.mergeLocked(fetched)
	c.messages = merged
	c.buffered = nil
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.cache.Store(entry); err != nil {
		c.log.Warn().Err(err).Msg("cache write failed")
	}
	c.notify(snapshot)
	return nil
}

// mergeLocked adds to a fetch result the pushes buffered during the pass and
// the optimistic entries still awaiting confirmation, deduplicated by id
func (c *Conversation) mergeLocked(fetched []domain.Message) []domain.Message {
	seen := make(map[string]bool, len(fetched))
	for _, m := range fetched {
		seen[m.ID] = true
	}

	extra := false
	for _, m := range c.buffered {
		if !seen[m.ID] && !m.HiddenFor(c.myID) {
			seen[m.ID] = true
			fetched = append(fetched, m.Clone())
			extra = true
		}
	}
	if extra {
		sortMessages(fetched)
	}

	// optimistic entries stay at the tail until the insert resolves
	for _, m := range c.messages {
		if m.IsTemporary() && c.hasPendingLocked(m.Fingerprint()) {
			fetched = append(fetched, m.Clone())
		}
	}
	return fetched
}
