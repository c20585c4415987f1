package chat

import (
	"context"
	"sync"

	"github.com/gymsmart/gymsmart-backend/internal/domain"
)

// receive applies one realtime insert to the view. It reports whether the
// row was appended as a new message from the peer.
func (c *Conversation) receive(msg domain.Message) bool {
	c.mu.Lock()
	if !c.live || !msg.InConversation(c.myID, c.peerID) || msg.HiddenFor(c.myID) {
		c.mu.Unlock()
		return false
	}
	if c.indexLocked(msg.ID) >= 0 || c.confirmed[msg.ID] {
		c.mu.Unlock()
		return false
	}
	if msg.SenderID == c.myID && c.hasPendingLocked(msg.Fingerprint()) {
		// echo of a send whose insert has not returned yet
		c.mu.Unlock()
		return false
	}

	c.messages = append(c.messages, msg.Clone())
	if c.inFlight > 0 {
		c.buffered = append(c.buffered, msg.Clone())
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snapshot)
	return msg.SenderID == c.peerID
}

// Subscriber feeds realtime inserts addressed to me into the open view and
// marks them read. Inserts from other peers go to OnOtherPeer.
type Subscriber struct {
	conv        *Conversation
	onOtherPeer func(domain.Message)

	mu     sync.Mutex
	sub    Subscription
	live   bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubscriber creates a subscriber for conv. onOtherPeer may be nil.
func NewSubscriber(conv *Conversation, onOtherPeer func(domain.Message)) *Subscriber {
	return &Subscriber{conv: conv, onOtherPeer: onOtherPeer}
}

// Start opens the realtime channel and consumes it in the background
func (s *Subscriber) Start(ctx context.Context) error {
	if s.conv.myID == "" {
		return ErrNoConversation
	}

	ctx, cancel := context.WithCancel(ctx)
	sub, err := s.conv.backend.Subscribe(ctx)
	if err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.live = true
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.run(ctx, sub, done)
	return nil
}

func (s *Subscriber) isLive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *Subscriber) run(ctx context.Context, sub Subscription, done chan struct{}) {
	defer close(done)
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			if !s.isLive() {
				return
			}
			s.handle(ctx, msg)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, msg domain.Message) {
	c := s.conv
	if msg.ReceiverID != c.myID {
		return
	}
	if msg.SenderID != c.peerID {
		if s.onOtherPeer != nil {
			s.onOtherPeer(msg)
		}
		return
	}
	if c.receive(msg) && s.isLive() {
		c.MarkRead(ctx)
	}
}

// Close tears the subscription down and waits for the consumer to stop
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if !s.live {
		s.mu.Unlock()
		return nil
	}
	s.live = false
	sub, cancel, done := s.sub, s.cancel, s.done
	s.mu.Unlock()

	cancel()
	err := sub.Close()
	<-done
	return err
}
