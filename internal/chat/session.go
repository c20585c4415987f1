package chat

import (
	"context"
	"sync"

	"github.com/gymsmart/gymsmart-backend/internal/domain"
)

// Session wires the open conversation, its realtime subscriber and the
// unread badge for one signed-in user. Only one conversation is open at a
// time; opening another closes the previous one first.
type Session struct {
	backend Backend
	cache   Cache
	badge   *Badge
	myID    string
	opts    Options

	mu   sync.Mutex
	conv *Conversation
	sub  *Subscriber
}

// NewSession creates a session for myID. cache may be nil.
func NewSession(backend Backend, cache Cache, myID string, badge *Badge, opts Options) *Session {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Session{backend: backend, cache: cache, badge: badge, myID: myID, opts: opts}
}

// Badge returns the unread badge
func (s *Session) Badge() *Badge { return s.badge }

// Current returns the open conversation or nil
func (s *Session) Current() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// Open shows the conversation with peerID: cached messages first, then the
// realtime subscription, a fetch and a read-state update. A failed fetch
// leaves the cached list in place and is not returned. A failed subscription
// is returned together with the fetched conversation.
func (s *Session) Open(ctx context.Context, peerID string) (*Conversation, error) {
	if s.myID == "" || peerID == "" {
		return nil, ErrNoConversation
	}
	s.Close()

	opts := s.opts
	userOnRead := opts.OnMessagesRead
	opts.OnMessagesRead = func(peer string) {
		if userOnRead != nil {
			userOnRead(peer)
		}
		s.refreshBadge(ctx)
	}

	conv := NewConversation(s.backend, s.cache, s.myID, peerID, opts)
	sub := NewSubscriber(conv, func(m domain.Message) {
		if opts.OnOtherPeer != nil {
			opts.OnOtherPeer(m)
		}
		s.refreshBadge(ctx)
	})

	s.mu.Lock()
	s.conv = conv
	s.sub = sub
	s.mu.Unlock()

	if s.badge != nil {
		s.badge.SetChatActive(true)
	}

	conv.LoadCached()

	// subscribe before fetching so inserts landing during the fetch are
	// buffered and merged into its result
	subErr := sub.Start(ctx)
	if subErr != nil {
		conv.log.Warn().Err(subErr).Msg("realtime subscribe failed")
	}

	_ = conv.Fetch(ctx)
	conv.MarkRead(ctx)
	return conv, subErr
}

// Close leaves the chat view and refreshes the badge
func (s *Session) Close() {
	s.mu.Lock()
	conv, sub := s.conv, s.sub
	s.conv, s.sub = nil, nil
	s.mu.Unlock()

	if conv == nil {
		return
	}
	conv.Close()
	if sub != nil {
		if err := sub.Close(); err != nil {
			conv.log.Debug().Err(err).Msg("subscription close")
		}
	}
	if s.badge != nil {
		s.badge.SetChatActive(false)
		s.badge.Refresh(context.Background())
	}
}

func (s *Session) refreshBadge(ctx context.Context) {
	if s.badge != nil {
		s.badge.Refresh(ctx)
	}
}
