package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	pkglogger "github.com/gymsmart/gymsmart-backend/pkg/logger"
	"github.com/rs/zerolog"
)

// DefaultFetchLimit is how many of the newest messages a fetch pulls
const DefaultFetchLimit = 100

// Options configure a Conversation
type Options struct {
	FetchLimit int
	// OnChange receives a snapshot after every change of the visible list
	OnChange func(messages []domain.Message)
	// OnMessagesRead runs after every read-state update
	OnMessagesRead func(peerID string)
	// OnOtherPeer receives inserts from users other than the open peer
	OnOtherPeer func(msg domain.Message)
}

// Conversation is the open chat view between me and one peer. All state
// updates check the liveness flag so a closed view never changes.
type Conversation struct {
	backend    Backend
	cache      Cache
	readState  *ReadState
	myID       string
	peerID     string
	fetchLimit int
	onChange   func([]domain.Message)
	log        zerolog.Logger
	now        func() time.Time
	newID      func() string

	mu         sync.Mutex
	messages   []domain.Message
	live       bool
	loading    bool
	generation uint64
	inFlight   int
	// pushes received while a fetch was in flight
	buffered []domain.Message
	// fingerprint -> temp ids of sends awaiting confirmation
	pending map[string][]string
	// server ids of confirmed sends
	confirmed map[string]bool
}

// NewConversation creates a live view for (myID, peerID)
func NewConversation(backend Backend, cache Cache, myID, peerID string, opts Options) *Conversation {
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = DefaultFetchLimit
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Conversation{
		backend:    backend,
		cache:      cache,
		readState:  NewReadState(backend, opts.OnMessagesRead),
		myID:       myID,
		peerID:     peerID,
		fetchLimit: opts.FetchLimit,
		onChange:   opts.OnChange,
		log:        pkglogger.Component("chat").With().Str("peer_id", peerID).Logger(),
		now:        time.Now,
		newID:      func() string { return domain.TempIDPrefix + uuid.NewString() },
		live:       true,
		pending:    make(map[string][]string),
		confirmed:  make(map[string]bool),
	}
}

// MyID returns the local user id
func (c *Conversation) MyID() string { return c.myID }

// PeerID returns the other participant
func (c *Conversation) PeerID() string { return c.peerID }

// Messages returns a snapshot of the visible list, oldest first
func (c *Conversation) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneMessages(c.messages)
}

// Loading reports whether a fetch is in flight
func (c *Conversation) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Live reports whether the view is still open
func (c *Conversation) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// LoadCached renders the cached entry, if any. It reports whether one was found.
func (c *Conversation) LoadCached() bool {
	entry, ok := c.cache.Load(c.myID, c.peerID)
	if !ok {
		return false
	}

	c.mu.Lock()
	if !c.live {
		c.mu.Unlock()
		return false
	}
	c.messages = c.visible(entry.Messages)
	snapshot := cloneMessages(c.messages)
	c.mu.Unlock()

	c.notify(snapshot)
	return true
}

// Close marks the view dead; results arriving later are discarded
func (c *Conversation) Close() {
	c.mu.Lock()
	c.live = false
	c.loading = false
	c.buffered = nil
	c.mu.Unlock()
}

func (c *Conversation) notify(snapshot []domain.Message) {
	if c.onChange != nil {
		c.onChange(snapshot)
	}
}

// snapshotLocked returns a copy for notify; callers hold mu
func (c *Conversation) snapshotLocked() []domain.Message {
	return cloneMessages(c.messages)
}

// visible narrows rows to this pair, drops those I hid, and orders them
func (c *Conversation) visible(rows []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(rows))
	for _, m := range rows {
		if !m.InConversation(c.myID, c.peerID) || m.HiddenFor(c.myID) {
			continue
		}
		out = append(out, m.Clone())
	}
	sortMessages(out)
	return out
}

// sortMessages orders by creation time, ties by id
func sortMessages(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

func (c *Conversation) indexLocked(id string) int {
	for i := range c.messages {
		if c.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Conversation) removeLocked(id string) bool {
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.messages = append(c.messages[:i], c.messages[i+1:]...)
	return true
}

func (c *Conversation) hasPendingLocked(fingerprint string) bool {
	return len(c.pending[fingerprint]) > 0
}

func (c *Conversation) addPendingLocked(fingerprint, tempID string) {
	c.pending[fingerprint] = append(c.pending[fingerprint], tempID)
}

func (c *Conversation) dropPendingLocked(fingerprint, tempID string) {
	ids := c.pending[fingerprint]
	for i, id := range ids {
		if id == tempID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(c.pending, fingerprint)
	} else {
		c.pending[fingerprint] = ids
	}
}
