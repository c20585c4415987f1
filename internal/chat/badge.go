package chat

import (
	"context"
	"sync"

	"github.com/gymsmart/gymsmart-backend/internal/domain"
	pkglogger "github.com/gymsmart/gymsmart-backend/pkg/logger"
	"github.com/rs/zerolog"
)

// Badge is the unread counter shown in navigation. Coaches and admins count
// every unread message addressed to them, athletes only those from their
// selected coach.
type Badge struct {
	backend Backend
	log     zerolog.Logger

	mu         sync.Mutex
	role       domain.Role
	coachID    string
	count      int64
	chatActive bool
	onChange   func(int64)
}

// NewBadge creates a badge for a user of role. coachID is the athlete's
// selected coach and is ignored for other roles.
func NewBadge(backend Backend, role domain.Role, coachID string) *Badge {
	return &Badge{
		backend: backend,
		role:    role,
		coachID: coachID,
		log:     pkglogger.Component("chat.badge"),
	}
}

// OnChange registers a callback for count changes
func (b *Badge) OnChange(fn func(int64)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Count returns the current value
func (b *Badge) Count() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// SetCoach changes the athlete's selected coach
func (b *Badge) SetCoach(coachID string) {
	b.mu.Lock()
	b.coachID = coachID
	b.mu.Unlock()
}

// SetChatActive records whether the chat view is on screen. Entering it
// zeroes the count without asking the backend.
func (b *Badge) SetChatActive(active bool) {
	b.mu.Lock()
	b.chatActive = active
	if active {
		b.setLocked(0)
		return
	}
	b.mu.Unlock()
}

// Refresh recounts unread messages. A failed count keeps the previous value.
func (b *Badge) Refresh(ctx context.Context) {
	b.mu.Lock()
	if b.chatActive {
		b.setLocked(0)
		return
	}
	senderID := ""
	if b.role == domain.RoleAthlete {
		if b.coachID == "" {
			b.mu.Unlock()
			return
		}
		senderID = b.coachID
	}
	b.mu.Unlock()

	n, err := b.backend.CountUnread(ctx, senderID)
	if err != nil {
		b.log.Warn().Err(err).Str("role", string(b.role)).Msg("unread count failed")
		return
	}

	b.mu.Lock()
	if b.chatActive {
		n = 0
	}
	b.setLocked(n)
}

// setLocked stores n and releases mu before running the callback
func (b *Badge) setLocked(n int64) {
	changed := b.count != n
	b.count = n
	fn := b.onChange
	b.mu.Unlock()
	if changed && fn != nil {
		fn(n)
	}
}
