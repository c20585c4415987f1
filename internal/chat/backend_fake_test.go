package chat

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
)

var errBackendDown = errors.New("backend down")

var baseTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func msg(id, from, to, text string, minute int) domain.Message {
	return domain.Message{
		ID:         id,
		SenderID:   from,
		ReceiverID: to,
		Text:       text,
		CreatedAt:  baseTime.Add(time.Duration(minute) * time.Minute),
	}
}

// fakeBackend is an in-memory server acting for user me
type fakeBackend struct {
	mu   sync.Mutex
	me   string
	rows []domain.Message
	subs []*fakeSubscription

	fetchStarted  chan struct{}
	fetchGate     chan struct{}
	insertStarted chan domain.Message
	insertGate    chan struct{}

	fetchErr  error
	insertErr error
	uploadErr error
	markErr   error
	countErr  error

	fetches   int
	inserts   int
	markReads int
	counts    int
	uploads   []string
}

func newFakeBackend(me string, rows ...domain.Message) *fakeBackend {
	return &fakeBackend{me: me, rows: rows}
}

func (f *fakeBackend) find(id string) *domain.Message {
	for i := range f.rows {
		if f.rows[i].ID == id {
			return &f.rows[i]
		}
	}
	return nil
}

func (f *fakeBackend) row(id string) (domain.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.find(id)
	if m == nil {
		return domain.Message{}, false
	}
	return m.Clone(), true
}

func (f *fakeBackend) FetchMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	f.mu.Lock()
	f.fetches++
	var out []domain.Message
	for _, m := range f.rows {
		if m.IsParticipant(f.me) && !m.HiddenFor(f.me) {
			out = append(out, m.Clone())
		}
	}
	err := f.fetchErr
	started, gate := f.fetchStarted, f.fetchGate
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeBackend) InsertMessage(ctx context.Context, req domain.SendMessageRequest) (*domain.Message, error) {
	f.mu.Lock()
	f.inserts++
	if f.insertErr != nil {
		err := f.insertErr
		f.mu.Unlock()
		return nil, err
	}
	row := domain.Message{
		ID:         uuid.NewString(),
		SenderID:   f.me,
		ReceiverID: req.ReceiverID,
		Text:       req.Text,
		ImageURL:   req.ImageURL,
		AudioURL:   req.AudioURL,
		CreatedAt:  baseTime.Add(time.Duration(len(f.rows)+100) * time.Minute),
	}
	f.rows = append(f.rows, row)
	started, gate := f.insertStarted, f.insertGate
	f.mu.Unlock()

	if started != nil {
		started <- row.Clone()
	}
	if gate != nil {
		<-gate
	}
	out := row.Clone()
	return &out, nil
}

func (f *fakeBackend) EditMessage(ctx context.Context, messageID, newText string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.find(messageID)
	if m == nil {
		return nil, common.ErrMessageNotFound
	}
	if m.SenderID != f.me {
		return nil, common.ErrForbidden
	}
	if m.IsDeleted {
		return nil, common.ErrMessageDeleted
	}
	if m.EditedText == nil {
		m.EditedText = domain.StringPtr(m.Text)
	}
	m.Text = newText
	at := baseTime.Add(time.Hour)
	m.EditedAt = &at
	out := m.Clone()
	return &out, nil
}

func (f *fakeBackend) DeleteMessage(ctx context.Context, messageID string, forEveryone bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.find(messageID)
	if m == nil {
		return common.ErrMessageNotFound
	}
	if forEveryone {
		if m.SenderID != f.me {
			return common.ErrForbidden
		}
		m.MarkDeleted(baseTime.Add(2 * time.Hour))
		return nil
	}
	switch f.me {
	case m.SenderID:
		m.DeletedForSender = true
	case m.ReceiverID:
		m.DeletedForReceiver = true
	default:
		return common.ErrForbidden
	}
	return nil
}

func (f *fakeBackend) MarkRead(ctx context.Context, peerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReads++
	if f.markErr != nil {
		return f.markErr
	}
	for i := range f.rows {
		if f.rows[i].ReceiverID == f.me && f.rows[i].SenderID == peerID {
			f.rows[i].IsRead = true
		}
	}
	return nil
}

func (f *fakeBackend) ClearConversation(ctx context.Context, peerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, m := range f.rows {
		if !m.InConversation(f.me, peerID) {
			kept = append(kept, m)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeBackend) CountUnread(ctx context.Context, senderID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for _, m := range f.rows {
		if m.ReceiverID != f.me || m.IsRead {
			continue
		}
		if senderID != "" && m.SenderID != senderID {
			continue
		}
		n++
	}
	return n, nil
}

func (f *fakeBackend) Upload(ctx context.Context, bucket, filename string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, bucket+"/"+filename)
	return "https://cdn.test/" + bucket + "/" + f.me + "/1714557600000.webm", nil
}

func (f *fakeBackend) Subscribe(ctx context.Context) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSubscription{events: make(chan domain.Message, 16)}
	f.subs = append(f.subs, s)
	return s, nil
}

// push stores a row written by another user and delivers it to subscribers
func (f *fakeBackend) push(m domain.Message) {
	f.mu.Lock()
	f.rows = append(f.rows, m)
	subs := append([]*fakeSubscription(nil), f.subs...)
	f.mu.Unlock()
	for _, s := range subs {
		s.deliver(m)
	}
}

func (f *fakeBackend) calls() (fetches, inserts, markReads, counts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, f.inserts, f.markReads, f.counts
}

type fakeSubscription struct {
	mu     sync.Mutex
	events chan domain.Message
	closed bool
}

func (s *fakeSubscription) Events() <-chan domain.Message { return s.events }

func (s *fakeSubscription) deliver(m domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.events <- m.Clone()
	}
}

func (s *fakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}
