package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/internal/repository"
	"github.com/gymsmart/gymsmart-backend/pkg/cache"
	pkglogger "github.com/gymsmart/gymsmart-backend/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultFetchLimit is the participant over-fetch size of the message list
const DefaultFetchLimit = 100

const metricsNamespace = "gymsmart"

var messageOpsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "messages_operations_total",
		Help:      "Direct message operations by kind and result",
	},
	[]string{"op", "result"},
)

// Publisher pushes realtime events to the subscriptions of a user
type Publisher interface {
	PublishInsert(msg *domain.Message)
}

// MessageService business logic for direct messages
type MessageService interface {
	Send(ctx context.Context, senderID string, req *domain.SendMessageRequest) (*domain.Message, error)
	List(ctx context.Context, userID string, limit int) ([]*domain.Message, error)
	Conversation(ctx context.Context, userID, peerID string, limit int) ([]*domain.Message, error)
	MarkRead(ctx context.Context, userID, peerID string) (int64, error)
	Edit(ctx context.Context, userID string, req *domain.EditMessageRequest) (*domain.Message, error)
	DeleteForEveryone(ctx context.Context, userID, messageID string) (*domain.Message, error)
	DeleteForMe(ctx context.Context, userID, messageID string) error
	ClearConversation(ctx context.Context, userID, peerID string) (int64, error)
}

type messageService struct {
	repo       repository.MessageRepository
	cache      cache.Service
	publisher  Publisher
	fetchLimit int
	now        func() time.Time
}

// NewMessageService creates a new MessageService. publisher may be nil.
func NewMessageService(repo repository.MessageRepository, cacheService cache.Service, publisher Publisher, fetchLimit int) MessageService {
	if fetchLimit <= 0 {
		fetchLimit = DefaultFetchLimit
	}
	return &messageService{
		repo:       repo,
		cache:      cacheService,
		publisher:  publisher,
		fetchLimit: fetchLimit,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *messageService) clampLimit(limit int) int {
	if limit < 1 || limit > s.fetchLimit {
		return s.fetchLimit
	}
	return limit
}

// invalidateUnread drops cached counters; failures only cost a recount
func (s *messageService) invalidateUnread(ctx context.Context, receiverIDs ...string) {
	if s.cache == nil {
		return
	}
	for _, id := range receiverIDs {
		if err := s.cache.InvalidateUnread(ctx, id); err != nil {
			pkglogger.GetLogger().Warn().Err(err).Str("receiver_id", id).Msg("unread cache invalidation failed")
		}
	}
}

// Send inserts a message and pushes it to the receiver
func (s *messageService) Send(ctx context.Context, senderID string, req *domain.SendMessageRequest) (*domain.Message, error) {
	if senderID == "" || req.ReceiverID == "" {
		return nil, common.ErrInvalidInput
	}
	if senderID == req.ReceiverID {
		return nil, common.ErrSelfMessage
	}

	msg := &domain.Message{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		Text:       strings.TrimSpace(req.Text),
		ImageURL:   domain.StringPtr(strings.TrimSpace(derefString(req.ImageURL))),
		AudioURL:   domain.StringPtr(strings.TrimSpace(derefString(req.AudioURL))),
	}
	if !msg.HasContent() {
		return nil, common.ErrEmptyMessage
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		messageOpsTotal.WithLabelValues("send", "error").Inc()
		return nil, fmt.Errorf("insert message: %w", err)
	}
	messageOpsTotal.WithLabelValues("send", "ok").Inc()

	s.invalidateUnread(ctx, msg.ReceiverID)
	if s.publisher != nil {
		s.publisher.PublishInsert(msg)
	}
	return msg, nil
}

// List returns the newest messages the user takes part in, newest first
func (s *messageService) List(ctx context.Context, userID string, limit int) ([]*domain.Message, error) {
	return s.repo.FindForParticipant(ctx, userID, s.clampLimit(limit))
}

// Conversation returns the messages between the user and a peer, oldest first
func (s *messageService) Conversation(ctx context.Context, userID, peerID string, limit int) ([]*domain.Message, error) {
	if peerID == "" {
		return nil, common.ErrInvalidInput
	}
	return s.repo.FindConversation(ctx, userID, peerID, s.clampLimit(limit))
}

// MarkRead flags every unread message from peer to user as read
func (s *messageService) MarkRead(ctx context.Context, userID, peerID string) (int64, error) {
	if userID == "" || peerID == "" {
		return 0, common.ErrInvalidInput
	}
	n, err := s.repo.MarkConversationRead(ctx, userID, peerID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidateUnread(ctx, userID)
	}
	return n, nil
}

// ownMessage loads a message the user sent and may still change
func (s *messageService) ownMessage(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	msg, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, common.ErrForbidden
	}
	if msg.IsDeleted {
		return nil, common.ErrMessageDeleted
	}
	return msg, nil
}

// Edit replaces the text of the user's own message. The first edit keeps
// the original text in EditedText; later edits leave it untouched.
func (s *messageService) Edit(ctx context.Context, userID string, req *domain.EditMessageRequest) (*domain.Message, error) {
	newText := strings.TrimSpace(req.NewText)
	if newText == "" {
		return nil, common.ErrInvalidInput
	}

	msg, err := s.ownMessage(ctx, userID, req.MessageID)
	if err != nil {
		return nil, err
	}

	original := msg.EditedText
	if original == nil {
		text := msg.Text
		original = &text
	}
	at := s.now()
	if err := s.repo.ApplyEdit(ctx, msg.ID, userID, newText, original, at); err != nil {
		return nil, err
	}
	messageOpsTotal.WithLabelValues("edit", "ok").Inc()

	msg.Text = newText
	msg.EditedText = original
	msg.EditedAt = &at
	return msg, nil
}

// DeleteForEveryone marks the user's own message deleted for both sides
func (s *messageService) DeleteForEveryone(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	msg, err := s.ownMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}

	at := s.now()
	if err := s.repo.MarkDeletedForEveryone(ctx, msg.ID, userID, at); err != nil {
		return nil, err
	}
	messageOpsTotal.WithLabelValues("delete_everyone", "ok").Inc()
	s.invalidateUnread(ctx, msg.ReceiverID)

	msg.MarkDeleted(at)
	return msg, nil
}

// DeleteForMe hides the message for the calling participant only
func (s *messageService) DeleteForMe(ctx context.Context, userID, messageID string) error {
	msg, err := s.repo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}

	switch userID {
	case msg.SenderID:
		err = s.repo.HideForSender(ctx, msg.ID)
	case msg.ReceiverID:
		err = s.repo.HideForReceiver(ctx, msg.ID)
	default:
		return common.ErrForbidden
	}
	if err != nil {
		return err
	}
	messageOpsTotal.WithLabelValues("delete_me", "ok").Inc()
	return nil
}

// ClearConversation hard-deletes every message between the user and peer
func (s *messageService) ClearConversation(ctx context.Context, userID, peerID string) (int64, error) {
	if userID == "" || peerID == "" || userID == peerID {
		return 0, common.ErrInvalidInput
	}
	n, err := s.repo.DeleteConversation(ctx, userID, peerID)
	if err != nil {
		return 0, err
	}
	pkglogger.GetLogger().Info().
		Str("user_id", userID).
		Str("peer_id", peerID).
		Int64("deleted", n).
		Msg("conversation cleared")
	s.invalidateUnread(ctx, userID, peerID)
	return n, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
