package repository

import (
	"context"
	"errors"
	"time"

	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"gorm.io/gorm"
)

// MessageRepository message data access interface
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	FindForParticipant(ctx context.Context, userID string, limit int) ([]*domain.Message, error)
	FindConversation(ctx context.Context, userID, peerID string, limit int) ([]*domain.Message, error)
	MarkConversationRead(ctx context.Context, receiverID, senderID string) (int64, error)
	ApplyEdit(ctx context.Context, id, senderID, newText string, editedText *string, at time.Time) error
	MarkDeletedForEveryone(ctx context.Context, id, senderID string, at time.Time) error
	HideForSender(ctx context.Context, id string) error
	HideForReceiver(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, a, b string) (int64, error)
	CountUnread(ctx context.Context, receiverID, senderID string) (int64, error)
	CountUnreadBySenders(ctx context.Context, receiverID string, senderIDs []string) (map[string]int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create inserts a message row; id and created_at are assigned by the model hook
func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// FindByID finds a message by id
func (r *messageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// hiddenForViewer excludes rows the viewer removed with "delete for me"
func hiddenForViewer(db *gorm.DB, userID string) *gorm.DB {
	return db.Where("NOT (sender_id = ? AND deleted_for_sender = ?)", userID, true).
		Where("NOT (receiver_id = ? AND deleted_for_receiver = ?)", userID, true)
}

// FindForParticipant returns the newest messages where the user is sender or
// receiver, newest first. Callers narrow to a pair themselves.
func (r *messageRepository) FindForParticipant(ctx context.Context, userID string, limit int) ([]*domain.Message, error) {
	var messages []*domain.Message
	q := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("sender_id = ? OR receiver_id = ?", userID, userID)
	err := hiddenForViewer(q, userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

// FindConversation returns the newest messages of the pair, oldest first
func (r *messageRepository) FindConversation(ctx context.Context, userID, peerID string, limit int) ([]*domain.Message, error) {
	var messages []*domain.Message
	q := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", userID, peerID, peerID, userID)
	err := hiddenForViewer(q, userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkConversationRead flips is_read on unread rows from sender to receiver
func (r *messageRepository) MarkConversationRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// ApplyEdit replaces the text of a sender's non-deleted message
func (r *messageRepository) ApplyEdit(ctx context.Context, id, senderID, newText string, editedText *string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND sender_id = ? AND is_deleted = ?", id, senderID, false).
		Updates(map[string]interface{}{
			"text":        newText,
			"edited_text": editedText,
			"edited_at":   at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrMessageNotFound
	}
	return nil
}

// MarkDeletedForEveryone soft-deletes a sender's message for both
// participants. The content columns are cleared in the same update.
func (r *messageRepository) MarkDeletedForEveryone(ctx context.Context, id, senderID string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ? AND sender_id = ?", id, senderID).
		Updates(map[string]interface{}{
			"is_deleted":  true,
			"deleted_at":  at,
			"text":        "",
			"image_url":   nil,
			"audio_url":   nil,
			"edited_text": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrMessageNotFound
	}
	return nil
}

func (r *messageRepository) HideForSender(ctx context.Context, id string) error {
	return r.hide(ctx, id, "deleted_for_sender")
}

func (r *messageRepository) HideForReceiver(ctx context.Context, id string) error {
	return r.hide(ctx, id, "deleted_for_receiver")
}

func (r *messageRepository) hide(ctx context.Context, id, column string) error {
	result := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("id = ?", id).
		Update(column, true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrMessageNotFound
	}
	return nil
}

// DeleteConversation hard-deletes both directions of a conversation
func (r *messageRepository) DeleteConversation(ctx context.Context, a, b string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, pair := range [][2]string{{a, b}, {b, a}} {
			result := tx.Where("sender_id = ? AND receiver_id = ?", pair[0], pair[1]).
				Delete(&domain.Message{})
			if result.Error != nil {
				return result.Error
			}
			total += result.RowsAffected
		}
		return nil
	})
	return total, err
}

// CountUnread counts unread messages addressed to receiver, optionally from one sender
func (r *messageRepository) CountUnread(ctx context.Context, receiverID, senderID string) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&domain.Message{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false)
	if senderID != "" {
		q = q.Where("sender_id = ?", senderID)
	}
	err := q.Count(&count).Error
	return count, err
}

// CountUnreadBySenders counts unread messages per sender in one grouped query
func (r *messageRepository) CountUnreadBySenders(ctx context.Context, receiverID string, senderIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(senderIDs))
	if len(senderIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		SenderID string
		Total    int64
	}
	err := r.db.WithContext(ctx).Model(&domain.Message{}).
		Select("sender_id, COUNT(*) AS total").
		Where("receiver_id = ? AND is_read = ? AND sender_id IN ?", receiverID, false, senderIDs).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, id := range senderIDs {
		counts[id] = 0
	}
	for _, row := range rows {
		counts[row.SenderID] = row.Total
	}
	return counts, nil
}
