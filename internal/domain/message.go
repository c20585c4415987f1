package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeletedPlaceholder is rendered instead of the content of a message deleted for everyone
const DeletedPlaceholder = "This message was deleted"

// TempIDPrefix marks ids generated client-side for optimistic entries
const TempIDPrefix = "temp-"

// Message is a direct message between two participants (messages table)
type Message struct {
	ID                 string     `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	SenderID           string     `gorm:"column:sender_id;type:varchar(36);not null;index:idx_messages_sender" json:"sender_id"`
	ReceiverID         string     `gorm:"column:receiver_id;type:varchar(36);not null;index:idx_messages_receiver_read,priority:1" json:"receiver_id"`
	Text               string     `gorm:"column:text;type:text" json:"text"`
	ImageURL           *string    `gorm:"column:image_url;type:mediumtext" json:"image_url,omitempty"`
	AudioURL           *string    `gorm:"column:audio_url;type:text" json:"audio_url,omitempty"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null;index" json:"created_at"`
	IsRead             bool       `gorm:"column:is_read;not null;default:false;index:idx_messages_receiver_read,priority:2" json:"is_read"`
	EditedAt           *time.Time `gorm:"column:edited_at" json:"edited_at,omitempty"`
	EditedText         *string    `gorm:"column:edited_text;type:text" json:"edited_text,omitempty"`
	IsDeleted          bool       `gorm:"column:is_deleted;not null;default:false" json:"is_deleted"`
	DeletedForSender   bool       `gorm:"column:deleted_for_sender;not null;default:false" json:"deleted_for_sender"`
	DeletedForReceiver bool       `gorm:"column:deleted_for_receiver;not null;default:false" json:"deleted_for_receiver"`
	DeletedAt          *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns the server-side id and timestamp
func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" || m.IsTemporary() {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

// IsTemporary reports whether the id was generated for an optimistic entry
func (m *Message) IsTemporary() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// InConversation reports whether the message belongs to the pair {a, b}
func (m *Message) InConversation(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// IsParticipant reports whether the user sent or received the message
func (m *Message) IsParticipant(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// HiddenFor reports whether the viewer removed the message with "delete for me"
func (m *Message) HiddenFor(viewerID string) bool {
	if m.SenderID == viewerID && m.DeletedForSender {
		return true
	}
	return m.ReceiverID == viewerID && m.DeletedForReceiver
}

// IsEdited reports whether the message has been edited
func (m *Message) IsEdited() bool {
	return m.EditedAt != nil
}

// DisplayText returns what a viewer sees in place of the text
func (m *Message) DisplayText() string {
	if m.IsDeleted {
		return DeletedPlaceholder
	}
	return m.Text
}

// MarkDeleted turns the message into a deleted placeholder and drops its
// content, including the original text kept by an edit
func (m *Message) MarkDeleted(at time.Time) {
	m.IsDeleted = true
	m.DeletedAt = &at
	m.Text = ""
	m.ImageURL = nil
	m.AudioURL = nil
	m.EditedText = nil
}

// HasContent reports whether text or an attachment is present
func (m *Message) HasContent() bool {
	return strings.TrimSpace(m.Text) != "" || deref(m.ImageURL) != "" || deref(m.AudioURL) != ""
}

// Fingerprint identifies the content of a send independently of its id
func (m *Message) Fingerprint() string {
	var b strings.Builder
	b.WriteString(m.SenderID)
	b.WriteByte('|')
	b.WriteString(m.ReceiverID)
	b.WriteByte('|')
	b.WriteString(m.Text)
	b.WriteByte('|')
	if deref(m.ImageURL) != "" {
		b.WriteByte('i')
	}
	if deref(m.AudioURL) != "" {
		b.WriteByte('a')
	}
	return b.String()
}

// Clone returns a deep copy
func (m Message) Clone() Message {
	c := m
	c.ImageURL = copyString(m.ImageURL)
	c.AudioURL = copyString(m.AudioURL)
	c.EditedText = copyString(m.EditedText)
	c.EditedAt = copyTime(m.EditedAt)
	c.DeletedAt = copyTime(m.DeletedAt)
	return c
}

// SendMessageRequest is the insert payload of POST /messages
type SendMessageRequest struct {
	ReceiverID string  `json:"receiver_id" binding:"required"`
	Text       string  `json:"text"`
	ImageURL   *string `json:"image_url,omitempty"`
	AudioURL   *string `json:"audio_url,omitempty"`
}

// EditMessageRequest is the payload of the edit_message procedure
type EditMessageRequest struct {
	MessageID string `json:"message_id" binding:"required"`
	NewText   string `json:"new_text"`
}

// MessageIDRequest is the payload of the delete procedures
type MessageIDRequest struct {
	MessageID string `json:"message_id" binding:"required"`
}

// UnreadCountResponse unread counter payload
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// StringPtr returns nil for an empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
