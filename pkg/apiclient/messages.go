package apiclient

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/pkg/storage"
)

func checkMessage(m *domain.Message) error {
	switch {
	case m.ID == "":
		return errMissingField("id")
	case m.SenderID == "":
		return errMissingField("sender_id")
	case m.ReceiverID == "":
		return errMissingField("receiver_id")
	}
	return nil
}

func (c *Client) message(ctx context.Context, method, path string, in interface{}) (*domain.Message, error) {
	var msg domain.Message
	if err := c.doJSON(ctx, method, path, nil, in, &msg); err != nil {
		return nil, err
	}
	if err := checkMessage(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) messages(ctx context.Context, path string, limit int) ([]domain.Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var msgs []domain.Message
	if err := c.doJSON(ctx, http.MethodGet, path, q, nil, &msgs); err != nil {
		return nil, err
	}
	for i := range msgs {
		if err := checkMessage(&msgs[i]); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// FetchMessages returns the newest messages the caller sent or received
func (c *Client) FetchMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	return c.messages(ctx, "/messages", limit)
}

// Conversation returns the messages exchanged with peerID, oldest first
func (c *Client) Conversation(ctx context.Context, peerID string, limit int) ([]domain.Message, error) {
	return c.messages(ctx, "/conversations/"+url.PathEscape(peerID)+"/messages", limit)
}

// InsertMessage writes a new message
func (c *Client) InsertMessage(ctx context.Context, req domain.SendMessageRequest) (*domain.Message, error) {
	return c.message(ctx, http.MethodPost, "/messages", req)
}

// EditMessage calls the edit_message procedure
func (c *Client) EditMessage(ctx context.Context, messageID, newText string) (*domain.Message, error) {
	return c.message(ctx, http.MethodPost, "/rpc/edit_message", domain.EditMessageRequest{MessageID: messageID, NewText: newText})
}

// DeleteMessage calls delete_message_for_everyone or delete_message_for_me
func (c *Client) DeleteMessage(ctx context.Context, messageID string, forEveryone bool) error {
	path := "/rpc/delete_message_for_me"
	if forEveryone {
		path = "/rpc/delete_message_for_everyone"
	}
	return c.doJSON(ctx, http.MethodPost, path, nil, domain.MessageIDRequest{MessageID: messageID}, nil)
}

// MarkRead marks the peer's messages to the caller as read
func (c *Client) MarkRead(ctx context.Context, peerID string) error {
	return c.doJSON(ctx, http.MethodPost, "/conversations/"+url.PathEscape(peerID)+"/read", nil, nil, nil)
}

// ClearConversation hard-deletes every message between the caller and peerID
func (c *Client) ClearConversation(ctx context.Context, peerID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(peerID), nil, nil, nil)
}

// CountUnread counts unread messages to the caller, from senderID only when set
func (c *Client) CountUnread(ctx context.Context, senderID string) (int64, error) {
	q := url.Values{}
	if senderID != "" {
		q.Set("sender_id", senderID)
	}
	var resp domain.UnreadCountResponse
	if err := c.doJSON(ctx, http.MethodGet, "/messages/unread", q, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Badge returns the caller's unread badge
func (c *Client) Badge(ctx context.Context) (*domain.BadgeResponse, error) {
	var resp domain.BadgeResponse
	if err := c.doJSON(ctx, http.MethodGet, "/badge", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AthleteUnread returns per-athlete unread counts for a coach
func (c *Client) AthleteUnread(ctx context.Context) ([]domain.AthleteUnread, error) {
	var resp []domain.AthleteUnread
	if err := c.doJSON(ctx, http.MethodGet, "/coach/athletes/unread", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Upload stores data in bucket and returns its public URL
func (c *Client) Upload(ctx context.Context, bucket, filename string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/storage/"+url.PathEscape(bucket), nil), &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result storage.UploadResult
	if err := c.do(req, &result); err != nil {
		return "", err
	}
	if result.URL == "" {
		return "", errMissingField("url")
	}
	return result.URL, nil
}

// AnalyzeMeal asks the server for a nutrition estimate of a meal photo
func (c *Client) AnalyzeMeal(ctx context.Context, imageBase64, mimeType string) (*domain.MealAnalysis, error) {
	var resp domain.MealAnalysis
	req := domain.AnalyzeMealRequest{ImageBase64: imageBase64, MimeType: mimeType}
	if err := c.doJSON(ctx, http.MethodPost, "/meals/analyze", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.FoodName == "" {
		return nil, errMissingField("foodName")
	}
	return &resp, nil
}

// CoachReply asks the AI coach a question
func (c *Client) CoachReply(ctx context.Context, message, extra string) (*domain.CoachReplyResponse, error) {
	var resp domain.CoachReplyResponse
	req := domain.CoachReplyRequest{Message: message, Context: extra}
	if err := c.doJSON(ctx, http.MethodPost, "/coach/reply", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
