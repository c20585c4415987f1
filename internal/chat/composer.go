package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/pkg/storage"
)

// Draft is what the user composed
type Draft struct {
	Text string
	// ImageDataURI is sent as is and stored in image_url
	ImageDataURI string
	// Audio is a recorded clip, uploaded before the row is written
	Audio []byte
	// AudioPreviewURL is shown in the optimistic entry until the row is confirmed
	AudioPreviewURL string
}

// IsEmpty reports whether the draft carries nothing to send
func (d Draft) IsEmpty() bool {
	return strings.TrimSpace(d.Text) == "" && d.ImageDataURI == "" && len(d.Audio) == 0
}

// Send uploads the audio clip if any, shows an optimistic entry and inserts
// the row. On confirmation the temporary entry is replaced by the server
// row; on failure it is removed and the error returned.
func (c *Conversation) Send(ctx context.Context, draft Draft) (*domain.Message, error) {
	if c.myID == "" || c.peerID == "" {
		return nil, ErrNoConversation
	}
	if draft.IsEmpty() {
		return nil, ErrEmptyDraft
	}
	if !c.Live() {
		return nil, ErrClosed
	}

	req := domain.SendMessageRequest{
		ReceiverID: c.peerID,
		Text:       strings.TrimSpace(draft.Text),
		ImageURL:   domain.StringPtr(draft.ImageDataURI),
	}
	if len(draft.Audio) > 0 {
		url, err := c.backend.Upload(ctx, storage.BucketAudioMessages, "voice.webm", draft.Audio)
		if err != nil {
			c.log.Warn().Err(err).Msg("audio upload failed, send aborted")
			return nil, fmt.Errorf("upload audio: %w", err)
		}
		req.AudioURL = &url
	}

	temp := domain.Message{
		ID:         c.newID(),
		SenderID:   c.myID,
		ReceiverID: c.peerID,
		Text:       req.Text,
		ImageURL:   req.ImageURL,
		AudioURL:   req.AudioURL,
		CreatedAt:  c.now(),
	}
	if draft.AudioPreviewURL != "" {
		temp.AudioURL = domain.StringPtr(draft.AudioPreviewURL)
	}
	fingerprint := temp.Fingerprint()

	c.mu.Lock()
	if !c.live {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.messages = append(c.messages, temp)
	c.addPendingLocked(fingerprint, temp.ID)
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snapshot)

	row, err := c.backend.InsertMessage(ctx, req)

	c.mu.Lock()
	c.dropPendingLocked(fingerprint, temp.ID)
	if err != nil {
		removed := c.removeLocked(temp.ID)
		snapshot = c.snapshotLocked()
		live := c.live
		c.mu.Unlock()
		if removed && live {
			c.notify(snapshot)
		}
		c.log.Warn().Err(err).Msg("send failed, optimistic entry removed")
		return nil, err
	}

	c.confirmed[row.ID] = true
	if !c.live {
		c.mu.Unlock()
		return row, nil
	}
	if i := c.indexLocked(temp.ID); i >= 0 {
		if c.indexLocked(row.ID) >= 0 {
			// a fetch already brought the row in
			c.removeLocked(temp.ID)
		} else {
			c.messages[i] = row.Clone()
		}
	}
	snapshot = c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snapshot)
	return row, nil
}
