package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/internal/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeData(t *testing.T, w http.ResponseWriter, status int, data interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(common.APIResponse{Data: data}))
}

func writeError(t *testing.T, w http.ResponseWriter, status int, code, message string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(common.APIResponse{Error: &common.ErrorInfo{Code: code, Message: message}}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, "token-1")
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadScheme(t *testing.T) {
	_, err := New("ftp://example.com", "x")
	assert.Error(t, err)
}

func TestFetchMessages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/messages", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		writeData(t, w, http.StatusOK, []domain.Message{{ID: "m1", SenderID: "a", ReceiverID: "b", Text: "hi"}})
	})

	msgs, err := c.FetchMessages(context.Background(), 100)

	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text)
}

func TestFetchMessages_MalformedRow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(t, w, http.StatusOK, []domain.Message{{SenderID: "a", ReceiverID: "b"}})
	})

	_, err := c.FetchMessages(context.Background(), 10)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}

func TestInsertMessage_NotJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>oops</html>")
	})

	_, err := c.InsertMessage(context.Background(), domain.SendMessageRequest{ReceiverID: "b", Text: "x"})
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}

func TestInsertMessage_SendsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req domain.SendMessageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "b", req.ReceiverID)
		writeData(t, w, http.StatusCreated, domain.Message{ID: "m9", SenderID: "a", ReceiverID: req.ReceiverID, Text: req.Text})
	})

	msg, err := c.InsertMessage(context.Background(), domain.SendMessageRequest{ReceiverID: "b", Text: "yo"})

	require.NoError(t, err)
	assert.Equal(t, "m9", msg.ID)
}

func TestErrorMapping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(t, w, http.StatusForbidden, "FORBIDDEN", "only the sender may edit")
	})

	_, err := c.EditMessage(context.Background(), "m1", "x")

	assert.ErrorIs(t, err, common.ErrForbidden)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
	assert.Equal(t, "only the sender may edit", apiErr.Message)
}

func TestDeleteMessage_Routes(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		writeData(t, w, http.StatusOK, map[string]string{"message_id": "m1"})
	})

	require.NoError(t, c.DeleteMessage(context.Background(), "m1", true))
	require.NoError(t, c.DeleteMessage(context.Background(), "m1", false))

	assert.Equal(t, []string{"/api/v1/rpc/delete_message_for_everyone", "/api/v1/rpc/delete_message_for_me"}, paths)
}

func TestCountUnread(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "coach-1", r.URL.Query().Get("sender_id"))
		writeData(t, w, http.StatusOK, domain.UnreadCountResponse{Count: 4})
	})

	n, err := c.CountUnread(context.Background(), "coach-1")

	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/storage/audio-messages", r.URL.Path)
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "voice.webm", header.Filename)
		assert.Equal(t, "clip", string(data))
		writeData(t, w, http.StatusCreated, map[string]string{"url": "https://cdn.test/a/1.webm"})
	})

	url, err := c.Upload(context.Background(), "audio-messages", "voice.webm", []byte("clip"))

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/a/1.webm", url)
}

func TestSubscribe_DeliversInserts(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/messages", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		other, _ := ws.NewEvent("presence", map[string]bool{"online": true})
		insert, _ := ws.NewEvent(ws.EventMessageInsert, domain.Message{ID: "m1", SenderID: "b", ReceiverID: "a", Text: "hi"})
		for _, ev := range []*ws.Event{other, insert} {
			data, _ := json.Marshal(ev)
			assert.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		// hold the connection until the client closes it
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "token-1")
	require.NoError(t, err)
	sub, err := c.Subscribe(context.Background())
	require.NoError(t, err)

	select {
	case msg := <-sub.Events():
		assert.Equal(t, "m1", msg.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	require.NoError(t, sub.Close())
	for range sub.Events() {
	}
}

func TestSubscribe_RequiresToken(t *testing.T) {
	c, err := New("http://localhost:1", "")
	require.NoError(t, err)

	_, err = c.Subscribe(context.Background())
	assert.Error(t, err)
}

func TestEndpoint_KeepsBasePath(t *testing.T) {
	c, err := New("https://api.example.com/gym/", "t")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.endpoint("/messages", nil), "https://api.example.com/gym/api/v1/messages"))
}
