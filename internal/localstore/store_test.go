package localstore

import (
	"context"
	"testing"
	"time"

	"github.com/gymsmart/gymsmart-backend/internal/chat"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCache_StoreLoadClear(t *testing.T) {
	s := setupStore(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	entry := chat.Entry{
		OwnerID: "a",
		PeerID:  "b",
		Messages: []domain.Message{
			{ID: "m1", SenderID: "a", ReceiverID: "b", Text: "hi", CreatedAt: at, ImageURL: domain.StringPtr("data:image/png;base64,AA")},
		},
		LastWrittenAt: at,
	}

	require.NoError(t, s.Store(entry))
	got, ok := s.Load("a", "b")
	require.True(t, ok)
	assert.Equal(t, entry.Messages, got.Messages)
	assert.True(t, at.Equal(got.LastWrittenAt))

	_, ok = s.Load("b", "a")
	assert.False(t, ok)

	require.NoError(t, s.Clear("a", "b"))
	_, ok = s.Load("a", "b")
	assert.False(t, ok)
}

func TestCache_StoreReplacesEntry(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Store(chat.Entry{OwnerID: "a", PeerID: "b", Messages: []domain.Message{{ID: "m1"}, {ID: "m2"}}}))
	require.NoError(t, s.Store(chat.Entry{OwnerID: "a", PeerID: "b", Messages: []domain.Message{{ID: "m3"}}}))

	got, ok := s.Load("a", "b")
	require.True(t, ok)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "m3", got.Messages[0].ID)
}

func TestCache_CorruptPayloadIsMiss(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.db.Create(&conversationCache{OwnerID: "a", PeerID: "b", Payload: "{not json", LastWrittenAt: time.Now()}).Error)

	_, ok := s.Load("a", "b")
	assert.False(t, ok)
}

func TestTimer_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	_, ok, err := s.LoadTimer(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	target := time.UnixMilli(1714557660000)
	require.NoError(t, s.SaveTimer(ctx, timer.State{TargetAt: &target, DurationSeconds: 90}))
	got, ok, err := s.LoadTimer(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, got.TargetAt)
	assert.True(t, target.Equal(*got.TargetAt))
	assert.Equal(t, 90, got.DurationSeconds)

	require.NoError(t, s.SaveTimer(ctx, timer.State{DurationSeconds: 90}))
	got, _, err = s.LoadTimer(ctx)
	require.NoError(t, err)
	assert.Nil(t, got.TargetAt)
	assert.Equal(t, 90, got.DurationSeconds)
}

func TestTimer_PersistsAcrossRestore(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)

	tm, err := timer.New(ctx, s)
	require.NoError(t, err)
	require.NoError(t, tm.SetDuration(ctx, 120*time.Second))
	require.NoError(t, tm.Start(ctx))

	restored, err := timer.New(ctx, s)
	require.NoError(t, err)
	assert.True(t, restored.Running())
	assert.Equal(t, 120*time.Second, restored.Duration())
}

func TestConversation_UsesSQLiteCache(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.Store(chat.Entry{OwnerID: "a", PeerID: "b", Messages: []domain.Message{
		{ID: "m1", SenderID: "b", ReceiverID: "a", Text: "cached"},
	}}))

	conv := chat.NewConversation(nil, s, "a", "b", chat.Options{})
	require.True(t, conv.LoadCached())
	require.Len(t, conv.Messages(), 1)
	assert.Equal(t, "cached", conv.Messages()[0].Text)
}
