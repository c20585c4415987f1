package service

import (
	"context"
	"testing"
	"time"

	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMessageRepository is a mock implementation of MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	if msg.ID == "" {
		msg.ID = "generated-id"
	}
	return args.Error(0)
}

func (m *MockMessageRepository) FindByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) FindForParticipant(ctx context.Context, userID string, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) FindConversation(ctx context.Context, userID, peerID string, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, userID, peerID, limit)
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) MarkConversationRead(ctx context.Context, receiverID, senderID string) (int64, error) {
	args := m.Called(ctx, receiverID, senderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) ApplyEdit(ctx context.Context, id, senderID, newText string, editedText *string, at time.Time) error {
	args := m.Called(ctx, id, senderID, newText, editedText, at)
	return args.Error(0)
}

func (m *MockMessageRepository) MarkDeletedForEveryone(ctx context.Context, id, senderID string, at time.Time) error {
	args := m.Called(ctx, id, senderID, at)
	return args.Error(0)
}

func (m *MockMessageRepository) HideForSender(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockMessageRepository) HideForReceiver(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockMessageRepository) DeleteConversation(ctx context.Context, a, b string) (int64, error) {
	args := m.Called(ctx, a, b)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) CountUnread(ctx context.Context, receiverID, senderID string) (int64, error) {
	args := m.Called(ctx, receiverID, senderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) CountUnreadBySenders(ctx context.Context, receiverID string, senderIDs []string) (map[string]int64, error) {
	args := m.Called(ctx, receiverID, senderIDs)
	return args.Get(0).(map[string]int64), args.Error(1)
}

// MockPublisher records pushed inserts
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishInsert(msg *domain.Message) {
	m.Called(msg)
}

func newTestMessageService(repo *MockMessageRepository, pub Publisher) *messageService {
	svc := NewMessageService(repo, cache.NewService(nil), pub, 100).(*messageService)
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestSend_Success(t *testing.T) {
	repo := new(MockMessageRepository)
	pub := new(MockPublisher)
	svc := newTestMessageService(repo, pub)

	repo.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
		return m.SenderID == "athlete" && m.ReceiverID == "coach" && m.Text == "hello"
	})).Return(nil)
	pub.On("PublishInsert", mock.AnythingOfType("*domain.Message")).Return()

	msg, err := svc.Send(context.Background(), "athlete", &domain.SendMessageRequest{ReceiverID: "coach", Text: "  hello  "})

	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.Nil(t, msg.ImageURL)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSend_EmptyDraftRejected(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestMessageService(repo, nil)

	_, err := svc.Send(context.Background(), "athlete", &domain.SendMessageRequest{ReceiverID: "coach", Text: "   "})

	assert.ErrorIs(t, err, common.ErrEmptyMessage)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSend_AudioOnly(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestMessageService(repo, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	msg, err := svc.Send(context.Background(), "athlete", &domain.SendMessageRequest{
		ReceiverID: "coach",
		AudioURL:   domain.StringPtr("https://cdn/audio-messages/athlete/1.webm"),
	})

	require.NoError(t, err)
	require.NotNil(t, msg.AudioURL)
	assert.Empty(t, msg.Text)
}

func TestSend_SelfMessage(t *testing.T) {
	svc := newTestMessageService(new(MockMessageRepository), nil)
	_, err := svc.Send(context.Background(), "coach", &domain.SendMessageRequest{ReceiverID: "coach", Text: "hi"})
	assert.ErrorIs(t, err, common.ErrSelfMessage)
}

func TestEdit_FirstEditKeepsOriginal(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestMessageService(repo, nil)

	repo.On("FindByID", mock.Anything, "m1").Return(&domain.Message{ID: "m1", SenderID: "coach", ReceiverID: "athlete", Text: "see you at 6"}, nil)
	repo.On("ApplyEdit", mock.Anything, "m1", "coach", "see you at 7", mock.MatchedBy(func(s *string) bool {
		return s != nil && *s == "see you at 6"
	}), svc.now()).Return(nil)

	msg, err := svc.Edit(context.Background(), "coach", &domain.EditMessageRequest{MessageID: "m1", NewText: "see you at 7"})

	require.NoError(t, err)
	assert.Equal(t, "see you at 7", msg.Text)
	assert.Equal(t, "see you at 6", *msg.EditedText)
	assert.True(t, msg.IsEdited())
	repo.AssertExpectations(t)
}

func TestEdit_SecondEditKeepsFirstOriginal(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestMessageService(repo, nil)
	edited := time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC)

	repo.On("FindByID", mock.Anything, "m1").Return(&domain.Message{
		ID: "m1", SenderID: "coach", ReceiverID: "athlete", Text: "B",
		EditedText: domain.StringPtr("A"), EditedAt: &edited,
	}, nil)
	repo.On("ApplyEdit", mock.Anything, "m1", "coach", "C", mock.MatchedBy(func(s *string) bool {
		return s != nil && *s == "A"
	}), mock.Anything).Return(nil)

	msg, err := svc.Edit(context.Background(), "coach", &domain.EditMessageRequest{MessageID: "m1", NewText: "C"})

	require.NoError(t, err)
	assert.Equal(t, "C", msg.Text)
	assert.Equal(t, "A", *msg.EditedText)
}

func TestEdit_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		stored  *domain.Message
		newText string
		wantErr error
	}{
		{"empty text", "coach", nil, "   ", common.ErrInvalidInput},
		{"not sender", "athlete", &domain.Message{ID: "m1", SenderID: "coach", ReceiverID: "athlete", Text: "x"}, "y", common.ErrForbidden},
		{"stranger", "other", &domain.Message{ID: "m1", SenderID: "coach", ReceiverID: "athlete", Text: "x"}, "y", common.ErrForbidden},
		{"deleted", "coach", &domain.Message{ID: "m1", SenderID: "coach", ReceiverID: "athlete", Text: "x", IsDeleted: true}, "y", common.ErrMessageDeleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockMessageRepository)
			svc := newTestMessageService(repo, nil)
			if tt.stored != nil {
				repo.On("FindByID", mock.Anything, "m1").Return(tt.stored, nil)
			}

			_, err := svc.Edit(context.Background(), tt.userID, &domain.EditMessageRequest{MessageID: "m1", NewText: tt.newText})

			assert.ErrorIs(t, err, tt.wantErr)
			repo.AssertNotCalled(t, "ApplyEdit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestEdit_UnknownMessage(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestMessageService(repo, nil)
	repo.On("FindByID", mock.Anything, "nope").Return(nil, common.ErrMessageNotFound)

	_, err := svc.Edit(context.Background(), "coach", &domain.EditMessageRequest{MessageID: "nope", NewText: "x"})
	assert.ErrorIs(t, err, common.ErrMessageNotFound)
}

func TestDeleteForEveryone(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestMessageService(repo, nil)
	repo.On("FindByID", mock.Anything, "m1").Return(&domain.Message{ID: "m1", SenderID: "coach", ReceiverID: "athlete", Text: "oops"}, nil)
	repo.On("MarkDeletedForEveryone", mock.Anything, "m1", "coach", svc.now()).Return(nil)

	msg, err := svc.DeleteForEveryone(context.Background(), "coach", "m1")

	require.NoError(t, err)
	assert.True(t, msg.IsDeleted)
	assert.Equal(t, domain.DeletedPlaceholder, msg.DisplayText())
	require.NotNil(t, msg.DeletedAt)
	assert.Empty(t, msg.Text)
}

func TestDeleteForEveryone_ReceiverForbidden(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestMessageService(repo, nil)
	repo.On("FindByID", mock.Anything, "m1").Return(&domain.Message{ID: "m1", SenderID: "coach", ReceiverID: "athlete"}, nil)

	_, err := svc.DeleteForEveryone(context.Background(), "athlete", "m1")
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestDeleteForMe_PicksOwnFlag(t *testing.T) {
	stored := &domain.Message{ID: "m1", SenderID: "coach", ReceiverID: "athlete"}

	t.Run("sender", func(t *testing.T) {
		repo := new(MockMessageRepository)
		svc := newTestMessageService(repo, nil)
		repo.On("FindByID", mock.Anything, "m1").Return(stored, nil)
		repo.On("HideForSender", mock.Anything, "m1").Return(nil)

		require.NoError(t, svc.DeleteForMe(context.Background(), "coach", "m1"))
		repo.AssertNotCalled(t, "HideForReceiver", mock.Anything, mock.Anything)
	})

	t.Run("receiver", func(t *testing.T) {
		repo := new(MockMessageRepository)
		svc := newTestMessageService(repo, nil)
		repo.On("FindByID", mock.Anything, "m1").Return(stored, nil)
		repo.On("HideForReceiver", mock.Anything, "m1").Return(nil)

		require.NoError(t, svc.DeleteForMe(context.Background(), "athlete", "m1"))
		repo.AssertNotCalled(t, "HideForSender", mock.Anything, mock.Anything)
	})

	t.Run("stranger", func(t *testing.T) {
		repo := new(MockMessageRepository)
		svc := newTestMessageService(repo, nil)
		repo.On("FindByID", mock.Anything, "m1").Return(stored, nil)

		assert.ErrorIs(t, svc.DeleteForMe(context.Background(), "other", "m1"), common.ErrForbidden)
	})
}

func TestListClampsLimit(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestMessageService(repo, nil)
	repo.On("FindForParticipant", mock.Anything, "coach", 100).Return([]*domain.Message{}, nil)

	_, err := svc.List(context.Background(), "coach", 5000)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestClearConversation(t *testing.T) {
	repo := new(MockMessageRepository)
	svc := newTestMessageService(repo, nil)
	repo.On("DeleteConversation", mock.Anything, "coach", "athlete").Return(int64(4), nil)

	n, err := svc.ClearConversation(context.Background(), "coach", "athlete")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, err = svc.ClearConversation(context.Background(), "coach", "coach")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestMetricsNamespace(t *testing.T) {
	for _, c := range []prometheus.Collector{messageOpsTotal, aiRequestsTotal} {
		descs := make(chan *prometheus.Desc, 1)
		c.Describe(descs)
		assert.Contains(t, (<-descs).String(), `fqName: "gymsmart_`)
	}
}
