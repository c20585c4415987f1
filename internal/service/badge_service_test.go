package service

import (
	"context"
	"testing"

	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProfileRepository is a mock implementation of ProfileRepository
type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockProfileRepository) FindAthletesByCoach(ctx context.Context, coachID string) ([]*domain.Profile, error) {
	args := m.Called(ctx, coachID)
	return args.Get(0).([]*domain.Profile), args.Error(1)
}

func (m *MockProfileRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	return m.Called(ctx, p).Error(0)
}

func newTestBadgeService() (*MockMessageRepository, *MockProfileRepository, BadgeService) {
	messages := new(MockMessageRepository)
	profiles := new(MockProfileRepository)
	return messages, profiles, NewBadgeService(messages, profiles, cache.NewService(nil))
}

func TestBadge_CoachCountsAllSenders(t *testing.T) {
	messages, profiles, svc := newTestBadgeService()
	profiles.On("FindByID", mock.Anything, "coach").Return(&domain.Profile{ID: "coach", Role: domain.RoleCoach}, nil)
	messages.On("CountUnread", mock.Anything, "coach", "").Return(int64(7), nil)

	badge, err := svc.Badge(context.Background(), "coach")

	require.NoError(t, err)
	assert.Equal(t, int64(7), badge.Count)
	assert.Equal(t, ScopeAll, badge.Scope)
	messages.AssertExpectations(t)
}

func TestBadge_AthleteCountsSelectedCoachOnly(t *testing.T) {
	messages, profiles, svc := newTestBadgeService()
	profiles.On("FindByID", mock.Anything, "athlete").Return(&domain.Profile{
		ID: "athlete", Role: domain.RoleAthlete, SelectedCoachID: domain.StringPtr("coach"),
	}, nil)
	messages.On("CountUnread", mock.Anything, "athlete", "coach").Return(int64(2), nil)

	badge, err := svc.Badge(context.Background(), "athlete")

	require.NoError(t, err)
	assert.Equal(t, int64(2), badge.Count)
	assert.Equal(t, "coach", badge.Scope)
}

func TestBadge_AthleteWithoutCoachIsZero(t *testing.T) {
	messages, profiles, svc := newTestBadgeService()
	profiles.On("FindByID", mock.Anything, "athlete").Return(&domain.Profile{ID: "athlete", Role: domain.RoleAthlete}, nil)

	badge, err := svc.Badge(context.Background(), "athlete")

	require.NoError(t, err)
	assert.Zero(t, badge.Count)
	messages.AssertNotCalled(t, "CountUnread", mock.Anything, mock.Anything, mock.Anything)
}

func TestBadge_UnknownProfile(t *testing.T) {
	_, profiles, svc := newTestBadgeService()
	profiles.On("FindByID", mock.Anything, "ghost").Return(nil, common.ErrProfileNotFound)

	_, err := svc.Badge(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrProfileNotFound)
}

func TestAthleteUnread(t *testing.T) {
	messages, profiles, svc := newTestBadgeService()
	profiles.On("FindByID", mock.Anything, "coach").Return(&domain.Profile{ID: "coach", Role: domain.RoleCoach}, nil)
	profiles.On("FindAthletesByCoach", mock.Anything, "coach").Return([]*domain.Profile{
		{ID: "a1", Name: "Amy"}, {ID: "a2", Name: "Ben"},
	}, nil)
	messages.On("CountUnreadBySenders", mock.Anything, "coach", []string{"a1", "a2"}).Return(map[string]int64{"a1": 3}, nil)

	list, err := svc.AthleteUnread(context.Background(), "coach")

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].UnreadCount)
	assert.Equal(t, int64(0), list[1].UnreadCount)
}

func TestAthleteUnread_AthleteForbidden(t *testing.T) {
	_, profiles, svc := newTestBadgeService()
	profiles.On("FindByID", mock.Anything, "a1").Return(&domain.Profile{ID: "a1", Role: domain.RoleAthlete}, nil)

	_, err := svc.AthleteUnread(context.Background(), "a1")
	assert.ErrorIs(t, err, common.ErrForbidden)
}
