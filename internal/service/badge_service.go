package service

import (
	"context"

	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"github.com/gymsmart/gymsmart-backend/internal/repository"
	"github.com/gymsmart/gymsmart-backend/pkg/cache"
	pkglogger "github.com/gymsmart/gymsmart-backend/pkg/logger"
)

// ScopeAll badge scope covering every sender
const ScopeAll = "all"

// BadgeService unread counters and the role-dependent badge
type BadgeService interface {
	Unread(ctx context.Context, receiverID, senderID string) (int64, error)
	Badge(ctx context.Context, userID string) (*domain.BadgeResponse, error)
	AthleteUnread(ctx context.Context, coachID string) ([]domain.AthleteUnread, error)
}

type badgeService struct {
	messages repository.MessageRepository
	profiles repository.ProfileRepository
	cache    cache.Service
}

// NewBadgeService creates a new BadgeService
func NewBadgeService(messages repository.MessageRepository, profiles repository.ProfileRepository, cacheService cache.Service) BadgeService {
	return &badgeService{messages: messages, profiles: profiles, cache: cacheService}
}

// Unread counts unread messages addressed to receiverID, optionally only
// those from senderID. Counts are read through the redis cache.
func (s *badgeService) Unread(ctx context.Context, receiverID, senderID string) (int64, error) {
	if receiverID == "" {
		return 0, common.ErrInvalidInput
	}
	if s.cache != nil && s.cache.IsAvailable() {
		if n, err := s.cache.GetUnread(ctx, receiverID, senderID); err == nil {
			return n, nil
		}
	}

	n, err := s.messages.CountUnread(ctx, receiverID, senderID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.SetUnread(ctx, receiverID, senderID, n); err != nil {
			pkglogger.GetLogger().Debug().Err(err).Msg("unread cache write failed")
		}
	}
	return n, nil
}

func (s *badgeService) profile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if s.cache != nil && s.cache.IsAvailable() {
		if err := s.cache.GetProfile(ctx, userID, &p); err == nil && p.ID != "" {
			return &p, nil
		}
	}
	found, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetProfile(ctx, userID, found) //nolint:errcheck
	}
	return found, nil
}

// Badge resolves the badge variant from the user's role: coaches and
// admins see all unread, athletes only unread from their selected coach.
func (s *badgeService) Badge(ctx context.Context, userID string) (*domain.BadgeResponse, error) {
	p, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &domain.BadgeResponse{Role: p.Role, Scope: ScopeAll}
	senderID, ok := p.BadgeSender()
	if !ok {
		resp.Scope = ""
		return resp, nil
	}
	if senderID != "" {
		resp.Scope = senderID
	}

	resp.Count, err = s.Unread(ctx, userID, senderID)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// AthleteUnread lists the coach's athletes with their unread counts
func (s *badgeService) AthleteUnread(ctx context.Context, coachID string) ([]domain.AthleteUnread, error) {
	p, err := s.profile(ctx, coachID)
	if err != nil {
		return nil, err
	}
	if p.Role == domain.RoleAthlete {
		return nil, common.ErrForbidden
	}

	athletes, err := s.profiles.FindAthletesByCoach(ctx, coachID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(athletes))
	for i, a := range athletes {
		ids[i] = a.ID
	}
	counts, err := s.messages.CountUnreadBySenders(ctx, coachID, ids)
	if err != nil {
		return nil, err
	}

	result := make([]domain.AthleteUnread, len(athletes))
	for i, a := range athletes {
		result[i] = domain.AthleteUnread{
			AthleteID:   a.ID,
			Name:        a.Name,
			AvatarURL:   a.AvatarURL,
			UnreadCount: counts[a.ID],
		}
	}
	return result, nil
}
