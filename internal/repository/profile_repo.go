package repository

import (
	"context"
	"errors"

	"github.com/gymsmart/gymsmart-backend/internal/common"
	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"gorm.io/gorm"
)

// ProfileRepository profile data access interface
type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Profile, error)
	FindAthletesByCoach(ctx context.Context, coachID string) ([]*domain.Profile, error)
	Upsert(ctx context.Context, p *domain.Profile) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindAthletesByCoach returns athletes whose selected coach is coachID
func (r *profileRepository) FindAthletesByCoach(ctx context.Context, coachID string) ([]*domain.Profile, error) {
	var athletes []*domain.Profile
	err := r.db.WithContext(ctx).
		Where("selected_coach_id = ? AND role = ?", coachID, domain.RoleAthlete).
		Order("name ASC").
		Find(&athletes).Error
	return athletes, err
}

func (r *profileRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	return r.db.WithContext(ctx).Save(p).Error
}
