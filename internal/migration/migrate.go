package migration

import (
	"fmt"

	"github.com/gymsmart/gymsmart-backend/internal/domain"
	"gorm.io/gorm"
)

// Run creates or updates the messages and profiles tables
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.Profile{}, &domain.Message{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// SeedProfiles inserts a coach, an admin and two athletes when the profiles
// table is empty. Used for local development only.
func SeedProfiles(db *gorm.DB) error {
	var count int64
	if err := db.Model(&domain.Profile{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	coachID := "00000000-0000-0000-0000-00000000c0ac"
	profiles := []domain.Profile{
		{ID: coachID, Role: domain.RoleCoach, Name: "Coach Kim"},
		{ID: "00000000-0000-0000-0000-0000000ad111", Role: domain.RoleAdmin, Name: "Front Desk"},
		{ID: "00000000-0000-0000-0000-00000000a001", Role: domain.RoleAthlete, Name: "Athlete One", SelectedCoachID: &coachID},
		{ID: "00000000-0000-0000-0000-00000000a002", Role: domain.RoleAthlete, Name: "Athlete Two", SelectedCoachID: &coachID},
	}
	return db.Create(&profiles).Error
}

// Report counts rows that break message invariants
type Report struct {
	Messages          int64
	EditedWithoutText int64
	SelfAddressed     int64
	Empty             int64
}

// OK reports whether no violations were found
func (r Report) OK() bool {
	return r.EditedWithoutText == 0 && r.SelfAddressed == 0 && r.Empty == 0
}

// Verify checks the stored messages
func Verify(db *gorm.DB) (Report, error) {
	var r Report
	checks := []struct {
		dst   *int64
		where string
		args  []interface{}
	}{
		{&r.Messages, "1 = 1", nil},
		{&r.EditedWithoutText, "is_deleted = ? AND edited_at IS NOT NULL AND edited_text IS NULL", []interface{}{false}},
		{&r.SelfAddressed, "sender_id = receiver_id", nil},
		{&r.Empty, "is_deleted = ? AND TRIM(COALESCE(text, '')) = '' AND COALESCE(image_url, '') = '' AND COALESCE(audio_url, '') = ''", []interface{}{false}},
	}
	for _, c := range checks {
		if err := db.Model(&domain.Message{}).Where(c.where, c.args...).Count(c.dst).Error; err != nil {
			return r, err
		}
	}
	return r, nil
}
