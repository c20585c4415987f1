package domain

import "time"

// Role of a gym member
type Role string

const (
	RoleAthlete Role = "ATHLETE"
	RoleCoach   Role = "COACH"
	RoleAdmin   Role = "ADMIN"
)

// Profile is the public profile of a user (profiles table)
type Profile struct {
	ID              string    `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	Role            Role      `gorm:"column:role;type:varchar(16);not null;default:ATHLETE" json:"role"`
	Name            string    `gorm:"column:name;type:varchar(100)" json:"name"`
	AvatarURL       string    `gorm:"column:avatar_url;type:text" json:"avatar_url"`
	SelectedCoachID *string   `gorm:"column:selected_coach_id;type:varchar(36);index" json:"selected_coach_id,omitempty"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// BadgeSender returns the sender filter of the unread badge: athletes only
// count messages from their selected coach, coaches and admins count all.
// ok is false when an athlete has no coach selected (badge is always zero).
func (p *Profile) BadgeSender() (senderID string, ok bool) {
	if p.Role != RoleAthlete {
		return "", true
	}
	if p.SelectedCoachID == nil || *p.SelectedCoachID == "" {
		return "", false
	}
	return *p.SelectedCoachID, true
}

// BadgeResponse unread badge payload
type BadgeResponse struct {
	Role  Role   `json:"role"`
	Count int64  `json:"count"`
	Scope string `json:"scope"` // "all" or the coach id
}

// AthleteUnread per-athlete unread count on the coach dashboard
type AthleteUnread struct {
	AthleteID   string `json:"athlete_id"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatar_url"`
	UnreadCount int64  `json:"unread_count"`
}
