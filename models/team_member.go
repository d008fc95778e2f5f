package models

import "time"

// MemberStatus is the lifecycle state of a team member row. deleted rows are
// retained so member IDs stay stable and are never reused.
type MemberStatus string

const (
	MemberActive  MemberStatus = "active"
	MemberDeleted MemberStatus = "deleted"
)

// TeamMember is a roster entry on the public team page. PhotoPath references
// a file under the photo directory; the row never owns the file.
type TeamMember struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	Name         string       `json:"name" gorm:"not null"`
	Role         string       `json:"role"`
	Department   string       `json:"department"`
	PhotoPath    string       `json:"photo_path"`
	Summary      string       `json:"summary"`
	DisplayOrder int          `json:"display_order" gorm:"not null;default:0"`
	Status       MemberStatus `json:"status" gorm:"type:text;not null;default:active;index"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (TeamMember) TableName() string { return "team_members" }

func (m *TeamMember) IsActive() bool { return m.Status == MemberActive }
