package repository

import "github.com/koas-web/koasbackend/models"

// AdminUserRepository manages panel operator accounts. usernames are
// immutable once created.
type AdminUserRepository interface {
	Create(user *models.AdminUser) error
	GetByUsername(username string) (*models.AdminUser, error)
	UpdatePassword(username, newHash string) error
}

// TeamMemberFields carries the mutable fields of a team member for create
// and full-replace update operations.
type TeamMemberFields struct {
	Name         string
	Role         string
	Department   string
	PhotoPath    string
	Summary      string
	DisplayOrder int
}

// TeamMemberRepository manages roster rows. deletion is a soft delete: rows
// flip to the deleted status and stay in place, so IDs are never reused.
type TeamMemberRepository interface {
	Create(fields TeamMemberFields) (*models.TeamMember, error)
	GetByID(id uint) (*models.TeamMember, error)
	// ListActive returns active members ordered by display_order, then name.
	ListActive() ([]models.TeamMember, error)
	// Update replaces all mutable fields and refreshes updated_at. returns
	// gorm.ErrRecordNotFound when the id does not exist.
	Update(id uint, fields TeamMemberFields) (*models.TeamMember, error)
	// SoftDelete marks a member deleted. idempotent: deleting an already
	// deleted or unknown id is a no-op success.
	SoftDelete(id uint) error
}
