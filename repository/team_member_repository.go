package repository

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/koas-web/koasbackend/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

type GormTeamMemberRepository struct {
	db *gorm.DB
}

func NewGormTeamMemberRepository(db *gorm.DB) TeamMemberRepository {
	return &GormTeamMemberRepository{db: db}
}

func (r *GormTeamMemberRepository) Create(fields TeamMemberFields) (*models.TeamMember, error) {
	member := models.TeamMember{
		Name:         fields.Name,
		Role:         fields.Role,
		Department:   fields.Department,
		PhotoPath:    fields.PhotoPath,
		Summary:      fields.Summary,
		DisplayOrder: fields.DisplayOrder,
		Status:       models.MemberActive,
	}
	if err := r.db.Create(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *GormTeamMemberRepository) GetByID(id uint) (*models.TeamMember, error) {
	var member models.TeamMember
	if err := r.db.First(&member, id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// ListActive returns the public roster: active members ordered by
// display_order, then name.
func (r *GormTeamMemberRepository) ListActive() ([]models.TeamMember, error) {
	queryBuilder := psql.
		Select("*").
		From("team_members").
		Where(sq.Eq{"status": models.MemberActive}).
		OrderBy("display_order ASC", "name ASC")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListActive: %w", err)
	}

	var members []models.TeamMember
	if err := r.db.Raw(sqlStr, args...).Scan(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to list active members: %w", err)
	}
	return members, nil
}

func (r *GormTeamMemberRepository) Update(id uint, fields TeamMemberFields) (*models.TeamMember, error) {
	var member models.TeamMember
	if err := r.db.First(&member, id).Error; err != nil {
		return nil, err
	}

	member.Name = fields.Name
	member.Role = fields.Role
	member.Department = fields.Department
	member.PhotoPath = fields.PhotoPath
	member.Summary = fields.Summary
	member.DisplayOrder = fields.DisplayOrder

	if err := r.db.Save(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *GormTeamMemberRepository) SoftDelete(id uint) error {
	// no row matched means already deleted or never existed; both are fine
	return r.db.Model(&models.TeamMember{}).
		Where("id = ? AND status = ?", id, models.MemberActive).
		Update("status", models.MemberDeleted).Error
}
