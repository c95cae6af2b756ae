package model

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID         string    `gorm:"type:text;not null;index:idx_projects_owner_created,priority:1" json:"owner_id"`
	BusinessName    string    `gorm:"type:text;not null" json:"business_name"`
	Tagline         *string   `gorm:"type:text" json:"tagline"`
	TargetURL       string    `gorm:"type:text;not null" json:"target_url"`
	TemplateID      string    `gorm:"type:text;not null" json:"template_id"`
	TemplateVersion int       `gorm:"not null;default:1" json:"template_version"`
	LogoPath        *string   `gorm:"type:text" json:"logo_path"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP;index:idx_projects_owner_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Project) TableName() string { return "projects" }
