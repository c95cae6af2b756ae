package model

import (
	"time"

	"github.com/google/uuid"
)

type UsageKind string

const (
	UsageCreate UsageKind = "create"
	UsageEdit   UsageKind = "edit"
)

// UsageEvent is append-only; quota and edit-lock decisions are computed from it.
type UsageEvent struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID   string     `gorm:"type:text;not null;index:idx_usage_owner_kind_created,priority:1" json:"owner_id"`
	ProjectID *uuid.UUID `gorm:"type:uuid;index" json:"project_id"`
	Kind      UsageKind  `gorm:"type:text;not null;check:kind IN ('create','edit');index:idx_usage_owner_kind_created,priority:2" json:"kind"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP;index:idx_usage_owner_kind_created,priority:3" json:"created_at"`
}

func (UsageEvent) TableName() string { return "usage_events" }
