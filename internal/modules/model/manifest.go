package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/qrdesk/qrstudio/internal/pkg/printpack"
	"gorm.io/datatypes"
)

// ManifestFile points at one rendered PDF in object storage.
type ManifestFile struct {
	Filename    string `json:"filename"`
	StoragePath string `json:"storage_path"`
	ByteSize    int64  `json:"byte_size"`
	SHA256      string `json:"sha256"`
}

// ManifestFiles is keyed by print format.
type ManifestFiles map[printpack.FormatKey]ManifestFile

type GenerationManifest struct {
	ID             uuid.UUID                          `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID        string                             `gorm:"type:text;not null;uniqueIndex:idx_manifest_owner_project_hash" json:"owner_id"`
	ProjectID      uuid.UUID                          `gorm:"type:uuid;not null;index;uniqueIndex:idx_manifest_owner_project_hash" json:"project_id"`
	GenerationHash string                             `gorm:"type:char(64);not null;uniqueIndex:idx_manifest_owner_project_hash" json:"generation_hash"`
	Spec           datatypes.JSONType[printpack.Spec] `gorm:"type:jsonb;not null" swaggertype:"object" json:"spec"`
	Files          datatypes.JSONType[ManifestFiles]  `gorm:"type:jsonb;not null" swaggertype:"object" json:"files"`

	CreatedAt time.Time `gorm:"autoCreateTime;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// GenerationManifest <-> Project
	Project *Project `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (GenerationManifest) TableName() string { return "generation_manifests" }

// Missing lists the requested formats that have no stored file.
func (m *GenerationManifest) Missing(formats []printpack.FormatKey) []printpack.FormatKey {
	files := m.Files.Data()
	var out []printpack.FormatKey
	for _, f := range formats {
		if _, ok := files[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}
