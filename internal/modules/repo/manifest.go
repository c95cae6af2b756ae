package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/qrdesk/qrstudio/internal/modules/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ManifestRepo interface {
	// Find returns (nil, nil) when no manifest exists for the key.
	Find(ctx context.Context, ownerID string, projectID uuid.UUID, hash string) (*model.GenerationManifest, error)
	ListByProject(ctx context.Context, ownerID string, projectID uuid.UUID) ([]*model.GenerationManifest, error)
	// Upsert inserts m. When the (owner, project, hash) row already exists it merges m's files into it instead.
	Upsert(ctx context.Context, m *model.GenerationManifest) (*model.GenerationManifest, error)
}

type manifestRepo struct{ db *gorm.DB }

func NewManifestRepo(db *gorm.DB) ManifestRepo {
	return &manifestRepo{db: db}
}

func (r *manifestRepo) Find(ctx context.Context, ownerID string, projectID uuid.UUID, hash string) (*model.GenerationManifest, error) {
	var m model.GenerationManifest
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND project_id = ? AND generation_hash = ?", ownerID, projectID, hash).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *manifestRepo) ListByProject(ctx context.Context, ownerID string, projectID uuid.UUID) ([]*model.GenerationManifest, error) {
	var items []*model.GenerationManifest
	return items, r.db.WithContext(ctx).
		Where("owner_id = ? AND project_id = ?", ownerID, projectID).
		Order("created_at DESC, id DESC").
		Find(&items).Error
}

func (r *manifestRepo) Upsert(ctx context.Context, m *model.GenerationManifest) (*model.GenerationManifest, error) {
	err := r.db.WithContext(ctx).Create(m).Error
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}

	var merged model.GenerationManifest
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_id = ? AND project_id = ? AND generation_hash = ?", m.OwnerID, m.ProjectID, m.GenerationHash).
			First(&merged).Error; err != nil {
			return err
		}

		files := model.ManifestFiles{}
		for k, f := range merged.Files.Data() {
			files[k] = f
		}
		for k, f := range m.Files.Data() {
			files[k] = f
		}
		merged.Files = datatypes.NewJSONType(files)
		merged.Spec = m.Spec

		return tx.Model(&merged).Select("files", "spec", "updated_at").Updates(&merged).Error
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}
