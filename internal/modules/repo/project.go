package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/qrdesk/qrstudio/internal/modules/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateGuard decides, inside the create transaction, whether the owner may create another project.
type CreateGuard func(creates []time.Time) error

// EditGuard decides, inside the edit transaction, whether the project may be edited again.
type EditGuard func(editCount int64) error

type ProjectRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Project, error)
	ListByOwnerWithCursor(ctx context.Context, ownerID string, afterCreatedAt time.Time, afterID uuid.UUID, limit int, timeDesc bool) ([]*model.Project, error)
	// CreateWithUsage inserts p and its create event after guard approves the owner's create history since.
	CreateWithUsage(ctx context.Context, p *model.Project, since time.Time, guard CreateGuard) error
	// UpdateWithUsage applies changes to the locked project row and records an edit event after guard approves.
	UpdateWithUsage(ctx context.Context, id uuid.UUID, apply func(p *model.Project) error, guard EditGuard) (*model.Project, error)
}

type projectRepo struct{ db *gorm.DB }

func NewProjectRepo(db *gorm.DB) ProjectRepo {
	return &projectRepo{db: db}
}

func (r *projectRepo) Get(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var p model.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) ListByOwnerWithCursor(ctx context.Context, ownerID string, afterCreatedAt time.Time, afterID uuid.UUID, limit int, timeDesc bool) ([]*model.Project, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)

	// (created_at, id) composite cursor; an empty cursor starts from the first row in order
	if !afterCreatedAt.IsZero() && afterID != uuid.Nil {
		if timeDesc {
			q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", afterCreatedAt, afterCreatedAt, afterID)
		} else {
			q = q.Where("(created_at > ?) OR (created_at = ? AND id > ?)", afterCreatedAt, afterCreatedAt, afterID)
		}
	}

	order := "created_at ASC, id ASC"
	if timeDesc {
		order = "created_at DESC, id DESC"
	}

	var items []*model.Project
	return items, q.Order(order).Limit(limit).Find(&items).Error
}

func (r *projectRepo) CreateWithUsage(ctx context.Context, p *model.Project, since time.Time, guard CreateGuard) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serialize concurrent creates of the same owner
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", p.OwnerID).Error; err != nil {
			return err
		}

		events := &usageEventRepo{db: tx}
		creates, err := events.ListCreateTimes(ctx, p.OwnerID, since)
		if err != nil {
			return err
		}
		if err := guard(creates); err != nil {
			return err
		}

		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return events.Append(ctx, &model.UsageEvent{
			OwnerID:   p.OwnerID,
			ProjectID: &p.ID,
			Kind:      model.UsageCreate,
		})
	})
}

func (r *projectRepo) UpdateWithUsage(ctx context.Context, id uuid.UUID, apply func(p *model.Project) error, guard EditGuard) (*model.Project, error) {
	var p model.Project
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&p).Error; err != nil {
			return err
		}

		events := &usageEventRepo{db: tx}
		edits, err := events.CountByProject(ctx, p.ID, model.UsageEdit)
		if err != nil {
			return err
		}
		if err := guard(edits); err != nil {
			return err
		}
		if err := apply(&p); err != nil {
			return err
		}

		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		return events.Append(ctx, &model.UsageEvent{
			OwnerID:   p.OwnerID,
			ProjectID: &p.ID,
			Kind:      model.UsageEdit,
		})
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}
