package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/qrdesk/qrstudio/internal/modules/model"
	"gorm.io/gorm"
)

type UsageEventRepo interface {
	Append(ctx context.Context, e *model.UsageEvent) error
	// ListCreateTimes returns create timestamps of owner at or after since. A zero since returns all.
	ListCreateTimes(ctx context.Context, ownerID string, since time.Time) ([]time.Time, error)
	CountByProject(ctx context.Context, projectID uuid.UUID, kind model.UsageKind) (int64, error)
}

type usageEventRepo struct{ db *gorm.DB }

func NewUsageEventRepo(db *gorm.DB) UsageEventRepo {
	return &usageEventRepo{db: db}
}

func (r *usageEventRepo) Append(ctx context.Context, e *model.UsageEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *usageEventRepo) ListCreateTimes(ctx context.Context, ownerID string, since time.Time) ([]time.Time, error) {
	q := r.db.WithContext(ctx).Model(&model.UsageEvent{}).
		Where("owner_id = ? AND kind = ?", ownerID, model.UsageCreate)
	if !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}

	var out []time.Time
	return out, q.Order("created_at ASC").Pluck("created_at", &out).Error
}

func (r *usageEventRepo) CountByProject(ctx context.Context, projectID uuid.UUID, kind model.UsageKind) (int64, error) {
	var n int64
	return n, r.db.WithContext(ctx).Model(&model.UsageEvent{}).
		Where("project_id = ? AND kind = ?", projectID, kind).
		Count(&n).Error
}
