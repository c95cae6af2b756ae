package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/qrdesk/qrstudio/internal/modules/model"
	"github.com/qrdesk/qrstudio/internal/modules/repo"
	"github.com/qrdesk/qrstudio/internal/pkg/apperr"
	"github.com/qrdesk/qrstudio/internal/pkg/paging"
	"github.com/qrdesk/qrstudio/internal/pkg/qr"
	"github.com/qrdesk/qrstudio/internal/pkg/quota"
	"github.com/qrdesk/qrstudio/internal/pkg/template"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxBusinessNameLen = 200
	maxTaglineLen      = 300
	logoPrefix         = "logos"
)

type ProjectService interface {
	Create(ctx context.Context, in CreateProjectInput) (*model.Project, error)
	Edit(ctx context.Context, in EditProjectInput) (*model.Project, error)
	Get(ctx context.Context, ownerID string, projectID uuid.UUID) (*model.Project, error)
	List(ctx context.Context, in ListProjectsInput) (*ListProjectsOutput, error)
	QuotaStatus(ctx context.Context, ownerID string, plan quota.Plan) (*QuotaStatus, error)
}

type projectService struct {
	r      repo.ProjectRepo
	events repo.UsageEventRepo
	log    *zap.Logger
	now    func() time.Time
}

func NewProjectService(r repo.ProjectRepo, events repo.UsageEventRepo, log *zap.Logger) ProjectService {
	return &projectService{r: r, events: events, log: log, now: time.Now}
}

// LogoKeyPrefix is the storage prefix an owner may upload logos under.
func LogoKeyPrefix(ownerID string) string {
	return logoPrefix + "/" + ownerID + "/"
}

type CreateProjectInput struct {
	OwnerID         string
	Plan            quota.Plan
	BusinessName    string
	Tagline         string
	TargetURL       string
	TemplateID      string
	TemplateVersion int
	LogoPath        string
}

func (s *projectService) Create(ctx context.Context, in CreateProjectInput) (*model.Project, error) {
	windows, err := quota.Windows(in.Plan)
	if err != nil {
		return nil, apperr.Validation("unknown plan %q", in.Plan)
	}

	p := &model.Project{OwnerID: in.OwnerID}
	if err := applyFields(p, in.OwnerID, &in.BusinessName, &in.Tagline, &in.TargetURL, &in.TemplateID, &in.TemplateVersion, &in.LogoPath); err != nil {
		return nil, err
	}

	now := s.now()
	var since time.Time
	if longest := quota.MaxWindow(windows); longest > 0 {
		since = now.Add(-longest)
	}

	err = s.r.CreateWithUsage(ctx, p, since, func(creates []time.Time) error {
		return quota.Evaluate(windows, creates, now).Authorize()
	})
	if err != nil {
		var exceeded *quota.ExceededError
		if errors.As(err, &exceeded) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.ErrDBWrite, fmt.Errorf("create project: %w", err))
	}

	s.log.Sugar().Infow("project created", "owner_id", p.OwnerID, "project_id", p.ID, "template_id", p.TemplateID)
	return p, nil
}

// EditProjectInput carries the mutable fields; nil leaves a field unchanged.
type EditProjectInput struct {
	OwnerID         string
	ProjectID       uuid.UUID
	BusinessName    *string
	Tagline         *string
	TargetURL       *string
	TemplateID      *string
	TemplateVersion *int
	LogoPath        *string
}

func (in EditProjectInput) empty() bool {
	return in.BusinessName == nil && in.Tagline == nil && in.TargetURL == nil &&
		in.TemplateID == nil && in.TemplateVersion == nil && in.LogoPath == nil
}

func (s *projectService) Edit(ctx context.Context, in EditProjectInput) (*model.Project, error) {
	if in.empty() {
		return nil, apperr.Validation("nothing to update")
	}
	if _, err := s.Get(ctx, in.OwnerID, in.ProjectID); err != nil {
		return nil, err
	}

	p, err := s.r.UpdateWithUsage(ctx, in.ProjectID,
		func(p *model.Project) error {
			return applyFields(p, in.OwnerID, in.BusinessName, in.Tagline, in.TargetURL, in.TemplateID, in.TemplateVersion, in.LogoPath)
		},
		quota.CheckEditLock,
	)
	if err != nil {
		if errors.Is(err, quota.ErrEditLockActive) || errors.Is(err, apperr.ErrValidation) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.ErrDBWrite, fmt.Errorf("edit project: %w", err))
	}

	s.log.Sugar().Infow("project edited", "owner_id", p.OwnerID, "project_id", p.ID)
	return p, nil
}

// applyFields validates and copies the non-nil fields onto p.
func applyFields(p *model.Project, ownerID string, name, tagline, target, templateID *string, version *int, logoPath *string) error {
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return apperr.Validation("business name is required")
		}
		if utf8.RuneCountInString(n) > maxBusinessNameLen {
			return apperr.Validation("business name must be at most %d characters", maxBusinessNameLen)
		}
		p.BusinessName = n
	}
	if tagline != nil {
		t := strings.TrimSpace(*tagline)
		if utf8.RuneCountInString(t) > maxTaglineLen {
			return apperr.Validation("tagline must be at most %d characters", maxTaglineLen)
		}
		p.Tagline = nonEmpty(t)
	}
	if target != nil {
		u := strings.TrimSpace(*target)
		if _, err := qr.NormalizeURL(u); err != nil {
			return apperr.Validation("target url is invalid")
		}
		p.TargetURL = u
	}
	if templateID != nil || version != nil {
		id, v := p.TemplateID, p.TemplateVersion
		if templateID != nil {
			id = strings.TrimSpace(*templateID)
		}
		if version != nil {
			v = *version
		}
		if v == 0 {
			v = template.Version
		}
		if _, err := template.Lookup(id, v); err != nil {
			return apperr.Validation("unknown template %q version %d", id, v)
		}
		p.TemplateID, p.TemplateVersion = id, v
	}
	if logoPath != nil {
		lp := strings.TrimSpace(*logoPath)
		if lp != "" && (!strings.HasPrefix(lp, LogoKeyPrefix(ownerID)) || strings.Contains(lp, "..")) {
			return apperr.Validation("logo path is not owned by the caller")
		}
		p.LogoPath = nonEmpty(lp)
	}
	return nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *projectService) Get(ctx context.Context, ownerID string, projectID uuid.UUID) (*model.Project, error) {
	p, err := s.r.Get(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %s: %w", projectID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	if p.OwnerID != ownerID {
		return nil, fmt.Errorf("project %s: %w", projectID, apperr.ErrForbidden)
	}
	return p, nil
}

type ListProjectsInput struct {
	OwnerID  string `json:"owner_id"`
	Limit    int    `json:"limit"`
	Cursor   string `json:"cursor"`
	TimeDesc bool   `json:"time_desc"`
}

type ListProjectsOutput struct {
	Items      []*model.Project `json:"items"`
	NextCursor string           `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

func (s *projectService) List(ctx context.Context, in ListProjectsInput) (*ListProjectsOutput, error) {
	var afterT time.Time
	var afterID uuid.UUID
	var err error
	if in.Cursor != "" {
		afterT, afterID, err = paging.DecodeCursor(in.Cursor)
		if err != nil {
			return nil, apperr.Validation("invalid cursor")
		}
	}

	// limit+1 tells us whether another page exists
	items, err := s.r.ListByOwnerWithCursor(ctx, in.OwnerID, afterT, afterID, in.Limit+1, in.TimeDesc)
	if err != nil {
		return nil, err
	}

	out := &ListProjectsOutput{Items: items}
	if len(items) > in.Limit {
		out.HasMore = true
		out.Items = items[:in.Limit]
		last := out.Items[len(out.Items)-1]
		out.NextCursor = paging.EncodeCursor(last.CreatedAt, last.ID)
	}
	return out, nil
}

type WindowUsage struct {
	Window   quota.Window `json:"window"`
	Used     int          `json:"used"`
	UnlockAt *time.Time   `json:"unlock_at,omitempty"`
}

type QuotaStatus struct {
	Plan      quota.Plan    `json:"plan"`
	Allowed   bool          `json:"allowed"`
	Permanent bool          `json:"permanent"`
	UnlockAt  *time.Time    `json:"unlock_at,omitempty"`
	Windows   []WindowUsage `json:"windows"`
}

func (s *projectService) QuotaStatus(ctx context.Context, ownerID string, plan quota.Plan) (*QuotaStatus, error) {
	windows, err := quota.Windows(plan)
	if err != nil {
		return nil, apperr.Validation("unknown plan %q", plan)
	}

	now := s.now()
	var since time.Time
	if longest := quota.MaxWindow(windows); longest > 0 {
		since = now.Add(-longest)
	}
	creates, err := s.events.ListCreateTimes(ctx, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}

	d := quota.Evaluate(windows, creates, now)
	st := &QuotaStatus{Plan: plan, Allowed: d.Allowed, Permanent: d.Permanent, UnlockAt: d.UnlockAt}
	for _, w := range windows {
		u := WindowUsage{Window: w, Used: quota.CountEventsInWindow(creates, now, w.Length)}
		for _, v := range d.Violations {
			if v.Window.Name == w.Name {
				u.UnlockAt = v.Unlock
			}
		}
		st.Windows = append(st.Windows, u)
	}
	return st, nil
}
