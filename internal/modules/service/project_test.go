package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/qrdesk/qrstudio/internal/modules/model"
	"github.com/qrdesk/qrstudio/internal/modules/repo"
	"github.com/qrdesk/qrstudio/internal/pkg/apperr"
	"github.com/qrdesk/qrstudio/internal/pkg/paging"
	"github.com/qrdesk/qrstudio/internal/pkg/quota"
	"github.com/qrdesk/qrstudio/internal/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MockProjectRepo is a mock implementation of ProjectRepo.
// The transactional methods run the caller's guard against the mocked usage history.
type MockProjectRepo struct {
	mock.Mock
}

func (m *MockProjectRepo) Get(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectRepo) ListByOwnerWithCursor(ctx context.Context, ownerID string, afterCreatedAt time.Time, afterID uuid.UUID, limit int, timeDesc bool) ([]*model.Project, error) {
	args := m.Called(ctx, ownerID, afterCreatedAt, afterID, limit, timeDesc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Project), args.Error(1)
}

func (m *MockProjectRepo) CreateWithUsage(ctx context.Context, p *model.Project, since time.Time, guard repo.CreateGuard) error {
	args := m.Called(ctx, p, since)
	if err := args.Error(1); err != nil {
		return err
	}
	creates, _ := args.Get(0).([]time.Time)
	if err := guard(creates); err != nil {
		return err
	}
	p.ID = uuid.New()
	return nil
}

func (m *MockProjectRepo) UpdateWithUsage(ctx context.Context, id uuid.UUID, apply func(*model.Project) error, guard repo.EditGuard) (*model.Project, error) {
	args := m.Called(ctx, id)
	if err := args.Error(2); err != nil {
		return nil, err
	}
	stored := *args.Get(0).(*model.Project)
	if err := guard(args.Get(1).(int64)); err != nil {
		return nil, err
	}
	if err := apply(&stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// MockUsageEventRepo is a mock implementation of UsageEventRepo
type MockUsageEventRepo struct {
	mock.Mock
}

func (m *MockUsageEventRepo) Append(ctx context.Context, e *model.UsageEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockUsageEventRepo) ListCreateTimes(ctx context.Context, ownerID string, since time.Time) ([]time.Time, error) {
	args := m.Called(ctx, ownerID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]time.Time), args.Error(1)
}

func (m *MockUsageEventRepo) CountByProject(ctx context.Context, projectID uuid.UUID, kind model.UsageKind) (int64, error) {
	args := m.Called(ctx, projectID, kind)
	return args.Get(0).(int64), args.Error(1)
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestProjectService(r *MockProjectRepo, events *MockUsageEventRepo) *projectService {
	return &projectService{r: r, events: events, log: zap.NewNop(), now: func() time.Time { return testNow }}
}

func createTestProject(owner string) *model.Project {
	tagline := "Fresh every morning"
	return &model.Project{
		ID:              uuid.New(),
		OwnerID:         owner,
		BusinessName:    "Acme Bakery",
		Tagline:         &tagline,
		TargetURL:       "acme.example/menu",
		TemplateID:      template.IDLogoLabel,
		TemplateVersion: template.Version,
		CreatedAt:       testNow.Add(-time.Hour),
		UpdatedAt:       testNow.Add(-time.Hour),
	}
}

func validCreateInput(plan quota.Plan) CreateProjectInput {
	return CreateProjectInput{
		OwnerID:      "owner-1",
		Plan:         plan,
		BusinessName: "  Acme Bakery ",
		Tagline:      "Fresh every morning",
		TargetURL:    "acme.example/menu",
		TemplateID:   template.IDLogo,
		LogoPath:     "logos/owner-1/acme.png",
	}
}

func TestProjectService_Create(t *testing.T) {
	day := quota.Day

	tests := []struct {
		name        string
		input       func() CreateProjectInput
		setup       func(*MockProjectRepo)
		expectError error
		check       func(*testing.T, *model.Project, error)
	}{
		{
			name:  "first project on lifetime plan",
			input: func() CreateProjectInput { return validCreateInput(quota.PlanLifetimeOne) },
			setup: func(r *MockProjectRepo) {
				r.On("CreateWithUsage", mock.Anything, mock.MatchedBy(func(p *model.Project) bool {
					return p.OwnerID == "owner-1" && p.BusinessName == "Acme Bakery" && p.TemplateVersion == template.Version
				}), time.Time{}).Return(nil, nil)
			},
			check: func(t *testing.T, p *model.Project, err error) {
				require.NoError(t, err)
				assert.NotEqual(t, uuid.Nil, p.ID)
				require.NotNil(t, p.LogoPath)
				assert.Equal(t, "logos/owner-1/acme.png", *p.LogoPath)
			},
		},
		{
			name:  "lifetime plan blocks the second project permanently",
			input: func() CreateProjectInput { return validCreateInput(quota.PlanLifetimeOne) },
			setup: func(r *MockProjectRepo) {
				r.On("CreateWithUsage", mock.Anything, mock.Anything, time.Time{}).
					Return([]time.Time{testNow.Add(-400 * day)}, nil)
			},
			check: func(t *testing.T, _ *model.Project, err error) {
				var exceeded *quota.ExceededError
				require.ErrorAs(t, err, &exceeded)
				assert.True(t, exceeded.Decision.Permanent)
				assert.Nil(t, exceeded.Decision.UnlockAt)
			},
		},
		{
			name:  "rolling plan reports the latest unlock over violated windows",
			input: func() CreateProjectInput { return validCreateInput(quota.PlanRolling) },
			setup: func(r *MockProjectRepo) {
				// both the week and the month window are full
				var creates []time.Time
				for i := 0; i < 15; i++ {
					creates = append(creates, testNow.Add(-time.Duration(20-i)*day))
				}
				for i := 0; i < 5; i++ {
					creates = append(creates, testNow.Add(-time.Duration(6-i)*day))
				}
				r.On("CreateWithUsage", mock.Anything, mock.Anything, testNow.Add(-30*day)).Return(creates, nil)
			},
			check: func(t *testing.T, _ *model.Project, err error) {
				var exceeded *quota.ExceededError
				require.ErrorAs(t, err, &exceeded)
				require.Len(t, exceeded.Decision.Violations, 2)
				require.NotNil(t, exceeded.Decision.UnlockAt)
				// week unlocks at now+1d, month at now+10d
				assert.Equal(t, testNow.Add(10*day), *exceeded.Decision.UnlockAt)
			},
		},
		{
			name: "unknown template",
			input: func() CreateProjectInput {
				in := validCreateInput(quota.PlanRolling)
				in.TemplateID = "qr_neon"
				return in
			},
			expectError: apperr.ErrValidation,
		},
		{
			name: "invalid url",
			input: func() CreateProjectInput {
				in := validCreateInput(quota.PlanRolling)
				in.TargetURL = "   "
				return in
			},
			expectError: apperr.ErrValidation,
		},
		{
			name: "logo outside the owner's prefix",
			input: func() CreateProjectInput {
				in := validCreateInput(quota.PlanRolling)
				in.LogoPath = "logos/owner-2/stolen.png"
				return in
			},
			expectError: apperr.ErrValidation,
		},
		{
			name: "unknown plan",
			input: func() CreateProjectInput {
				return validCreateInput("enterprise")
			},
			expectError: apperr.ErrValidation,
		},
		{
			name:  "database failure",
			input: func() CreateProjectInput { return validCreateInput(quota.PlanRolling) },
			setup: func(r *MockProjectRepo) {
				r.On("CreateWithUsage", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))
			},
			expectError: apperr.ErrDBWrite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &MockProjectRepo{}
			if tt.setup != nil {
				tt.setup(r)
			}
			svc := newTestProjectService(r, &MockUsageEventRepo{})

			p, err := svc.Create(context.Background(), tt.input())
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, p)
			}
			if tt.check != nil {
				tt.check(t, p, err)
			}
			r.AssertExpectations(t)
		})
	}
}

func TestProjectService_Edit(t *testing.T) {
	stored := createTestProject("owner-1")
	name := "Acme Patisserie"

	tests := []struct {
		name        string
		input       EditProjectInput
		setup       func(*MockProjectRepo)
		expectError error
	}{
		{
			name:  "first edit succeeds",
			input: EditProjectInput{OwnerID: "owner-1", ProjectID: stored.ID, BusinessName: &name},
			setup: func(r *MockProjectRepo) {
				r.On("Get", mock.Anything, stored.ID).Return(stored, nil)
				r.On("UpdateWithUsage", mock.Anything, stored.ID).Return(stored, int64(0), nil)
			},
		},
		{
			name:  "second edit is locked",
			input: EditProjectInput{OwnerID: "owner-1", ProjectID: stored.ID, BusinessName: &name},
			setup: func(r *MockProjectRepo) {
				r.On("Get", mock.Anything, stored.ID).Return(stored, nil)
				r.On("UpdateWithUsage", mock.Anything, stored.ID).Return(stored, int64(1), nil)
			},
			expectError: quota.ErrEditLockActive,
		},
		{
			name:        "nothing to update",
			input:       EditProjectInput{OwnerID: "owner-1", ProjectID: stored.ID},
			setup:       func(r *MockProjectRepo) {},
			expectError: apperr.ErrValidation,
		},
		{
			name:  "someone else's project",
			input: EditProjectInput{OwnerID: "owner-2", ProjectID: stored.ID, BusinessName: &name},
			setup: func(r *MockProjectRepo) {
				r.On("Get", mock.Anything, stored.ID).Return(stored, nil)
			},
			expectError: apperr.ErrForbidden,
		},
		{
			name:  "missing project",
			input: EditProjectInput{OwnerID: "owner-1", ProjectID: stored.ID, BusinessName: &name},
			setup: func(r *MockProjectRepo) {
				r.On("Get", mock.Anything, stored.ID).Return(nil, gorm.ErrRecordNotFound)
			},
			expectError: apperr.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &MockProjectRepo{}
			tt.setup(r)
			svc := newTestProjectService(r, &MockUsageEventRepo{})

			p, err := svc.Edit(context.Background(), tt.input)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, p)
			} else {
				require.NoError(t, err)
				assert.Equal(t, name, p.BusinessName)
				// untouched fields survive
				assert.Equal(t, stored.TargetURL, p.TargetURL)
			}
			r.AssertExpectations(t)
		})
	}
}

func TestProjectService_EditClearsOptionalFields(t *testing.T) {
	stored := createTestProject("owner-1")
	r := &MockProjectRepo{}
	r.On("Get", mock.Anything, stored.ID).Return(stored, nil)
	r.On("UpdateWithUsage", mock.Anything, stored.ID).Return(stored, int64(0), nil)
	svc := newTestProjectService(r, &MockUsageEventRepo{})

	empty := ""
	p, err := svc.Edit(context.Background(), EditProjectInput{OwnerID: "owner-1", ProjectID: stored.ID, Tagline: &empty})
	require.NoError(t, err)
	assert.Nil(t, p.Tagline)
	assert.NotNil(t, stored.Tagline)
}

func TestProjectService_List(t *testing.T) {
	p1 := createTestProject("owner-1")
	p2 := createTestProject("owner-1")
	p3 := createTestProject("owner-1")

	t.Run("more pages", func(t *testing.T) {
		r := &MockProjectRepo{}
		r.On("ListByOwnerWithCursor", mock.Anything, "owner-1", time.Time{}, uuid.UUID{}, 3, true).
			Return([]*model.Project{p1, p2, p3}, nil)
		svc := newTestProjectService(r, &MockUsageEventRepo{})

		out, err := svc.List(context.Background(), ListProjectsInput{OwnerID: "owner-1", Limit: 2, TimeDesc: true})
		require.NoError(t, err)
		assert.Len(t, out.Items, 2)
		assert.True(t, out.HasMore)

		ts, id, err := paging.DecodeCursor(out.NextCursor)
		require.NoError(t, err)
		assert.True(t, p2.CreatedAt.Equal(ts))
		assert.Equal(t, p2.ID, id)
	})

	t.Run("last page", func(t *testing.T) {
		r := &MockProjectRepo{}
		r.On("ListByOwnerWithCursor", mock.Anything, "owner-1", time.Time{}, uuid.UUID{}, 11, false).
			Return([]*model.Project{p1}, nil)
		svc := newTestProjectService(r, &MockUsageEventRepo{})

		out, err := svc.List(context.Background(), ListProjectsInput{OwnerID: "owner-1", Limit: 10})
		require.NoError(t, err)
		assert.Len(t, out.Items, 1)
		assert.False(t, out.HasMore)
		assert.Empty(t, out.NextCursor)
	})

	t.Run("bad cursor", func(t *testing.T) {
		svc := newTestProjectService(&MockProjectRepo{}, &MockUsageEventRepo{})
		_, err := svc.List(context.Background(), ListProjectsInput{OwnerID: "owner-1", Limit: 10, Cursor: "%%%"})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestProjectService_QuotaStatus(t *testing.T) {
	day := quota.Day
	creates := []time.Time{
		testNow.Add(-6 * day),
		testNow.Add(-5 * day),
		testNow.Add(-4 * day),
		testNow.Add(-3 * day),
		testNow.Add(-2 * day),
	}

	events := &MockUsageEventRepo{}
	events.On("ListCreateTimes", mock.Anything, "owner-1", testNow.Add(-30*day)).Return(creates, nil)
	svc := newTestProjectService(&MockProjectRepo{}, events)

	st, err := svc.QuotaStatus(context.Background(), "owner-1", quota.PlanRolling)
	require.NoError(t, err)
	assert.False(t, st.Allowed)
	assert.False(t, st.Permanent)
	require.NotNil(t, st.UnlockAt)
	assert.Equal(t, testNow.Add(day), *st.UnlockAt)

	require.Len(t, st.Windows, 2)
	assert.Equal(t, "7d", st.Windows[0].Window.Name)
	assert.Equal(t, 5, st.Windows[0].Used)
	assert.NotNil(t, st.Windows[0].UnlockAt)
	assert.Equal(t, "30d", st.Windows[1].Window.Name)
	assert.Equal(t, 5, st.Windows[1].Used)
	assert.Nil(t, st.Windows[1].UnlockAt)
}
