package service

import (
	"context"
	"fmt"
	"image"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/qrdesk/qrstudio/internal/infra/blob"
	"github.com/qrdesk/qrstudio/internal/modules/model"
	"github.com/qrdesk/qrstudio/internal/modules/repo"
	"github.com/qrdesk/qrstudio/internal/pkg/apperr"
	"github.com/qrdesk/qrstudio/internal/pkg/canonical"
	"github.com/qrdesk/qrstudio/internal/pkg/printpack"
	"github.com/qrdesk/qrstudio/internal/pkg/template"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const EventPrintPackGenerated = "print_pack.generated"

// Storage is the object store rendered files are written to.
type Storage interface {
	PutBytes(ctx context.Context, key, contentType string, data []byte) (*blob.UploadedMeta, error)
	PresignGet(ctx context.Context, key string, expire time.Duration) (string, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, v any) error
}

type PrintPackService interface {
	EnsureGenerated(ctx context.Context, in EnsureInput) (*EnsureResult, error)
	ListManifests(ctx context.Context, ownerID string, projectID uuid.UUID) ([]*model.GenerationManifest, error)
	GetManifest(ctx context.Context, ownerID string, projectID uuid.UUID, hash string) (*ManifestView, error)
}

type PrintPackOptions struct {
	StoragePrefix string
	DownloadTTL   time.Duration
}

type printPackService struct {
	projects  ProjectService
	manifests repo.ManifestRepo
	engine    *printpack.Engine
	logos     printpack.LogoSource
	store     Storage
	// pub is nil when no broker is configured
	pub  EventPublisher
	log  *zap.Logger
	opts PrintPackOptions
	now  func() time.Time
}

func NewPrintPackService(
	projects ProjectService,
	manifests repo.ManifestRepo,
	engine *printpack.Engine,
	logos printpack.LogoSource,
	store Storage,
	pub EventPublisher,
	log *zap.Logger,
	opts PrintPackOptions,
) PrintPackService {
	if opts.StoragePrefix == "" {
		opts.StoragePrefix = "print-packs"
	}
	if opts.DownloadTTL <= 0 {
		opts.DownloadTTL = 15 * time.Minute
	}
	return &printPackService{
		projects:  projects,
		manifests: manifests,
		engine:    engine,
		logos:     logos,
		store:     store,
		pub:       pub,
		log:       log,
		opts:      opts,
		now:       time.Now,
	}
}

type EnsureInput struct {
	OwnerID   string
	ProjectID uuid.UUID
	Spec      printpack.RawSpec
}

type EnsureResult struct {
	AssetID  uuid.UUID                 `json:"asset_id"`
	Hash     string                    `json:"hash"`
	Manifest *model.GenerationManifest `json:"manifest"`
	Cached   bool                      `json:"cached"`
	Failed   []printpack.FormatKey     `json:"failed,omitempty"`
}

// GeneratedEvent is published after a manifest is written.
type GeneratedEvent struct {
	Event       string                `json:"event"`
	OwnerID     string                `json:"owner_id"`
	ProjectID   uuid.UUID             `json:"project_id"`
	AssetID     uuid.UUID             `json:"asset_id"`
	Hash        string                `json:"hash"`
	Formats     []printpack.FormatKey `json:"formats"`
	GeneratedAt time.Time             `json:"generated_at"`
}

type hashInput struct {
	ProjectID       string         `json:"project_id"`
	TemplateVersion int            `json:"template_version"`
	Spec            printpack.Spec `json:"spec"`
}

// GenerationHash identifies the rendered output of spec for a project.
func GenerationHash(p *model.Project, spec printpack.Spec) (string, error) {
	return canonical.Hash(hashInput{
		ProjectID:       p.ID.String(),
		TemplateVersion: p.TemplateVersion,
		Spec:            spec,
	})
}

func layoutProject(p *model.Project) printpack.Project {
	out := printpack.Project{
		ID:              p.ID.String(),
		BusinessName:    p.BusinessName,
		TargetURL:       p.TargetURL,
		TemplateID:      p.TemplateID,
		TemplateVersion: p.TemplateVersion,
	}
	if p.Tagline != nil {
		out.Tagline = *p.Tagline
	}
	if p.LogoPath != nil {
		out.LogoPath = *p.LogoPath
	}
	return out
}

func (s *printPackService) objectKey(ownerID string, projectID uuid.UUID, hash, filename string) string {
	return path.Join(s.opts.StoragePrefix, ownerID, projectID.String(), hash, filename)
}

func (s *printPackService) EnsureGenerated(ctx context.Context, in EnsureInput) (*EnsureResult, error) {
	p, err := s.projects.Get(ctx, in.OwnerID, in.ProjectID)
	if err != nil {
		return nil, err
	}
	def, err := template.Lookup(p.TemplateID, p.TemplateVersion)
	if err != nil {
		return nil, apperr.Validation("project template %q is not available", p.TemplateID)
	}

	spec, err := printpack.Normalize(layoutProject(p), in.Spec)
	if err != nil {
		return nil, err
	}
	hash, err := GenerationHash(p, spec)
	if err != nil {
		return nil, fmt.Errorf("hash print spec: %w", err)
	}

	existing, err := s.manifests.Find(ctx, in.OwnerID, p.ID, hash)
	if err != nil {
		return nil, fmt.Errorf("find manifest: %w", err)
	}
	todo := spec.Formats
	if existing != nil {
		todo = existing.Missing(spec.Formats)
		if len(todo) == 0 {
			return &EnsureResult{AssetID: existing.ID, Hash: hash, Manifest: existing, Cached: true}, nil
		}
		s.log.Sugar().Infow("repairing partial print pack", "project_id", p.ID, "hash", hash, "missing", todo)
	}

	var logo image.Image
	if def.AllowsLogo && spec.LogoPath != nil {
		logo, err = s.engine.LoadLogo(ctx, s.logos, *spec.LogoPath)
		if err != nil {
			s.log.Sugar().Warnw("logo unavailable, print pack rendered without logo", "project_id", p.ID, "err", err)
			logo = nil
		}
	}

	run := spec
	run.Formats = todo
	files := model.ManifestFiles{}
	var failed []printpack.FormatKey
	for _, r := range s.engine.RenderAll(ctx, printpack.Input{Spec: run, Logo: logo}) {
		if r.Err != nil {
			s.log.Sugar().Errorw("print format render failed", "project_id", p.ID, "format", r.Format, "err", r.Err)
			failed = append(failed, r.Format)
			continue
		}
		key := s.objectKey(in.OwnerID, p.ID, hash, r.File.Filename)
		meta, err := s.store.PutBytes(ctx, key, r.File.ContentType, r.File.Data)
		if err != nil {
			s.log.Sugar().Errorw("print format upload failed", "project_id", p.ID, "format", r.Format, "key", key,
				"err", apperr.Wrap(apperr.ErrStorageWrite, err))
			failed = append(failed, r.Format)
			continue
		}
		files[r.Format] = model.ManifestFile{
			Filename:    r.File.Filename,
			StoragePath: key,
			ByteSize:    meta.SizeB,
			SHA256:      meta.SHA256,
		}
	}
	if len(files) == 0 {
		return nil, apperr.Wrap(apperr.ErrGenerationFailed, fmt.Errorf("no print format produced for project %s", p.ID))
	}

	saved, err := s.manifests.Upsert(ctx, &model.GenerationManifest{
		OwnerID:        in.OwnerID,
		ProjectID:      p.ID,
		GenerationHash: hash,
		Spec:           datatypes.NewJSONType(spec),
		Files:          datatypes.NewJSONType(files),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrGenerationFailed, apperr.Wrap(apperr.ErrDBWrite, err))
	}

	s.publish(ctx, saved, files)
	return &EnsureResult{AssetID: saved.ID, Hash: hash, Manifest: saved, Failed: failed}, nil
}

func (s *printPackService) publish(ctx context.Context, m *model.GenerationManifest, written model.ManifestFiles) {
	if s.pub == nil {
		return
	}
	ev := GeneratedEvent{
		Event:       EventPrintPackGenerated,
		OwnerID:     m.OwnerID,
		ProjectID:   m.ProjectID,
		AssetID:     m.ID,
		Hash:        m.GenerationHash,
		GeneratedAt: s.now().UTC(),
	}
	for _, k := range printpack.AllFormats() {
		if _, ok := written[k]; ok {
			ev.Formats = append(ev.Formats, k)
		}
	}
	if err := s.pub.PublishJSON(ctx, ev); err != nil {
		s.log.Sugar().Warnw("publish print pack event failed", "asset_id", m.ID, "err", err)
	}
}

func (s *printPackService) ListManifests(ctx context.Context, ownerID string, projectID uuid.UUID) ([]*model.GenerationManifest, error) {
	if _, err := s.projects.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.manifests.ListByProject(ctx, ownerID, projectID)
}

type ManifestView struct {
	Manifest  *model.GenerationManifest      `json:"manifest"`
	Downloads map[printpack.FormatKey]string `json:"downloads"`
	ExpiresAt time.Time                      `json:"expires_at"`
}

func (s *printPackService) GetManifest(ctx context.Context, ownerID string, projectID uuid.UUID, hash string) (*ManifestView, error) {
	if _, err := s.projects.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	m, err := s.manifests.Find(ctx, ownerID, projectID, hash)
	if err != nil {
		return nil, fmt.Errorf("find manifest: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("print pack %s: %w", hash, apperr.ErrNotFound)
	}

	view := &ManifestView{
		Manifest:  m,
		Downloads: map[printpack.FormatKey]string{},
		ExpiresAt: s.now().Add(s.opts.DownloadTTL).UTC(),
	}
	for k, f := range m.Files.Data() {
		u, err := s.store.PresignGet(ctx, f.StoragePath, s.opts.DownloadTTL)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrUpstreamFetch, fmt.Errorf("presign %s: %w", f.StoragePath, err))
		}
		view.Downloads[k] = u
	}
	return view, nil
}
