package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qrdesk/qrstudio/internal/modules/model"
	"github.com/qrdesk/qrstudio/internal/pkg/apperr"
	"github.com/qrdesk/qrstudio/internal/pkg/compositor"
	"github.com/qrdesk/qrstudio/internal/pkg/printpack"
	"github.com/qrdesk/qrstudio/internal/pkg/qr"
	"github.com/qrdesk/qrstudio/internal/pkg/template"
	"go.uber.org/zap"
)

// PreviewCache holds rendered codes for a short time. Implementations report a miss as (nil, false, nil).
type PreviewCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

type RenderService interface {
	Render(ctx context.Context, in RenderInput) (*RenderOutput, error)
}

type RenderInput struct {
	OwnerID   string
	ProjectID uuid.UUID
	Format    qr.Format
	// WidthPx of 0 selects the download size.
	WidthPx int
}

type RenderOutput struct {
	Data        []byte
	ContentType string
	Filename    string
	Cached      bool
}

type renderService struct {
	projects  ProjectService
	logos     printpack.LogoSource
	cache     PreviewCache
	log       *zap.Logger
	logoMaxPx int
}

func NewRenderService(projects ProjectService, logos printpack.LogoSource, cache PreviewCache, log *zap.Logger, logoMaxPx int) RenderService {
	if logoMaxPx <= 0 {
		logoMaxPx = 512
	}
	return &renderService{projects: projects, logos: logos, cache: cache, log: log, logoMaxPx: logoMaxPx}
}

func renderCacheKey(p *model.Project, f qr.Format, width int) string {
	sum := sha256.Sum256([]byte(p.ID.String() + "|" + p.UpdatedAt.UTC().Format(time.RFC3339Nano) + "|" + f.Ext() + "|" + strconv.Itoa(width)))
	return hex.EncodeToString(sum[:])
}

func (s *renderService) Render(ctx context.Context, in RenderInput) (*RenderOutput, error) {
	if in.WidthPx == 0 {
		in.WidthPx = qr.DownloadWidthPx
	}
	if in.WidthPx < qr.MinWidthPx || in.WidthPx > qr.MaxWidthPx {
		return nil, apperr.Validation("size must be between %d and %d", qr.MinWidthPx, qr.MaxWidthPx)
	}

	p, err := s.projects.Get(ctx, in.OwnerID, in.ProjectID)
	if err != nil {
		return nil, err
	}
	def, err := template.Lookup(p.TemplateID, p.TemplateVersion)
	if err != nil {
		return nil, apperr.Validation("project template %q is not available", p.TemplateID)
	}

	out := &RenderOutput{
		ContentType: in.Format.ContentType(),
		Filename:    printpack.Slug(p.BusinessName) + "-qr." + in.Format.Ext(),
	}

	key := renderCacheKey(p, in.Format, in.WidthPx)
	if s.cache != nil {
		data, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Sugar().Warnw("preview cache read failed", "project_id", p.ID, "err", err)
		} else if ok {
			out.Data, out.Cached = data, true
			return out, nil
		}
	}

	data, err := s.compose(ctx, p, def, in)
	if err != nil {
		return nil, err
	}
	out.Data = data

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, data); err != nil {
			s.log.Sugar().Warnw("preview cache write failed", "project_id", p.ID, "err", err)
		}
	}
	return out, nil
}

func (s *renderService) compose(ctx context.Context, p *model.Project, def template.Definition, in RenderInput) ([]byte, error) {
	code, err := qr.Encode(p.TargetURL, qr.Options{Format: in.Format, WidthPx: in.WidthPx})
	if err != nil {
		if errors.Is(err, qr.ErrInvalidURL) {
			return nil, apperr.Validation("project url is invalid")
		}
		if errors.Is(err, qr.ErrInvalidWidth) {
			return nil, apperr.Validation("size %d is too small for this project's QR code", in.WidthPx)
		}
		return nil, apperr.Wrap(apperr.ErrGenerationFailed, err)
	}

	name, tagline := p.BusinessName, ""
	if p.Tagline != nil {
		tagline = *p.Tagline
	}

	switch def.Variant {
	case template.VariantMaxScan:
		return code, nil
	case template.VariantLogo:
		if in.Format == qr.FormatRaster {
			code = s.badge(ctx, p, def, code)
		}
		return code, nil
	case template.VariantLogoLabel:
		if in.Format == qr.FormatVector {
			out, err := compositor.ComposeLabelSVG(code, name, tagline, def.MaxNameLen, def.MaxTaglineLen)
			if err != nil {
				return nil, apperr.Wrap(apperr.ErrGenerationFailed, err)
			}
			return out, nil
		}
		code = s.badge(ctx, p, def, code)
		out, err := compositor.ComposeLabel(code, name, tagline, def.MaxNameLen, def.MaxTaglineLen)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrGenerationFailed, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unhandled variant %s", def.Variant)
}

// badge overlays the project logo. Any failure leaves the plain code, which always scans.
func (s *renderService) badge(ctx context.Context, p *model.Project, def template.Definition, code []byte) []byte {
	if !def.AllowsLogo || p.LogoPath == nil || s.logos == nil {
		return code
	}
	raw, err := s.logos.FetchLogo(ctx, *p.LogoPath)
	if err != nil {
		s.log.Sugar().Warnw("logo fetch failed, rendering without logo", "project_id", p.ID, "err", err)
		return code
	}
	logo, err := compositor.NormalizeLogoPNG(raw, s.logoMaxPx)
	if err != nil {
		s.log.Sugar().Warnw("logo decode failed, rendering without logo", "project_id", p.ID, "err", err)
		return code
	}
	out, err := compositor.ApplyLogoBadge(code, logo, def.MaxLogoAreaRatio)
	if err != nil {
		s.log.Sugar().Warnw("logo badge failed, rendering without logo", "project_id", p.ID, "err", err)
		return code
	}
	return out
}
