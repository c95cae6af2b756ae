package printpack

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/qrdesk/qrstudio/internal/pkg/apperr"
	"github.com/qrdesk/qrstudio/internal/pkg/compositor"
	"github.com/qrdesk/qrstudio/internal/pkg/qr"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4
	DefaultLogoMaxPx   = 1024
)

// LogoSource fetches a stored logo by its storage path.
type LogoSource interface {
	FetchLogo(ctx context.Context, path string) ([]byte, error)
}

type Input struct {
	Spec Spec
	// Logo is optional; layouts without one simply skip the logo zone.
	Logo image.Image
}

type File struct {
	Format      FormatKey
	Filename    string
	ContentType string
	Data        []byte
}

// Result is the outcome of one format in a batch. Exactly one of File and Err is set.
type Result struct {
	Format FormatKey
	File   *File
	Err    error
}

type Options struct {
	Concurrency int
	LogoMaxPx   int
}

type Engine struct {
	concurrency int
	logoMaxPx   int
}

func NewEngine(opts Options) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.LogoMaxPx <= 0 {
		opts.LogoMaxPx = DefaultLogoMaxPx
	}
	return &Engine{concurrency: opts.Concurrency, logoMaxPx: opts.LogoMaxPx}
}

// LoadLogo fetches and normalizes the logo at path. An empty path yields (nil, nil).
// Callers are expected to log a failure and render without a logo.
func (e *Engine) LoadLogo(ctx context.Context, src LogoSource, path string) (image.Image, error) {
	if path == "" || src == nil {
		return nil, nil
	}
	data, err := src.FetchLogo(ctx, path)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstreamFetch, err)
	}
	img, err := compositor.NormalizeLogo(data, e.logoMaxPx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstreamFetch, err)
	}
	return img, nil
}

// Render lays out a single format as a one-page PDF.
func (e *Engine) Render(ctx context.Context, in Input, key FormatKey) (*File, error) {
	f, ok := LookupFormat(key)
	if !ok {
		return nil, apperr.Validation("unknown print format %q", key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qrPNG, err := qr.Encode(in.Spec.TargetURL, qr.Options{Format: qr.FormatRaster, WidthPx: f.QRMasterPx})
	if err != nil {
		return nil, err
	}
	qrImg, err := imaging.Decode(bytes.NewReader(qrPNG))
	if err != nil {
		return nil, fmt.Errorf("decode qr master: %w", err)
	}

	var buf bytes.Buffer
	s, err := newSheet(&buf, f.Geometry())
	if err != nil {
		return nil, err
	}

	code := newPicture(qrImg)
	var logo *picture
	if in.Logo != nil {
		logo = newPicture(in.Logo)
	}
	pal := paletteFor(in.Spec.Theme)

	switch f.kind {
	case layoutCard:
		err = drawCard(s, in.Spec, pal, code, logo)
	case layoutFlyer:
		err = drawFlyer(s, in.Spec, f.TypeScale, pal, code, logo)
	case layoutSticker:
		err = drawStickers(s, in.Spec, pal, code)
	}
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", key, err)
	}
	if err := s.close(); err != nil {
		return nil, fmt.Errorf("write pdf %s: %w", key, err)
	}

	return &File{
		Format:      key,
		Filename:    Filename(in.Spec, key),
		ContentType: "application/pdf",
		Data:        buf.Bytes(),
	}, nil
}

// RenderAll renders every format of the spec concurrently. A failure in one
// format is reported in its Result and does not stop the others.
func (e *Engine) RenderAll(ctx context.Context, in Input) []Result {
	keys := in.Spec.Formats
	results := make([]Result, len(keys))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = Result{Format: key, Err: fmt.Errorf("render %s: panic: %v", key, r)}
				}
			}()
			file, err := e.Render(ctx, in, key)
			results[i] = Result{Format: key, File: file, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug reduces s to lower-case ASCII words joined by dashes.
func Slug(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	if s == "" {
		return "qr"
	}
	return s
}

func Filename(s Spec, key FormatKey) string {
	return Slug(s.Brand()) + "-" + string(key) + ".pdf"
}
