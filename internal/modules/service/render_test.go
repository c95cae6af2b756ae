package service

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/qrdesk/qrstudio/internal/pkg/apperr"
	"github.com/qrdesk/qrstudio/internal/pkg/qr"
	"github.com/qrdesk/qrstudio/internal/pkg/template"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryPreviewCache struct {
	mu      sync.Mutex
	items   map[string][]byte
	readErr error
}

func newMemoryPreviewCache() *memoryPreviewCache {
	return &memoryPreviewCache{items: map[string][]byte{}}
}

func (c *memoryPreviewCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, false, c.readErr
	}
	b, ok := c.items[key]
	return b, ok, nil
}

func (c *memoryPreviewCache) Set(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = data
	return nil
}

// stubLogoSource counts fetches so tests can tell whether a logo was requested.
type stubLogoSource struct {
	mu    sync.Mutex
	data  []byte
	err   error
	calls int
}

func (s *stubLogoSource) FetchLogo(context.Context, string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.data, s.err
}

func testLogoPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(200, 100, color.NRGBA{R: 0xd9, G: 0x46, B: 0x1e, A: 0xff}), imaging.PNG))
	return buf.Bytes()
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func newTestRenderService(t *testing.T, templateID string, logos *stubLogoSource, cache PreviewCache) (RenderService, RenderInput) {
	t.Helper()
	p := createTestProject("owner-1")
	p.TemplateID = templateID
	logo := "logos/owner-1/acme.png"
	p.LogoPath = &logo

	r := &MockProjectRepo{}
	r.On("Get", mock.Anything, p.ID).Return(p, nil)
	projects := newTestProjectService(r, &MockUsageEventRepo{})

	svc := NewRenderService(projects, logos, cache, zap.NewNop(), 128)
	return svc, RenderInput{OwnerID: "owner-1", ProjectID: p.ID, Format: qr.FormatRaster, WidthPx: 256}
}

func TestRenderService_MaxScanIsCached(t *testing.T) {
	cache := newMemoryPreviewCache()
	logos := &stubLogoSource{data: testLogoPNG(t)}
	svc, in := newTestRenderService(t, template.IDMaxScan, logos, cache)

	first, err := svc.Render(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "image/png", first.ContentType)
	assert.Equal(t, "acme-bakery-qr.png", first.Filename)
	assert.True(t, bytes.HasPrefix(first.Data, pngMagic))

	second, err := svc.Render(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Data, second.Data)

	// the max scan template never looks at the logo
	assert.Equal(t, 0, logos.calls)
}

func TestRenderService_CacheFailureFallsThrough(t *testing.T) {
	cache := newMemoryPreviewCache()
	cache.readErr = errors.New("redis: connection refused")
	svc, in := newTestRenderService(t, template.IDMaxScan, &stubLogoSource{}, cache)

	out, err := svc.Render(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Cached)
	assert.True(t, bytes.HasPrefix(out.Data, pngMagic))
}

func TestRenderService_LogoBadge(t *testing.T) {
	plain, err := qr.Encode("acme.example/menu", qr.Options{Format: qr.FormatRaster, WidthPx: 256})
	require.NoError(t, err)

	tests := []struct {
		name      string
		logos     *stubLogoSource
		wantPlain bool
	}{
		{
			name:      "logo applied",
			logos:     &stubLogoSource{data: testLogoPNG(t)},
			wantPlain: false,
		},
		{
			name:      "fetch failure degrades to the plain code",
			logos:     &stubLogoSource{err: errors.New("403 forbidden")},
			wantPlain: true,
		},
		{
			name:      "undecodable logo degrades to the plain code",
			logos:     &stubLogoSource{data: []byte("<html>")},
			wantPlain: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, in := newTestRenderService(t, template.IDLogo, tt.logos, nil)

			out, err := svc.Render(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, 1, tt.logos.calls)
			assert.Equal(t, tt.wantPlain, bytes.Equal(plain, out.Data))

			img, err := imaging.Decode(bytes.NewReader(out.Data))
			require.NoError(t, err)
			assert.Equal(t, 256, img.Bounds().Dx())
		})
	}
}

func TestRenderService_LabelTemplate(t *testing.T) {
	t.Run("raster label keeps the requested width", func(t *testing.T) {
		logos := &stubLogoSource{data: testLogoPNG(t)}
		svc, in := newTestRenderService(t, template.IDLogoLabel, logos, nil)
		in.WidthPx = 512

		out, err := svc.Render(context.Background(), in)
		require.NoError(t, err)
		img, err := imaging.Decode(bytes.NewReader(out.Data))
		require.NoError(t, err)
		assert.Equal(t, 512, img.Bounds().Dx())
		assert.Equal(t, 1, logos.calls)
	})

	t.Run("vector label never embeds the logo", func(t *testing.T) {
		logos := &stubLogoSource{data: testLogoPNG(t)}
		svc, in := newTestRenderService(t, template.IDLogoLabel, logos, nil)
		in.Format = qr.FormatVector

		out, err := svc.Render(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "image/svg+xml", out.ContentType)
		assert.Equal(t, "acme-bakery-qr.svg", out.Filename)
		assert.Contains(t, string(out.Data), "<svg")
		assert.Contains(t, string(out.Data), "Acme Bakery")
		assert.NotContains(t, string(out.Data), "<image")
		assert.Equal(t, 0, logos.calls)
	})
}

func TestRenderService_Errors(t *testing.T) {
	t.Run("size out of range", func(t *testing.T) {
		svc, in := newTestRenderService(t, template.IDMaxScan, &stubLogoSource{}, nil)
		in.WidthPx = qr.MaxWidthPx + 1
		_, err := svc.Render(context.Background(), in)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("size narrower than the code", func(t *testing.T) {
		p := createTestProject("owner-1")
		p.TemplateID = template.IDMaxScan
		p.TargetURL = "https://acme.example/" + strings.Repeat("a", 200)
		r := &MockProjectRepo{}
		r.On("Get", mock.Anything, p.ID).Return(p, nil)
		svc := NewRenderService(newTestProjectService(r, &MockUsageEventRepo{}), &stubLogoSource{}, nil, zap.NewNop(), 128)

		_, err := svc.Render(context.Background(), RenderInput{OwnerID: "owner-1", ProjectID: p.ID, Format: qr.FormatRaster, WidthPx: qr.MinWidthPx})
		assert.ErrorIs(t, err, apperr.ErrValidation)
		assert.Contains(t, err.Error(), "too small")
	})

	t.Run("someone else's project", func(t *testing.T) {
		svc, in := newTestRenderService(t, template.IDMaxScan, &stubLogoSource{}, nil)
		in.OwnerID = "owner-2"
		_, err := svc.Render(context.Background(), in)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})
}
