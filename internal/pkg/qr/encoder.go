package qr

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// QuietZoneModules is the blank margin, in modules, kept around every code.
	QuietZoneModules = 4

	PreviewWidthPx  = 256
	DownloadWidthPx = 1024
	PrintWidthPx    = 4096

	MinWidthPx = 64
	MaxWidthPx = 8192

	// Level is fixed to the highest ECC so logo badges stay scannable.
	Level = qrcode.Highest
)

type Format int

const (
	FormatRaster Format = iota
	FormatVector
)

func (f Format) ContentType() string {
	if f == FormatVector {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) Ext() string {
	if f == FormatVector {
		return "svg"
	}
	return "png"
}

// ParseFormat accepts "png" / "svg" (and their long names).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png", "raster":
		return FormatRaster, nil
	case "svg", "vector":
		return FormatVector, nil
	}
	return 0, fmt.Errorf("unsupported format %q", s)
}

type Options struct {
	Format  Format
	WidthPx int
}

var (
	ErrInvalidURL   = errors.New("invalid url")
	ErrInvalidWidth = errors.New("invalid width")

	schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)
	// scheme followed by something other than a port, e.g. mailto:a@b.c or tel:+1555
	opaqueRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:[^0-9/]`)
)

// NormalizeURL trims the input and prefixes https:// when no scheme is present.
// Opaque forms such as mailto: or tel: have no host and are rejected.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !schemeRe.MatchString(s) {
		if opaqueRe.MatchString(s) {
			return "", fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidURL, s)
		}
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return s, nil
}

// Matrix returns the module bitmap, quiet zone included, for a normalized payload.
func Matrix(content string) ([][]bool, error) {
	q, err := newCode(content)
	if err != nil {
		return nil, err
	}
	return q.Bitmap(), nil
}

// Encode normalizes rawURL and renders it as PNG or responsive SVG.
func Encode(rawURL string, opts Options) ([]byte, error) {
	content, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	q, err := newCode(content)
	if err != nil {
		return nil, err
	}

	switch opts.Format {
	case FormatVector:
		return Responsive(renderSVG(q.Bitmap(), opts.WidthPx)), nil
	default:
		if opts.WidthPx < MinWidthPx || opts.WidthPx > MaxWidthPx {
			return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, opts.WidthPx)
		}
		// below one pixel per module skip2 silently grows the image
		if modules := len(q.Bitmap()); opts.WidthPx < modules {
			return nil, fmt.Errorf("%w: %d px is narrower than the %d modules of this code", ErrInvalidWidth, opts.WidthPx, modules)
		}
		return q.PNG(opts.WidthPx)
	}
}

func newCode(content string) (*qrcode.QRCode, error) {
	q, err := qrcode.New(content, Level)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	// skip2 keeps a 4-module border unless DisableBorder is set, matching QuietZoneModules
	return q, nil
}

func renderSVG(bitmap [][]bool, widthPx int) []byte {
	n := len(bitmap)
	if widthPx <= 0 {
		widthPx = DownloadWidthPx
	}

	var path strings.Builder
	for y, row := range bitmap {
		for x := 0; x < len(row); {
			if !row[x] {
				x++
				continue
			}
			start := x
			for x < len(row) && row[x] {
				x++
			}
			fmt.Fprintf(&path, "M%d %dh%dv1h-%dz", start, y, x-start, x-start)
		}
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`, widthPx, widthPx, n, n)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/>`, n, n)
	fmt.Fprintf(&b, `<path d="%s" fill="#000000"/>`, path.String())
	b.WriteString(`</svg>`)
	return b.Bytes()
}

var (
	svgRootRe = regexp.MustCompile(`<svg\b[^>]*>`)
	svgDimRe  = regexp.MustCompile(`\s(width|height)="[^"]*"`)
)

// Responsive strips width/height from the root <svg> element so it scales with its container.
func Responsive(svg []byte) []byte {
	loc := svgRootRe.FindIndex(svg)
	if loc == nil {
		return svg
	}
	root := svgDimRe.ReplaceAll(svg[loc[0]:loc[1]], nil)

	out := make([]byte, 0, len(svg))
	out = append(out, svg[:loc[0]]...)
	out = append(out, root...)
	out = append(out, svg[loc[1]:]...)
	return out
}
