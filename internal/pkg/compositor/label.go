package compositor

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"regexp"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font/opentype"
)

// Label band geometry, as fractions of the square canvas side.
const (
	LabelQRScale   = 0.84
	labelQRTop     = 0.02
	labelNameY     = 0.905
	labelTaglineY  = 0.96
	labelNameSize  = 0.046
	labelTagSize   = 0.032
	labelTextWidth = 0.90
	minTextPt      = 6
)

var textColor = color.NRGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff}

// ComposeLabel shrinks the QR into the top of the canvas and writes name and tagline beneath it.
func ComposeLabel(qrPNG []byte, name, tagline string, maxNameLen, maxTaglineLen int) ([]byte, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}
	base, err := imaging.Decode(bytes.NewReader(qrPNG))
	if err != nil {
		return nil, fmt.Errorf("decode qr: %w", err)
	}
	size := base.Bounds().Dx()

	qrSide := int(math.Round(float64(size) * LabelQRScale))
	qrX := (size - qrSide) / 2
	qrY := int(math.Round(float64(size) * labelQRTop))

	canvas := imaging.New(size, size, color.White)
	xdraw.NearestNeighbor.Scale(canvas, image.Rect(qrX, qrY, qrX+qrSide, qrY+qrSide), base, base.Bounds(), xdraw.Over, nil)

	dc := gg.NewContextForImage(canvas)
	dc.SetColor(textColor)

	lines := []struct {
		text string
		font *opentype.Font
		size float64
		y    float64
	}{
		{Truncate(name, maxNameLen), boldFont, labelNameSize, labelNameY},
		{Truncate(tagline, maxTaglineLen), regularFont, labelTagSize, labelTaglineY},
	}
	for _, l := range lines {
		if l.text == "" {
			continue
		}
		if err := drawFittedLine(dc, l.font, l.text, float64(size)*l.size, float64(size)*labelTextWidth, float64(size)/2, float64(size)*l.y); err != nil {
			return nil, err
		}
	}

	return encodePNG(dc.Image())
}

// drawFittedLine centres text at (cx, cy), shrinking the face until it fits maxWidth.
func drawFittedLine(dc *gg.Context, f *opentype.Font, text string, pt, maxWidth, cx, cy float64) error {
	for {
		face, err := newFace(f, pt)
		if err != nil {
			return fmt.Errorf("font face: %w", err)
		}
		dc.SetFontFace(face)
		if w, _ := dc.MeasureString(text); w <= maxWidth || pt <= minTextPt {
			dc.DrawStringAnchored(text, cx, cy, 0.5, 0.5)
			return nil
		}
		pt = math.Max(minTextPt, pt*0.92)
	}
}

var (
	svgOpenRe    = regexp.MustCompile(`<svg\b[^>]*>`)
	svgViewBoxRe = regexp.MustCompile(`viewBox="([^"]*)"`)
	svgCloseRe   = regexp.MustCompile(`</svg>\s*$`)

	ErrMalformedSVG = errors.New("malformed svg")
)

// ComposeLabelSVG is the vector counterpart of ComposeLabel on a 1000-unit square.
func ComposeLabelSVG(qrSVG []byte, name, tagline string, maxNameLen, maxTaglineLen int) ([]byte, error) {
	open := svgOpenRe.FindIndex(qrSVG)
	closing := svgCloseRe.FindIndex(qrSVG)
	if open == nil || closing == nil || closing[0] < open[1] {
		return nil, ErrMalformedSVG
	}
	viewBox := "0 0 1 1"
	if m := svgViewBoxRe.FindSubmatch(qrSVG[open[0]:open[1]]); m != nil {
		viewBox = string(m[1])
	}

	const side = 1000
	qrSide := side * LabelQRScale
	qrX := (side - qrSide) / 2
	qrY := side * labelQRTop

	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d">`, side, side)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/>`, side, side)
	fmt.Fprintf(&b, `<svg x="%g" y="%g" width="%g" height="%g" viewBox="%s">`, qrX, qrY, qrSide, qrSide, viewBox)
	b.Write(qrSVG[open[1]:closing[0]])
	b.WriteString(`</svg>`)

	writeText := func(text string, y, size float64, weight int) error {
		if text == "" {
			return nil
		}
		fmt.Fprintf(&b, `<text x="%d" y="%g" text-anchor="middle" dominant-baseline="middle" font-family="Helvetica, Arial, sans-serif" font-weight="%d" font-size="%g" fill="#111827">`, side/2, y, weight, size)
		if err := xml.EscapeText(&b, []byte(text)); err != nil {
			return err
		}
		b.WriteString(`</text>`)
		return nil
	}
	if err := writeText(Truncate(name, maxNameLen), side*labelNameY, side*labelNameSize, 700); err != nil {
		return nil, err
	}
	if err := writeText(Truncate(tagline, maxTaglineLen), side*labelTaglineY, side*labelTagSize, 400); err != nil {
		return nil, err
	}
	b.WriteString(`</svg>`)
	return b.Bytes(), nil
}
