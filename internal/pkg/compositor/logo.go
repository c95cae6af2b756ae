package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	// extra logo upload formats
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	badgePaddingRatio = 0.10
	minBadgePadding   = 4
	badgeRadiusRatio  = 0.18
	logoRadiusRatio   = 0.14
	minLogoBudgetPx   = 8
)

var ErrInvalidRatio = errors.New("logo area ratio out of range")

// NormalizeLogo decodes any supported upload and downsizes it so neither side exceeds maxPx.
func NormalizeLogo(data []byte, maxPx int) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode logo: %w", err)
	}
	if maxPx > 0 {
		img = imaging.Fit(img, maxPx, maxPx, imaging.Lanczos)
	}
	return imaging.Clone(img), nil
}

// NormalizeLogoPNG is NormalizeLogo re-encoded as PNG.
func NormalizeLogoPNG(data []byte, maxPx int) ([]byte, error) {
	img, err := NormalizeLogo(data, maxPx)
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

// ApplyLogoBadge centres a rounded white badge on the QR raster and draws the logo inside it.
// The badge is opaque, so transparent logo pixels never reveal modules underneath.
func ApplyLogoBadge(qrPNG, logo []byte, maxAreaRatio float64) ([]byte, error) {
	if maxAreaRatio <= 0 || maxAreaRatio >= 0.5 {
		return nil, fmt.Errorf("%w: %.3f", ErrInvalidRatio, maxAreaRatio)
	}

	base, err := imaging.Decode(bytes.NewReader(qrPNG))
	if err != nil {
		return nil, fmt.Errorf("decode qr: %w", err)
	}
	size := base.Bounds().Dx()

	budget := int(math.Round(float64(size) * maxAreaRatio))
	if budget < minLogoBudgetPx {
		return nil, fmt.Errorf("canvas %dpx too small for a logo badge", size)
	}

	src, err := NormalizeLogo(logo, 0)
	if err != nil {
		return nil, err
	}

	dc := gg.NewContextForImage(imaging.Clone(base))
	drawBadge(dc, src, float64(size)/2, float64(size)/2, budget)

	return encodePNG(dc.Image())
}

// BadgeGeometry returns the badge side and the padding around the logo budget.
func BadgeGeometry(budget int) (side, padding int) {
	padding = int(math.Round(float64(budget) * badgePaddingRatio))
	if padding < minBadgePadding {
		padding = minBadgePadding
	}
	return budget + 2*padding, padding
}

func drawBadge(dc *gg.Context, logo image.Image, cx, cy float64, budget int) {
	side, padding := BadgeGeometry(budget)
	x0 := math.Round(cx - float64(side)/2)
	y0 := math.Round(cy - float64(side)/2)

	dc.SetColor(color.White)
	dc.DrawRoundedRectangle(x0, y0, float64(side), float64(side), float64(side)*badgeRadiusRatio)
	dc.Fill()

	dc.DrawImage(roundedLogo(logo, budget), int(x0)+padding, int(y0)+padding)
}

// roundedLogo letterboxes the logo into a transparent budget square and clips its corners.
func roundedLogo(logo image.Image, budget int) image.Image {
	b := logo.Bounds()
	w, h := budget, budget
	if b.Dx() >= b.Dy() {
		h = max(1, int(math.Round(float64(budget)*float64(b.Dy())/float64(b.Dx()))))
	} else {
		w = max(1, int(math.Round(float64(budget)*float64(b.Dx())/float64(b.Dy()))))
	}
	resized := imaging.Resize(logo, w, h, imaging.Lanczos)
	box := imaging.PasteCenter(imaging.New(budget, budget, color.NRGBA{}), resized)

	mask := gg.NewContext(budget, budget)
	mask.DrawRoundedRectangle(0, 0, float64(budget), float64(budget), float64(budget)*logoRadiusRatio)
	mask.Clip()
	mask.DrawImage(box, 0, 0)
	return mask.Image()
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
