package compositor

import (
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
)

// TextTile renders one line of text on a transparent image sized to the ink.
// The face shrinks until the line fits maxWidthPx (zero means unbounded).
func TextTile(text string, bold bool, sizePx, maxWidthPx float64, c color.Color) (image.Image, error) {
	if err := loadFonts(); err != nil {
		return nil, err
	}
	f := regularFont
	if bold {
		f = boldFont
	}

	floor := math.Max(minTextPt, sizePx*0.5)
	for {
		face, err := newFace(f, sizePx)
		if err != nil {
			return nil, err
		}
		probe := gg.NewContext(1, 1)
		probe.SetFontFace(face)
		w, _ := probe.MeasureString(text)
		if maxWidthPx > 0 && w > maxWidthPx && sizePx > floor {
			sizePx = math.Max(floor, sizePx*0.92)
			continue
		}

		m := face.Metrics()
		ascent := float64(m.Ascent) / 64
		descent := float64(m.Descent) / 64
		pad := math.Ceil(sizePx * 0.1)

		dc := gg.NewContext(int(math.Ceil(w))+2, int(math.Ceil(ascent+descent+2*pad)))
		dc.SetFontFace(face)
		dc.SetColor(c)
		dc.DrawString(text, 1, pad+ascent)
		return dc.Image(), nil
	}
}
