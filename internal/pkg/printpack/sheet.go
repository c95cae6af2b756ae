package printpack

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/qrdesk/qrstudio/internal/pkg/compositor"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/document"
	pdfcolor "seehuhn.de/go/pdf/graphics/color"
	pdfimage "seehuhn.de/go/pdf/graphics/image"
)

// textDPI is the raster resolution of text tiles; it keeps type crisp at print sizes.
const textDPI = 600

// sheet is a single PDF page sized to the media box (trim plus bleed).
type sheet struct {
	page *document.Page
	geo  Geometry
}

func newSheet(w io.Writer, geo Geometry) (*sheet, error) {
	page, err := document.WriteSinglePage(w, pdfRect(geo.Media), pdf.V1_7, nil)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	page.PageDict["BleedBox"] = pdfRect(geo.Media)
	page.PageDict["TrimBox"] = pdfRect(geo.Trim)
	page.PageDict["ArtBox"] = pdfRect(geo.Safe)
	return &sheet{page: page, geo: geo}, nil
}

func pdfRect(b Box) *pdf.Rectangle {
	return &pdf.Rectangle{LLx: b.X, LLy: b.Y, URx: b.X + b.W, URy: b.Y + b.H}
}

func rgb(c color.NRGBA) pdfcolor.Color {
	return pdfcolor.DeviceRGB(float64(c.R)/255, float64(c.G)/255, float64(c.B)/255)
}

func (s *sheet) fill(b Box, c color.NRGBA) {
	s.page.SetFillColor(rgb(c))
	s.page.Rectangle(b.X, b.Y, b.W, b.H)
	s.page.Fill()
}

func (s *sheet) cutGuide(b Box, c color.NRGBA) {
	s.page.PushGraphicsState()
	s.page.SetStrokeColor(rgb(c))
	s.page.SetLineWidth(0.4)
	s.page.SetLineDash([]float64{3, 2}, 0)
	s.page.Rectangle(b.X, b.Y, b.W, b.H)
	s.page.Stroke()
	s.page.PopGraphicsState()
}

// picture wraps an image so repeated draws share one embedded object.
type picture struct {
	obj  *pdfimage.PNG
	w, h int
}

func newPicture(img image.Image) *picture {
	b := img.Bounds()
	return &picture{obj: &pdfimage.PNG{Data: img}, w: b.Dx(), h: b.Dy()}
}

func (s *sheet) draw(p *picture, b Box) {
	s.page.PushGraphicsState()
	s.page.Transform(matrix.Matrix{b.W, 0, 0, b.H, b.X, b.Y})
	s.page.DrawXObject(p.obj)
	s.page.PopGraphicsState()
}

type textStyle struct {
	bold   bool
	sizePt float64
	color  color.NRGBA
}

// textLine is a rendered line and its size in points.
type textLine struct {
	pic  *picture
	w, h float64
}

func renderLine(text string, st textStyle, maxWidthPt float64) (*textLine, error) {
	scale := textDPI / 72.0
	img, err := compositor.TextTile(text, st.bold, st.sizePt*scale, maxWidthPt*scale, st.color)
	if err != nil {
		return nil, err
	}
	p := newPicture(img)
	return &textLine{pic: p, w: float64(p.w) / scale, h: float64(p.h) / scale}, nil
}

// placeLine draws l with its vertical centre at cy; align 0 is left of x, 0.5 centred, 1 right.
func (s *sheet) placeLine(l *textLine, x, cy, align float64) Box {
	b := Box{X: x - align*l.w, Y: cy - l.h/2, W: l.w, H: l.h}
	s.draw(l.pic, b)
	return b
}

func (s *sheet) text(text string, st textStyle, x, cy, align, maxWidthPt float64) (Box, error) {
	if text == "" {
		return Box{}, nil
	}
	l, err := renderLine(text, st, maxWidthPt)
	if err != nil {
		return Box{}, err
	}
	return s.placeLine(l, x, cy, align), nil
}

func (s *sheet) close() error {
	return s.page.Close()
}
