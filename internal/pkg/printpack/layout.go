package printpack

import (
	"image/color"
	"math"

	"github.com/qrdesk/qrstudio/internal/pkg/compositor"
)

const (
	cardInfoRatio    = 0.58
	cardLogoMM       = 10.0
	cardMaxContacts  = 4
	flyerHeaderRatio = 0.22
	flyerQRPanelW    = 0.62
	flyerQRPanelH    = 0.55
	flyerLogoRatio   = 0.16
	stickerInsetMM   = 2.0
	stickerBandMM    = 7.0
	stickerBrandMax  = 24
	stickerURLMax    = 32
)

type palette struct {
	page    color.NRGBA
	panel   color.NRGBA
	onPanel color.NRGBA
	body    color.NRGBA
	muted   color.NRGBA
	guide   color.NRGBA
	qrField color.NRGBA
}

var (
	white  = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	ink    = color.NRGBA{R: 0x11, G: 0x18, B: 0x27, A: 0xff}
	slate  = color.NRGBA{R: 0x4b, G: 0x55, B: 0x63, A: 0xff}
	night  = color.NRGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff}
	mist   = color.NRGBA{R: 0xcb, G: 0xd5, B: 0xe1, A: 0xff}
	accent = color.NRGBA{R: 0x25, G: 0x63, B: 0xeb, A: 0xff}
	guide  = color.NRGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
)

func paletteFor(t Theme) palette {
	if t == ThemeDark {
		return palette{page: night, panel: accent, onPanel: white, body: white, muted: mist, guide: guide, qrField: white}
	}
	return palette{page: white, panel: accent, onPanel: white, body: ink, muted: slate, guide: guide, qrField: white}
}

// fitBox returns the largest w:h box centred inside b.
func fitBox(b Box, w, h int) Box {
	if w <= 0 || h <= 0 {
		return b
	}
	scale := math.Min(b.W/float64(w), b.H/float64(h))
	fw, fh := float64(w)*scale, float64(h)*scale
	return Box{X: b.CenterX() - fw/2, Y: b.CenterY() - fh/2, W: fw, H: fh}
}

type cardBoxes struct {
	infoBleed Box
	qrBleed   Box
	qr        Box
	text      Box
	logo      Box
}

func cardLayout(g Geometry, hasLogo bool) cardBoxes {
	m := MMToPt(SafeMM)
	split := g.Trim.X + g.Trim.W*cardInfoRatio
	zone := Box{X: split, Y: g.Trim.Y, W: g.Trim.X + g.Trim.W - split, H: g.Trim.H}
	side := math.Min(zone.W, zone.H) - 2*m

	b := cardBoxes{
		infoBleed: Box{W: split, H: g.Media.H},
		qrBleed:   Box{X: split, W: g.Media.W - split, H: g.Media.H},
		qr:        Box{X: zone.CenterX() - side/2, Y: zone.CenterY() - side/2, W: side, H: side},
		text:      Box{X: g.Safe.X, Y: g.Safe.Y, W: split - m/2 - g.Safe.X, H: g.Safe.H},
	}
	if hasLogo {
		ls := MMToPt(cardLogoMM)
		b.logo = Box{X: b.text.X, Y: b.text.Top() - ls, W: ls, H: ls}
	}
	return b
}

func drawCard(s *sheet, spec Spec, pal palette, qr, logo *picture) error {
	b := cardLayout(s.geo, logo != nil)

	s.fill(s.geo.Media, pal.page)
	s.fill(b.infoBleed, pal.panel)
	s.fill(b.qrBleed, pal.qrField)
	s.draw(qr, b.qr)

	top := b.text.Top()
	if logo != nil {
		s.draw(logo, fitBox(b.logo, logo.w, logo.h))
		top = b.logo.Y - MMToPt(1.5)
	}

	if name := spec.Brand(); name != "" {
		l, err := renderLine(name, textStyle{bold: true, sizePt: 11, color: pal.onPanel}, b.text.W)
		if err != nil {
			return err
		}
		s.placeLine(l, b.text.X, top-l.h/2, 0)
		top -= l.h
	}
	if spec.Subtitle != nil {
		sub := textStyle{sizePt: 7, color: pal.onPanel}
		if _, err := s.text(compositor.Truncate(*spec.Subtitle, 48), sub, b.text.X, top-sub.sizePt*0.7, 0, b.text.W); err != nil {
			return err
		}
	}

	contact := textStyle{sizePt: 6.5, color: pal.onPanel}
	lines := ContactLines(spec, cardMaxContacts)
	lead := contact.sizePt * 1.45
	y := b.text.Y + lead/2 + float64(len(lines)-1)*lead
	for _, line := range lines {
		if _, err := s.text(line, contact, b.text.X, y, 0, b.text.W); err != nil {
			return err
		}
		y -= lead
	}
	return nil
}

type flyerBoxes struct {
	header      Box
	headerBleed Box
	panel       Box
	qr          Box
	logo        Box
	brandMaxW   float64
	contactTop  float64
}

func flyerLayout(g Geometry, hasLogo bool) flyerBoxes {
	m := MMToPt(SafeMM)
	headerH := g.Trim.H * flyerHeaderRatio
	header := Box{X: g.Trim.X, Y: g.Trim.Top() - headerH, W: g.Trim.W, H: headerH}
	panel := Box{X: g.Safe.X, Y: g.Safe.Y, W: g.Safe.W, H: header.Y - m - g.Safe.Y}

	side := math.Min(flyerQRPanelW*panel.W, flyerQRPanelH*panel.H)
	gap := panel.H * 0.08
	qr := Box{X: panel.CenterX() - side/2, Y: panel.Top() - gap - side, W: side, H: side}

	b := flyerBoxes{
		header:      header,
		headerBleed: Box{Y: header.Y, W: g.Media.W, H: g.Media.H - header.Y},
		panel:       panel,
		qr:          qr,
		brandMaxW:   g.Safe.W,
		contactTop:  qr.Y - gap*0.6,
	}
	if hasLogo {
		ls := math.Min(g.Trim.W*flyerLogoRatio, headerH-2*m)
		b.logo = Box{X: g.Safe.X + g.Safe.W - ls, Y: g.Safe.Top() - ls, W: ls, H: ls}
		b.brandMaxW = g.Safe.W - 2*(ls+m)
	}
	return b
}

func drawFlyer(s *sheet, spec Spec, scale float64, pal palette, qr, logo *picture) error {
	b := flyerLayout(s.geo, logo != nil)

	s.fill(s.geo.Media, pal.page)
	s.fill(b.headerBleed, pal.panel)
	if logo != nil {
		s.draw(logo, fitBox(b.logo, logo.w, logo.h))
	}

	brand := textStyle{bold: true, sizePt: 26 * scale, color: pal.onPanel}
	if _, err := s.text(spec.Brand(), brand, b.header.CenterX(), b.header.Y+b.header.H*0.58, 0.5, b.brandMaxW); err != nil {
		return err
	}
	if spec.Subtitle != nil {
		sub := textStyle{sizePt: 13 * scale, color: pal.onPanel}
		if _, err := s.text(*spec.Subtitle, sub, b.header.CenterX(), b.header.Y+b.header.H*0.28, 0.5, b.brandMaxW); err != nil {
			return err
		}
	}

	// quiet white field behind the code so dark pages keep contrast
	s.fill(b.qr, pal.qrField)
	s.draw(qr, b.qr)

	contact := textStyle{sizePt: 11 * scale, color: pal.body}
	lead := contact.sizePt * 1.5
	y := b.contactTop - lead/2
	for _, line := range ContactLines(spec, MaxContactLines) {
		if y-lead/2 < b.panel.Y {
			break
		}
		if _, err := s.text(line, contact, b.panel.CenterX(), y, 0.5, b.panel.W); err != nil {
			return err
		}
		y -= lead
	}
	return nil
}

// stickerCells tiles the safe area into the sticker grid, row-major from the top left.
func stickerCells(g Geometry) []Box {
	cw := g.Safe.W / StickerCols
	ch := g.Safe.H / StickerRows
	cells := make([]Box, 0, StickerCols*StickerRows)
	for r := 0; r < StickerRows; r++ {
		for c := 0; c < StickerCols; c++ {
			cells = append(cells, Box{
				X: g.Safe.X + float64(c)*cw,
				Y: g.Safe.Top() - float64(r+1)*ch,
				W: cw,
				H: ch,
			})
		}
	}
	return cells
}

func stickerQR(cell Box) Box {
	inset := MMToPt(stickerInsetMM)
	side := math.Min(cell.W-2*inset, cell.H-2*inset-MMToPt(stickerBandMM))
	return Box{X: cell.CenterX() - side/2, Y: cell.Top() - inset - side, W: side, H: side}
}

func drawStickers(s *sheet, spec Spec, pal palette, qr *picture) error {
	cells := stickerCells(s.geo)
	band := MMToPt(stickerBandMM)
	maxW := cells[0].W - 2*MMToPt(stickerInsetMM)

	brand, err := renderLine(compositor.Truncate(spec.Brand(), stickerBrandMax), textStyle{bold: true, sizePt: 7, color: pal.body}, maxW)
	if err != nil {
		return err
	}
	caption, err := renderLine(compositor.Truncate(DisplayURL(spec.TargetURL), stickerURLMax), textStyle{sizePt: 5.5, color: pal.muted}, maxW)
	if err != nil {
		return err
	}

	s.fill(s.geo.Media, pal.page)
	for _, cell := range cells {
		s.cutGuide(cell, pal.guide)
		q := stickerQR(cell)
		s.draw(qr, q)
		if spec.Brand() != "" {
			s.placeLine(brand, cell.CenterX(), q.Y-band*0.3, 0.5)
		}
		s.placeLine(caption, cell.CenterX(), q.Y-band*0.72, 0.5)
	}
	return nil
}
