package printpack

import (
	"sort"
	"strings"

	"github.com/qrdesk/qrstudio/internal/pkg/apperr"
)

// MMToPt converts millimetres to PDF points. Every physical size goes through it.
func MMToPt(mm float64) float64 {
	return mm * 72 / 25.4
}

const (
	BleedMM = 3.0
	SafeMM  = 5.0

	StickerCols = 3
	StickerRows = 7
)

type FormatKey string

const (
	FormatCard         FormatKey = "card"
	FormatFlyerA5      FormatKey = "flyer_a5"
	FormatFlyerA4      FormatKey = "flyer_a4"
	FormatPosterA3     FormatKey = "poster_a3"
	FormatStickerSheet FormatKey = "sticker_sheet"
)

type layoutKind int

const (
	layoutCard layoutKind = iota
	layoutFlyer
	layoutSticker
)

// Format is the physical description of one print product.
type Format struct {
	Key        FormatKey
	TrimWMM    float64
	TrimHMM    float64
	QRMasterPx int
	SafeMM     float64
	TypeScale  float64
	kind       layoutKind
	order      int
}

var formats = map[FormatKey]Format{
	FormatCard:         {Key: FormatCard, TrimWMM: 85, TrimHMM: 55, QRMasterPx: 1024, SafeMM: SafeMM, TypeScale: 1, kind: layoutCard, order: 0},
	FormatFlyerA5:      {Key: FormatFlyerA5, TrimWMM: 148, TrimHMM: 210, QRMasterPx: 2048, SafeMM: SafeMM, TypeScale: 1, kind: layoutFlyer, order: 1},
	FormatFlyerA4:      {Key: FormatFlyerA4, TrimWMM: 210, TrimHMM: 297, QRMasterPx: 2048, SafeMM: SafeMM, TypeScale: 1.3, kind: layoutFlyer, order: 2},
	FormatPosterA3:     {Key: FormatPosterA3, TrimWMM: 297, TrimHMM: 420, QRMasterPx: 4096, SafeMM: SafeMM, TypeScale: 1.6 * 1.3, kind: layoutFlyer, order: 3},
	FormatStickerSheet: {Key: FormatStickerSheet, TrimWMM: 210, TrimHMM: 297, QRMasterPx: 768, SafeMM: 3, TypeScale: 1, kind: layoutSticker, order: 4},
}

// LookupFormat returns the geometry for key.
func LookupFormat(key FormatKey) (Format, bool) {
	f, ok := formats[key]
	return f, ok
}

// AllFormats lists every format in canonical order.
func AllFormats() []FormatKey {
	keys := make([]FormatKey, 0, len(formats))
	for k := range formats {
		keys = append(keys, k)
	}
	sortFormats(keys)
	return keys
}

func sortFormats(keys []FormatKey) {
	sort.Slice(keys, func(i, j int) bool { return formats[keys[i]].order < formats[keys[j]].order })
}

// ParseFormats lower-cases, dedupes and orders the requested keys. Empty input means a single card.
func ParseFormats(raw []string) ([]FormatKey, error) {
	seen := make(map[FormatKey]bool, len(raw))
	out := make([]FormatKey, 0, len(raw))
	for _, r := range raw {
		k := FormatKey(strings.ToLower(strings.TrimSpace(r)))
		if k == "" {
			continue
		}
		if _, ok := formats[k]; !ok {
			return nil, apperr.Validation("unknown print format %q", r)
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	if len(out) == 0 {
		return []FormatKey{FormatCard}, nil
	}
	sortFormats(out)
	return out, nil
}

// Box is a rectangle in points with its origin at the bottom-left of the media box.
type Box struct {
	X, Y, W, H float64
}

func (b Box) Inset(d float64) Box {
	return Box{X: b.X + d, Y: b.Y + d, W: b.W - 2*d, H: b.H - 2*d}
}

func (b Box) CenterX() float64 { return b.X + b.W/2 }
func (b Box) CenterY() float64 { return b.Y + b.H/2 }
func (b Box) Top() float64     { return b.Y + b.H }

// Contains reports whether o lies within b, allowing for float rounding.
func (b Box) Contains(o Box) bool {
	const eps = 1e-6
	return o.X >= b.X-eps && o.Y >= b.Y-eps && o.X+o.W <= b.X+b.W+eps && o.Y+o.H <= b.Y+b.H+eps
}

// Geometry holds the page boxes of a format.
type Geometry struct {
	Media Box
	Trim  Box
	Safe  Box
}

func (f Format) Geometry() Geometry {
	bleed := MMToPt(BleedMM)
	trim := Box{X: bleed, Y: bleed, W: MMToPt(f.TrimWMM), H: MMToPt(f.TrimHMM)}
	return Geometry{
		Media: Box{W: trim.W + 2*bleed, H: trim.H + 2*bleed},
		Trim:  trim,
		Safe:  trim.Inset(MMToPt(f.SafeMM)),
	}
}
