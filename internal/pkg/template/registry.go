package template

import (
	"errors"
	"fmt"
	"sort"
)

// Version is the only template revision currently compiled in.
const Version = 1

var ErrTemplateNotFound = errors.New("template not found")

// Variant is the closed set of locked visual behaviours.
type Variant int

const (
	VariantMaxScan Variant = iota + 1
	VariantLogo
	VariantLogoLabel
)

func (v Variant) String() string {
	switch v {
	case VariantMaxScan:
		return "max_scan"
	case VariantLogo:
		return "logo"
	case VariantLogoLabel:
		return "logo_label"
	default:
		panic(fmt.Sprintf("template: unknown variant %d", int(v)))
	}
}

type Definition struct {
	ID               string  `json:"id"`
	Version          int     `json:"version"`
	Variant          Variant `json:"-"`
	Name             string  `json:"name"`
	AllowsLogo       bool    `json:"allows_logo"`
	MaxLogoAreaRatio float64 `json:"max_logo_area_ratio"`
	AllowsLabel      bool    `json:"allows_label"`
	MaxNameLen       int     `json:"max_name_len"`
	MaxTaglineLen    int     `json:"max_tagline_len"`
}

const (
	IDMaxScan   = "qr_max_scan"
	IDLogo      = "qr_logo"
	IDLogoLabel = "qr_logo_label"

	// LogoAreaRatio keeps the badge well inside the damage tolerance of the highest ECC level.
	LogoAreaRatio = 0.22
)

type key struct {
	id      string
	version int
}

var registry = map[key]Definition{
	{IDMaxScan, Version}: {
		ID:      IDMaxScan,
		Version: Version,
		Variant: VariantMaxScan,
		Name:    "Maximum scan",
	},
	{IDLogo, Version}: {
		ID:               IDLogo,
		Version:          Version,
		Variant:          VariantLogo,
		Name:             "QR with logo",
		AllowsLogo:       true,
		MaxLogoAreaRatio: LogoAreaRatio,
	},
	{IDLogoLabel, Version}: {
		ID:               IDLogoLabel,
		Version:          Version,
		Variant:          VariantLogoLabel,
		Name:             "QR with logo and label",
		AllowsLogo:       true,
		MaxLogoAreaRatio: LogoAreaRatio,
		AllowsLabel:      true,
		MaxNameLen:       80,
		MaxTaglineLen:    60,
	},
}

// Lookup resolves a (template id, version) pair.
func Lookup(id string, version int) (Definition, error) {
	def, ok := registry[key{id, version}]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s v%d", ErrTemplateNotFound, id, version)
	}
	return def, nil
}

// List returns every definition ordered by id.
func List() []Definition {
	out := make([]Definition, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID == out[j].ID {
			return out[i].Version < out[j].Version
		}
		return out[i].ID < out[j].ID
	})
	return out
}
