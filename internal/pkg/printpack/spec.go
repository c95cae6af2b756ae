package printpack

import (
	"strings"

	"github.com/qrdesk/qrstudio/internal/pkg/apperr"
	"github.com/qrdesk/qrstudio/internal/pkg/qr"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"

	// Accent is fixed brand blue; it is recorded in the spec so a future change alters the hash.
	Accent = "#2563EB"

	MaxContactLines = 6
)

// Project is the slice of a project record that print layout depends on.
type Project struct {
	ID              string
	BusinessName    string
	Tagline         string
	TargetURL       string
	TemplateID      string
	TemplateVersion int
	LogoPath        string
}

// RawSpec is a print request as the client sent it.
type RawSpec struct {
	Formats    []string `json:"formats"`
	BrandName  string   `json:"brand_name"`
	Subtitle   string   `json:"subtitle"`
	PersonName string   `json:"person_name"`
	Title      string   `json:"title"`
	Phone      string   `json:"phone"`
	Email      string   `json:"email"`
	Website    string   `json:"website"`
	Address    string   `json:"address"`
	Theme      string   `json:"theme"`
}

// Spec is the normalized snapshot of what a print run renders. Absent fields are nil.
type Spec struct {
	ProjectID  string      `json:"project_id"`
	TargetURL  string      `json:"target_url"`
	TemplateID string      `json:"template_id"`
	LogoPath   *string     `json:"logo_path"`
	Formats    []FormatKey `json:"formats"`
	BrandName  *string     `json:"brand_name"`
	Subtitle   *string     `json:"subtitle"`
	PersonName *string     `json:"person_name"`
	Title      *string     `json:"title"`
	Phone      *string     `json:"phone"`
	Email      *string     `json:"email"`
	Website    *string     `json:"website"`
	Address    *string     `json:"address"`
	Theme      Theme       `json:"theme"`
	Accent     string      `json:"accent"`
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func orDefault(s, def string) *string {
	if v := optional(s); v != nil {
		return v
	}
	return optional(def)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Normalize fills the spec from project defaults and validates it.
// The project URL, template and logo are captured so edits to them change the generation hash.
func Normalize(p Project, raw RawSpec) (Spec, error) {
	target, err := qr.NormalizeURL(p.TargetURL)
	if err != nil {
		return Spec{}, apperr.Validation("project url is invalid")
	}

	keys, err := ParseFormats(raw.Formats)
	if err != nil {
		return Spec{}, err
	}

	theme := ThemeLight
	switch Theme(strings.ToLower(strings.TrimSpace(raw.Theme))) {
	case "", ThemeLight:
	case ThemeDark:
		theme = ThemeDark
	default:
		return Spec{}, apperr.Validation("unknown theme %q", raw.Theme)
	}

	return Spec{
		ProjectID:  p.ID,
		TargetURL:  target,
		TemplateID: p.TemplateID,
		LogoPath:   optional(p.LogoPath),
		Formats:    keys,
		BrandName:  orDefault(raw.BrandName, p.BusinessName),
		Subtitle:   orDefault(raw.Subtitle, p.Tagline),
		PersonName: optional(raw.PersonName),
		Title:      optional(raw.Title),
		Phone:      optional(raw.Phone),
		Email:      optional(raw.Email),
		Website:    optional(raw.Website),
		Address:    optional(raw.Address),
		Theme:      theme,
		Accent:     Accent,
	}, nil
}

// ContactLines assembles the ordered contact block, skipping absent entries, capped at limit and MaxContactLines.
func ContactLines(s Spec, limit int) []string {
	if limit <= 0 || limit > MaxContactLines {
		limit = MaxContactLines
	}

	var lines []string
	add := func(l string) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	switch person, title := deref(s.PersonName), deref(s.Title); {
	case person != "" && title != "":
		add(person + " · " + title)
	default:
		add(person + title)
	}
	add(deref(s.Phone))
	add(deref(s.Email))
	if s.Website != nil {
		add(*s.Website)
	} else {
		add(DisplayURL(s.TargetURL))
	}
	for _, part := range strings.Split(deref(s.Address), "\n") {
		add(part)
	}

	if len(lines) > limit {
		lines = lines[:limit]
	}
	return lines
}

// DisplayURL drops the scheme and a trailing slash for printing.
func DisplayURL(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	return strings.TrimSuffix(u, "/")
}

// Brand is the headline text of every format.
func (s Spec) Brand() string {
	return deref(s.BrandName)
}
