// Package snippet renders SFMC code that converts the platform's system
// time (UTC-6, no DST) into a chosen timezone.
package snippet

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/philtim/multiclock/catalog"
	"github.com/philtim/multiclock/tzresolve"
)

// Language of a generated snippet
type Language string

const (
	SQL       Language = "SQL"
	AMPscript Language = "AMPscript"
	SSJS      Language = "SSJS"
)

// Languages lists every language in output order
var Languages = []Language{SQL, AMPscript, SSJS}

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

var templateNames = map[Language]string{
	SQL:       "sql.tmpl",
	AMPscript: "ampscript.tmpl",
	SSJS:      "ssjs.tmpl",
}

// Snippet is one copyable block of code
type Snippet struct {
	Language Language
	Code     string
}

// Params are the values substituted into the templates. Deltas are minutes
// to add to SFMC system time.
type Params struct {
	Timezone     string
	Label        string
	ExternalName string
	Local        bool
	UTC          bool
	ObservesDST  bool
	WinterDelta  int
	SummerDelta  int
	CurrentDelta int
}

// Generator builds snippets for a zone at a reference instant
type Generator struct {
	resolver *tzresolve.Resolver
	catalog  *catalog.Catalog
}

// NewGenerator creates a Generator. A nil catalog means catalog.Default().
func NewGenerator(resolver *tzresolve.Resolver, cat *catalog.Catalog) *Generator {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Generator{resolver: resolver, catalog: cat}
}

// Params computes template parameters for tz. Winter and summer samples
// are taken in the instant's year.
func (g *Generator) Params(tz string, local bool, instant time.Time) Params {
	d, _ := g.catalog.Lookup(tz)
	p := Params{
		Timezone:     tz,
		Label:        g.catalog.DisplayLabel(tz),
		ExternalName: d.ExternalName,
		Local:        local,
		UTC:          tz == catalog.UTCZone,
		CurrentDelta: g.resolver.OffsetMinutes(tz, instant) - catalog.SystemOffsetMinutes,
	}
	if p.UTC || d.NoDST {
		p.WinterDelta = p.CurrentDelta
		p.SummerDelta = p.CurrentDelta
		return p
	}

	winter, summer := g.resolver.Samples(tz, instant.UTC().Year())
	p.WinterDelta = winter - catalog.SystemOffsetMinutes
	p.SummerDelta = summer - catalog.SystemOffsetMinutes
	p.ObservesDST = winter != summer
	return p
}

// Generate renders the SQL, AMPscript and SSJS snippets for tz
func (g *Generator) Generate(tz string, local bool, instant time.Time) ([]Snippet, error) {
	return Render(g.Params(tz, local, instant))
}

// Render executes every template with p
func Render(p Params) ([]Snippet, error) {
	out := make([]Snippet, 0, len(Languages))
	for _, lang := range Languages {
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, templateNames[lang], p); err != nil {
			return nil, fmt.Errorf("failed to render %s snippet: %w", lang, err)
		}
		out = append(out, Snippet{Language: lang, Code: strings.TrimRight(buf.String(), "\n")})
	}
	return out, nil
}
