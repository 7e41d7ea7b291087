package report

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Printer formats numbers for one locale.
type Printer struct {
	p *message.Printer
}

// NewPrinter returns a Printer for a BCP 47 tag such as "en" or "pt-BR".
// Unknown tags fall back to English.
func NewPrinter(tag string) *Printer {
	t, err := language.Parse(tag)
	if err != nil {
		t = language.English
	}
	return &Printer{p: message.NewPrinter(t)}
}

// Hectares formats an area with two decimals and digit grouping.
func (p *Printer) Hectares(v float64) string {
	return p.p.Sprintf("%.2f ha", v)
}

// Number formats a value with two decimals and digit grouping.
func (p *Printer) Number(v float64) string {
	return p.p.Sprintf("%.2f", v)
}

// Count formats an integer with digit grouping.
func (p *Printer) Count(v int64) string {
	return p.p.Sprintf("%d", v)
}

// Write encodes v to w as JSON or YAML. Text output is handled by the
// caller, which knows the shape of v.
func Write(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "report: encode json")
	case FormatYAML:
		// Round-trip through JSON so json tags apply.
		data, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "report: encode json")
		}
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return eris.Wrap(err, "report: decode json as yaml")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: flush yaml")
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

// ValidFormat reports whether f is a known output format.
func ValidFormat(f string) error {
	switch strings.ToLower(f) {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	}
	return eris.Errorf("output must be one of %s, %s, %s", FormatText, FormatJSON, FormatYAML)
}
