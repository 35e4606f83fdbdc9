// Package format renders tool results as JSON (the default) or TOON, a
// compact line-oriented notation clients can ask for to cut token overhead
// on large listings. Format negotiation happens per call via the "format"
// argument; a client that never asks for TOON never sees it.
package format

import (
	"encoding/json"
	"fmt"
)

// OutputFormat selects how a result is rendered.
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatTOON OutputFormat = "toon"
	FormatAuto OutputFormat = "auto"
)

func (f OutputFormat) String() string { return string(f) }

// IsValid reports whether f is one of the known formats.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatJSON, FormatTOON, FormatAuto:
		return true
	default:
		return false
	}
}

// Parse validates a raw format string, defaulting an empty string to auto.
func Parse(raw string) (OutputFormat, error) {
	if raw == "" {
		return FormatAuto, nil
	}
	f := OutputFormat(raw)
	if !f.IsValid() {
		return "", fmt.Errorf("unknown output format %q", raw)
	}
	return f, nil
}

// Renderer turns a payload into its textual form.
type Renderer interface {
	Render(payload any) (string, error)
	ContentType() string
	Format() OutputFormat
}

// Render is the package-level convenience entry point: render payload in
// the requested format, falling back to JSON for auto or anything unknown.
func Render(payload any, f OutputFormat) (string, error) {
	return GetRenderer(f).Render(payload)
}

// GetRenderer resolves a format to its Renderer, defaulting to JSON.
func GetRenderer(f OutputFormat) Renderer {
	if f == FormatTOON {
		return NewTOONRenderer()
	}
	return NewJSONRenderer()
}

// GetContentType is a shorthand for GetRenderer(f).ContentType().
func GetContentType(f OutputFormat) string {
	return GetRenderer(f).ContentType()
}

// JSONRenderer renders a payload as indented JSON.
type JSONRenderer struct {
	Indent string
}

// NewJSONRenderer returns a renderer using two-space indentation.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{Indent: "  "}
}

func (r *JSONRenderer) Render(payload any) (string, error) {
	b, err := json.MarshalIndent(payload, "", r.Indent)
	if err != nil {
		return "", fmt.Errorf("rendering json: %w", err)
	}
	return string(b), nil
}

func (r *JSONRenderer) ContentType() string  { return "application/json" }
func (r *JSONRenderer) Format() OutputFormat { return FormatJSON }
