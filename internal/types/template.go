// Package types provides common type definitions used throughout template-tally.
// This package contains shared types to avoid circular dependencies between packages.
package types

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// TemplateID is a template's path relative to the project root, slash
// separated and prefixed with "/" (e.g. "/app/views/home.haml"). Two
// references to the same file must produce byte-identical identifiers: the
// identifier is both the dedup key and the storage key suffix.
type TemplateID string

// String returns the identifier as a plain string.
func (id TemplateID) String() string {
	return string(id)
}

// EventCategory names a kind of render notification published by the host
// rendering pipeline.
type EventCategory string

const (
	// EventRenderTemplate is published when a full template is rendered.
	EventRenderTemplate EventCategory = "render_template.view"
	// EventRenderPartial is published when a partial is rendered.
	EventRenderPartial EventCategory = "render_partial.view"
)

// DefaultCategories lists the categories a tracker subscribes to unless told otherwise.
func DefaultCategories() []EventCategory {
	return []EventCategory{EventRenderTemplate, EventRenderPartial}
}

// ParseCategory converts a configured category name into an EventCategory.
func ParseCategory(name string) (EventCategory, error) {
	switch c := EventCategory(strings.TrimSpace(name)); c {
	case EventRenderTemplate, EventRenderPartial:
		return c, nil
	default:
		return "", fmt.Errorf("unknown event category %q", name)
	}
}

// RenderEvent is the payload delivered for every template or partial render.
// Only Category and Identifier are interpreted by the tracker.
type RenderEvent struct {
	// Category is the kind of render that happened
	Category EventCategory `json:"category"`
	// Identifier is the absolute file-system path of the rendered template
	Identifier string `json:"identifier"`
	// Start and End bracket the render
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// TransactionID correlates events emitted by the same request
	TransactionID string `json:"transaction_id,omitempty"`
}

// Validate checks the fields the tracker depends on: a known category and an
// absolute identifier.
func (e RenderEvent) Validate() error {
	if e.Category == "" {
		return fmt.Errorf("render event has no category")
	}
	if _, err := ParseCategory(string(e.Category)); err != nil {
		return err
	}
	if strings.TrimSpace(e.Identifier) == "" {
		return fmt.Errorf("render event %s has no identifier", e.Category)
	}
	if !filepath.IsAbs(e.Identifier) {
		return fmt.Errorf("render event %s identifier %q is not absolute", e.Category, e.Identifier)
	}
	return nil
}

// Duration reports how long the render took.
func (e RenderEvent) Duration() time.Duration {
	if e.End.Before(e.Start) {
		return 0
	}
	return e.End.Sub(e.Start)
}

// IdentifierFromAbsolute strips root from an absolute template path, keeping
// the leading separator: root "/srv/app" and "/srv/app/app/views/home.haml"
// yield "/app/views/home.haml".
func IdentifierFromAbsolute(root, absPath string) (TemplateID, error) {
	if absPath == "" {
		return "", fmt.Errorf("empty template path")
	}
	if !filepath.IsAbs(absPath) {
		return "", fmt.Errorf("template path %s is not absolute", absPath)
	}

	cleanRoot := filepath.Clean(root)
	cleanPath := filepath.Clean(absPath)

	if cleanRoot == string(filepath.Separator) {
		return TemplateID(filepath.ToSlash(cleanPath)), nil
	}

	rel := strings.TrimPrefix(cleanPath, cleanRoot)
	if rel == cleanPath || rel == "" || rel[0] != filepath.Separator {
		return "", fmt.Errorf("template path %s is not under root %s", absPath, root)
	}

	return TemplateID(filepath.ToSlash(rel)), nil
}

// IdentifierFromRelative turns a root-relative path into a TemplateID.
func IdentifierFromRelative(rel string) TemplateID {
	clean := path.Clean("/" + filepath.ToSlash(rel))
	return TemplateID(clean)
}
