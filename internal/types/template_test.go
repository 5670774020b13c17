package types

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifierFromAbsolute(t *testing.T) {
	root := filepath.FromSlash("/srv/app")

	tests := []struct {
		name        string
		root        string
		path        string
		expected    TemplateID
		expectError bool
	}{
		{
			name:     "nested view",
			root:     root,
			path:     filepath.FromSlash("/srv/app/app/views/home.haml"),
			expected: "/app/views/home.haml",
		},
		{
			name:     "trailing separator on root",
			root:     filepath.FromSlash("/srv/app/"),
			path:     filepath.FromSlash("/srv/app/a.haml"),
			expected: "/a.haml",
		},
		{
			name:     "unclean path",
			root:     root,
			path:     filepath.FromSlash("/srv/app/app/./views/../views/home.haml"),
			expected: "/app/views/home.haml",
		},
		{
			name:     "filesystem root",
			root:     string(filepath.Separator),
			path:     filepath.FromSlash("/a.haml"),
			expected: "/a.haml",
		},
		{
			name:        "sibling directory sharing a prefix",
			root:        root,
			path:        filepath.FromSlash("/srv/application/a.haml"),
			expectError: true,
		},
		{
			name:        "outside root",
			root:        root,
			path:        filepath.FromSlash("/etc/passwd"),
			expectError: true,
		},
		{
			name:        "root itself",
			root:        root,
			path:        root,
			expectError: true,
		},
		{
			name:        "relative path under filesystem root",
			root:        string(filepath.Separator),
			path:        filepath.FromSlash("app/views/home.haml"),
			expectError: true,
		},
		{
			name:        "empty path",
			root:        root,
			path:        "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := IdentifierFromAbsolute(tt.root, tt.path)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestIdentifierFromRelative(t *testing.T) {
	assert.Equal(t, TemplateID("/a.haml"), IdentifierFromRelative("a.haml"))
	assert.Equal(t, TemplateID("/app/views/home.haml"), IdentifierFromRelative("app/views/home.haml"))
	assert.Equal(t, TemplateID("/app/views/home.haml"), IdentifierFromRelative("/app/views/home.haml"))
}

func TestIdentifiersAgree(t *testing.T) {
	root := filepath.FromSlash("/srv/app")
	rel := "app/views/users/_row.erb"

	fromEvent, err := IdentifierFromAbsolute(root, filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)

	assert.Equal(t, IdentifierFromRelative(rel), fromEvent)
}

func TestRenderEventValidate(t *testing.T) {
	valid := RenderEvent{Category: EventRenderTemplate, Identifier: "/srv/app/a.haml"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, RenderEvent{Identifier: "/srv/app/a.haml"}.Validate())
	assert.Error(t, RenderEvent{Category: EventRenderPartial, Identifier: "  "}.Validate())
	assert.Error(t, RenderEvent{Category: EventRenderTemplate, Identifier: "app/views/home.haml"}.Validate())
	assert.Error(t, RenderEvent{Category: "render_collection.view", Identifier: "/srv/app/a.haml"}.Validate())
}

func TestRenderEventDuration(t *testing.T) {
	start := time.Now()
	ev := RenderEvent{Start: start, End: start.Add(25 * time.Millisecond)}
	assert.Equal(t, 25*time.Millisecond, ev.Duration())

	ev.End = start.Add(-time.Second)
	assert.Zero(t, ev.Duration())
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" render_partial.view ")
	require.NoError(t, err)
	assert.Equal(t, EventRenderPartial, c)

	_, err = ParseCategory("render_collection.view")
	assert.Error(t, err)

	assert.Equal(t, []EventCategory{EventRenderTemplate, EventRenderPartial}, DefaultCategories())
}
