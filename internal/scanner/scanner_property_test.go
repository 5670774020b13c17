//go:build property
// +build property

package scanner

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/afero"

	"github.com/frewsxcv/template-tally/internal/types"
)

// TestScannerProperties checks that discovery returns exactly the template
// files of a tree, normalized and without excluded paths.
func TestScannerProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("discovery finds every non-excluded template once", prop.ForAll(
		func(names []string) bool {
			fsys := afero.NewBasePathFs(afero.NewMemMapFs(), "/")

			expected := map[types.TemplateID]bool{}
			for _, name := range names {
				path := "app/views/" + name + ".haml"
				if err := afero.WriteFile(fsys, path, nil, 0o644); err != nil {
					return false
				}
				if !strings.Contains(path, "mailer") {
					expected[types.TemplateID("/"+path)] = true
				}
			}

			got, err := New(fsys).Discover(context.Background())
			if err != nil || len(got) != len(expected) {
				return false
			}
			for _, id := range got {
				if !expected[id] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("discovery is deterministic", prop.ForAll(
		func(names []string) bool {
			fsys := afero.NewBasePathFs(afero.NewMemMapFs(), "/")
			for _, name := range names {
				_ = afero.WriteFile(fsys, name+".erb", nil, 0o644)
			}

			first, err1 := New(fsys).Discover(context.Background())
			second, err2 := New(fsys).Discover(context.Background())
			if err1 != nil || err2 != nil {
				return false
			}

			sort.Slice(first, func(i, j int) bool { return first[i] < first[j] })
			sort.Slice(second, func(i, j int) bool { return second[i] < second[j] })
			return strings.Join(toStrings(first), ",") == strings.Join(toStrings(second), ",")
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("matches agrees with discovery", prop.ForAll(
		func(name string) bool {
			fsys := afero.NewBasePathFs(afero.NewMemMapFs(), "/")
			path := "views/" + name + ".mustache"
			_ = afero.WriteFile(fsys, path, nil, 0o644)

			s := New(fsys)
			got, err := s.Discover(context.Background())
			if err != nil {
				return false
			}
			return s.Matches(path) == (len(got) == 1)
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func toStrings(ids []types.TemplateID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
