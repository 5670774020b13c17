//go:build property
// +build property

package tally

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/frewsxcv/template-tally/internal/notifications"
	"github.com/frewsxcv/template-tally/internal/store"
	"github.com/frewsxcv/template-tally/internal/types"
)

// TestTrackerProperties tests the dedup and partition invariants of the tracker.
func TestTrackerProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("rendered and unrendered partition the discovered set", prop.ForAll(
		func(flags []bool) bool {
			templates := make([]types.TemplateID, len(flags))
			for i := range flags {
				templates[i] = types.TemplateID(fmt.Sprintf("/t%d.haml", i))
			}

			fs := &fakeStore{
				lookup: func(keys []string) ([]*string, error) {
					values := make([]*string, len(keys))
					for i := range keys {
						if flags[i] {
							values[i] = strPtr(store.PresenceValue)
						}
					}
					return values, nil
				},
			}

			tracker := New(notifications.NewBus(), staticDiscoverer{templates: templates})
			if err := tracker.Configure(fs); err != nil {
				return false
			}
			defer tracker.Unconfigure()

			report, err := tracker.Report(context.Background())
			if err != nil {
				return false
			}
			if len(report.Rendered)+len(report.Unrendered) != len(templates) {
				return false
			}

			seen := map[types.TemplateID]int{}
			for _, id := range report.Rendered {
				seen[id]++
			}
			for _, id := range report.Unrendered {
				seen[id]++
			}
			for i, id := range templates {
				if seen[id] != 1 {
					return false
				}
				inRendered := false
				for _, r := range report.Rendered {
					if r == id {
						inRendered = true
					}
				}
				if inRendered != flags[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("one write per template regardless of render count", prop.ForAll(
		func(renders []int) bool {
			fs := &fakeStore{}
			bus := notifications.NewBus()
			tracker := New(bus, staticDiscoverer{}, WithRoot(testRoot))
			if err := tracker.Configure(fs); err != nil {
				return false
			}
			defer tracker.Unconfigure()

			distinct := map[int]bool{}
			for _, n := range renders {
				distinct[n] = true
				if err := bus.Publish(context.Background(), renderEvent(fmt.Sprintf("/t%d.haml", n))); err != nil {
					return false
				}
			}
			return len(fs.setCalls()) == len(distinct)
		},
		gen.SliceOf(gen.IntRange(0, 9)),
	))

	properties.TestingRun(t)
}
