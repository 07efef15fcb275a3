package toolschema_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/agentctl/controlplane/functionhub"
	"github.com/agentctl/controlplane/toolschema"
)

func genHubDescriptors() gopter.Gen {
	return gen.SliceOfN(6, gen.AlphaString()).Map(func(names []string) []functionhub.ToolDescriptor {
		out := make([]functionhub.ToolDescriptor, len(names))
		for i, n := range names {
			if n == "" {
				n = "tool"
			}
			out[i] = functionhub.ToolDescriptor{Name: n, ExternalID: "ext-" + n}
		}
		return out
	})
}

func TestMergeNamesAreUniqueProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("merged tool names are always unique", prop.ForAll(
		func(hub []functionhub.ToolDescriptor) bool {
			r := toolschema.NewRegistry()
			merged := r.Merge(hub, nil)
			seen := make(map[string]bool, len(merged))
			for _, tl := range merged {
				if seen[tl.Name] {
					return false
				}
				seen[tl.Name] = true
			}
			return true
		},
		genHubDescriptors(),
	))

	properties.TestingRun(t)
}

func TestMergePreservesBuiltinOrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("built-ins lead the merged list in declaration order, regardless of hub input", prop.ForAll(
		func(hub []functionhub.ToolDescriptor) bool {
			r := toolschema.NewRegistry()
			builtins := r.Builtins()
			merged := r.Merge(hub, nil)
			if len(merged) < len(builtins) {
				return false
			}
			for i, b := range builtins {
				if merged[i].Name != b.Name {
					return false
				}
			}
			return true
		},
		genHubDescriptors(),
	))

	properties.TestingRun(t)
}

func TestMergeNonDuplicateHubResultsPreserveOrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("hub results that survive deduplication keep their relative order", prop.ForAll(
		func(hub []functionhub.ToolDescriptor) bool {
			r := toolschema.NewRegistry()
			builtinNames := make(map[string]bool)
			for _, b := range r.Builtins() {
				builtinNames[b.Name] = true
			}

			var wantOrder []string
			seen := make(map[string]bool)
			for _, h := range hub {
				if builtinNames[h.Name] || seen[h.Name] {
					continue
				}
				seen[h.Name] = true
				wantOrder = append(wantOrder, h.Name)
			}

			merged := r.Merge(hub, nil)
			var gotOrder []string
			for _, tl := range merged {
				if !builtinNames[tl.Name] {
					gotOrder = append(gotOrder, tl.Name)
				}
			}

			if len(gotOrder) != len(wantOrder) {
				return false
			}
			for i, name := range wantOrder {
				if gotOrder[i] != name {
					return false
				}
			}
			return true
		},
		genHubDescriptors(),
	))

	properties.TestingRun(t)
}
