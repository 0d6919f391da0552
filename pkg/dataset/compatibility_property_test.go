//go:build property
// +build property

package dataset

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCheckCompatibility_RetainedExposedColumnsAlwaysCompatible verifies the
// core guarantee of spec.md 4.10: as long as a candidate schema keeps every
// exposed column of the active schema with its type unchanged, the schemas
// are compatible no matter what else the candidate adds or drops.
func TestCheckCompatibility_RetainedExposedColumnsAlwaysCompatible(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("retaining every exposed column unchanged is always compatible", prop.ForAll(
		func(names []string, types []string, extra string) bool {
			n := len(names)
			if len(types) < n {
				n = len(types)
			}
			active := make([]Column, 0, n)
			for i := 0; i < n; i++ {
				if names[i] == "" {
					continue
				}
				active = append(active, Column{Name: names[i], Type: types[i], Exposed: true})
			}
			if len(active) == 0 {
				return true
			}

			candidate := make([]Column, len(active))
			copy(candidate, active)
			if extra != "" {
				candidate = append(candidate, Column{Name: extra, Type: "text", Exposed: false})
			}

			ok, violations := CheckCompatibility(active, candidate)
			return ok && len(violations) == 0
		},
		gen.SliceOfN(5, gen.AlphaString()),
		gen.SliceOfN(5, gen.AlphaString()),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestCheckCompatibility_DroppingAnyExposedColumnIsIncompatible verifies the
// converse: removing any single exposed column from the candidate always
// produces at least one violation, regardless of the rest of the schema.
func TestCheckCompatibility_DroppingAnyExposedColumnIsIncompatible(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("dropping an exposed column is always incompatible", prop.ForAll(
		func(names []string, dropIdx int) bool {
			var active []Column
			seen := map[string]bool{}
			for i, name := range names {
				if name == "" || seen[name] {
					continue
				}
				seen[name] = true
				active = append(active, Column{Name: name, Type: fmt.Sprintf("type%d", i), Exposed: true})
			}
			if len(active) == 0 {
				return true
			}

			drop := dropIdx % len(active)
			candidate := make([]Column, 0, len(active)-1)
			for i, c := range active {
				if i == drop {
					continue
				}
				candidate = append(candidate, c)
			}

			ok, violations := CheckCompatibility(active, candidate)
			return !ok && len(violations) == 1
		},
		gen.SliceOfN(6, gen.AlphaString()),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}
