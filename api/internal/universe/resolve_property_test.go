package universe_test

import (
	"errors"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"sound-predict/api/internal/universe"
)

// TestResolve_LenientAliasesEverythingElse checks that only "esc10" selects
// ESC-10 when resolution is lenient.
func TestResolve_LenientAliasesEverythingElse(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("non-esc10 tokens resolve to UrbanSound8K", prop.ForAll(
		func(token string) bool {
			u, err := universe.Resolve(token, false)
			if err != nil {
				return false
			}
			if token == universe.TokenESC10 {
				return u == universe.ESC10
			}
			return u == universe.UrbanSound
		},
		gen.OneGenOf(gen.AnyString(), gen.Const(universe.TokenESC10), gen.Const(universe.TokenUrbanSound)),
	))

	properties.TestingRun(t)
}

// TestResolve_StrictRejectsUnknown checks that strict resolution never
// guesses.
func TestResolve_StrictRejectsUnknown(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("unknown tokens fail with ErrUnknownUniverse", prop.ForAll(
		func(token string) bool {
			u, err := universe.Resolve(token, true)
			switch token {
			case universe.TokenESC10:
				return err == nil && u == universe.ESC10
			case universe.TokenUrbanSound:
				return err == nil && u == universe.UrbanSound
			}
			return errors.Is(err, universe.ErrUnknownUniverse)
		},
		gen.OneGenOf(
			gen.AlphaString(),
			gen.AnyString(),
			gen.OneConstOf(" esc10", "esc10\t", "\turbansound ", "urbansound\n"),
		),
	))

	properties.TestingRun(t)
}
