// Package universe maps the "model" navigation parameter to one of the two
// supported sound-classification universes.
package universe

import (
	"errors"
	"fmt"
)

type Universe int

const (
	ESC10 Universe = iota
	UrbanSound
)

// Tokens carried in the "model" query parameter.
const (
	TokenESC10      = "esc10"
	TokenUrbanSound = "urbansound"
)

var ErrUnknownUniverse = errors.New("unknown universe")

// All lists the universes in selector order.
func All() []Universe { return []Universe{ESC10, UrbanSound} }

func (u Universe) Token() string {
	if u == ESC10 {
		return TokenESC10
	}
	return TokenUrbanSound
}

// Segment is the backend route segment, e.g. /predict/{segment}.
func (u Universe) Segment() string { return u.Token() }

func (u Universe) DisplayName() string {
	if u == ESC10 {
		return "ESC-10"
	}
	return "UrbanSound8K"
}

func (u Universe) String() string { return u.DisplayName() }

// ImageName returns the static asset name for a predicted label.
func (u Universe) ImageName(label string) string {
	return u.Segment() + "_" + label + ".png"
}

// Resolve maps a raw token to a Universe.
//
// Lenient mode keeps the historical behaviour: only "esc10" selects ESC-10 and
// every other value, including an empty one, aliases to UrbanSound8K.
// Strict mode matches the known tokens exactly, whitespace included, and
// rejects the rest.
func Resolve(token string, strict bool) (Universe, error) {
	if !strict {
		if token == TokenESC10 {
			return ESC10, nil
		}
		return UrbanSound, nil
	}
	switch token {
	case TokenESC10:
		return ESC10, nil
	case TokenUrbanSound:
		return UrbanSound, nil
	case "":
		return 0, fmt.Errorf("%w: missing model parameter", ErrUnknownUniverse)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownUniverse, token)
	}
}
