package universe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sound-predict/api/internal/universe"
)

func TestResolve_Lenient(t *testing.T) {
	cases := []struct {
		token   string
		name    string
		segment string
	}{
		{"esc10", "ESC-10", "esc10"},
		{"urbansound", "UrbanSound8K", "urbansound"},
		{"", "UrbanSound8K", "urbansound"},
		{"ESC10", "UrbanSound8K", "urbansound"},
		{"something-else", "UrbanSound8K", "urbansound"},
	}
	for _, tc := range cases {
		t.Run(tc.token, func(t *testing.T) {
			u, err := universe.Resolve(tc.token, false)
			require.NoError(t, err)
			assert.Equal(t, tc.name, u.DisplayName())
			assert.Equal(t, tc.segment, u.Segment())
		})
	}
}

func TestResolve_Strict(t *testing.T) {
	u, err := universe.Resolve("esc10", true)
	require.NoError(t, err)
	assert.Equal(t, universe.ESC10, u)

	u, err = universe.Resolve("urbansound", true)
	require.NoError(t, err)
	assert.Equal(t, universe.UrbanSound, u)

	for _, bad := range []string{"", "   ", "esc50", "URBANSOUND", " esc10\t", "urbansound\n"} {
		_, err := universe.Resolve(bad, true)
		assert.ErrorIs(t, err, universe.ErrUnknownUniverse, "token %q", bad)
	}
}

func TestImageName(t *testing.T) {
	assert.Equal(t, "esc10_dog.png", universe.ESC10.ImageName("dog"))
	assert.Equal(t, "urbansound_siren.png", universe.UrbanSound.ImageName("siren"))
}

func TestAll_SelectorOrder(t *testing.T) {
	all := universe.All()
	require.Len(t, all, 2)
	assert.Equal(t, "esc10", all[0].Token())
	assert.Equal(t, "urbansound", all[1].Token())
}
