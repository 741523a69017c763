package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLength(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64 // points
	}{
		{"6in", 432},
		{"0.125in", 9},
		{"25.4mm", 72},
		{"2.54cm", 72},
		{"432pt", 432},
		{"96px", 72},
		{"100", 100},
		{" 9IN ", 648},
	}
	for _, tc := range cases {
		got, err := ParseLength(tc.in)
		require.NoError(t, err, tc.in)
		assert.InDelta(t, tc.want, got.Points(), 1e-9, tc.in)
	}

	for _, bad := range []string{"", "in", "six inches", "1.2.3mm"} {
		_, err := ParseLength(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewProfile_Defaults(t *testing.T) {
	t.Parallel()

	p := DefaultProfile()
	assert.InDelta(t, 6.25, p.FinalWidth().Inches(), 1e-9)
	assert.InDelta(t, 9.25, p.FinalHeight().Inches(), 1e-9)
	assert.Equal(t, 300, p.DPI)
	assert.Equal(t, 200.0, p.TACPass)
	assert.Equal(t, 240.0, p.TACWarn)
	assert.Equal(t, 240.0, p.TACFail)
	assert.Equal(t, "6.25in", p.FinalWidth().CSS())
}

func TestNewProfile_WarnBandEndsAtFail(t *testing.T) {
	t.Parallel()

	p, err := NewProfile(ProfileOptions{TACPass: 220, TACFail: 280})
	require.NoError(t, err)
	assert.Equal(t, 280.0, p.TACWarn)
	assert.Equal(t, StatusWarn, p.Classify(280))
	assert.Equal(t, StatusFail, p.Classify(280.1))
}

func TestNewProfile_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		opts ProfileOptions
	}{
		{"negative bleed", ProfileOptions{Bleed: "-1mm"}},
		{"zero trim", ProfileOptions{TrimWidth: "0in"}},
		{"pass above fail", ProfileOptions{TACPass: 250, TACFail: 240}},
		{"fail above 400", ProfileOptions{TACFail: 410}},
		{"bad unit", ProfileOptions{TrimHeight: "9 furlongs"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewProfile(tc.opts)
			assert.Error(t, err)
		})
	}
}
