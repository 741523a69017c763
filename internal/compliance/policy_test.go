package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldRemediate(t *testing.T) {
	t.Parallel()

	p := DefaultProfile()
	cases := []struct {
		name   string
		report *InkCoverageReport
		want   bool
	}{
		{"unknown measurement", nil, false},
		{"pass band", &InkCoverageReport{MaxTAC: 180}, false},
		{"warn band", &InkCoverageReport{MaxTAC: 239.99}, false},
		{"exactly at ceiling", &InkCoverageReport{MaxTAC: p.TACFail}, false},
		{"just above ceiling", &InkCoverageReport{MaxTAC: p.TACFail + 0.01}, true},
		{"far above", &InkCoverageReport{MaxTAC: 320}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldRemediate(tc.report, p))
		})
	}
}

func TestShouldRemediate_CustomCeiling(t *testing.T) {
	t.Parallel()

	p, err := NewProfile(ProfileOptions{TACPass: 260, TACFail: 300})
	assert.NoError(t, err)
	assert.False(t, ShouldRemediate(&InkCoverageReport{MaxTAC: 300}, p))
	assert.True(t, ShouldRemediate(&InkCoverageReport{MaxTAC: 300.5}, p))
}
