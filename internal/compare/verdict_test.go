package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowerIsBetter(t *testing.T) {
	t.Parallel()

	ids := []string{"a", "b", "c"}
	tac := withinAbs(DefaultTACTolerance)
	all := []bool{true, true, true}

	cases := []struct {
		name  string
		vals  []float64
		known []bool
		want  string
	}{
		{"all within tolerance", []float64{180, 183, 185}, all, VerdictSame},
		{"strict winner", []float64{150, 200, 260}, all, "a-better"},
		{"winner in middle", []float64{220, 150, 260}, all, "b-better"},
		{"two close, one far", []float64{180, 182, 260}, all, VerdictDifferent},
		{"one unknown", []float64{180, 0, 185}, []bool{true, false, true}, VerdictDifferent},
		{"all unknown", []float64{0, 0, 0}, []bool{false, false, false}, VerdictSame},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, lowerIsBetter(ids, tc.vals, tc.known, tac))
		})
	}
}

func TestLowerIsBetter_TwoBackendsBoundary(t *testing.T) {
	t.Parallel()

	ids := []string{"x", "y"}
	known := []bool{true, true}
	tac := withinAbs(DefaultTACTolerance)
	assert.Equal(t, VerdictSame, lowerIsBetter(ids, []float64{200, 205}, known, tac))
	assert.Equal(t, "x-better", lowerIsBetter(ids, []float64{200, 205.1}, known, tac))

	size := withinRel(DefaultSizeTolerance)
	assert.Equal(t, VerdictSame, lowerIsBetter(ids, []float64{1000, 950}, known, size))
	assert.Equal(t, "y-better", lowerIsBetter(ids, []float64{1000, 940}, known, size))
}

func TestTrueIsBetter(t *testing.T) {
	t.Parallel()

	ids := []string{"a", "b", "c"}
	assert.Equal(t, VerdictSame, trueIsBetter(ids, []bool{true, true, true}))
	assert.Equal(t, VerdictSame, trueIsBetter(ids, []bool{false, false, false}))
	assert.Equal(t, "c-better", trueIsBetter(ids, []bool{false, false, true}))
	assert.Equal(t, VerdictDifferent, trueIsBetter(ids, []bool{true, false, true}))
}
