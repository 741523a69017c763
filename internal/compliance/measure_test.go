package compliance

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReporter struct {
	pages []Channels
	err   error
	calls int
}

func (s *scriptedReporter) Report(ctx context.Context, document string) ([]Channels, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.pages, nil
}

func TestMeasure_ScenarioA(t *testing.T) {
	t.Parallel()

	reporter := &scriptedReporter{pages: []Channels{
		{Cyan: 0.50, Magenta: 0.50, Yellow: 0.25, Key: 0.25}, // 150
		{Cyan: 0.60, Magenta: 0.60, Yellow: 0.50, Key: 0.40}, // 210
		{Cyan: 0.70, Magenta: 0.70, Yellow: 0.60, Key: 0.60}, // 260
	}}
	m := NewMeasurer(reporter, DefaultProfile())

	report, err := m.Measure(context.Background(), "doc.pdf")
	require.NoError(t, err)

	var statuses []Status
	var tacs []float64
	for _, p := range report.Pages {
		statuses = append(statuses, p.Status)
		tacs = append(tacs, p.TAC)
	}
	assert.Equal(t, []Status{StatusPass, StatusWarn, StatusFail}, statuses)
	assert.Equal(t, []float64{150, 210, 260}, tacs)
	assert.Equal(t, 260.0, report.MaxTAC)
	assert.InDelta(t, 206.67, report.AverageTAC, 0.01)
	assert.Equal(t, []int{3}, report.FailPages)
	assert.Equal(t, []int{2}, report.WarnPages)
	assert.True(t, ShouldRemediate(report, m.Profile))
	assert.Contains(t, report.Recommendations, RecommendRemediation)
}

func TestMeasure_TACRangeAndMonotoneClassification(t *testing.T) {
	t.Parallel()

	p := DefaultProfile()
	rank := map[Status]int{StatusPass: 0, StatusWarn: 1, StatusFail: 2}
	prev := -1
	prevTAC := -1.0
	for step := 0; step <= 100; step++ {
		f := float64(step) / 100
		s := NewSample(1, Channels{Cyan: f, Magenta: f, Yellow: f, Key: f}, p)
		assert.GreaterOrEqual(t, s.TAC, 0.0)
		assert.LessOrEqual(t, s.TAC, MaxTAC)
		assert.InDelta(t, s.Cyan+s.Magenta+s.Yellow+s.Key, s.TAC, 0.01)
		assert.Greater(t, s.TAC, prevTAC)
		assert.GreaterOrEqual(t, rank[s.Status], prev, "classification went backwards at TAC %.2f", s.TAC)
		prev = rank[s.Status]
		prevTAC = s.TAC
	}
}

func TestMeasure_ClampsOutOfRangeChannels(t *testing.T) {
	t.Parallel()

	s := NewSample(1, Channels{Cyan: 1.4, Magenta: -0.2, Yellow: 1, Key: 1}, DefaultProfile())
	assert.Equal(t, 100.0, s.Cyan)
	assert.Equal(t, 0.0, s.Magenta)
	assert.Equal(t, 300.0, s.TAC)
	assert.Equal(t, StatusFail, s.Status)
}

func TestMeasure_ThresholdEdges(t *testing.T) {
	t.Parallel()

	p := DefaultProfile()
	cases := []struct {
		tac  float64
		want Status
	}{
		{0, StatusPass},
		{200, StatusPass},
		{200.01, StatusWarn},
		{240, StatusWarn},
		{240.01, StatusFail},
		{400, StatusFail},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, p.Classify(tc.tac), "tac=%v", tc.tac)
	}
}

func TestMeasure_RichBlackRecommendation(t *testing.T) {
	t.Parallel()

	reporter := &scriptedReporter{pages: []Channels{
		{Cyan: 0.60, Magenta: 0.50, Yellow: 0.40, Key: 0.95}, // rich black, 245
		{Cyan: 0.60, Magenta: 0.50, Yellow: 0.40, Key: 0.90}, // 240, same advice
	}}
	report, err := NewMeasurer(reporter, DefaultProfile()).Measure(context.Background(), "doc.pdf")
	require.NoError(t, err)

	want := []string{RecommendKeyOnlyBlack, RecommendRemediation}
	if diff := cmp.Diff(want, report.Recommendations); diff != "" {
		t.Errorf("recommendations mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, RecommendKeyOnlyBlack, report.Pages[1].Recommendation)
}

func TestMeasure_Unavailable(t *testing.T) {
	t.Parallel()

	t.Run("reporter error", func(t *testing.T) {
		t.Parallel()
		m := NewMeasurer(&scriptedReporter{err: errors.New("encrypted")}, DefaultProfile())
		report, err := m.Measure(context.Background(), "locked.pdf")
		assert.Nil(t, report)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMeasurementUnavailable)
		assert.Contains(t, err.Error(), "encrypted")
	})

	t.Run("no pages", func(t *testing.T) {
		t.Parallel()
		m := NewMeasurer(&scriptedReporter{}, DefaultProfile())
		_, err := m.Measure(context.Background(), "empty.pdf")
		assert.ErrorIs(t, err, ErrMeasurementUnavailable)
	})

	t.Run("no reporter", func(t *testing.T) {
		t.Parallel()
		_, err := (&Measurer{Profile: DefaultProfile()}).Measure(context.Background(), "x.pdf")
		var mu *MeasurementUnavailableError
		require.ErrorAs(t, err, &mu)
		assert.Equal(t, "x.pdf", mu.Document)
	})
}
