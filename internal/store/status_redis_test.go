package store

import (
    "testing"
    "time"

    "github.com/google/go-cmp/cmp"
    "github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
    assert.Equal(t, "inkbench:run:r1:backend:prince:status", StatusKey("inkbench", "r1", "prince"))
    assert.Equal(t, "inkbench:run:r1:backend:prince:pages", PageKey("inkbench", "r1", "prince"))
}

func TestStatusFieldsRoundTrip(t *testing.T) {
    start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
    end := start.Add(90 * time.Second)
    st := Status{
        State:    "compliant",
        Message:  "max TAC 231.4",
        Start:    &start,
        End:      &end,
        Metadata: map[string]interface{}{"max_tac": 231.4, "remediated": true},
    }

    fields := st.Fields()
    raw := map[string]string{}
    for k, v := range fields {
        raw[k] = v.(string)
    }
    got := ParseStatus(raw)
    if diff := cmp.Diff(st, got); diff != "" {
        t.Errorf("status mismatch (-want +got):\n%s", diff)
    }
}

func TestParseStatusTolerantOfGarbage(t *testing.T) {
    got := ParseStatus(map[string]string{"state": "building", "start": "yesterday", "metadata": "{"})
    assert.Equal(t, "building", got.State)
    assert.Nil(t, got.Start)
}
