package logger

import (
    "bytes"
    "context"
    "encoding/json"
    "path/filepath"
    "strings"
    "testing"

    "github.com/axiomhq/axiom-go/axiom"
    "github.com/axiomhq/axiom-go/axiom/ingest"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func captureGlobal(t *testing.T) *bytes.Buffer {
    t.Helper()
    var buf bytes.Buffer
    prev, prevCtx := log.Logger, zerolog.DefaultContextLogger
    log.Logger = zerolog.New(&buf)
    zerolog.DefaultContextLogger = nil
    t.Cleanup(func() {
        log.Logger = prev
        zerolog.DefaultContextLogger = prevCtx
    })
    return &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
    t.Helper()
    var out []map[string]interface{}
    for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
        var ev map[string]interface{}
        require.NoError(t, json.Unmarshal([]byte(line), &ev))
        out = append(out, ev)
    }
    return out
}

func TestAxiomWriterStampsCorrelationFields(t *testing.T) {
    var got []axiom.Event
    w := &axiomWriter{send: func(ev axiom.Event) { got = append(got, ev) }, min: zerolog.InfoLevel}

    _, err := w.WriteLevel(zerolog.DebugLevel, []byte(`{"level":"debug","message":"noise"}`))
    require.NoError(t, err)
    _, err = w.WriteLevel(zerolog.InfoLevel, []byte(`{"level":"info","time":"2026-10-19T10:00:00Z","run_id":"r-1","project":"novel","backend":"prince","message":"backend run finished"}`))
    require.NoError(t, err)
    _, err = w.WriteLevel(zerolog.WarnLevel, []byte(`{"level":"warn","message":"batch started"}`))
    require.NoError(t, err)
    _, err = w.Write([]byte("not json"))
    require.NoError(t, err)

    require.Len(t, got, 3)
    assert.Equal(t, "prince", got[0][FieldBackend])
    assert.Equal(t, "2026-10-19T10:00:00Z", got[0][ingest.TimestampField])
    assert.NotContains(t, got[0], zerolog.TimestampFieldName)

    for _, k := range []string{FieldRunID, FieldProject, FieldBackend} {
        assert.Equal(t, "", got[1][k], k)
    }
    assert.Contains(t, got[1], ingest.TimestampField)
    assert.Equal(t, "not json", got[2][zerolog.MessageFieldName])
}

func TestRunAndBackendScopes(t *testing.T) {
    buf := captureGlobal(t)

    ctx, rl := WithRun(context.Background(), "r-1", "novel")
    rl.Info().Msg("project run started")
    From(WithBackend(ctx, "weasyprint")).Warn().Msg("build failed")
    From(context.Background()).Info().Msg("batch finished")

    evs := decodeLines(t, buf)
    require.Len(t, evs, 3)
    assert.Equal(t, "r-1", evs[0][FieldRunID])
    assert.Equal(t, "novel", evs[0][FieldProject])
    assert.NotContains(t, evs[0], FieldBackend)

    assert.Equal(t, "r-1", evs[1][FieldRunID])
    assert.Equal(t, "weasyprint", evs[1][FieldBackend])

    assert.NotContains(t, evs[2], FieldRunID)
}

func TestInitWritesFileAndCloseIsIdempotent(t *testing.T) {
    prev, prevCtx := log.Logger, zerolog.DefaultContextLogger
    t.Cleanup(func() {
        log.Logger = prev
        zerolog.DefaultContextLogger = prevCtx
    })

    file := filepath.Join(t.TempDir(), "logs", "inkbench.log")
    require.NoError(t, Init(Options{Level: "warn", File: file, Rotation: Rotation{MaxSizeMB: 1}}))
    assert.Equal(t, zerolog.WarnLevel, log.Logger.GetLevel())
    assert.Same(t, &log.Logger, From(context.Background()))
    Close()
    Close()
}

func TestShipperDropsAfterClose(t *testing.T) {
    s := &axiomShipper{events: make(chan axiom.Event, 1), done: make(chan struct{}), cancel: func() {}}
    close(s.done)
    s.send(axiom.Event{"message": "kept"})
    s.send(axiom.Event{"message": "dropped, buffer full"})
    s.close(0)
    s.send(axiom.Event{"message": "after close"})

    var got []axiom.Event
    for ev := range s.events {
        got = append(got, ev)
    }
    require.Len(t, got, 1)
    assert.Equal(t, "kept", got[0]["message"])
}
