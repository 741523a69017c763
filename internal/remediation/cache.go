package remediation

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/local/inkbench/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Artifact is a device-link remapping profile for one ink ceiling.
type Artifact struct {
	Ceiling float64
	Path    string
}

// ProfileCache holds remapping artifacts keyed by ceiling.
// A ceiling is built at most once; concurrent callers for the same ceiling
// wait for the first build. Failed builds are not cached.
type ProfileCache struct {
	mu      sync.Mutex
	entries map[float64]*profileEntry
	builds  atomic.Int64
}

type profileEntry struct {
	ready    chan struct{}
	artifact Artifact
	err      error
}

// NewProfileCache returns an empty cache.
func NewProfileCache() *ProfileCache {
	return &ProfileCache{entries: map[float64]*profileEntry{}}
}

var shared = NewProfileCache()

// SharedCache returns the process-wide cache used when a Pipeline has none.
func SharedCache() *ProfileCache { return shared }

// Get returns the artifact for ceiling, calling build if no build has
// succeeded or is in flight. The build runs detached from the caller's
// cancellation so that one caller giving up does not fail the others; build
// must bound itself. Every caller, including the one that started the build,
// stops waiting when its own ctx is done.
func (c *ProfileCache) Get(ctx context.Context, ceiling float64, build func(context.Context) (Artifact, error)) (Artifact, error) {
	c.mu.Lock()
	e, ok := c.entries[ceiling]
	if !ok {
		e = &profileEntry{ready: make(chan struct{})}
		c.entries[ceiling] = e
		c.builds.Add(1)
		go c.run(context.WithoutCancel(ctx), ceiling, e, build)
	}
	c.mu.Unlock()

	select {
	case <-e.ready:
		return e.artifact, e.err
	case <-ctx.Done():
		return Artifact{}, ctx.Err()
	}
}

func (c *ProfileCache) run(ctx context.Context, ceiling float64, e *profileEntry, build func(context.Context) (Artifact, error)) {
	e.artifact, e.err = build(ctx)
	if e.err != nil {
		c.mu.Lock()
		delete(c.entries, ceiling)
		c.mu.Unlock()
		metrics.IncProfileBuild("error")
		log.Warn().Err(e.err).Float64("ceiling", ceiling).Msg("remediation profile build failed")
	} else {
		metrics.IncProfileBuild("built")
		log.Info().Float64("ceiling", ceiling).Str("path", e.artifact.Path).Msg("remediation profile built")
	}
	close(e.ready)
}

// Builds returns how many builds were started.
func (c *ProfileCache) Builds() int64 { return c.builds.Load() }

// Len returns the number of cached or in-flight ceilings.
func (c *ProfileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
