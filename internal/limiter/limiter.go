package limiter

import (
    "context"
    "strings"
    "sync"

    "github.com/rs/zerolog/log"
)

// Keyed hands out bounded slots per shared-resource key, e.g. "browser".
// Keys without an explicit capacity get the default.
type Keyed struct {
    defaultCap int
    caps       map[string]int
    mu         sync.Mutex
    sem        map[string]chan struct{}
}

type Options struct {
    // DefaultCapacity applies to keys missing from Capacity. Defaults to 1.
    DefaultCapacity int
    Capacity        map[string]int
}

func New(opts Options) *Keyed {
    if opts.DefaultCapacity <= 0 { opts.DefaultCapacity = 1 }
    caps := map[string]int{}
    for k, v := range opts.Capacity {
        if v > 0 { caps[normalize(k)] = v }
    }
    return &Keyed{defaultCap: opts.DefaultCapacity, caps: caps, sem: map[string]chan struct{}{}}
}

func normalize(key string) string { return strings.ToLower(strings.TrimSpace(key)) }

func (k *Keyed) slot(key string) chan struct{} {
    k.mu.Lock()
    defer k.mu.Unlock()
    ch, ok := k.sem[key]
    if !ok {
        n, ok := k.caps[key]
        if !ok { n = k.defaultCap }
        ch = make(chan struct{}, n)
        k.sem[key] = ch
    }
    return ch
}

// Acquire blocks until a slot for key is free or ctx is done. An empty key
// is unlimited. The returned release func may be called more than once.
func (k *Keyed) Acquire(ctx context.Context, key string) (func(), error) {
    if release, ok := k.Allow(key); ok {
        return release, nil
    }
    key = normalize(key)
    ch := k.slot(key)
    log.Debug().Str("resource", key).Int("in_use", k.InUse(key)).Msg("waiting for resource slot")
    select {
    case ch <- struct{}{}:
        return releaser(ch), nil
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

// Allow tries to reserve a slot without blocking.
// Returns a release function and true if allowed; otherwise a no-op,false.
func (k *Keyed) Allow(key string) (func(), bool) {
    key = normalize(key)
    if key == "" {
        return func() {}, true
    }
    ch := k.slot(key)
    select {
    case ch <- struct{}{}:
        return releaser(ch), true
    default:
        return func() {}, false
    }
}

func releaser(ch chan struct{}) func() {
    var once sync.Once
    return func() { once.Do(func() { <-ch }) }
}

// InUse returns the number of held slots for key.
func (k *Keyed) InUse(key string) int {
    key = normalize(key)
    k.mu.Lock()
    defer k.mu.Unlock()
    if ch, ok := k.sem[key]; ok {
        return len(ch)
    }
    return 0
}
