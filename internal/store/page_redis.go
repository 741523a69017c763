package store

import (
    "context"
    "fmt"
    "strconv"

    redis "github.com/redis/go-redis/v9"
)

// PageStore records per-page remediation outcomes of a backend run.
type PageStore struct {
    client *redis.Client
    keyNS  string
}

// NewPageStore shares the client of an existing RedisStatus.
func NewPageStore(s *RedisStatus) *PageStore {
    return &PageStore{client: s.client, keyNS: s.keyNS}
}

// PageKey is the hash key holding page outcomes for one backend run.
func PageKey(ns, runID, backend string) string {
    return fmt.Sprintf("%s:run:%s:backend:%s:pages", ns, runID, backend)
}

func (s *PageStore) SavePageOutcome(ctx context.Context, runID, backend string, page int, outcome, errMsg string) error {
    v := outcome
    if errMsg != "" { v += ": " + errMsg }
    return s.client.HSet(ctx, PageKey(s.keyNS, runID, backend), strconv.Itoa(page), v).Err()
}

// PageOutcomes returns outcomes for pages 1..total; missing pages are "".
func (s *PageStore) PageOutcomes(ctx context.Context, runID, backend string, total int) ([]string, error) {
    res, err := s.client.HGetAll(ctx, PageKey(s.keyNS, runID, backend)).Result()
    if err != nil { return nil, err }
    out := make([]string, total)
    for i := 1; i <= total; i++ {
        out[i-1] = res[strconv.Itoa(i)]
    }
    return out, nil
}
