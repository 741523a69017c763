package store

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Status is the published state of one backend run.
type Status struct {
    State    string                 `json:"state"`
    Message  string                 `json:"message"`
    Start    *time.Time             `json:"start_time,omitempty"`
    End      *time.Time             `json:"end_time,omitempty"`
    Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type RedisStatus struct {
    client *redis.Client
    keyNS  string
    ttl    time.Duration
}

// NewRedisStatus connects to redisURL. Keys expire after ttl (zero keeps them).
func NewRedisStatus(redisURL string, ttl time.Duration) (*RedisStatus, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, err }
    c := redis.NewClient(opt)
    if err := c.Ping(context.Background()).Err(); err != nil { return nil, err }
    return &RedisStatus{client: c, keyNS: "inkbench", ttl: ttl}, nil
}

// StatusKey is the hash key for one backend of one run.
func StatusKey(ns, runID, backend string) string {
    return fmt.Sprintf("%s:run:%s:backend:%s:status", ns, runID, backend)
}

func (s *RedisStatus) key(runID, backend string) string { return StatusKey(s.keyNS, runID, backend) }

// Fields flattens st into the hash layout Set writes.
func (st Status) Fields() map[string]interface{} {
    m := map[string]interface{}{
        "state":   st.State,
        "message": st.Message,
    }
    if st.Start != nil { m["start"] = st.Start.Format(time.RFC3339Nano) }
    if st.End != nil { m["end"] = st.End.Format(time.RFC3339Nano) }
    if st.Metadata != nil {
        b, _ := json.Marshal(st.Metadata)
        m["metadata"] = string(b)
    }
    return m
}

// ParseStatus is the inverse of Fields.
func ParseStatus(res map[string]string) Status {
    st := Status{State: res["state"], Message: res["message"]}
    if v := res["start"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.Start = &t }
    }
    if v := res["end"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { st.End = &t }
    }
    if v := res["metadata"]; v != "" {
        _ = json.Unmarshal([]byte(v), &st.Metadata)
    }
    return st
}

func (s *RedisStatus) Set(ctx context.Context, runID, backend string, st Status) error {
    k := s.key(runID, backend)
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, k, st.Fields())
    pipe.SAdd(ctx, s.runKey(runID), backend)
    if s.ttl > 0 {
        pipe.Expire(ctx, k, s.ttl)
        pipe.Expire(ctx, s.runKey(runID), s.ttl)
    }
    _, err := pipe.Exec(ctx)
    return err
}

func (s *RedisStatus) Get(ctx context.Context, runID, backend string) (Status, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(runID, backend)).Result()
    if err != nil { return Status{}, false, err }
    if len(res) == 0 { return Status{}, false, nil }
    return ParseStatus(res), true, nil
}

func (s *RedisStatus) runKey(runID string) string { return fmt.Sprintf("%s:run:%s:backends", s.keyNS, runID) }

// Backends lists the backends that published status for runID.
func (s *RedisStatus) Backends(ctx context.Context, runID string) ([]string, error) {
    return s.client.SMembers(ctx, s.runKey(runID)).Result()
}

// Ping reports whether Redis is reachable.
func (s *RedisStatus) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisStatus) Close() error { return s.client.Close() }

// Client returns the underlying Redis client
func (s *RedisStatus) Client() *redis.Client { return s.client }
