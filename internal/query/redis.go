package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is one persisted query result.
type Record struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Persister stores query results outside the process so that several gateway
// replicas serving the same entity user share them.
type Persister interface {
	Load(ctx context.Context, id string) (Record, bool, error)
	Save(ctx context.Context, id string, rec Record) error
	Delete(ctx context.Context, prefix string) error
}

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("query: redis ping: %w", err)
	}
	return client, nil
}

// RedisPersister keeps query results in Redis under a namespace.
type RedisPersister struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisPersister creates a persister. Every stored key starts with
// namespace and expires after ttl; a zero ttl never expires.
func NewRedisPersister(client *redis.Client, namespace string, ttl time.Duration) *RedisPersister {
	return &RedisPersister{client: client, namespace: namespace, ttl: ttl}
}

func (p *RedisPersister) Load(ctx context.Context, id string) (Record, bool, error) {
	payload, err := p.client.Get(ctx, p.namespace+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, false, fmt.Errorf("query: decode record %q: %w", id, err)
	}
	return rec, true, nil
}

func (p *RedisPersister) Save(ctx context.Context, id string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.client.Set(ctx, p.namespace+id, raw, p.ttl).Err()
}

// Delete removes every record whose id starts with prefix.
func (p *RedisPersister) Delete(ctx context.Context, prefix string) error {
	pattern := escapeGlob(p.namespace+prefix) + "*"
	iter := p.client.Scan(ctx, 0, pattern, 100).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := p.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return p.client.Del(ctx, batch...).Err()
	}
	return nil
}

// escapeGlob quotes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
