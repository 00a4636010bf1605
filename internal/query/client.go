// Copyright 2026 The Monite SDK Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package query caches the results of remote reads keyed by Key. It tracks a
// pending/success/error status per key, deduplicates concurrent fetches of the
// same key and drops results of fetches that were superseded by an
// invalidation or a direct write.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/monite/monite-sdk-go/internal/observability/logger"
	"github.com/monite/monite-sdk-go/internal/observability/metrics"
	"github.com/monite/monite-sdk-go/internal/observability/tracing"
)

// ErrDisabled is returned by Fetch for a query whose Enabled option is false.
var ErrDisabled = errors.New("query: disabled")

// Infinite as a stale time keeps data fresh until it is invalidated.
const Infinite time.Duration = -1

// Status is the data status of one key.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "pending"
	}
}

// Key identifies a query. Keys are hierarchical: Invalidate(Key{"tags"})
// affects Key{"tags", "list"} as well.
type Key []string

func (k Key) String() string {
	return strings.Join(k, "/")
}

// With returns a new key that extends k with parts.
func (k Key) With(parts ...string) Key {
	out := make(Key, 0, len(k)+len(parts))
	return append(append(out, k...), parts...)
}

// HasPrefix reports whether prefix is a leading subsequence of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// id is the storage form of the key. Every element is terminated so that a
// string prefix of an id is also an element prefix.
func (k Key) id() string {
	var b strings.Builder
	for _, p := range k {
		b.WriteString(p)
		b.WriteByte('/')
	}
	return b.String()
}

// ErrorHandler receives every failed query and every failed mutation that has
// no OnError of its own.
type ErrorHandler func(ctx context.Context, key Key, err error)

// Options configures a Client.
type Options struct {
	// StaleTime is how long successful data is served without refetching.
	StaleTime time.Duration

	// Retry is the number of extra attempts after a failed fetch.
	Retry int

	// RetryDelay returns the pause before retry attempt n (0-based).
	RetryDelay func(attempt int) time.Duration

	OnError     ErrorHandler
	Persister   Persister
	Logger      *slog.Logger
	Instruments *metrics.Instruments
}

// DefaultOptions returns the defaults every widget query client uses.
func DefaultOptions() Options {
	return Options{
		StaleTime: time.Minute,
		Retry:     0,
	}
}

// Client holds the cached state of every key.
type Client struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group
}

type entry struct {
	key         Key
	status      Status
	fetching    int
	data        any
	err         error
	updatedAt   time.Time
	invalidated bool
	gen         uint64
}

// NewClient creates an empty cache.
func NewClient(opts Options) *Client {
	if opts.RetryDelay == nil {
		opts.RetryDelay = defaultRetryDelay
	}
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	return &Client{
		opts:    opts,
		logger:  l.With(logger.Component("query")),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

func defaultRetryDelay(attempt int) time.Duration {
	d := time.Second << attempt
	if d <= 0 || d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

// Option overrides a client default for a single query.
type Option func(*fetchConfig)

type fetchConfig struct {
	staleTime time.Duration
	retry     int
	enabled   bool
}

func WithStaleTime(d time.Duration) Option {
	return func(c *fetchConfig) { c.staleTime = d }
}

func WithRetry(n int) Option {
	return func(c *fetchConfig) { c.retry = n }
}

// Enabled disables the query when false. A disabled query never fetches and
// stays pending.
func Enabled(enabled bool) Option {
	return func(c *fetchConfig) { c.enabled = enabled }
}

func (c *Client) fetchConfig(opts []Option) fetchConfig {
	cfg := fetchConfig{staleTime: c.opts.StaleTime, retry: c.opts.Retry, enabled: true}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// Snapshot is the state of one key at a point in time.
type Snapshot[T any] struct {
	Status     Status
	IsFetching bool
	Data       T
	HasData    bool
	Err        error
	UpdatedAt  time.Time
}

func (s Snapshot[T]) IsPending() bool { return s.Status == StatusPending }
func (s Snapshot[T]) IsSuccess() bool { return s.Status == StatusSuccess }
func (s Snapshot[T]) IsError() bool   { return s.Status == StatusError }

// IsLoading is true for the first fetch of a key: no data yet and a fetch in
// flight.
func (s Snapshot[T]) IsLoading() bool { return s.Status == StatusPending && s.IsFetching }

// Fetch returns fresh cached data for key or runs fn. Concurrent callers of
// the same key share one call of fn. A result is stored only if no
// invalidation or write happened to the key while fn was running; the
// caller receives it either way.
func Fetch[T any](ctx context.Context, c *Client, key Key, fn func(context.Context) (T, error), opts ...Option) (T, error) {
	var zero T
	cfg := c.fetchConfig(opts)
	if !cfg.enabled {
		return zero, ErrDisabled
	}

	id := key.id()
	if v, ok := c.fresh(id, cfg.staleTime); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	if t, ok := loadPersisted[T](ctx, c, key, cfg.staleTime); ok {
		return t, nil
	}

	// the flight outlives any single caller
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (any, error) {
		return c.run(flightCtx, key, cfg.retry, func(ctx context.Context) (any, error) {
			return fn(ctx)
		})
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		t, _ := res.Val.(T)
		return t, nil
	}
}

// Peek returns the current state of key without fetching.
func Peek[T any](c *Client, key Key) Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key.id()]
	if !ok {
		return Snapshot[T]{Status: StatusPending}
	}
	s := Snapshot[T]{
		Status:     e.status,
		IsFetching: e.fetching > 0,
		Err:        e.err,
		UpdatedAt:  e.updatedAt,
	}
	if t, ok := e.data.(T); ok {
		s.Data = t
		s.HasData = true
	}
	return s
}

// SetData writes v as the successful data of key. Fetches of key that are in
// flight are superseded.
func SetData[T any](ctx context.Context, c *Client, key Key, v T) {
	id := key.id()
	c.mu.Lock()
	c.setLocked(id, key, v)
	c.mu.Unlock()
	c.group.Forget(id)
	c.persist(ctx, key, v)
}

// Update applies fn to the cached data of key. It returns false and changes
// nothing when the key holds no data of type T.
func Update[T any](ctx context.Context, c *Client, key Key, fn func(T) T) bool {
	id := key.id()
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	prev, ok := e.data.(T)
	if !ok {
		c.mu.Unlock()
		return false
	}
	next := fn(prev)
	c.setLocked(id, key, next)
	c.mu.Unlock()

	c.group.Forget(id)
	c.persist(ctx, key, next)
	return true
}

func (c *Client) setLocked(id string, key Key, v any) {
	e := c.entryLocked(id, key)
	e.gen++
	e.status = StatusSuccess
	e.data = v
	e.err = nil
	e.updatedAt = c.now()
	e.invalidated = false
}

// Invalidate marks every key under prefix as stale and supersedes fetches in
// flight for them. Cached data stays readable until the next fetch replaces
// it. It returns the number of keys affected.
func (c *Client) Invalidate(ctx context.Context, prefix Key) int {
	var ids []string
	c.mu.Lock()
	for id, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.invalidated = true
		e.gen++
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		c.group.Forget(id)
	}
	if c.opts.Persister != nil {
		if err := c.opts.Persister.Delete(ctx, prefix.id()); err != nil {
			c.logger.WarnContext(ctx, "failed to delete persisted queries",
				logger.QueryKey(prefix.String()), logger.Error(err))
		}
	}
	return len(ids)
}

// MutationOptions configures one Mutate call.
type MutationOptions[T any] struct {
	// Invalidates lists the key prefixes to invalidate after success.
	Invalidates []Key

	OnSuccess func(T)

	// OnError replaces the client's error handler for this mutation.
	OnError func(error)
}

// Mutate runs a write. Failures go to opts.OnError if set and to the client
// error handler otherwise.
func Mutate[T any](ctx context.Context, c *Client, name string, fn func(context.Context) (T, error), opts MutationOptions[T]) (T, error) {
	ctx, span := tracing.StartSpan(ctx, "mutation "+name)
	v, err := fn(ctx)
	tracing.EndSpan(span, err)
	if err != nil {
		if opts.OnError != nil {
			opts.OnError(err)
		} else {
			c.handleError(ctx, Key{"mutation", name}, err)
		}
		return v, err
	}

	for _, k := range opts.Invalidates {
		c.Invalidate(ctx, k)
	}
	if opts.OnSuccess != nil {
		opts.OnSuccess(v)
	}
	return v, nil
}

func (c *Client) fresh(id string, staleTime time.Duration) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok || e.status != StatusSuccess || e.invalidated {
		return nil, false
	}
	if staleTime < 0 || c.now().Sub(e.updatedAt) < staleTime {
		return e.data, true
	}
	return nil, false
}

func (c *Client) entryLocked(id string, key Key) *entry {
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: append(Key(nil), key...), status: StatusPending}
		c.entries[id] = e
	}
	return e
}

func (c *Client) run(ctx context.Context, key Key, retry int, fn func(context.Context) (any, error)) (any, error) {
	id := key.id()

	c.mu.Lock()
	e := c.entryLocked(id, key)
	e.fetching++
	gen := e.gen
	c.mu.Unlock()

	c.opts.Instruments.QueryStarted(ctx)
	ctx, span := tracing.StartSpan(ctx, "query "+key.String())
	v, err := c.attempt(ctx, retry, fn)
	tracing.EndSpan(span, err)
	c.opts.Instruments.QueryFinished(ctx)

	c.mu.Lock()
	e = c.entryLocked(id, key)
	e.fetching--
	current := e.gen == gen
	if current {
		if err != nil {
			e.status = StatusError
			e.err = err
		} else {
			e.status = StatusSuccess
			e.data = v
			e.err = nil
			e.updatedAt = c.now()
			e.invalidated = false
		}
	}
	c.mu.Unlock()

	if !current {
		c.logger.DebugContext(ctx, "discarded superseded query result", logger.QueryKey(key.String()))
		return v, err
	}
	if err != nil {
		c.handleError(ctx, key, err)
		return v, err
	}
	c.persist(ctx, key, v)
	return v, nil
}

func (c *Client) attempt(ctx context.Context, retry int, fn func(context.Context) (any, error)) (any, error) {
	for n := 0; ; n++ {
		v, err := fn(ctx)
		if err == nil || n >= retry {
			return v, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.opts.RetryDelay(n)):
		}
	}
}

func (c *Client) handleError(ctx context.Context, key Key, err error) {
	if c.opts.OnError != nil {
		c.opts.OnError(ctx, key, err)
		return
	}
	c.logger.WarnContext(ctx, "query failed", logger.QueryKey(key.String()), logger.Error(err))
}

func (c *Client) persist(ctx context.Context, key Key, v any) {
	if c.opts.Persister == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to encode query data", logger.QueryKey(key.String()), logger.Error(err))
		return
	}
	if err := c.opts.Persister.Save(ctx, key.id(), Record{Data: raw, UpdatedAt: c.now()}); err != nil {
		c.logger.WarnContext(ctx, "failed to persist query data", logger.QueryKey(key.String()), logger.Error(err))
	}
}

func loadPersisted[T any](ctx context.Context, c *Client, key Key, staleTime time.Duration) (T, bool) {
	var zero T
	if c.opts.Persister == nil {
		return zero, false
	}
	rec, ok, err := c.opts.Persister.Load(ctx, key.id())
	if err != nil {
		c.logger.WarnContext(ctx, "failed to load persisted query", logger.QueryKey(key.String()), logger.Error(err))
		return zero, false
	}
	if !ok || (staleTime >= 0 && c.now().Sub(rec.UpdatedAt) >= staleTime) {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(rec.Data, &v); err != nil {
		return zero, false
	}

	id := key.id()
	c.mu.Lock()
	e := c.entryLocked(id, key)
	e.status = StatusSuccess
	e.data = v
	e.err = nil
	e.updatedAt = rec.UpdatedAt
	e.invalidated = false
	c.mu.Unlock()
	return v, true
}
