// Package redis keeps build coordination state in Redis: a distributed
// build lock and a per-module history of builds and loads.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/hpyharness/internal/logging"
	"github.com/aretw0/hpyharness/pkg/domain"
)

// Record is one build or load outcome.
type Record struct {
	Timestamp time.Time        `json:"timestamp"`
	Type      domain.EventType `json:"type"`
	Module    string           `json:"module"`
	ABI       domain.ABI       `json:"abi,omitempty"`
	Artifact  string           `json:"artifact,omitempty"`
	Duration  time.Duration    `json:"duration,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// History stores the most recent records per module.
type History struct {
	client *backend.Client
	prefix string
	limit  int64
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the History.
type Option func(*History)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(h *History) {
		h.prefix = prefix
	}
}

// WithLimit caps the records kept per module.
func WithLimit(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.limit = int64(n)
		}
	}
}

// WithTTL expires a module's history after ttl without activity.
func WithTTL(ttl time.Duration) Option {
	return func(h *History) {
		h.ttl = ttl
	}
}

// WithLogger sets the logger used when a hook cannot write.
func WithLogger(logger *slog.Logger) Option {
	return func(h *History) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHistory creates a History on an existing client.
func NewHistory(client *backend.Client, opts ...Option) *History {
	h := &History{
		client: client,
		prefix: "hpyharness:",
		limit:  50,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *History) key(module string) string {
	return h.prefix + "history:" + module
}

func (h *History) indexKey() string {
	return h.prefix + "history"
}

// Append stores rec at the head of its module's list.
func (h *History) Append(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	key := h.key(rec.Module)
	pipe := h.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, h.limit-1)
	if h.ttl > 0 {
		pipe.Expire(ctx, key, h.ttl)
	}
	pipe.ZAdd(ctx, h.indexKey(), backend.Z{
		Score:  float64(rec.Timestamp.Unix()),
		Member: rec.Module,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Recent returns up to n records for module, newest first.
func (h *History) Recent(ctx context.Context, module string, n int) ([]Record, error) {
	if n <= 0 {
		n = int(h.limit)
	}
	vals, err := h.client.LRange(ctx, h.key(module), 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	out := make([]Record, 0, len(vals))
	for _, v := range vals {
		var rec Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Modules lists modules with history, most recently active first.
func (h *History) Modules(ctx context.Context) ([]string, error) {
	mods, err := h.client.ZRevRange(ctx, h.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	return mods, nil
}

// Hooks records every build and load.
func (h *History) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnBuild: func(ctx context.Context, e *domain.BuildEvent) {
			rec := record(&e.EventBase)
			rec.ABI, rec.Artifact, rec.Duration = e.ABI, e.Artifact, e.Duration
			h.write(ctx, rec)
		},
		OnLoad: func(ctx context.Context, e *domain.LoadEvent) {
			rec := record(&e.EventBase)
			rec.Artifact = e.Path
			h.write(ctx, rec)
		},
	}
}

func (h *History) write(ctx context.Context, rec Record) {
	if err := h.Append(context.WithoutCancel(ctx), rec); err != nil {
		h.logger.Warn("failed to record history", "module", rec.Module, "type", rec.Type, "err", err)
	}
}

func record(e *domain.EventBase) Record {
	rec := Record{Timestamp: e.Timestamp, Type: e.Type, Module: e.Module}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if e.Err != nil {
		rec.Error = e.Err.Error()
	}
	return rec
}

// Close closes the redis client.
func (h *History) Close() error {
	return h.client.Close()
}
