package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventExpand EventType = "expand"
	EventBuild  EventType = "build"
	EventLoad   EventType = "load"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
	Err       error     `json:"-"`
}

// ExpandEvent is emitted once per expanded template.
type ExpandEvent struct {
	EventBase
	Directives int  `json:"directives"`
	Finalized  bool `json:"finalized"`
}

// BuildEvent is emitted once per toolchain invocation.
type BuildEvent struct {
	EventBase
	ABI      ABI           `json:"abi"`
	Sources  []string      `json:"sources"`
	Artifact string        `json:"artifact,omitempty"`
	Duration time.Duration `json:"duration"`
}

// LoadEvent is emitted once per load attempt, after release.
type LoadEvent struct {
	EventBase
	Path string `json:"path"`
}

// LifecycleHooks defines callbacks for harness observability.
type LifecycleHooks struct {
	OnExpand func(context.Context, *ExpandEvent)
	OnBuild  func(context.Context, *BuildEvent)
	OnLoad   func(context.Context, *LoadEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnExpand: chain(h.OnExpand, other.OnExpand),
		OnBuild:  chain(h.OnBuild, other.OnBuild),
		OnLoad:   chain(h.OnLoad, other.OnLoad),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
