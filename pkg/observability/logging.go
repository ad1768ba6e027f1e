package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/hpyharness/pkg/domain"
)

// LogHooks returns lifecycle hooks that write one log line per event.
// Failures are logged at warn level; the caller still gets the error.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnExpand: func(ctx context.Context, e *domain.ExpandEvent) {
			logEvent(ctx, logger, &e.EventBase, "directives", e.Directives, "finalized", e.Finalized)
		},
		OnBuild: func(ctx context.Context, e *domain.BuildEvent) {
			logEvent(ctx, logger, &e.EventBase, "abi", e.ABI, "sources", len(e.Sources), "artifact", e.Artifact, "duration", e.Duration)
		},
		OnLoad: func(ctx context.Context, e *domain.LoadEvent) {
			logEvent(ctx, logger, &e.EventBase, "path", e.Path)
		},
	}
}

func logEvent(ctx context.Context, logger *slog.Logger, e *domain.EventBase, attrs ...any) {
	attrs = append([]any{"module", e.Module}, attrs...)
	if e.Err != nil {
		logger.WarnContext(ctx, string(e.Type)+" failed", append(attrs, "err", e.Err)...)
		return
	}
	logger.InfoContext(ctx, string(e.Type), attrs...)
}
