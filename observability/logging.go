package observability

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/cancelable/operation"
	"github.com/BaSui01/cancelable/types"
)

// LoggerOption 配置 AttachLogger。
type LoggerOption func(*loggerConfig)

type loggerConfig struct {
	progressLimit *rate.Limiter
}

// WithProgressLogLimit 限制进度日志的速率，进度风暴时丢弃多余日志行。
func WithProgressLogLimit(limit rate.Limit) LoggerOption {
	return func(c *loggerConfig) { c.progressLimit = rate.NewLimiter(limit, 1) }
}

// AttachLogger wires structured lifecycle and progress logging onto op. The
// operation itself stays logger-agnostic; this is the injected logging
// collaborator built on the callback contracts.
func AttachLogger(op *operation.Operation, logger *zap.Logger, opts ...LoggerOption) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := loggerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger = logger.With(zap.String("operation_id", op.ID()))

	op.OnStart(func(ctx context.Context, snap types.Snapshot) error {
		logger.Info("operation started",
			zap.String("operation_name", snap.Name),
			zap.String("parent_id", snap.ParentID),
		)
		return nil
	})
	op.OnComplete(func(ctx context.Context, snap types.Snapshot) error {
		logger.Info("operation completed",
			zap.Duration("duration", snap.EndedAt.Sub(snap.StartedAt)),
		)
		return nil
	})
	op.OnCancel(func(ctx context.Context, snap types.Snapshot) error {
		logger.Warn("operation cancelled",
			zap.String("cancel_reason", string(snap.CancelReason)),
			zap.String("cancel_message", snap.CancelMessage),
		)
		return nil
	})
	op.OnError(func(ctx context.Context, snap types.Snapshot, err error) error {
		logger.Error("operation error", zap.Error(err))
		return nil
	})
	op.OnProgress(func(ctx context.Context, id, message string, metadata map[string]any) error {
		if cfg.progressLimit != nil && !cfg.progressLimit.Allow() {
			return nil
		}
		logger.Debug("operation progress",
			zap.String("message", message),
			zap.Any("metadata", metadata),
		)
		return nil
	})
}
