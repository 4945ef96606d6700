package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-bundles/internal/bundle"
)

// TypeCatalogRefresh is the asynq task type that reloads the static catalog.
const TypeCatalogRefresh = "catalog:refresh"

// Enqueuer is the subset of *asynq.Client used to schedule refreshes.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewRefreshTask builds a deduplicated refresh task.
func NewRefreshTask() *asynq.Task {
	return asynq.NewTask(TypeCatalogRefresh, nil, asynq.MaxRetry(3), asynq.Unique(30*time.Second), asynq.Timeout(time.Minute))
}

// EnqueueRefresh schedules a refresh. A refresh that is already queued counts as accepted.
func EnqueueRefresh(ctx context.Context, q Enqueuer) error {
	if q == nil {
		return errors.New("catalog: task client not configured")
	}
	_, err := q.EnqueueContext(ctx, NewRefreshTask())
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return fmt.Errorf("enqueue catalog refresh: %w", err)
	}
	return nil
}

// RefreshHandler processes catalog refresh tasks on the worker.
type RefreshHandler struct {
	Service *Service
	Logger  zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h RefreshHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	if h.Service == nil {
		return fmt.Errorf("%w: catalog service not configured", asynq.SkipRetry)
	}
	cat, err := h.Service.Refresh(ctx)
	switch {
	case errors.Is(err, ErrRefreshInProgress):
		h.Logger.Info().Msg("catalog refresh skipped, another holder is refreshing")
		return nil
	case errors.Is(err, bundle.ErrMalformedDefinition):
		h.Logger.Error().Err(err).Msg("catalog refresh rejected")
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	case err != nil:
		return err
	}
	h.Logger.Info().Int("definitions", cat.Len()).Msg("catalog refreshed")
	return nil
}
