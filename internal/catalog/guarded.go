package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/toko-bundles/internal/bundle"
	"github.com/noah-isme/toko-bundles/internal/resilience"
)

// GuardedSource retries a flaky Source and stops calling it while its breaker is open.
// Malformed catalogs are returned immediately and do not count against the source.
type GuardedSource struct {
	Source  Source
	Breaker *resilience.Breaker
	Policy  resilience.Policy
}

// Name reports the wrapped source's name.
func (g GuardedSource) Name() string {
	if g.Source == nil {
		return "unknown"
	}
	return g.Source.Name()
}

// Load calls the wrapped source under the retry policy.
func (g GuardedSource) Load(ctx context.Context) ([]bundle.Definition, error) {
	if g.Source == nil {
		return nil, ErrStoreUnavailable
	}
	policy := g.Policy
	if policy.Retryable == nil {
		policy.Retryable = retryableLoadError
	}
	var defs []bundle.Definition
	err := resilience.Do(ctx, g.Breaker, policy, func(ctx context.Context) error {
		var err error
		defs, err = g.Source.Load(ctx)
		return err
	})
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return nil, fmt.Errorf("%w: %s source circuit open", ErrStoreUnavailable, g.Name())
	}
	return defs, err
}

func retryableLoadError(err error) bool {
	return !errors.Is(err, bundle.ErrMalformedDefinition) &&
		!errors.Is(err, ErrStoreUnavailable) &&
		!errors.Is(err, context.Canceled)
}
