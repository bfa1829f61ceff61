// Package query runs a scene node's queries: it decides when to (re)issue
// them, keeps at most one subscription in flight per runner, and publishes
// raw and transformed results as observable state.
package query

import (
	"context"

	"github.com/the-cloud-source/scenes/pkg/data"
	"github.com/the-cloud-source/scenes/pkg/datasource"
	"github.com/the-cloud-source/scenes/pkg/variables"
)

// DefaultMaxDataPoints is used when neither an explicit value nor a
// container width is available.
const DefaultMaxDataPoints = 500

// Resolver resolves a datasource ref to a live instance. A nil ref selects
// the resolver's default.
type Resolver interface {
	Resolve(ctx context.Context, ref *datasource.Ref, scope variables.ScopedVars) (datasource.Instance, error)
}

// Executor issues a request against a resolved datasource and streams
// results back. The returned channel must be closed when the stream ends or
// ctx is canceled; emissions after cancellation are discarded by the caller.
type Executor interface {
	RunRequest(ctx context.Context, ds datasource.Instance, req *data.Request) (<-chan data.Result, error)
}
