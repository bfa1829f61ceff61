package transform

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/the-cloud-source/scenes/pkg/data"
	"github.com/the-cloud-source/scenes/pkg/eventstream"
)

// Step is one configurable transformation. Implementations live outside
// this module; the pipeline only sequences them.
type Step interface {
	// Name identifies the step in logs and errors.
	Name() string

	// Apply rewrites the series. It must not mutate its input slice.
	Apply(ctx Context, series []data.Series) ([]data.Series, error)
}

// Context carries the node-bound capabilities a step may use.
type Context struct {
	// Interpolate expands variable references using the owning node's scope.
	Interpolate func(string) string

	Logger *slog.Logger
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Logger *slog.Logger

	// Steps run in order on every result. May be empty.
	Steps []Step
}

func (cfg *PipelineConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Pipeline is the transformer object attached to a query runner. It holds
// the configured steps, follows the runner's activation lifecycle, and
// signals when already-fetched results should be pushed through the steps
// again.
type Pipeline struct {
	log *slog.Logger

	mu     sync.Mutex
	steps  []Step
	active bool

	reprocess *eventstream.Subject[struct{}]
}

func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	return &Pipeline{
		log:       cfg.Logger,
		steps:     slices.Clone(cfg.Steps),
		reprocess: eventstream.New[struct{}](false),
	}, nil
}

func (p *Pipeline) Activate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
}

func (p *Pipeline) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
}

func (p *Pipeline) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Steps returns a snapshot of the configured steps.
func (p *Pipeline) Steps() []Step {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.steps)
}

// SetSteps replaces the configured steps. While active this signals a
// reprocess so attached runners re-derive their transformed data without
// refetching.
func (p *Pipeline) SetSteps(steps ...Step) {
	p.mu.Lock()
	p.steps = slices.Clone(steps)
	active := p.active
	p.mu.Unlock()

	if active {
		p.reprocess.Emit(struct{}{})
	}
}

// Reprocess signals attached runners to push their last raw result through
// the steps again. Ignored while inactive.
func (p *Pipeline) Reprocess() {
	p.mu.Lock()
	active := p.active
	p.mu.Unlock()

	if active {
		p.reprocess.Emit(struct{}{})
	}
}

// OnReprocess registers fn for reprocess signals.
func (p *Pipeline) OnReprocess(fn func()) (unsub func()) {
	return p.reprocess.Subscribe(func(struct{}) { fn() })
}

// Apply runs the configured steps in order over the result's series,
// leaving every other field alone. Zero steps is the identity. A step error
// aborts the chain.
func (p *Pipeline) Apply(ctx Context, res data.Result) (data.Result, error) {
	p.mu.Lock()
	steps := slices.Clone(p.steps)
	p.mu.Unlock()

	series := res.Series
	for _, step := range steps {
		var err error
		series, err = step.Apply(ctx, series)
		if err != nil {
			return data.Result{}, fmt.Errorf("failed to apply transformation %q: %w", step.Name(), err)
		}
	}
	res.Series = series
	return res, nil
}
