package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/the-cloud-source/scenes/pkg/data"
	"github.com/the-cloud-source/scenes/pkg/datasource"
	"github.com/the-cloud-source/scenes/pkg/eventstream"
	"github.com/the-cloud-source/scenes/pkg/metrics"
	"github.com/the-cloud-source/scenes/pkg/scene"
	"github.com/the-cloud-source/scenes/pkg/transform"
	"github.com/the-cloud-source/scenes/pkg/variables"
)

// RunnerState is the observable state of a runner. Data holds the final,
// post-transform result; DataPreTransforms the same emission before the
// configured steps ran. Both move together in a single commit. Result
// pointers are immutable once published.
type RunnerState struct {
	Data              *data.Result
	DataPreTransforms *data.Result

	Queries    []data.Query
	Datasource *datasource.Ref

	MinInterval            string
	MaxDataPoints          int64
	MaxDataPointsFromWidth bool

	// IsWaitingForVariables is set while a requested run is deferred
	// because variable dependencies are still loading.
	IsWaitingForVariables bool
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock

	// Key is the runner's scene key. Defaults to a fresh one.
	Key string

	// TimeRange is the shared window the runner follows.
	TimeRange *scene.TimeRange

	Resolver Resolver
	Executor Executor

	// Variables, when set, gates runs on dependency readiness and triggers
	// re-runs on value changes.
	Variables variables.Source

	// Interpolator expands variable references in query properties.
	// Defaults to a no-op.
	Interpolator variables.Interpolator

	// Transformer, when set, post-processes every result and can request
	// reprocessing without a refetch.
	Transformer *transform.Pipeline

	// RequestIDs defaults to the process-wide generator.
	RequestIDs *IDGenerator

	// Initial node state.
	Queries                []data.Query
	Datasource             *datasource.Ref
	MinInterval            string
	MaxDataPoints          int64
	MaxDataPointsFromWidth bool
}

func (cfg *RunnerConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.TimeRange == nil {
		return errors.New("time range is required")
	}
	if cfg.Resolver == nil {
		return errors.New("resolver is required")
	}
	if cfg.Executor == nil {
		return errors.New("executor is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Key == "" {
		cfg.Key = scene.NewKey()
	}
	if cfg.Interpolator == nil {
		cfg.Interpolator = variables.NoopInterpolator{}
	}
	if cfg.RequestIDs == nil {
		cfg.RequestIDs = DefaultIDGenerator
	}
	return nil
}

// Runner executes one node's queries. It follows the scene's activation
// lifecycle, keeps at most one query subscription in flight, and commits
// results to observable state in arrival order.
//
// All methods are safe for concurrent use. OnStateChange handlers run on
// the committing goroutine and must not call back into run-triggering
// methods.
type Runner struct {
	log          *slog.Logger
	clock        clockwork.Clock
	key          string
	timeRange    *scene.TimeRange
	resolver     Resolver
	executor     Executor
	variables    variables.Source
	interpolator variables.Interpolator
	transformer  *transform.Pipeline
	ids          *IDGenerator

	size sizeTracker
	deps variables.Recorder

	states *eventstream.Subject[RunnerState]

	// dispatchMu serializes result commits and subscription cancellation,
	// so commits land in arrival order and a canceled stream can never
	// publish after its replacement. Lock order: dispatchMu before mu.
	dispatchMu sync.Mutex

	mu         sync.Mutex
	active     bool
	baseCtx    context.Context
	baseCancel context.CancelFunc
	sub        *subscription
	unsubs     []func()
	state      RunnerState
	ready      bool
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	r := &Runner{
		log:          cfg.Logger,
		clock:        cfg.Clock,
		key:          cfg.Key,
		timeRange:    cfg.TimeRange,
		resolver:     cfg.Resolver,
		executor:     cfg.Executor,
		variables:    cfg.Variables,
		interpolator: cfg.Interpolator,
		transformer:  cfg.Transformer,
		ids:          cfg.RequestIDs,
		states:       eventstream.New[RunnerState](true),
		state: RunnerState{
			Queries:                data.CloneQueries(cfg.Queries),
			Datasource:             cloneRef(cfg.Datasource),
			MinInterval:            cfg.MinInterval,
			MaxDataPoints:          cfg.MaxDataPoints,
			MaxDataPointsFromWidth: cfg.MaxDataPointsFromWidth,
		},
	}
	return r, nil
}

func (r *Runner) Key() string { return r.key }

func (r *Runner) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Ready reports whether a first result has been published since creation.
func (r *Runner) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// State returns a copy of the current observable state.
func (r *Runner) State() RunnerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// OnStateChange registers fn for state commits. The latest committed state,
// if any, is replayed immediately.
func (r *Runner) OnStateChange(fn func(RunnerState)) (unsub func()) {
	return r.states.Subscribe(fn)
}

// Activate wires the runner's subscriptions and decides whether to issue an
// initial run. Idempotent.
func (r *Runner) Activate() error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return nil
	}
	r.active = true
	r.baseCtx, r.baseCancel = context.WithCancel(context.Background())
	r.mu.Unlock()

	// Subscriptions are wired outside the state lock: subject fan-outs can
	// re-enter the runner, and holding mu across Subscribe would invert the
	// lock order.
	var unsubs []func()
	unsubs = append(unsubs, r.timeRange.OnChange(func(tr data.TimeRange) {
		r.runWithTimeRange(tr)
	}))

	if r.transformer != nil {
		r.transformer.Activate()
		unsubs = append(unsubs, r.transformer.OnReprocess(r.reapplyTransform))
	}

	if r.variables != nil {
		unsubs = append(unsubs, r.variables.Subscribe(r.onVariablesChange))
	}

	r.mu.Lock()
	if !r.active {
		// Deactivated while wiring; drop what was just registered.
		r.mu.Unlock()
		for _, unsub := range unsubs {
			unsub()
		}
		return nil
	}
	r.unsubs = unsubs
	shouldRun := r.shouldRunOnActivateLocked()
	r.mu.Unlock()

	r.log.Debug("query: activated", "key", r.key, "run", shouldRun)

	if shouldRun {
		r.runWithTimeRange(r.timeRange.Value())
	}
	return nil
}

// shouldRunOnActivateLocked decides whether activation issues a run: not
// while waiting for a first container width; yes when dependencies moved
// during the inactive period; otherwise only when no data exists yet.
func (r *Runner) shouldRunOnActivateLocked() bool {
	if r.state.MaxDataPointsFromWidth && r.state.MaxDataPoints == 0 && r.size.get() == 0 {
		return false
	}
	if r.deps.HasChanged(r.variables) {
		return true
	}
	if r.state.Data != nil {
		return false
	}
	return true
}

// Deactivate cancels any in-flight subscription, drops all wiring and
// snapshots the variable dependencies so reactivation can tell whether they
// moved. Published state stays readable.
func (r *Runner) Deactivate() {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false

	if r.sub != nil {
		r.stopSubLocked()
	}
	r.baseCancel()

	unsubs := r.unsubs
	r.unsubs = nil

	if r.transformer != nil {
		r.transformer.Deactivate()
	}

	r.deps.Record(r.variables)

	changed := r.state.IsWaitingForVariables
	r.state.IsWaitingForVariables = false
	var snap RunnerState
	if changed {
		snap = r.snapshotLocked()
	}
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	r.log.Debug("query: deactivated", "key", r.key)

	if changed {
		r.states.Emit(snap)
	}
}

// RunQueries issues a run with the current time range. No-op while
// inactive.
func (r *Runner) RunQueries() {
	r.runWithTimeRange(r.timeRange.Value())
}

// CancelQuery stops the in-flight subscription, if any, and settles a
// published Loading state back to Done without touching the series.
func (r *Runner) CancelQuery() {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	if r.sub != nil {
		r.stopSubLocked()
		r.log.Debug("query: canceled", "key", r.key)
	}

	changed := false
	var snap RunnerState
	if r.state.Data != nil && r.state.Data.State == data.LoadingStateLoading {
		settled := *r.state.Data
		settled.State = data.LoadingStateDone
		r.state.Data = &settled
		if r.state.DataPreTransforms != nil && r.state.DataPreTransforms.State == data.LoadingStateLoading {
			pre := *r.state.DataPreTransforms
			pre.State = data.LoadingStateDone
			r.state.DataPreTransforms = &pre
		}
		changed = true
		snap = r.snapshotLocked()
	}
	r.mu.Unlock()

	if changed {
		r.states.Emit(snap)
	}
}

// SetContainerWidth records the node's layout width. The first positive
// width unblocks a width-gated node: the run is deferred one clock tick so
// a burst of layout updates triggers at most one.
func (r *Runner) SetContainerWidth(width int) {
	if width <= 0 {
		return
	}
	first := r.size.set(width)
	if !first {
		return
	}

	r.mu.Lock()
	gated := r.active && r.state.MaxDataPointsFromWidth && r.state.MaxDataPoints == 0
	r.mu.Unlock()
	if !gated {
		return
	}

	r.clock.AfterFunc(0, func() {
		// Timer callbacks may fire on the clock's own goroutine; do the
		// work elsewhere so it never blocks the clock.
		go func() {
			r.mu.Lock()
			run := r.active && r.sub == nil
			r.mu.Unlock()
			if run {
				r.runWithTimeRange(r.timeRange.Value())
			}
		}()
	})
}

// SetQueries replaces the node's query definitions. Takes effect on the
// next run.
func (r *Runner) SetQueries(queries []data.Query) {
	r.mu.Lock()
	r.state.Queries = data.CloneQueries(queries)
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.states.Emit(snap)
}

func (r *Runner) onVariablesChange(c variables.Change) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	waiting := r.state.IsWaitingForVariables
	r.mu.Unlock()

	if waiting {
		r.log.Debug("query: variable dependencies settled", "key", r.key)
		r.runWithTimeRange(r.timeRange.Value())
		return
	}
	if c.ValueChanged {
		r.log.Debug("query: variable dependencies changed", "key", r.key, "names", c.Names)
		r.runWithTimeRange(r.timeRange.Value())
	}
}

// runWithTimeRange is the run path. It defers when dependencies are still
// loading, otherwise replaces the in-flight subscription and starts the
// fetch on its own goroutine.
func (r *Runner) runWithTimeRange(tr data.TimeRange) {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}

	if r.variables != nil && r.variables.IsLoading() {
		changed := !r.state.IsWaitingForVariables
		r.state.IsWaitingForVariables = true
		var snap RunnerState
		if changed {
			snap = r.snapshotLocked()
		}
		r.mu.Unlock()

		r.log.Debug("query: run deferred, variables still loading", "key", r.key)
		if changed {
			r.states.Emit(snap)
		}
		return
	}

	waitingCleared := r.state.IsWaitingForVariables
	r.state.IsWaitingForVariables = false

	if r.sub != nil {
		r.stopSubLocked()
	}
	sub := newSubscription(r.baseCtx)
	r.sub = sub
	metrics.ActiveSubscriptions.Inc()

	snap := runSnapshot{
		tr:            tr,
		queries:       data.CloneQueries(r.state.Queries),
		dsRef:         cloneRef(r.state.Datasource),
		minInterval:   r.state.MinInterval,
		maxDataPoints: r.state.MaxDataPoints,
		fromWidth:     r.state.MaxDataPointsFromWidth,
		width:         r.size.get(),
	}

	var stateSnap RunnerState
	if waitingCleared {
		stateSnap = r.snapshotLocked()
	}
	r.mu.Unlock()

	if waitingCleared {
		r.states.Emit(stateSnap)
	}

	go r.execute(sub, snap)
}

// runSnapshot carries everything a run needs, detached from node state.
type runSnapshot struct {
	tr            data.TimeRange
	queries       []data.Query
	dsRef         *datasource.Ref
	minInterval   string
	maxDataPoints int64
	fromWidth     bool
	width         int
}

func (r *Runner) execute(sub *subscription, snap runSnapshot) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("query: panic during query run", "key", r.key, "panic", rec)
			metrics.QueryRunsTotal.WithLabelValues("failed").Inc()
			r.clearSub(sub)
		}
	}()

	req, ds, err := r.buildRequest(sub.ctx, snap)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Error("query: failed to build request", "key", r.key, "error", err)
			metrics.QueryRunsTotal.WithLabelValues("failed").Inc()
		}
		r.clearSub(sub)
		return
	}

	r.log.Debug("query: running request",
		"key", r.key,
		"request_id", req.ID,
		"datasource", ds.Ref().String(),
		"targets", len(req.Targets),
		"interval", req.Interval,
		"max_data_points", req.MaxDataPoints,
	)
	metrics.QueryRunsTotal.WithLabelValues("started").Inc()

	ch, err := r.executor.RunRequest(sub.ctx, ds, req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Error("query: failed to run request", "key", r.key, "request_id", req.ID, "error", err)
			metrics.QueryRunsTotal.WithLabelValues("failed").Inc()
		}
		r.clearSub(sub)
		return
	}

	for res := range ch {
		if sub.canceled.Load() {
			break
		}
		res.Request = req
		r.commit(sub, res)
	}

	r.finishSub(sub, req)
}

// buildRequest assembles the immutable fetch description: resolved
// datasource, calculated interval, deep-copied targets and the built-in
// scoped vars.
func (r *Runner) buildRequest(ctx context.Context, snap runSnapshot) (*data.Request, datasource.Instance, error) {
	scoped := variables.ScopedVars{
		"__sceneObject": {Text: r.key, Value: r.key},
	}

	dsRef := firstTargetDatasource(snap.queries)
	if dsRef == nil {
		dsRef = snap.dsRef
	}

	ds, err := r.resolver.Resolve(ctx, dsRef, scoped)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve datasource: %w", err)
	}

	minInterval := snap.minInterval
	if minInterval == "" {
		minInterval = ds.Interval()
	}
	minInterval = r.interpolator.Interpolate(minInterval, scoped)

	maxDataPoints := snap.maxDataPoints
	if maxDataPoints == 0 {
		if snap.fromWidth && snap.width > 0 {
			maxDataPoints = int64(snap.width)
		} else {
			maxDataPoints = DefaultMaxDataPoints
		}
	}

	interval, err := CalculateInterval(snap.tr, maxDataPoints, minInterval)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to calculate interval: %w", err)
	}

	scoped["__interval"] = variables.ScopedVar{Text: interval.Text, Value: interval.Text}
	intervalMS := strconv.FormatInt(interval.Duration.Milliseconds(), 10)
	scoped["__interval_ms"] = variables.ScopedVar{Text: intervalMS, Value: intervalMS}

	targets := make([]data.Query, len(snap.queries))
	for i, q := range snap.queries {
		t := q.Clone()
		if t.Datasource == nil {
			ref := ds.Ref()
			t.Datasource = &ref
		}
		targets[i] = t
	}

	return &data.Request{
		ID:            r.ids.Next(),
		TimeRange:     snap.tr,
		Interval:      interval.Text,
		IntervalMS:    interval.Duration.Milliseconds(),
		Targets:       targets,
		MaxDataPoints: maxDataPoints,
		ScopedVars:    scoped,
		StartTime:     r.clock.Now(),
	}, ds, nil
}

// commit pushes one raw result through preprocessing and the configured
// transformations, then publishes both stages in a single state change.
// Stale subscriptions are dropped here, under the dispatch lock, so a
// replaced stream can never publish after its successor.
func (r *Runner) commit(sub *subscription, res data.Result) {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	if sub.canceled.Load() {
		return
	}

	r.mu.Lock()
	prev := r.state.DataPreTransforms
	r.mu.Unlock()

	pre := transform.Preprocess(prev, res, r.clock.Now())
	final := r.applyTransformations(pre)

	r.mu.Lock()
	r.state.Data = &final
	r.state.DataPreTransforms = &pre
	r.ready = true
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.states.Emit(snap)
}

// reapplyTransform re-derives Data from the last raw result, without a
// refetch. DataPreTransforms is left untouched.
func (r *Runner) reapplyTransform() {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	if !r.active || r.state.DataPreTransforms == nil {
		r.mu.Unlock()
		return
	}
	pre := *r.state.DataPreTransforms
	r.mu.Unlock()

	final := r.applyTransformations(pre)

	r.mu.Lock()
	r.state.Data = &final
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.log.Debug("query: reprocessed transformations", "key", r.key)
	r.states.Emit(snap)
}

// applyTransformations runs the attached pipeline over pre. A failing step
// yields an error-status result that keeps the pre-transform series, so
// consumers see the failure without losing data.
func (r *Runner) applyTransformations(pre data.Result) data.Result {
	if r.transformer == nil {
		return pre
	}

	var scope variables.ScopedVars
	if pre.Request != nil {
		scope = pre.Request.ScopedVars
	}
	ctx := transform.Context{
		Interpolate: func(s string) string {
			return r.interpolator.Interpolate(s, scope)
		},
		Logger: r.log,
	}

	out, err := r.transformer.Apply(ctx, pre)
	if err != nil {
		r.log.Error("query: transformation failed", "key", r.key, "error", err)
		metrics.TransformationsTotal.WithLabelValues("error").Inc()
		failed := pre
		failed.State = data.LoadingStateError
		failed.Error = err
		return failed
	}
	metrics.TransformationsTotal.WithLabelValues("ok").Inc()
	return out
}

// clearSub drops a subscription that failed before producing a stream.
func (r *Runner) clearSub(sub *subscription) {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if !sub.stop() {
		return
	}
	if r.sub == sub {
		r.sub = nil
	}
	metrics.ActiveSubscriptions.Dec()
}

// finishSub retires a subscription whose stream ended naturally.
func (r *Runner) finishSub(sub *subscription, req *data.Request) {
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()

	r.mu.Lock()
	if !sub.stop() {
		r.mu.Unlock()
		return
	}
	if r.sub == sub {
		r.sub = nil
	}
	r.mu.Unlock()

	metrics.ActiveSubscriptions.Dec()
	metrics.QueryRunsTotal.WithLabelValues("completed").Inc()
	metrics.QueryRunDuration.Observe(r.clock.Since(req.StartTime).Seconds())

	r.log.Debug("query: request finished", "key", r.key, "request_id", req.ID)
}

// stopSubLocked cancels the current subscription. Callers hold dispatchMu
// and mu.
func (r *Runner) stopSubLocked() {
	r.sub.stop()
	r.sub = nil
	metrics.ActiveSubscriptions.Dec()
	metrics.QueryRunsTotal.WithLabelValues("canceled").Inc()
}

func (r *Runner) snapshotLocked() RunnerState {
	snap := r.state
	snap.Queries = data.CloneQueries(r.state.Queries)
	snap.Datasource = cloneRef(r.state.Datasource)
	return snap
}

func firstTargetDatasource(queries []data.Query) *datasource.Ref {
	for _, q := range queries {
		if q.Datasource != nil {
			ref := *q.Datasource
			return &ref
		}
	}
	return nil
}

func cloneRef(ref *datasource.Ref) *datasource.Ref {
	if ref == nil {
		return nil
	}
	out := *ref
	return &out
}
