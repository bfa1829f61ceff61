package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/the-cloud-source/scenes/pkg/data"
	"github.com/the-cloud-source/scenes/pkg/datasource"
	"github.com/the-cloud-source/scenes/pkg/query"
	"github.com/the-cloud-source/scenes/pkg/scene"
	"github.com/the-cloud-source/scenes/pkg/transform"
	"github.com/the-cloud-source/scenes/pkg/variables"
)

// waveSource is the demo datasource. It is both the registry Instance and
// the Executor behind every node: each target yields a deterministic sine
// series over the request window. Targets with query type "live" turn the
// stream into a rolling one that re-emits on a ticker until canceled.
type waveSource struct {
	log      *slog.Logger
	clock    clockwork.Clock
	ref      datasource.Ref
	interval string
	liveTick time.Duration
}

func (s *waveSource) Ref() datasource.Ref { return s.ref }
func (s *waveSource) Interval() string    { return s.interval }

func (s *waveSource) RunRequest(ctx context.Context, _ datasource.Instance, req *data.Request) (<-chan data.Result, error) {
	live := false
	for _, target := range req.Targets {
		if target.QueryType == "live" {
			live = true
		}
	}
	s.log.Debug("wave: request", "request_id", req.ID, "targets", len(req.Targets), "live", live)

	out := make(chan data.Result, 1)
	go func() {
		defer close(out)

		emit := func(res data.Result) bool {
			select {
			case out <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(data.Result{State: data.LoadingStateLoading}) {
			return
		}

		series, err := s.generate(ctx, req, req.TimeRange)
		if err != nil {
			emit(data.Result{State: data.LoadingStateError, Error: err})
			return
		}

		if !live {
			emit(data.Result{State: data.LoadingStateDone, Series: series})
			return
		}

		if !emit(data.Result{State: data.LoadingStateStreaming, Series: series}) {
			return
		}

		window := req.TimeRange.Duration()
		ticker := s.clock.NewTicker(s.liveTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				now := s.clock.Now()
				series, err := s.generate(ctx, req, data.TimeRange{From: now.Add(-window), To: now})
				if err != nil {
					return
				}
				if !emit(data.Result{State: data.LoadingStateStreaming, Series: series}) {
					return
				}
			}
		}
	}()
	return out, nil
}

// generate renders one series per visible target, in parallel.
func (s *waveSource) generate(ctx context.Context, req *data.Request, tr data.TimeRange) ([]data.Series, error) {
	targets := make([]data.Query, 0, len(req.Targets))
	for _, target := range req.Targets {
		if !target.Hide {
			targets = append(targets, target)
		}
	}

	out := make([]data.Series, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, target := range targets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = s.waveSeries(target, req, tr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *waveSource) waveSeries(target data.Query, req *data.Request, tr data.TimeRange) data.Series {
	amplitude := fieldFloat(target.Fields, "amplitude", 1)
	offset := fieldFloat(target.Fields, "offset", 0)
	phase := fieldFloat(target.Fields, "phase", 0)
	period := fieldDuration(target.Fields, "period", 10*time.Minute)

	step := time.Duration(req.IntervalMS) * time.Millisecond
	if step <= 0 {
		step = time.Second
	}

	var points []data.Point
	for ts := tr.From; !ts.After(tr.To); ts = ts.Add(step) {
		if int64(len(points)) >= req.MaxDataPoints {
			break
		}
		x := 2 * math.Pi * float64(ts.UnixMilli()) / float64(period.Milliseconds())
		points = append(points, data.Point{
			Time:  ts,
			Value: offset + amplitude*math.Sin(x+phase),
		})
	}

	name := target.RefID
	if alias, ok := target.Fields["alias"].(string); ok && alias != "" {
		name = alias
	}
	return data.Series{
		RefID: target.RefID,
		Name:  name,
		Labels: map[string]string{
			"datasource": s.ref.UID,
		},
		Points: points,
	}
}

func fieldFloat(fields map[string]any, key string, def float64) float64 {
	switch v := fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func fieldDuration(fields map[string]any, key string, def time.Duration) time.Duration {
	if s, ok := fields[key].(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return def
}

// scaleStep multiplies every point by a fixed factor.
type scaleStep struct {
	factor float64
}

func (s scaleStep) Name() string { return fmt.Sprintf("scale(%g)", s.factor) }

func (s scaleStep) Apply(_ transform.Context, series []data.Series) ([]data.Series, error) {
	out := data.CloneSeries(series)
	for i := range out {
		for j := range out[i].Points {
			out[i].Points[j].Value *= s.factor
		}
	}
	return out, nil
}

// labelStep rewrites series names through the scene's variable scope. "$name"
// in the template stands for the incoming series name.
type labelStep struct {
	template string
}

func (s labelStep) Name() string { return "label" }

func (s labelStep) Apply(ctx transform.Context, series []data.Series) ([]data.Series, error) {
	out := data.CloneSeries(series)
	for i := range out {
		out[i].Name = ctx.Interpolate(strings.ReplaceAll(s.template, "$name", out[i].Name))
	}
	return out, nil
}

// sourceInterpolator expands {{name}} templates against the live variable
// values, with request-scoped vars taking precedence.
type sourceInterpolator struct {
	src *variables.StaticSource
}

func (s sourceInterpolator) Interpolate(template string, scope variables.ScopedVars) string {
	return variables.MapInterpolator{Values: s.src.Values()}.Interpolate(template, scope)
}

// demoScene wires two query nodes to a shared time range, variable source
// and datasource registry. The "waves" node is width-gated and transformed;
// the "live" node streams until deactivated.
type demoScene struct {
	log       *slog.Logger
	registry  *scene.Registry
	timeRange *scene.TimeRange
	vars      *variables.StaticSource
	runners   map[string]*query.Runner
	order     []string
}

func newDemoScene(log *slog.Logger, clock clockwork.Clock, liveTick time.Duration) (*demoScene, error) {
	now := clock.Now()
	timeRange := scene.NewTimeRange(now.Add(-time.Hour), now)
	vars := variables.NewStaticSource(map[string]string{"env": "demo"})

	sources := datasource.NewRegistry()
	wave := &waveSource{
		log:      log,
		clock:    clock,
		ref:      datasource.Ref{UID: "wave", Type: "wave"},
		interval: "10s",
		liveTick: liveTick,
	}
	sources.Register(wave)

	pipeline, err := transform.NewPipeline(transform.PipelineConfig{
		Logger: log,
		Steps: []transform.Step{
			scaleStep{factor: 100},
			labelStep{template: "{{env}}: $name"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build transform pipeline: %w", err)
	}

	waves, err := query.NewRunner(query.RunnerConfig{
		Logger:       log,
		Clock:        clock,
		Key:          "waves",
		TimeRange:    timeRange,
		Resolver:     sources,
		Executor:     wave,
		Variables:    vars,
		Interpolator: sourceInterpolator{src: vars},
		Transformer:  pipeline,
		Queries: []data.Query{
			{RefID: "A", Fields: map[string]any{"alias": "steady", "amplitude": 1.0, "period": "15m"}},
			{RefID: "B", Fields: map[string]any{"alias": "bursty", "amplitude": 2.5, "period": "3m", "phase": 1.2}},
		},
		MaxDataPointsFromWidth: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build waves node: %w", err)
	}

	live, err := query.NewRunner(query.RunnerConfig{
		Logger:       log,
		Clock:        clock,
		Key:          "live",
		TimeRange:    timeRange,
		Resolver:     sources,
		Executor:     wave,
		Variables:    vars,
		Interpolator: sourceInterpolator{src: vars},
		Queries: []data.Query{
			{RefID: "A", QueryType: "live", Fields: map[string]any{"alias": "ticker", "period": "1m"}},
		},
		MaxDataPoints: 180,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build live node: %w", err)
	}

	d := &demoScene{
		log:       log,
		registry:  scene.NewRegistry(),
		timeRange: timeRange,
		vars:      vars,
		runners:   make(map[string]*query.Runner),
	}
	for _, r := range []*query.Runner{waves, live} {
		if err := d.add(r); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *demoScene) add(r *query.Runner) error {
	if err := d.registry.Register(r); err != nil {
		return fmt.Errorf("failed to register node %q: %w", r.Key(), err)
	}
	if err := r.Activate(); err != nil {
		return fmt.Errorf("failed to activate node %q: %w", r.Key(), err)
	}
	d.runners[r.Key()] = r
	d.order = append(d.order, r.Key())
	return nil
}

// Close deactivates every node, canceling in-flight work.
func (d *demoScene) Close() {
	for _, key := range d.order {
		d.runners[key].Deactivate()
	}
}
