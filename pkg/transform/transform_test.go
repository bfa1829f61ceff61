package transform_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/the-cloud-source/scenes/pkg/data"
	"github.com/the-cloud-source/scenes/pkg/transform"
	scenestesting "github.com/the-cloud-source/scenes/utils/pkg/testing"
)

type mockStep struct {
	name      string
	applyFunc func(ctx transform.Context, series []data.Series) ([]data.Series, error)
}

func (m *mockStep) Name() string { return m.name }

func (m *mockStep) Apply(ctx transform.Context, series []data.Series) ([]data.Series, error) {
	if m.applyFunc != nil {
		return m.applyFunc(ctx, series)
	}
	return series, nil
}

func renameStep(name, newName string) *mockStep {
	return &mockStep{
		name: name,
		applyFunc: func(_ transform.Context, series []data.Series) ([]data.Series, error) {
			out := data.CloneSeries(series)
			for i := range out {
				out[i].Name = out[i].Name + ":" + newName
			}
			return out, nil
		},
	}
}

func TestScenes_Transform_NewPipeline(t *testing.T) {
	t.Parallel()

	t.Run("returns error when logger is missing", func(t *testing.T) {
		t.Parallel()

		_, err := transform.NewPipeline(transform.PipelineConfig{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "logger is required")
	})

	t.Run("succeeds without steps", func(t *testing.T) {
		t.Parallel()

		p, err := transform.NewPipeline(transform.PipelineConfig{Logger: scenestesting.NewLogger()})
		require.NoError(t, err)
		require.Empty(t, p.Steps())
	})
}

func TestScenes_Transform_Pipeline_Apply(t *testing.T) {
	t.Parallel()

	in := data.Result{
		State:  data.LoadingStateDone,
		Series: []data.Series{{RefID: "A", Name: "up"}},
	}

	t.Run("zero steps is the identity", func(t *testing.T) {
		t.Parallel()

		p, err := transform.NewPipeline(transform.PipelineConfig{Logger: scenestesting.NewLogger()})
		require.NoError(t, err)

		out, err := p.Apply(transform.Context{}, in)
		require.NoError(t, err)
		require.Equal(t, in, out)
	})

	t.Run("steps run in declared order", func(t *testing.T) {
		t.Parallel()

		p, err := transform.NewPipeline(transform.PipelineConfig{
			Logger: scenestesting.NewLogger(),
			Steps:  []transform.Step{renameStep("one", "first"), renameStep("two", "second")},
		})
		require.NoError(t, err)

		out, err := p.Apply(transform.Context{}, in)
		require.NoError(t, err)
		require.Equal(t, "up:first:second", out.Series[0].Name)
	})

	t.Run("non-series fields pass through untouched", func(t *testing.T) {
		t.Parallel()

		p, err := transform.NewPipeline(transform.PipelineConfig{
			Logger: scenestesting.NewLogger(),
			Steps:  []transform.Step{renameStep("one", "first")},
		})
		require.NoError(t, err)

		req := &data.Request{ID: "QS1"}
		res := in
		res.Request = req
		res.ReceivedAt = time.Unix(10, 0)

		out, err := p.Apply(transform.Context{}, res)
		require.NoError(t, err)
		require.Same(t, req, out.Request)
		require.Equal(t, data.LoadingStateDone, out.State)
		require.Equal(t, time.Unix(10, 0), out.ReceivedAt)
	})

	t.Run("step error aborts the chain and names the step", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		p, err := transform.NewPipeline(transform.PipelineConfig{
			Logger: scenestesting.NewLogger(),
			Steps: []transform.Step{
				&mockStep{name: "explode", applyFunc: func(transform.Context, []data.Series) ([]data.Series, error) {
					return nil, boom
				}},
				renameStep("after", "never"),
			},
		})
		require.NoError(t, err)

		_, err = p.Apply(transform.Context{}, in)
		require.Error(t, err)
		require.ErrorIs(t, err, boom)
		require.Contains(t, err.Error(), `"explode"`)
	})

	t.Run("steps see the interpolation capability", func(t *testing.T) {
		t.Parallel()

		p, err := transform.NewPipeline(transform.PipelineConfig{
			Logger: scenestesting.NewLogger(),
			Steps: []transform.Step{&mockStep{name: "interp", applyFunc: func(ctx transform.Context, series []data.Series) ([]data.Series, error) {
				out := data.CloneSeries(series)
				for i := range out {
					out[i].Name = ctx.Interpolate(out[i].Name)
				}
				return out, nil
			}}},
		})
		require.NoError(t, err)

		ctx := transform.Context{Interpolate: func(s string) string { return strings.ReplaceAll(s, "{{x}}", "y") }}
		out, err := p.Apply(ctx, data.Result{Series: []data.Series{{Name: "name-{{x}}"}}})
		require.NoError(t, err)
		require.Equal(t, "name-y", out.Series[0].Name)
	})
}

func TestScenes_Transform_Pipeline_Reprocess(t *testing.T) {
	t.Parallel()

	t.Run("set steps while active emits exactly one signal", func(t *testing.T) {
		t.Parallel()

		p, err := transform.NewPipeline(transform.PipelineConfig{Logger: scenestesting.NewLogger()})
		require.NoError(t, err)
		p.Activate()

		var calls int
		unsub := p.OnReprocess(func() { calls++ })
		defer unsub()

		p.SetSteps(renameStep("one", "first"))
		require.Equal(t, 1, calls)
		require.Len(t, p.Steps(), 1)
	})

	t.Run("set steps while inactive stays silent", func(t *testing.T) {
		t.Parallel()

		p, err := transform.NewPipeline(transform.PipelineConfig{Logger: scenestesting.NewLogger()})
		require.NoError(t, err)

		var calls int
		unsub := p.OnReprocess(func() { calls++ })
		defer unsub()

		p.SetSteps(renameStep("one", "first"))
		require.Zero(t, calls)
	})

	t.Run("explicit reprocess only fires while active", func(t *testing.T) {
		t.Parallel()

		p, err := transform.NewPipeline(transform.PipelineConfig{Logger: scenestesting.NewLogger()})
		require.NoError(t, err)

		var calls int
		unsub := p.OnReprocess(func() { calls++ })
		defer unsub()

		p.Reprocess()
		require.Zero(t, calls)

		p.Activate()
		p.Reprocess()
		require.Equal(t, 1, calls)

		p.Deactivate()
		p.Reprocess()
		require.Equal(t, 1, calls)
	})
}

func TestScenes_Transform_Preprocess(t *testing.T) {
	t.Parallel()

	now := time.Unix(100, 0)

	t.Run("stamps the arrival time", func(t *testing.T) {
		t.Parallel()

		out := transform.Preprocess(nil, data.Result{State: data.LoadingStateDone}, now)
		require.Equal(t, now, out.ReceivedAt)
	})

	t.Run("loading without series retains the previous series", func(t *testing.T) {
		t.Parallel()

		prev := &data.Result{
			State:  data.LoadingStateDone,
			Series: []data.Series{{RefID: "A", Name: "up"}},
		}
		out := transform.Preprocess(prev, data.Result{State: data.LoadingStateLoading}, now)
		require.Equal(t, prev.Series, out.Series)
		require.Equal(t, data.LoadingStateLoading, out.State)
	})

	t.Run("loading with fresh series keeps them", func(t *testing.T) {
		t.Parallel()

		prev := &data.Result{Series: []data.Series{{RefID: "A", Name: "old"}}}
		next := data.Result{
			State:  data.LoadingStateLoading,
			Series: []data.Series{{RefID: "A", Name: "new"}},
		}
		out := transform.Preprocess(prev, next, now)
		require.Equal(t, "new", out.Series[0].Name)
	})

	t.Run("done without series does not resurrect old data", func(t *testing.T) {
		t.Parallel()

		prev := &data.Result{Series: []data.Series{{RefID: "A", Name: "old"}}}
		out := transform.Preprocess(prev, data.Result{State: data.LoadingStateDone}, now)
		require.Empty(t, out.Series)
	})
}
