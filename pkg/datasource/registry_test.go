package datasource_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/the-cloud-source/scenes/pkg/datasource"
)

type mockInstance struct {
	ref      datasource.Ref
	interval string
}

func (m *mockInstance) Ref() datasource.Ref { return m.ref }
func (m *mockInstance) Interval() string    { return m.interval }

func TestScenes_Datasource_Registry_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("nil ref resolves to the default instance", func(t *testing.T) {
		t.Parallel()

		reg := datasource.NewRegistry()
		inst := &mockInstance{ref: datasource.Ref{UID: "prom-1", Type: "prometheus"}}
		reg.Register(inst)

		got, err := reg.Resolve(t.Context(), nil, nil)
		require.NoError(t, err)
		require.Same(t, inst, got)
	})

	t.Run("empty uid resolves to the default instance", func(t *testing.T) {
		t.Parallel()

		reg := datasource.NewRegistry()
		inst := &mockInstance{ref: datasource.Ref{UID: "prom-1"}}
		reg.Register(inst)

		got, err := reg.Resolve(t.Context(), &datasource.Ref{}, nil)
		require.NoError(t, err)
		require.Same(t, inst, got)
	})

	t.Run("resolves by uid", func(t *testing.T) {
		t.Parallel()

		reg := datasource.NewRegistry()
		first := &mockInstance{ref: datasource.Ref{UID: "prom-1"}}
		second := &mockInstance{ref: datasource.Ref{UID: "loki-1", Type: "loki"}}
		reg.Register(first)
		reg.Register(second)

		got, err := reg.Resolve(t.Context(), &datasource.Ref{UID: "loki-1"}, nil)
		require.NoError(t, err)
		require.Same(t, second, got)
	})

	t.Run("set default overrides registration order", func(t *testing.T) {
		t.Parallel()

		reg := datasource.NewRegistry()
		first := &mockInstance{ref: datasource.Ref{UID: "prom-1"}}
		second := &mockInstance{ref: datasource.Ref{UID: "loki-1"}}
		reg.Register(first)
		reg.SetDefault(second)

		got, err := reg.Resolve(t.Context(), nil, nil)
		require.NoError(t, err)
		require.Same(t, second, got)
	})

	t.Run("unknown uid returns an error", func(t *testing.T) {
		t.Parallel()

		reg := datasource.NewRegistry()
		reg.Register(&mockInstance{ref: datasource.Ref{UID: "prom-1"}})

		_, err := reg.Resolve(t.Context(), &datasource.Ref{UID: "nope"}, nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "not registered")
	})

	t.Run("no default registered returns an error", func(t *testing.T) {
		t.Parallel()

		reg := datasource.NewRegistry()
		_, err := reg.Resolve(t.Context(), nil, nil)
		require.Error(t, err)
	})
}
