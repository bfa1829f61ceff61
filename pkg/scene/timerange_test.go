package scene_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/the-cloud-source/scenes/pkg/data"
	"github.com/the-cloud-source/scenes/pkg/scene"
)

func TestScenes_Scene_TimeRange_SetValue(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	t.Run("notifies on change", func(t *testing.T) {
		t.Parallel()

		tr := scene.NewTimeRange(from, to)

		var got []data.TimeRange
		unsub := tr.OnChange(func(v data.TimeRange) { got = append(got, v) })
		defer unsub()

		next := data.TimeRange{From: from.Add(time.Hour), To: to.Add(time.Hour)}
		tr.SetValue(next)

		require.Equal(t, []data.TimeRange{next}, got)
		require.True(t, tr.Value().Equal(next))
	})

	t.Run("setting the same value does not notify", func(t *testing.T) {
		t.Parallel()

		tr := scene.NewTimeRange(from, to)

		var calls int
		unsub := tr.OnChange(func(data.TimeRange) { calls++ })
		defer unsub()

		tr.Set(from, to)
		require.Zero(t, calls)
	})

	t.Run("unsubscribed handlers are not called", func(t *testing.T) {
		t.Parallel()

		tr := scene.NewTimeRange(from, to)

		var calls int
		unsub := tr.OnChange(func(data.TimeRange) { calls++ })
		unsub()

		tr.Set(from, to.Add(time.Minute))
		require.Zero(t, calls)
	})
}

func TestScenes_Scene_Registry(t *testing.T) {
	t.Parallel()

	t.Run("register get deregister round trip", func(t *testing.T) {
		t.Parallel()

		reg := scene.NewRegistry()
		obj := &stubObject{key: scene.NewKey()}

		require.NoError(t, reg.Register(obj))

		got, ok := reg.Get(obj.key)
		require.True(t, ok)
		require.Same(t, scene.Object(obj), got)

		reg.Deregister(obj.key)
		_, ok = reg.Get(obj.key)
		require.False(t, ok)
	})

	t.Run("duplicate keys are rejected", func(t *testing.T) {
		t.Parallel()

		reg := scene.NewRegistry()
		obj := &stubObject{key: "node-1"}
		require.NoError(t, reg.Register(obj))
		require.Error(t, reg.Register(&stubObject{key: "node-1"}))
	})

	t.Run("keys are sorted", func(t *testing.T) {
		t.Parallel()

		reg := scene.NewRegistry()
		require.NoError(t, reg.Register(&stubObject{key: "b"}))
		require.NoError(t, reg.Register(&stubObject{key: "a"}))
		require.Equal(t, []string{"a", "b"}, reg.Keys())
	})
}

type stubObject struct {
	key    string
	active bool
}

func (s *stubObject) Key() string     { return s.key }
func (s *stubObject) Activate() error { s.active = true; return nil }
func (s *stubObject) Deactivate()     { s.active = false }
func (s *stubObject) IsActive() bool  { return s.active }
