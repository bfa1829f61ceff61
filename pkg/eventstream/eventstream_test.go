package eventstream_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/the-cloud-source/scenes/pkg/eventstream"
)

func TestScenes_Eventstream_Subject_Emit(t *testing.T) {
	t.Parallel()

	t.Run("delivers values in order to all subscribers", func(t *testing.T) {
		t.Parallel()

		s := eventstream.New[int](false)

		var first, second []int
		s.Subscribe(func(v int) { first = append(first, v) })
		s.Subscribe(func(v int) { second = append(second, v) })

		s.Emit(1)
		s.Emit(2)
		s.Emit(3)

		require.Equal(t, []int{1, 2, 3}, first)
		require.Equal(t, []int{1, 2, 3}, second)
	})

	t.Run("concurrent emits are serialized", func(t *testing.T) {
		t.Parallel()

		s := eventstream.New[int](false)

		var mu sync.Mutex
		var got []int
		s.Subscribe(func(v int) {
			mu.Lock()
			got = append(got, v)
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Emit(i)
			}()
		}
		wg.Wait()

		require.Len(t, got, 50)
	})
}

func TestScenes_Eventstream_Subject_Subscribe(t *testing.T) {
	t.Parallel()

	t.Run("replay delivers the latest value to late subscribers", func(t *testing.T) {
		t.Parallel()

		s := eventstream.New[string](true)
		s.Emit("first")
		s.Emit("second")

		var got []string
		s.Subscribe(func(v string) { got = append(got, v) })

		require.Equal(t, []string{"second"}, got)

		s.Emit("third")
		require.Equal(t, []string{"second", "third"}, got)
	})

	t.Run("no replay without a prior emission", func(t *testing.T) {
		t.Parallel()

		s := eventstream.New[string](true)

		var got []string
		s.Subscribe(func(v string) { got = append(got, v) })
		require.Empty(t, got)
	})

	t.Run("replay disabled leaves late subscribers empty", func(t *testing.T) {
		t.Parallel()

		s := eventstream.New[string](false)
		s.Emit("first")

		var got []string
		s.Subscribe(func(v string) { got = append(got, v) })
		require.Empty(t, got)
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		t.Parallel()

		s := eventstream.New[int](false)

		var got []int
		unsub := s.Subscribe(func(v int) { got = append(got, v) })
		s.Emit(1)
		unsub()
		s.Emit(2)

		require.Equal(t, []int{1}, got)
		require.Zero(t, s.Len())
	})
}

func TestScenes_Eventstream_Subject_ReplayLatest(t *testing.T) {
	t.Parallel()

	t.Run("re-delivers to current subscribers", func(t *testing.T) {
		t.Parallel()

		s := eventstream.New[int](true)

		var got []int
		s.Subscribe(func(v int) { got = append(got, v) })

		require.False(t, s.ReplayLatest())

		s.Emit(7)
		require.True(t, s.ReplayLatest())
		require.Equal(t, []int{7, 7}, got)
	})

	t.Run("latest reports the stored value", func(t *testing.T) {
		t.Parallel()

		s := eventstream.New[int](false)
		_, ok := s.Latest()
		require.False(t, ok)

		s.Emit(42)
		v, ok := s.Latest()
		require.True(t, ok)
		require.Equal(t, 42, v)
	})
}
