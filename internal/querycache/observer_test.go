package querycache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func valueLoader(v any) Loader {
	return func(context.Context) (any, error) { return v, nil }
}

func gatedLoader(v any, gate <-chan struct{}) Loader {
	return func(context.Context) (any, error) {
		<-gate
		return v, nil
	}
}

func TestObserver_FirstFetchHasNoPlaceholder(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, newClock())
	o := NewObserver(c, nil)

	gate := make(chan struct{})
	snap := o.Watch(context.Background(), NewKey("profiles", "1"), gatedLoader("page1", gate))
	require.True(t, snap.Loading)
	require.False(t, snap.Placeholder)
	require.Nil(t, snap.Value)

	close(gate)
	snap, err := o.Await(context.Background())
	require.NoError(t, err)
	require.False(t, snap.Loading)
	require.Equal(t, "page1", snap.Value)
}

func TestObserver_PlaceholderRetention(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, newClock())
	o := NewObserver(c, nil)
	ctx := context.Background()

	o.Watch(ctx, NewKey("profiles", "1"), valueLoader("page1"))
	_, err := o.Await(ctx)
	require.NoError(t, err)

	gate := make(chan struct{})
	snap := o.Watch(ctx, NewKey("profiles", "2"), gatedLoader("page2", gate))
	require.True(t, snap.Loading)
	require.True(t, snap.Placeholder)
	require.Equal(t, "page1", snap.Value, "пока грузится страница 2, видна страница 1")

	close(gate)
	snap, err = o.Await(ctx)
	require.NoError(t, err)
	require.False(t, snap.Placeholder)
	require.Equal(t, "page2", snap.Value)

	// Возврат на закэшированную страницу — сразу, без загрузки.
	snap = o.Watch(ctx, NewKey("profiles", "1"), valueLoader("unused"))
	require.False(t, snap.Loading)
	require.Equal(t, "page1", snap.Value)
}

func TestObserver_DiscardsSupersededResponse(t *testing.T) {
	t.Parallel()

	c, m := newCache(t, newClock())
	var (
		mu      sync.Mutex
		changes []Snapshot
	)
	o := NewObserver(c, func(s Snapshot) {
		mu.Lock()
		changes = append(changes, s)
		mu.Unlock()
	})
	ctx := context.Background()

	slowGate := make(chan struct{})
	o.Watch(ctx, NewKey("profiles", "slow"), gatedLoader("slow", slowGate))
	o.Watch(ctx, NewKey("profiles", "fast"), valueLoader("fast"))

	snap, err := o.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, "fast", snap.Value)

	close(slowGate)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.discarded) == 1
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, "fast", o.Current().Value)

	// Ответ сохранился в кэше, хотя экран его не показал.
	e, ok := c.Get(NewKey("profiles", "slow"))
	require.True(t, ok)
	require.Equal(t, "slow", e.Value)

	mu.Lock()
	defer mu.Unlock()
	for _, s := range changes {
		require.NotEqual(t, "slow", s.Value)
	}
}

func TestObserver_ErrorKeepsPreviousData(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, newClock())
	o := NewObserver(c, nil)
	ctx := context.Background()

	o.Watch(ctx, NewKey("profiles", "1"), valueLoader("page1"))
	_, err := o.Await(ctx)
	require.NoError(t, err)

	boom := errors.New("unavailable")
	o.Watch(ctx, NewKey("profiles", "2"), func(context.Context) (any, error) { return nil, boom })
	snap, err := o.Await(ctx)
	require.NoError(t, err)
	require.ErrorIs(t, snap.Err, boom)
	require.Equal(t, "page1", snap.Value)
	require.True(t, snap.Placeholder)
}

func TestObserver_StaleHitShowsValueWhileRefreshing(t *testing.T) {
	t.Parallel()

	clk := newClock()
	c, _ := newCache(t, clk)
	o := NewObserver(c, nil)
	ctx := context.Background()
	key := NewKey("statuses")

	c.Put(key, "v1")
	c.Invalidate(key)

	gate := make(chan struct{})
	snap := o.Watch(ctx, key, gatedLoader("v2", gate))
	require.True(t, snap.Loading)
	require.False(t, snap.Placeholder)
	require.Equal(t, "v1", snap.Value)

	close(gate)
	snap, err := o.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, "v2", snap.Value)
}

func TestObserver_AwaitRespectsContext(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, newClock())
	o := NewObserver(c, nil)

	gate := make(chan struct{})
	defer close(gate)
	o.Watch(context.Background(), NewKey("profiles", "1"), gatedLoader("x", gate))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	snap, err := o.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, snap.Loading)
}
