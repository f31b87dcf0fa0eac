package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// manualClock — часы, которые двигает тест.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *manualClock {
	return &manualClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newCache(t *testing.T, clk *manualClock) (*Cache, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	return New(Options{StaleTime: time.Minute, GCTime: 5 * time.Minute, Clock: clk.Now, Metrics: m}), m
}

func constLoader[T any](calls *atomic.Int32, v T) func(context.Context) (T, error) {
	return func(context.Context) (T, error) {
		calls.Add(1)
		return v, nil
	}
}

func TestKey_StringAndPrefix(t *testing.T) {
	t.Parallel()

	k := NewKey("profiles", "Ai", "", "updatedAt", "1", "10")
	require.Equal(t, "profiles|Ai||updatedAt|1|10", k.String())
	require.Equal(t, `profiles|a\|b`, NewKey("profiles", "a|b").String())
	require.NotEqual(t, NewKey("profiles", "a|b").String(), NewKey("profiles", "a", "b").String())

	require.True(t, k.HasPrefix(NewKey("profiles")))
	require.True(t, k.HasPrefix(NewKey("profiles", "Ai")))
	require.False(t, k.HasPrefix(NewKey("profile")))
	require.False(t, NewKey("profile", "1").HasPrefix(NewKey("profile", "12")))
	require.False(t, NewKey("profiles").HasPrefix(NewKey("profiles", "Ai")))
}

func TestFetch_DeduplicatesConcurrentLoads(t *testing.T) {
	t.Parallel()

	c, m := newCache(t, newClock())
	key := NewKey("profiles", "p1")

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "data", nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = Fetch(context.Background(), c, key, load)
	}()

	<-started
	_, inFlight := c.InFlight(key)
	require.True(t, inFlight)

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Fetch(context.Background(), c, key, load)
		}(i)
	}

	// Даём остальным вызовам присоединиться к загрузке.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, calls.Load())
	for i := range results {
		require.NoError(t, errs[i])
		require.Equal(t, "data", results[i])
	}
	require.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("profiles", "ok")))
}

func TestFetch_FreshHitSkipsLoader(t *testing.T) {
	t.Parallel()

	clk := newClock()
	c, m := newCache(t, clk)
	key := NewKey("statuses")
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		v, state, err := FetchState(context.Background(), c, key, constLoader(&calls, 42))
		require.NoError(t, err)
		require.Equal(t, 42, v)
		if i == 0 {
			require.Equal(t, StateMiss, state)
		} else {
			require.Equal(t, StateHit, state)
		}
	}

	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, 2.0, testutil.ToFloat64(m.lookups.WithLabelValues("statuses", "hit")))
}

func TestFetch_StaleWhileRevalidate(t *testing.T) {
	t.Parallel()

	clk := newClock()
	c, _ := newCache(t, clk)
	key := NewKey("statuses")

	_, err := Fetch(context.Background(), c, key, func(context.Context) (string, error) { return "v1", nil })
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)

	refreshed := make(chan struct{})
	v, state, err := FetchState(context.Background(), c, key, func(context.Context) (string, error) {
		defer close(refreshed)
		return "v2", nil
	})
	require.NoError(t, err)
	require.Equal(t, "v1", v, "устаревшее значение отдаётся сразу")
	require.Equal(t, StateStale, state)

	<-refreshed
	require.Eventually(t, func() bool {
		e, ok := c.Get(key)
		return ok && e.Value == "v2" && !e.Stale
	}, time.Second, 5*time.Millisecond)
}

func TestInvalidate_MarksFamilyStaleAndKeepsValue(t *testing.T) {
	t.Parallel()

	c, m := newCache(t, newClock())
	c.Put(NewKey("profiles", "a", "1"), "page-a1")
	c.Put(NewKey("profiles", "b", "1"), "page-b1")
	c.Put(NewKey("profile", "1"), "one")
	c.Put(NewKey("profile", "2"), "two")

	require.Equal(t, 2, c.Invalidate(NewKey("profiles")))
	require.Equal(t, 1, c.Invalidate(NewKey("profile", "1")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.invalidated))

	e, ok := c.Get(NewKey("profiles", "a", "1"))
	require.True(t, ok)
	require.True(t, e.Stale)
	require.Equal(t, "page-a1", e.Value)

	e, _ = c.Get(NewKey("profile", "1"))
	require.True(t, e.Stale)
	e, _ = c.Get(NewKey("profile", "2"))
	require.False(t, e.Stale)

	require.Zero(t, c.Invalidate(NewKey("statuses")))
}

func TestInvalidate_DuringLoadDoesNotStoreFresh(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, newClock())
	key := NewKey("profiles", "q")

	started := make(chan struct{})
	release := make(chan struct{})
	ch := c.Load(context.Background(), key, func(context.Context) (any, error) {
		close(started)
		<-release
		return "old-read", nil
	})

	<-started
	c.Invalidate(NewKey("profiles"))
	close(release)

	r := <-ch
	require.NoError(t, r.Err)

	e, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, "old-read", e.Value)
	require.True(t, e.Stale, "значение, прочитанное до записи, не считается свежим")
}

func TestInFlight(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, newClock())
	key := NewKey("statuses")

	_, ok := c.InFlight(key)
	require.False(t, ok)

	started := make(chan struct{})
	release := make(chan struct{})
	c.Load(context.Background(), key, func(context.Context) (any, error) {
		close(started)
		<-release
		return "s", nil
	})

	<-started
	wait, ok := c.InFlight(key)
	require.True(t, ok)
	close(release)

	r := <-wait
	require.NoError(t, r.Err)
	require.Equal(t, "s", r.Value)

	require.Eventually(t, func() bool {
		_, busy := c.InFlight(key)
		return !busy
	}, time.Second, 5*time.Millisecond)
}

func TestFetch_CallerCancelDoesNotCancelSharedLoad(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, newClock())
	key := NewKey("profiles", "slow")

	release := make(chan struct{})
	var loaderErr atomic.Value
	load := func(ctx context.Context) (string, error) {
		<-release
		if err := ctx.Err(); err != nil {
			loaderErr.Store(err)
		}
		return "done", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, key, load)
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		_, busy := c.InFlight(key)
		return busy
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		e, ok := c.Get(key)
		return ok && e.Value == "done"
	}, time.Second, 5*time.Millisecond)
	require.Nil(t, loaderErr.Load())
}

func TestFetch_ErrorIsNotCached(t *testing.T) {
	t.Parallel()

	c, m := newCache(t, newClock())
	key := NewKey("profile", "x")
	boom := errors.New("store unavailable")

	_, err := Fetch(context.Background(), c, key, func(context.Context) (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	_, ok := c.Get(key)
	require.False(t, ok)
	require.Equal(t, 1.0, testutil.ToFloat64(m.loads.WithLabelValues("profile", "error")))

	v, err := Fetch(context.Background(), c, key, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestSweep_RemovesUnusedEntries(t *testing.T) {
	t.Parallel()

	clk := newClock()
	c, m := newCache(t, clk)
	c.Put(NewKey("profiles", "old"), 1)
	clk.Advance(4 * time.Minute)
	c.Put(NewKey("profiles", "new"), 2)
	clk.Advance(2 * time.Minute)

	require.Equal(t, 1, c.Sweep())
	require.Equal(t, 1, c.Len())
	require.Equal(t, 1.0, testutil.ToFloat64(m.evicted))

	_, ok := c.Get(NewKey("profiles", "old"))
	require.False(t, ok)
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	c := New(Options{GCTime: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run не завершился после отмены контекста")
	}
}

func TestFetch_InvalidatedEntryIsRefetched(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, newClock())
	key := NewKey("profiles", "1")
	c.Put(key, "before-write")
	c.Invalidate(NewKey("profiles"))

	e, ok := c.Get(key)
	require.True(t, ok)
	require.True(t, e.Invalidated)

	v, state, err := FetchState(context.Background(), c, key, func(context.Context) (string, error) {
		return "after-write", nil
	})
	require.NoError(t, err)
	require.Equal(t, StateMiss, state)
	require.Equal(t, "after-write", v, "после записи отдаётся перечитанное значение")

	e, _ = c.Get(key)
	require.False(t, e.Stale)
	require.False(t, e.Invalidated)
}

func TestFetch_AfterInvalidateDoesNotJoinEarlierLoad(t *testing.T) {
	t.Parallel()

	c, _ := newCache(t, newClock())
	key := NewKey("profiles", "q")

	var version atomic.Int32
	version.Store(1)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	load := func(context.Context) (int32, error) {
		v := version.Load()
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return v, nil
	}

	first := make(chan int32, 1)
	go func() {
		v, _ := Fetch(context.Background(), c, key, load)
		first <- v
	}()

	<-started
	version.Store(2)
	c.Invalidate(NewKey("profiles"))

	v, err := Fetch(context.Background(), c, key, load)
	require.NoError(t, err)
	require.Equal(t, int32(2), v, "чтение после записи не получает результат загрузки, начатой до неё")
	require.Equal(t, int32(2), calls.Load())

	close(release)
	require.Equal(t, int32(1), <-first)

	// Поздний ответ старой загрузки не затирает новое значение.
	e, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, int32(2), e.Value)
	require.False(t, e.Stale)
}
