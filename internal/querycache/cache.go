// querycache — кэш результатов запросов к хранилищу.
//
// Запрос идентифицируется Key. Одинаковые одновременные запросы делят одну загрузку
// (singleflight). Результат свежий StaleTime; устаревший отдаётся сразу и обновляется
// в фоне. Invalidate помечает семейство ключей устаревшим, не удаляя значения:
// предыдущие данные видны, пока не придёт новая загрузка.
package querycache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/JeevanMahesha/studio/pkg/log"
	"golang.org/x/sync/singleflight"
)

// Loader загружает значение ключа из хранилища.
type Loader func(ctx context.Context) (any, error)

// Entry — снимок записи кэша.
type Entry struct {
	Value     any
	FetchedAt time.Time
	// Stale — запись инвалидирована или старше StaleTime.
	Stale bool
	// Invalidated — запись устарела из-за записи в хранилище, а не по времени.
	Invalidated bool
}

// Result — итог загрузки.
type Result struct {
	Value any
	Err   error
}

// Options — настройки кэша.
type Options struct {
	// StaleTime — окно свежести; 0 — значение устаревает сразу.
	StaleTime time.Duration
	// GCTime — записи без обращений дольше GCTime удаляются Sweep; 0 — без GC.
	GCTime time.Duration
	// RefreshTimeout — дедлайн одной загрузки; 0 — 10s.
	RefreshTimeout time.Duration
	// Clock — источник времени (тесты).
	Clock func() time.Time
	// Metrics — счётчики; nil — без метрик.
	Metrics *Metrics
}

type entry struct {
	key       Key
	value     any
	fetchedAt time.Time
	lastUsed  time.Time
	invalid   bool
}

type call struct {
	key  Key
	done chan struct{}
	res  Result
}

// Cache — потокобезопасный кэш ключ -> запись с отдельной картой загрузок в полёте.
type Cache struct {
	opts Options

	mu       sync.Mutex
	entries  map[string]*entry
	inflight map[string]*call
	// gens — поколение ключа; растёт при инвалидации.
	// Загрузка, начатая в старом поколении, не записывает значение как свежее.
	gens map[string]uint64

	sf singleflight.Group
}

// New создаёт кэш.
func New(opts Options) *Cache {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 10 * time.Second
	}

	return &Cache{
		opts:     opts,
		entries:  make(map[string]*entry),
		inflight: make(map[string]*call),
		gens:     make(map[string]uint64),
	}
}

// Get возвращает запись без загрузки.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return Entry{}, false
	}

	now := c.opts.Clock()
	e.lastUsed = now

	return Entry{
		Value:       e.value,
		FetchedAt:   e.fetchedAt,
		Stale:       e.invalid || now.Sub(e.fetchedAt) >= c.opts.StaleTime,
		Invalidated: e.invalid,
	}, true
}

// Put кладёт свежее значение.
func (c *Cache) Put(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ks := key.String()
	c.storeLocked(key, ks, value, c.gens[ks])
}

// Invalidate помечает устаревшими все записи семейства prefix и возвращает их число.
// Загрузки семейства, уже идущие в полёте, тоже не запишутся как свежие.
func (c *Cache) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for ks, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.invalid = true
		c.gens[ks]++
		n++
	}
	for ks, cl := range c.inflight {
		if _, counted := c.entries[ks]; !counted && cl.key.HasPrefix(prefix) {
			c.gens[ks]++
		}
	}

	c.opts.Metrics.invalidate(n)

	return n
}

// InFlight возвращает канал с результатом загрузки ключа, если она идёт.
func (c *Cache) InFlight(key Key) (<-chan Result, bool) {
	c.mu.Lock()
	cl, ok := c.inflight[key.String()]
	c.mu.Unlock()

	if !ok {
		return nil, false
	}

	out := make(chan Result, 1)
	go func() {
		<-cl.done
		out <- cl.res
	}()

	return out, true
}

// Load запускает загрузку ключа или присоединяется к идущей.
// Присоединение возможно только к загрузке того же поколения: после Invalidate
// вызов начинает новую загрузку, а не ждёт результат, прочитанный до записи.
// Загрузка не зависит от отмены ctx вызывающего; из ctx берётся только логгер.
func (c *Cache) Load(ctx context.Context, key Key, load Loader) <-chan Result {
	ks := key.String()
	base := context.WithoutCancel(ctx)

	c.mu.Lock()
	gen := c.gens[ks]
	c.mu.Unlock()

	ch := c.sf.DoChan(ks+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		cl := &call{key: key, done: make(chan struct{})}
		c.mu.Lock()
		c.inflight[ks] = cl
		c.mu.Unlock()

		lctx, cancel := context.WithTimeout(base, c.opts.RefreshTimeout)
		defer cancel()

		v, err := load(lctx)
		c.opts.Metrics.load(key.Kind, err)

		c.mu.Lock()
		if err == nil {
			c.storeLocked(key, ks, v, gen)
		}
		if c.inflight[ks] == cl {
			delete(c.inflight, ks)
		}
		c.mu.Unlock()

		cl.res = Result{Value: v, Err: err}
		close(cl.done)

		if err != nil {
			log.From(ctx).With("op", "querycache.Load").Warn("load failed", "key", ks, "err", err)
		}

		return v, err
	})

	out := make(chan Result, 1)
	go func() {
		r := <-ch
		out <- Result{Value: r.Val, Err: r.Err}
	}()

	return out
}

// Fetch возвращает значение ключа:
//   - свежая запись — из кэша;
//   - устаревшая по времени — из кэша сразу, с фоновым обновлением;
//   - инвалидированная или отсутствующая — загрузка (общая для одновременных вызовов).
func Fetch[T any](ctx context.Context, c *Cache, key Key, load func(ctx context.Context) (T, error)) (T, error) {
	v, _, err := FetchState(ctx, c, key, load)
	return v, err
}

// State — откуда взят результат Fetch.
type State string

const (
	StateHit   State = "hit"
	StateStale State = "stale"
	StateMiss  State = "miss"
)

// FetchState работает как Fetch и дополнительно сообщает источник результата.
func FetchState[T any](ctx context.Context, c *Cache, key Key, load func(ctx context.Context) (T, error)) (T, State, error) {
	var zero T

	loader := func(ctx context.Context) (any, error) { return load(ctx) }

	if e, ok := c.Get(key); ok && !e.Invalidated {
		if v, typed := e.Value.(T); typed {
			if !e.Stale {
				c.opts.Metrics.lookup(key.Kind, string(StateHit))
				return v, StateHit, nil
			}

			c.opts.Metrics.lookup(key.Kind, string(StateStale))
			_ = c.Load(ctx, key, loader)
			return v, StateStale, nil
		}
	}

	c.opts.Metrics.lookup(key.Kind, string(StateMiss))

	select {
	case r := <-c.Load(ctx, key, loader):
		if r.Err != nil {
			return zero, StateMiss, r.Err
		}
		v, _ := r.Value.(T)
		return v, StateMiss, nil
	case <-ctx.Done():
		return zero, StateMiss, ctx.Err()
	}
}

// Sweep удаляет записи без обращений дольше GCTime и возвращает их число.
func (c *Cache) Sweep() int {
	if c.opts.GCTime <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Clock()
	n := 0
	for ks, e := range c.entries {
		if _, busy := c.inflight[ks]; busy || now.Sub(e.lastUsed) < c.opts.GCTime {
			continue
		}
		delete(c.entries, ks)
		delete(c.gens, ks)
		n++
	}

	c.opts.Metrics.evict(n)

	return n
}

// Run периодически вызывает Sweep до отмены ctx.
func (c *Cache) Run(ctx context.Context) {
	if c.opts.GCTime <= 0 {
		return
	}

	interval := c.opts.GCTime / 2
	if interval < time.Second {
		interval = time.Second
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := c.Sweep(); n > 0 {
				log.From(ctx).Debug("querycache sweep", "evicted", n)
			}
		}
	}
}

// Len — число записей (для тестов и метрик).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// storeLocked записывает значение поколения gen. Значение старого поколения
// не затирает уже лежащую запись: она не старее его.
func (c *Cache) storeLocked(key Key, ks string, value any, gen uint64) {
	now := c.opts.Clock()

	e, ok := c.entries[ks]
	if ok && gen != c.gens[ks] {
		return
	}
	if !ok {
		e = &entry{key: key}
		c.entries[ks] = e
	}

	e.value = value
	e.fetchedAt = now
	e.lastUsed = now
	e.invalid = gen != c.gens[ks]
}
