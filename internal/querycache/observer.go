package querycache

import (
	"context"
	"sync"
)

// Snapshot — то, что видит потребитель (экран списка) в данный момент.
type Snapshot struct {
	Key   Key
	Value any
	// Placeholder — показаны данные предыдущего ключа, пока грузится текущий.
	Placeholder bool
	// Loading — идёт загрузка текущего ключа.
	Loading bool
	// Invalidated — показано значение, инвалидированное записью; новое грузится.
	Invalidated bool
	Err     error
	// Token — номер запроса, к которому относится снимок.
	Token uint64
}

// Observer следит за одним «экраном»: последний запрошенный ключ и его данные.
//
// Пока грузится новый ключ, виден предыдущий результат (кроме самой первой загрузки).
// Ответ на запрос, который уже сменился более новым, отбрасывается.
type Observer struct {
	c        *Cache
	onChange func(Snapshot)

	mu      sync.Mutex
	token   uint64
	snap    Snapshot
	hasData bool
	waiters []chan struct{}
}

// NewObserver создаёт наблюдателя. onChange (может быть nil) вызывается
// при каждом изменении снимка вне блокировки.
func NewObserver(c *Cache, onChange func(Snapshot)) *Observer {
	return &Observer{c: c, onChange: onChange}
}

// Watch переключает наблюдателя на key и возвращает снимок сразу, не дожидаясь загрузки.
func (o *Observer) Watch(ctx context.Context, key Key, load Loader) Snapshot {
	o.mu.Lock()
	o.token++
	token := o.token

	entry, cached := o.c.Get(key)

	switch {
	case cached && !entry.Stale:
		o.snap = Snapshot{Key: key, Value: entry.Value, Token: token}
		o.hasData = true
	case cached:
		o.snap = Snapshot{Key: key, Value: entry.Value, Loading: true, Invalidated: entry.Invalidated, Token: token}
		o.hasData = true
	case o.hasData:
		o.snap = Snapshot{Key: key, Value: o.snap.Value, Placeholder: true, Loading: true, Token: token}
	default:
		o.snap = Snapshot{Key: key, Loading: true, Token: token}
	}

	snap := o.snap
	fresh := cached && !entry.Stale
	if fresh {
		o.releaseLocked()
	}
	o.mu.Unlock()

	o.notify(snap)

	if !fresh {
		ch := o.c.Load(ctx, key, load)
		go o.settle(key, token, ch)
	}

	return snap
}

func (o *Observer) settle(key Key, token uint64, ch <-chan Result) {
	r := <-ch

	o.mu.Lock()
	if token != o.token {
		o.mu.Unlock()
		o.c.opts.Metrics.discard()
		return
	}

	if r.Err != nil {
		// Ошибка показывается вместо загрузки; предыдущие данные остаются видны.
		o.snap = Snapshot{Key: key, Value: o.snap.Value, Placeholder: o.snap.Placeholder, Err: r.Err, Token: token}
	} else {
		o.snap = Snapshot{Key: key, Value: r.Value, Token: token}
		o.hasData = true
	}
	snap := o.snap
	o.releaseLocked()
	o.mu.Unlock()

	o.notify(snap)
}

// Current возвращает текущий снимок.
func (o *Observer) Current() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.snap
}

// Await ждёт, пока текущий запрос не завершится, и возвращает снимок.
// Если за время ожидания ключ сменился, ждёт уже новый запрос.
func (o *Observer) Await(ctx context.Context) (Snapshot, error) {
	for {
		o.mu.Lock()
		if !o.snap.Loading {
			snap := o.snap
			o.mu.Unlock()
			return snap, nil
		}
		w := make(chan struct{})
		o.waiters = append(o.waiters, w)
		o.mu.Unlock()

		select {
		case <-w:
		case <-ctx.Done():
			return o.Current(), ctx.Err()
		}
	}
}

func (o *Observer) releaseLocked() {
	for _, w := range o.waiters {
		close(w)
	}
	o.waiters = nil
}

func (o *Observer) notify(s Snapshot) {
	if o.onChange != nil {
		o.onChange(s)
	}
}
