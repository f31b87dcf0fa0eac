package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/JeevanMahesha/studio/internal/models"
	"golang.org/x/sync/errgroup"
)

// Pager отдаёт страницы по номеру поверх курсорного хранилища.
//
// Страница N>1 требует токен её начала. Если токен не закэширован, Pager пропускает
// документы от ближайшей известной страницы (в худшем случае (N-1)*size с начала)
// и запоминает полученный токен. Любая запись профиля должна вызвать Reset.
type Pager struct {
	cur       Cursor
	defSize   int32
	maxSize   int32
	maxTokens int

	mu     sync.Mutex
	gen    uint64
	tokens map[pageKey]string
}

type pageKey struct {
	plan string
	size int32
	page int32
}

// NewPager создаёт пейджер. maxTokens=0 отключает кэш токенов.
func NewPager(cur Cursor, defSize, maxSize int32, maxTokens int) *Pager {
	if defSize <= 0 {
		defSize = 10
	}
	if maxSize < defSize {
		maxSize = defSize
	}

	return &Pager{
		cur:       cur,
		defSize:   defSize,
		maxSize:   maxSize,
		maxTokens: maxTokens,
		tokens:    make(map[pageKey]string),
	}
}

// PageSize нормализует размер страницы: 0 -> по умолчанию, верхняя граница — max.
func (p *Pager) PageSize(size int32) int32 {
	if size <= 0 {
		return p.defSize
	}
	if size > p.maxSize {
		return p.maxSize
	}

	return size
}

// Page возвращает страницу page (с единицы) и общее число документов плана.
func (p *Pager) Page(ctx context.Context, plan Plan, page, size int32) (*models.ProfilePage, error) {
	const op = "storage.Pager.Page"

	size = p.PageSize(size)
	if page < 1 {
		page = 1
	}

	hash := plan.Hash()
	gen := p.generation()

	var (
		total   int64
		batch   Batch
		reached bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := p.cur.Count(gctx, plan)
		if err != nil {
			return err
		}
		total = n
		return nil
	})
	g.Go(func() error {
		start, ok, err := p.startToken(gctx, plan, hash, page, size, gen)
		if err != nil || !ok {
			return err
		}

		b, err := p.cur.Fetch(gctx, plan, start, int(size))
		if err != nil {
			return err
		}
		batch, reached = b, true
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := &models.ProfilePage{Items: []models.Profile{}, Total: total, Page: page, PageSize: size}
	if !reached {
		return out, nil
	}
	if len(batch.Items) > 0 {
		out.Items = batch.Items
	}

	if batch.Scanned == int(size) && int64(page)*int64(size) < total {
		out.NextPageToken = batch.Next
		p.remember(pageKey{plan: hash, size: size, page: page + 1}, batch.Next, gen)
	}

	return out, nil
}

// After возвращает страницу после токена (курсорный API).
// NextPageToken выдаётся для каждой полной страницы, поэтому последняя страница может быть пустой.
func (p *Pager) After(ctx context.Context, plan Plan, token string, size int32) (*models.ProfilePage, error) {
	const op = "storage.Pager.After"

	size = p.PageSize(size)

	var (
		total int64
		batch Batch
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := p.cur.Count(gctx, plan)
		if err != nil {
			return err
		}
		total = n
		return nil
	})
	g.Go(func() error {
		b, err := p.cur.Fetch(gctx, plan, token, int(size))
		if err != nil {
			return err
		}
		batch = b
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := &models.ProfilePage{Items: []models.Profile{}, Total: total, PageSize: size}
	if len(batch.Items) > 0 {
		out.Items = batch.Items
	}
	if batch.Scanned == int(size) {
		out.NextPageToken = batch.Next
	}

	return out, nil
}

// Reset сбрасывает кэш токенов. Вызывается после любой записи профиля.
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.tokens = make(map[pageKey]string)
}

// startToken возвращает токен начала страницы; ok=false — страница за концом выдачи.
func (p *Pager) startToken(ctx context.Context, plan Plan, hash string, page, size int32, gen uint64) (string, bool, error) {
	if page == 1 {
		return "", true, nil
	}

	from, tok := p.nearest(hash, size, page)
	if from == page {
		return tok, true, nil
	}

	need := int(page-from) * int(size)
	next, skipped, err := p.cur.Discard(ctx, plan, tok, need)
	if err != nil {
		return "", false, err
	}
	if skipped < need {
		return "", false, nil
	}

	p.remember(pageKey{plan: hash, size: size, page: page}, next, gen)

	return next, true, nil
}

// nearest ищет ближайшую закэшированную страницу не дальше page.
// Без кэша — первая страница с пустым токеном.
func (p *Pager) nearest(hash string, size, page int32) (int32, string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for k := page; k > 1; k-- {
		if tok, ok := p.tokens[pageKey{plan: hash, size: size, page: k}]; ok {
			return k, tok
		}
	}

	return 1, ""
}

func (p *Pager) remember(k pageKey, tok string, gen uint64) {
	if p.maxTokens == 0 || tok == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Токен, полученный до записи, уже не соответствует данным.
	if gen != p.gen {
		return
	}
	if len(p.tokens) >= p.maxTokens {
		p.tokens = make(map[pageKey]string)
	}
	p.tokens[k] = tok
}

func (p *Pager) generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.gen
}
