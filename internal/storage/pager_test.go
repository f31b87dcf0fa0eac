package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/stretchr/testify/require"
)

// sliceCursor — курсорное хранилище поверх среза; токен — "hash:offset".
type sliceCursor struct {
	mu       sync.Mutex
	docs     []models.Profile
	invalid  map[string]bool
	discards []int
	fetches  int
	countErr error
}

func (s *sliceCursor) matches(plan Plan) []models.Profile {
	var out []models.Profile
	for _, d := range s.docs {
		if plan.Match(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return plan.Compare(out[i], out[j]) < 0 })
	return out
}

func (s *sliceCursor) offset(plan Plan, tok string) (int, error) {
	if tok == "" {
		return 0, nil
	}
	hash, off, ok := strings.Cut(tok, ":")
	if !ok || hash != plan.Hash() {
		return 0, ErrInvalidCursor
	}
	return strconv.Atoi(off)
}

func (s *sliceCursor) Fetch(_ context.Context, plan Plan, after string, limit int) (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++

	off, err := s.offset(plan, after)
	if err != nil {
		return Batch{}, err
	}
	all := s.matches(plan)
	var b Batch
	for i := off; i < len(all) && b.Scanned < limit; i++ {
		b.Scanned++
		if !s.invalid[all[i].ID] {
			b.Items = append(b.Items, all[i])
		}
	}
	if b.Scanned > 0 {
		b.Next = fmt.Sprintf("%s:%d", plan.Hash(), off+b.Scanned)
	}
	return b, nil
}

func (s *sliceCursor) Discard(_ context.Context, plan Plan, after string, n int) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discards = append(s.discards, n)

	off, err := s.offset(plan, after)
	if err != nil {
		return "", 0, err
	}
	all := s.matches(plan)
	skipped := min(n, max(len(all)-off, 0))
	return fmt.Sprintf("%s:%d", plan.Hash(), off+skipped), skipped, nil
}

func (s *sliceCursor) Count(_ context.Context, plan Plan) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return int64(len(s.matches(plan))), nil
}

func newSliceCursor(n int) *sliceCursor {
	c := &sliceCursor{invalid: map[string]bool{}}
	for i := 0; i < n; i++ {
		c.docs = append(c.docs, models.Profile{ID: fmt.Sprintf("p%02d", i), Name: fmt.Sprintf("Name %02d", i), StatusID: "new"})
	}
	return c
}

func namePlan(t *testing.T) Plan {
	t.Helper()
	p, err := NewPlan(models.ListQuery{SortBy: "name"}, PlanOptions{RejectedID: "rejected"})
	require.NoError(t, err)
	return p
}

func TestPager_PageSizeNormalization(t *testing.T) {
	t.Parallel()

	p := NewPager(newSliceCursor(0), 10, 100, 16)
	require.EqualValues(t, 10, p.PageSize(0))
	require.EqualValues(t, 10, p.PageSize(-5))
	require.EqualValues(t, 1, p.PageSize(1))
	require.EqualValues(t, 100, p.PageSize(1000))
}

func TestPager_FifteenProfilesPageSizeTen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPager(newSliceCursor(15), 10, 100, 16)
	plan := namePlan(t)

	first, err := p.Page(ctx, plan, 1, 10)
	require.NoError(t, err)
	require.Len(t, first.Items, 10)
	require.EqualValues(t, 15, first.Total)
	require.NotEmpty(t, first.NextPageToken)
	require.Equal(t, "Name 00", first.Items[0].Name)

	second, err := p.Page(ctx, plan, 2, 10)
	require.NoError(t, err)
	require.Len(t, second.Items, 5)
	require.EqualValues(t, 15, second.Total)
	require.Empty(t, second.NextPageToken)
	require.Equal(t, "Name 10", second.Items[0].Name)

	third, err := p.Page(ctx, plan, 3, 10)
	require.NoError(t, err)
	require.Empty(t, third.Items)
	require.NotNil(t, third.Items)
	require.EqualValues(t, 15, third.Total)
	require.EqualValues(t, 3, third.Page)
}

func TestPager_DiscardFetchAndTokenCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cur := newSliceCursor(30)
	p := NewPager(cur, 10, 100, 16)
	plan := namePlan(t)

	// Холодная страница 3: пропускаем 2*10 документов с начала.
	page, err := p.Page(ctx, plan, 3, 5)
	require.NoError(t, err)
	require.Equal(t, "Name 10", page.Items[0].Name)
	require.Equal(t, []int{10}, cur.discards)

	// Повтор той же страницы — токен из кэша, без пропуска.
	_, err = p.Page(ctx, plan, 3, 5)
	require.NoError(t, err)
	require.Equal(t, []int{10}, cur.discards)

	// Страница 4 известна из NextPageToken страницы 3.
	page, err = p.Page(ctx, plan, 4, 5)
	require.NoError(t, err)
	require.Equal(t, "Name 15", page.Items[0].Name)
	require.Equal(t, []int{10}, cur.discards)

	// Страница 6: пропуск от ближайшей известной (5) — одна страница.
	page, err = p.Page(ctx, plan, 6, 5)
	require.NoError(t, err)
	require.Equal(t, "Name 25", page.Items[0].Name)
	require.Equal(t, []int{10, 5}, cur.discards)

	// После Reset снова пропускаем с начала.
	p.Reset()
	_, err = p.Page(ctx, plan, 3, 5)
	require.NoError(t, err)
	require.Equal(t, []int{10, 5, 10}, cur.discards)
}

func TestPager_TokenCacheDisabled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cur := newSliceCursor(30)
	p := NewPager(cur, 10, 100, 0)
	plan := namePlan(t)

	for i := 0; i < 2; i++ {
		_, err := p.Page(ctx, plan, 2, 10)
		require.NoError(t, err)
	}
	require.Equal(t, []int{10, 10}, cur.discards)
}

func TestPager_DroppedDocumentsDoNotEndPaging(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cur := newSliceCursor(12)
	cur.invalid["p03"] = true
	p := NewPager(cur, 10, 100, 16)
	plan := namePlan(t)

	first, err := p.Page(ctx, plan, 1, 5)
	require.NoError(t, err)
	require.Len(t, first.Items, 4)
	require.NotEmpty(t, first.NextPageToken)

	second, err := p.Page(ctx, plan, 2, 5)
	require.NoError(t, err)
	require.Len(t, second.Items, 5)
	require.Equal(t, "Name 05", second.Items[0].Name)
}

func TestPager_After(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPager(newSliceCursor(7), 10, 100, 16)
	plan := namePlan(t)

	first, err := p.After(ctx, plan, "", 5)
	require.NoError(t, err)
	require.Len(t, first.Items, 5)
	require.EqualValues(t, 7, first.Total)

	second, err := p.After(ctx, plan, first.NextPageToken, 5)
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	require.Empty(t, second.NextPageToken)

	// Токен чужого плана.
	other, err := NewPlan(models.ListQuery{SortBy: "age"}, PlanOptions{})
	require.NoError(t, err)
	_, err = p.After(ctx, other, first.NextPageToken, 5)
	require.ErrorIs(t, err, ErrInvalidCursor)
}

func TestPager_CountErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	cur := newSliceCursor(3)
	cur.countErr = boom
	p := NewPager(cur, 10, 100, 16)

	_, err := p.Page(context.Background(), namePlan(t), 1, 10)
	require.ErrorIs(t, err, boom)
}
