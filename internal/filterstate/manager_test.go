package filterstate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/stretchr/testify/require"
)

func TestDefaultAndNormalize(t *testing.T) {
	t.Parallel()

	require.Equal(t, State{CurrentPage: 1, SortBy: "updatedAt"}, Default())

	st := State{SearchTerm: "Ra", CurrentPage: 0, SortBy: "bogus"}.Normalize()
	require.Equal(t, int32(1), st.CurrentPage)
	require.Equal(t, "updatedAt", st.SortBy)
	require.Equal(t, "Ra", st.SearchTerm)

	st = State{CurrentPage: 3, SortBy: "-age"}.Normalize()
	require.Equal(t, int32(3), st.CurrentPage)
	require.Equal(t, "-age", st.SortBy)

	q := State{SearchTerm: "A", StatusFilter: "new", CurrentPage: 2, SortBy: "name"}.Query(10)
	require.Equal(t, models.ListQuery{SearchTerm: "A", Status: "new", SortBy: "name", Page: 2, PageSize: 10}, q)
}

func newManager() *Manager {
	return NewManager(NewMemoryStore())
}

func TestManager_NewSessionHasDefaults(t *testing.T) {
	t.Parallel()

	st, err := newManager().State(context.Background())
	require.NoError(t, err)
	require.Equal(t, Default(), st)
}

func TestManager_FilterChangesResetPage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cases := []struct {
		name  string
		apply func(m *Manager) (State, error)
		check func(t *testing.T, st State)
	}{
		{
			name:  "search term",
			apply: func(m *Manager) (State, error) { return m.SetSearchTerm(ctx, "Ra") },
			check: func(t *testing.T, st State) { require.Equal(t, "Ra", st.SearchTerm) },
		},
		{
			name:  "status filter",
			apply: func(m *Manager) (State, error) { return m.SetStatusFilter(ctx, models.StatusFilter("new")) },
			check: func(t *testing.T, st State) { require.Equal(t, models.StatusFilter("new"), st.StatusFilter) },
		},
		{
			name:  "sort",
			apply: func(m *Manager) (State, error) { return m.SetSortBy(ctx, "-age") },
			check: func(t *testing.T, st State) { require.Equal(t, "-age", st.SortBy) },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := newManager()
			_, err := m.SetPage(ctx, 4)
			require.NoError(t, err)

			st, err := tc.apply(m)
			require.NoError(t, err)
			require.Equal(t, int32(1), st.CurrentPage)
			tc.check(t, st)

			stored, err := m.State(ctx)
			require.NoError(t, err)
			require.Equal(t, st, stored)
		})
	}
}

func TestManager_SetPageAndRebalanceKeepFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager()

	_, err := m.SetSearchTerm(ctx, "Ra")
	require.NoError(t, err)

	st, err := m.SetPage(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, int32(3), st.CurrentPage)
	require.Equal(t, "Ra", st.SearchTerm)

	st, err = m.Rebalance(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int32(2), st.CurrentPage)
	require.Equal(t, "Ra", st.SearchTerm)
}

func TestManager_ApplyPatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager()

	term := "Ka"
	page := int32(5)
	st, err := m.Apply(ctx, Patch{SearchTerm: &term, CurrentPage: &page})
	require.NoError(t, err)
	require.Equal(t, "Ka", st.SearchTerm)
	require.Equal(t, int32(5), st.CurrentPage, "явная страница применяется после сброса")

	empty := ""
	st, err = m.Apply(ctx, Patch{SortBy: &empty})
	require.NoError(t, err)
	require.Equal(t, "updatedAt", st.SortBy)
	require.Equal(t, int32(1), st.CurrentPage)
}

func TestManager_RejectsInvalidValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager()

	_, err := m.SetPage(ctx, 0)
	require.ErrorIs(t, err, ErrInvalidState)
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Contains(t, verr.Fields, "currentPage")

	_, err = m.SetSortBy(ctx, "mobileNumber")
	require.ErrorIs(t, err, ErrInvalidState)
	require.ErrorIs(t, err, models.ErrValidation)

	st, err := m.State(ctx)
	require.NoError(t, err)
	require.Equal(t, Default(), st, "ошибочные значения не сохраняются")
}

func TestManager_Clear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager()

	_, err := m.SetStatusFilter(ctx, models.StatusIncludeAll)
	require.NoError(t, err)
	_, err = m.SetPage(ctx, 7)
	require.NoError(t, err)

	st, err := m.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, Default(), st)

	st, err = m.State(ctx)
	require.NoError(t, err)
	require.Equal(t, Default(), st)
}

func TestManager_ConcurrentUpdatesAreSerialized(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := newManager()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.SetSearchTerm(ctx, "A")
		}()
	}
	wg.Wait()

	st, err := m.State(ctx)
	require.NoError(t, err)
	require.Equal(t, "A", st.SearchTerm)
	require.Equal(t, int32(1), st.CurrentPage)
}

func TestRegistry_OneManagerPerSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewRegistry(NewMemorySessions())

	require.Same(t, r.Session("a"), r.Session("a"))
	require.NotSame(t, r.Session("a"), r.Session("b"))

	_, err := r.Session("a").SetSearchTerm(ctx, "Ra")
	require.NoError(t, err)

	st, err := r.Session("b").State(ctx)
	require.NoError(t, err)
	require.Equal(t, Default(), st, "сессии независимы")
}

func TestRegistry_ForgetReleasesSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sessions := NewMemorySessions()
	r := NewRegistry(sessions)

	before := r.Session("a")
	_, err := before.SetSearchTerm(ctx, "Ra")
	require.NoError(t, err)
	r.Session("b")
	require.Equal(t, 2, r.Len())
	require.Equal(t, 2, sessions.Len())

	r.Forget("a")
	require.Equal(t, 1, r.Len())
	require.Equal(t, 1, sessions.Len())

	after := r.Session("a")
	require.NotSame(t, before, after)
	st, err := after.State(ctx)
	require.NoError(t, err)
	require.Equal(t, Default(), st, "состояние в памяти освобождено вместе с сессией")
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
