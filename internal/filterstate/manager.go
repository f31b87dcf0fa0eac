package filterstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/pkg/log"
)

// Patch — частичное изменение состояния (PATCH /filters). nil — поле не меняется.
type Patch struct {
	SearchTerm   *string              `json:"searchTerm"`
	StatusFilter *models.StatusFilter `json:"statusFilter"`
	SortBy       *string              `json:"sortBy"`
	CurrentPage  *int32               `json:"currentPage"`
}

// Manager меняет состояние одной сессии.
//
// Смена поиска, фильтра статуса или сортировки возвращает на первую страницу.
// SetPage и Rebalance страницу не сбрасывают. Изменения одной сессии сериализуются.
type Manager struct {
	store Store
	mu    sync.Mutex
}

// NewManager создаёт менеджер поверх store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// State возвращает текущее состояние.
func (m *Manager) State(ctx context.Context) (State, error) {
	const op = "filterstate/Manager.State"

	st, err := m.store.Load(ctx)
	if err != nil {
		return State{}, fmt.Errorf("%s: %w", op, err)
	}

	return st, nil
}

// SetSearchTerm задаёт строку поиска и сбрасывает страницу.
func (m *Manager) SetSearchTerm(ctx context.Context, term string) (State, error) {
	return m.Apply(ctx, Patch{SearchTerm: &term})
}

// SetStatusFilter задаёт фильтр статуса и сбрасывает страницу.
func (m *Manager) SetStatusFilter(ctx context.Context, f models.StatusFilter) (State, error) {
	return m.Apply(ctx, Patch{StatusFilter: &f})
}

// SetSortBy задаёт сортировку и сбрасывает страницу.
func (m *Manager) SetSortBy(ctx context.Context, sortBy string) (State, error) {
	return m.Apply(ctx, Patch{SortBy: &sortBy})
}

// SetPage переходит на страницу page (>= 1).
func (m *Manager) SetPage(ctx context.Context, page int32) (State, error) {
	return m.Apply(ctx, Patch{CurrentPage: &page})
}

// Rebalance переводит на страницу page после удаления последней записи текущей страницы.
func (m *Manager) Rebalance(ctx context.Context, page int32) (State, error) {
	st, err := m.SetPage(ctx, page)
	if err == nil {
		log.From(ctx).Debug("filter page rebalanced", "page", page)
	}

	return st, err
}

// Apply применяет patch целиком: сначала поиск, фильтр и сортировку
// (каждое сбрасывает страницу), затем явную страницу.
func (m *Manager) Apply(ctx context.Context, p Patch) (State, error) {
	const op = "filterstate/Manager.Apply"

	if p.SortBy != nil && *p.SortBy != "" {
		if _, err := models.ParseSort(*p.SortBy); err != nil {
			return State{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidState, err)
		}
	}
	if p.CurrentPage != nil && *p.CurrentPage < 1 {
		return State{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidState, &models.ValidationError{
			Fields: map[string]string{"currentPage": "must be at least 1"},
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, err := m.store.Load(ctx)
	if err != nil {
		return State{}, fmt.Errorf("%s: load: %w", op, err)
	}

	if p.SearchTerm != nil {
		st.SearchTerm = *p.SearchTerm
		st.CurrentPage = 1
	}
	if p.StatusFilter != nil {
		st.StatusFilter = *p.StatusFilter
		st.CurrentPage = 1
	}
	if p.SortBy != nil {
		st.SortBy = *p.SortBy
		st.CurrentPage = 1
	}
	if p.CurrentPage != nil {
		st.CurrentPage = *p.CurrentPage
	}

	st = st.Normalize()
	if err := m.store.Save(ctx, st); err != nil {
		return State{}, fmt.Errorf("%s: save: %w", op, err)
	}

	return st, nil
}

// Clear сбрасывает все четыре значения разом.
func (m *Manager) Clear(ctx context.Context) (State, error) {
	const op = "filterstate/Manager.Clear"

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		return State{}, fmt.Errorf("%s: %w", op, err)
	}

	return Default(), nil
}

// Registry держит по одному Manager на сессию.
type Registry struct {
	sessions Sessions

	mu       sync.Mutex
	managers map[string]*Manager
}

// NewRegistry создаёт реестр поверх sessions.
func NewRegistry(sessions Sessions) *Registry {
	return &Registry{sessions: sessions, managers: make(map[string]*Manager)}
}

// Session возвращает менеджер сессии id.
func (r *Registry) Session(id string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.managers[id]
	if !ok {
		m = NewManager(r.sessions.Session(id))
		r.managers[id] = m
	}

	return m
}

// Forgetter — хранилище сессий, умеющее освобождать состояние сессии.
type Forgetter interface {
	Forget(id string)
}

// Forget убирает менеджер сессии id. Если хранилище сессий держит состояние
// в памяти процесса (Forgetter), оно освобождается тоже.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	delete(r.managers, id)
	r.mu.Unlock()

	if f, ok := r.sessions.(Forgetter); ok {
		f.Forget(id)
	}
}

// Len — число сессий с менеджером.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.managers)
}
