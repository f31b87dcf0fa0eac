// filterstate — сохраняемое состояние фильтров списка профилей:
// строка поиска, фильтр статуса, текущая страница и сортировка.
//
// Состояние живёт отдельно для каждой сессии (X-Session-Id) и переживает
// перезапуск процесса, если выбран Redis.
package filterstate

import (
	"context"
	"errors"

	"github.com/JeevanMahesha/studio/internal/models"
)

// ErrInvalidState — значение не может быть сохранено (страница < 1, неизвестная сортировка).
var ErrInvalidState = errors.New("invalid filter state")

// State — фильтры списка профилей.
type State struct {
	SearchTerm   string              `json:"searchTerm"`
	StatusFilter models.StatusFilter `json:"statusFilter"`
	CurrentPage  int32               `json:"currentPage"`
	SortBy       string              `json:"sortBy"`
}

// Default — состояние новой сессии.
func Default() State {
	return State{CurrentPage: 1, SortBy: string(models.DefaultSortField)}
}

// Normalize подставляет значения по умолчанию вместо пустых и некорректных.
func (s State) Normalize() State {
	if s.CurrentPage < 1 {
		s.CurrentPage = 1
	}
	if _, err := models.ParseSort(s.SortBy); err != nil || s.SortBy == "" {
		s.SortBy = string(models.DefaultSortField)
	}

	return s
}

// Query собирает запрос к списку профилей из состояния.
func (s State) Query(pageSize int32) models.ListQuery {
	return models.ListQuery{
		SearchTerm: s.SearchTerm,
		Status:     s.StatusFilter,
		SortBy:     s.SortBy,
		Page:       s.CurrentPage,
		PageSize:   pageSize,
	}
}

// Store — хранилище состояния одной сессии.
type Store interface {
	// Load возвращает сохранённое состояние; отсутствующие и испорченные значения
	// заменяются значениями по умолчанию.
	Load(ctx context.Context) (State, error)
	// Save сохраняет все четыре значения целиком.
	Save(ctx context.Context, s State) error
	// Clear удаляет сохранённое состояние.
	Clear(ctx context.Context) error
}

// Sessions выдаёт Store для сессии.
type Sessions interface {
	Session(id string) Store
}
