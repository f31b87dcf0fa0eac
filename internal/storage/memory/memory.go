// memory — хранилище профилей и статусов в памяти процесса.
// Используется в тестах и при локальном запуске без MongoDB (db.driver=memory).
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/storage"
)

var (
	_ storage.Storage = (*Store)(nil)
	_ storage.Cursor  = (*Store)(nil)
)

// Option — настройка Store.
type Option func(*Store)

// WithRejectedID задаёт статус, исключаемый из выдачи по умолчанию.
func WithRejectedID(id string) Option {
	return func(s *Store) { s.planOpts.RejectedID = id }
}

// WithLimits задаёт размер страницы по умолчанию и максимальный.
func WithLimits(def, maxSize int32) Option {
	return func(s *Store) { s.defSize, s.maxSize = def, maxSize }
}

// WithMaxPageTokens ограничивает кэш токенов страниц (0 — без кэша).
func WithMaxPageTokens(n int) Option {
	return func(s *Store) { s.maxTokens = n }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithInequalityLeadsOrder эмулирует хранилища, где поле с неравенством
// обязано быть первым ключом сортировки.
func WithInequalityLeadsOrder() Option {
	return func(s *Store) { s.planOpts.InequalityLeadsOrder = true }
}

// Store — потокобезопасное хранилище на map'ах.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
	statuses map[string]models.ProfileStatus

	now       func() time.Time
	planOpts  storage.PlanOptions
	defSize   int32
	maxSize   int32
	maxTokens int
	pager     *storage.Pager
}

// New создаёт пустое хранилище.
func New(opts ...Option) *Store {
	s := &Store{
		profiles:  make(map[string]models.Profile),
		statuses:  make(map[string]models.ProfileStatus),
		now:       time.Now,
		planOpts:  storage.PlanOptions{RejectedID: models.StatusRejected},
		defSize:   10,
		maxSize:   100,
		maxTokens: 1024,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.pager = storage.NewPager(s, s.defSize, s.maxSize, s.maxTokens)

	return s
}

// Restore загружает профили как есть, без валидации и проставления времени
// (фикстуры, снапшоты).
func (s *Store) Restore(profiles ...models.Profile) {
	s.mu.Lock()
	for _, p := range profiles {
		s.profiles[p.ID] = cloneProfile(p)
	}
	s.mu.Unlock()

	s.pager.Reset()
}

// Close ничего не освобождает.
func (s *Store) Close(context.Context) error {
	return nil
}

func (s *Store) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func cloneProfile(p models.Profile) models.Profile {
	if p.Comments == nil {
		p.Comments = []string{}
	} else {
		p.Comments = append([]string{}, p.Comments...)
	}

	return p
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}
