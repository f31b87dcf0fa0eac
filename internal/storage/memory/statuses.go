package memory

import (
	"context"
	"sort"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/storage"
	"github.com/google/uuid"
)

// ListStatuses возвращает статусы по имени (при равенстве — по id).
func (s *Store) ListStatuses(_ context.Context) ([]models.ProfileStatus, error) {
	s.mu.RLock()
	out := make([]models.ProfileStatus, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

// StatusExists проверяет наличие статуса.
func (s *Store) StatusExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.statuses[id]
	return ok, nil
}

// CreateStatus сохраняет статус с новым id.
func (s *Store) CreateStatus(_ context.Context, st models.ProfileStatus) (*models.ProfileStatus, error) {
	st.ID = uuid.NewString()

	s.mu.Lock()
	s.statuses[st.ID] = st
	s.mu.Unlock()

	return &st, nil
}

// UpdateStatus применяет апдейт к существующему статусу.
func (s *Store) UpdateStatus(_ context.Context, id string, u models.StatusUpdate) (*models.ProfileStatus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.statuses[id]
	if !ok {
		return nil, false, nil
	}

	next := u.Apply(cur)
	next.ID = id
	s.statuses[id] = next

	return &next, true, nil
}

// DeleteStatus удаляет статус без ссылок. Проверка и удаление идут под одной блокировкой.
func (s *Store) DeleteStatus(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.statuses[id]; !ok {
		return false, nil
	}

	for _, p := range s.profiles {
		if p.StatusID == id {
			return false, storage.ErrStatusInUse
		}
	}

	delete(s.statuses, id)

	return true, nil
}

// SeedStatuses записывает статусы только в пустую коллекцию.
func (s *Store) SeedStatuses(_ context.Context, statuses []models.ProfileStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.statuses) > 0 {
		return 0, nil
	}

	for _, st := range statuses {
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		s.statuses[st.ID] = st
	}

	return len(statuses), nil
}
