package memory

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/storage"
	"github.com/JeevanMahesha/studio/pkg/log"
	"github.com/google/uuid"
)

// ListProfiles возвращает страницу q.Page через пейджер.
func (s *Store) ListProfiles(ctx context.Context, q models.ListQuery) (*models.ProfilePage, error) {
	plan, err := storage.NewPlan(q, s.planOpts)
	if err != nil {
		return nil, err
	}

	return s.pager.Page(ctx, plan, q.Page, q.PageSize)
}

// ListProfilesAfter возвращает страницу после токена.
func (s *Store) ListProfilesAfter(ctx context.Context, q models.ListQuery, token string) (*models.ProfilePage, error) {
	plan, err := storage.NewPlan(q, s.planOpts)
	if err != nil {
		return nil, err
	}

	return s.pager.After(ctx, plan, token, q.PageSize)
}

// ProfileByID возвращает копию профиля.
func (s *Store) ProfileByID(_ context.Context, id string) (*models.Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, false, nil
	}

	out := cloneProfile(p)
	return &out, true, nil
}

// CreateProfile назначает id и метки времени.
func (s *Store) CreateProfile(_ context.Context, p models.Profile) (*models.Profile, error) {
	now := s.stamp()

	p = cloneProfile(p)
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.mu.Lock()
	s.profiles[p.ID] = p
	s.mu.Unlock()

	s.pager.Reset()

	out := cloneProfile(p)
	return &out, nil
}

// UpdateProfile применяет апдейт к существующему профилю.
func (s *Store) UpdateProfile(_ context.Context, id string, u models.ProfileUpdate) (*models.Profile, bool, error) {
	s.mu.Lock()
	cur, ok := s.profiles[id]
	if !ok {
		s.mu.Unlock()
		return nil, false, nil
	}

	next := cloneProfile(u.Apply(cur))
	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = s.stamp()
	if next.UpdatedAt.Before(next.CreatedAt) {
		next.UpdatedAt = next.CreatedAt
	}
	s.profiles[id] = next
	s.mu.Unlock()

	s.pager.Reset()

	out := cloneProfile(next)
	return &out, true, nil
}

// DeleteProfile удаляет профиль.
func (s *Store) DeleteProfile(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	_, ok := s.profiles[id]
	delete(s.profiles, id)
	s.mu.Unlock()

	if ok {
		s.pager.Reset()
	}

	return ok, nil
}

// ProfileOptions собирает уникальные города, штаты и звёзды.
func (s *Store) ProfileOptions(_ context.Context) (*models.ProfileOptions, error) {
	cities := map[string]struct{}{}
	states := map[string]struct{}{}
	stars := map[string]struct{}{}

	s.mu.RLock()
	for _, p := range s.profiles {
		if p.City != "" {
			cities[p.City] = struct{}{}
		}
		if p.State != "" {
			states[p.State] = struct{}{}
		}
		if p.Star != "" {
			stars[p.Star] = struct{}{}
		}
	}
	s.mu.RUnlock()

	return &models.ProfileOptions{
		Cities: sortedKeys(cities),
		States: sortedKeys(states),
		Stars:  sortedKeys(stars),
	}, nil
}

// cursorToken — позиция в выдаче: ключи сортировки последнего документа и план.
type cursorToken struct {
	Plan string         `json:"p"`
	Last models.Profile `json:"l"`
}

func encodeToken(plan storage.Plan, last models.Profile) string {
	last.Comments = nil
	b, _ := json.Marshal(cursorToken{Plan: plan.Hash(), Last: last})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeToken(plan storage.Plan, tok string) (models.Profile, error) {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return models.Profile{}, storage.ErrInvalidCursor
	}

	var ct cursorToken
	if err := json.Unmarshal(raw, &ct); err != nil || ct.Plan != plan.Hash() || ct.Last.ID == "" {
		return models.Profile{}, storage.ErrInvalidCursor
	}

	return ct.Last, nil
}

// scan возвращает отсортированные документы плана, начиная после токена.
func (s *Store) scan(ctx context.Context, plan storage.Plan, after string) ([]models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var last models.Profile
	if after != "" {
		var err error
		if last, err = decodeToken(plan, after); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	matched := make([]models.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		if plan.Match(p) {
			matched = append(matched, cloneProfile(p))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return plan.Compare(matched[i], matched[j]) < 0 })

	if after == "" {
		return matched, nil
	}

	start := sort.Search(len(matched), func(i int) bool { return plan.Compare(last, matched[i]) < 0 })
	return matched[start:], nil
}

// Fetch читает до limit документов после after; невалидные документы отбрасываются.
func (s *Store) Fetch(ctx context.Context, plan storage.Plan, after string, limit int) (storage.Batch, error) {
	const op = "storage.memory.Fetch"

	docs, err := s.scan(ctx, plan, after)
	if err != nil {
		return storage.Batch{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}

	b := storage.Batch{Items: make([]models.Profile, 0, len(docs)), Scanned: len(docs)}
	for _, p := range docs {
		if err := models.ValidateStoredProfile(p); err != nil {
			log.From(ctx).With("op", op).Warn("drop invalid profile", "id", p.ID, "err", err)
			continue
		}
		b.Items = append(b.Items, p)
	}
	if len(docs) > 0 {
		b.Next = encodeToken(plan, docs[len(docs)-1])
	}

	return b, nil
}

// Discard пропускает n документов после after.
func (s *Store) Discard(ctx context.Context, plan storage.Plan, after string, n int) (string, int, error) {
	const op = "storage.memory.Discard"

	docs, err := s.scan(ctx, plan, after)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(docs) > n {
		docs = docs[:n]
	}
	if len(docs) == 0 {
		return after, 0, nil
	}

	return encodeToken(plan, docs[len(docs)-1]), len(docs), nil
}

// Count считает документы плана.
func (s *Store) Count(ctx context.Context, plan storage.Plan) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, p := range s.profiles {
		if plan.Match(p) {
			n++
		}
	}

	return n, nil
}
