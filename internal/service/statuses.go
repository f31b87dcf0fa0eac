package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/querycache"
	"github.com/JeevanMahesha/studio/pkg/log"
)

// StatusView — статус вместе с отображением (цвет бейджа, приоритет сортировки).
type StatusView struct {
	models.ProfileStatus
	Priority int    `json:"priority"`
	Color    string `json:"color"`
}

// ListStatuses возвращает статусы, упорядоченные по имени, через кэш.
func (s *Service) ListStatuses(ctx context.Context) ([]StatusView, error) {
	const op = "service/statuses/ListStatuses"

	lg := log.From(ctx).With("op", op)

	list, err := querycache.Fetch(ctx, s.cache, StatusesKey(), s.storage.ListStatuses)
	if err != nil {
		return nil, mapErr(lg, op, err)
	}

	out := make([]StatusView, 0, len(list))
	for _, st := range list {
		d := models.StatusDisplayFor(st.ID)
		out = append(out, StatusView{ProfileStatus: st, Priority: d.Priority, Color: d.Color})
	}

	return out, nil
}

// SortByPriority упорядочивает статусы для выпадающих списков: по приоритету, затем по имени.
func SortByPriority(list []StatusView) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].Name < list[j].Name
	})
}

// CreateStatus — создание статуса. Id назначает хранилище.
func (s *Service) CreateStatus(ctx context.Context, session string, st models.ProfileStatus) (_ *models.ProfileStatus, err error) {
	const op = "service/statuses/CreateStatus"

	lg := log.From(ctx).With("op", op)

	done := s.begin(session, MutationCreateStatus)
	defer func() { done(err) }()

	st.ID = ""
	st.Name = strings.TrimSpace(st.Name)
	if err := models.ValidateStatus(st); err != nil {
		return nil, mapErr(lg, op, err)
	}

	created, err := s.storage.CreateStatus(ctx, st)
	if err != nil {
		return nil, mapErr(lg, op, err)
	}

	s.invalidate(ctx, StatusesKey())
	lg.Info("status created", "id", created.ID)

	return created, nil
}

// UpdateStatus — частичное обновление статуса.
// Имена статусов отображаются в списках профилей, поэтому устаревают и они.
func (s *Service) UpdateStatus(ctx context.Context, session, id string, u models.StatusUpdate) (_ *models.ProfileStatus, err error) {
	const op = "service/statuses/UpdateStatus"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "id", id)

	done := s.begin(session, MutationUpdateStatus)
	defer func() { done(err) }()

	if id == "" {
		lg.Warn("invalid argument: empty id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}
	if err := models.ValidateStatusUpdate(u); err != nil {
		return nil, mapErr(lg, op, err)
	}

	updated, ok, err := s.storage.UpdateStatus(ctx, id, u)
	if err != nil {
		return nil, mapErr(lg, op, err)
	}
	if !ok {
		lg.Warn("status not found")
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	s.invalidate(ctx, StatusesKey(), querycache.NewKey(KindProfiles))

	return updated, nil
}

// DeleteStatus удаляет статус.
//
// Поведение/ошибки:
//   - на статус ссылаются профили — ErrStatusInUse;
//   - статуса нет — ErrNotFound;
//   - ErrUnavailable — ошибка хранилища.
func (s *Service) DeleteStatus(ctx context.Context, session, id string) (err error) {
	const op = "service/statuses/DeleteStatus"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "id", id)

	done := s.begin(session, MutationDeleteStatus)
	defer func() { done(err) }()

	if id == "" {
		lg.Warn("invalid argument: empty id")
		return fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	ok, err := s.storage.DeleteStatus(ctx, id)
	if err != nil {
		return mapErr(lg, op, err)
	}
	if !ok {
		lg.Warn("status not found")
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	s.invalidate(ctx, StatusesKey(), querycache.NewKey(KindProfiles))

	return nil
}

// SeedStatuses засевает стандартные статусы в пустую коллекцию.
func (s *Service) SeedStatuses(ctx context.Context) (int, error) {
	const op = "service/statuses/SeedStatuses"

	lg := log.From(ctx).With("op", op)

	if s.cfg.Statuses.SkipSeed {
		lg.Debug("status seed disabled")
		return 0, nil
	}

	n, err := s.storage.SeedStatuses(ctx, models.DefaultStatuses())
	if err != nil {
		return 0, mapErr(lg, op, err)
	}
	if n > 0 {
		s.invalidate(ctx, StatusesKey())
		lg.Info("statuses seeded", "count", n)
	}

	return n, nil
}
