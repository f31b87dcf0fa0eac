package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JeevanMahesha/studio/internal/filterstate"
	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/querycache"
	"github.com/JeevanMahesha/studio/pkg/log"
)

// ListProfiles возвращает страницу списка через кэш запросов.
//
// Поведение/ошибки:
//   - неизвестное поле сортировки — ErrInvalidArgument;
//   - страница за концом выдачи — пустой Items с корректным Total;
//   - ErrUnavailable — ошибка хранилища.
func (s *Service) ListProfiles(ctx context.Context, q models.ListQuery) (*models.ProfilePage, querycache.State, error) {
	const op = "service/profiles/ListProfiles"

	lg := log.From(ctx).With("op", op)

	q, err := s.normalizeQuery(q)
	if err != nil {
		return nil, "", mapErr(lg, op, err)
	}

	page, state, err := querycache.FetchState(ctx, s.cache, ProfilesKey(q), s.profilesLoader(q))
	if err != nil {
		return nil, "", mapErr(lg, op, err)
	}

	return page, state, nil
}

// ListProfilesAfter — выдача по непрозрачному токену продолжения. Не кэшируется.
func (s *Service) ListProfilesAfter(ctx context.Context, q models.ListQuery, token string) (*models.ProfilePage, error) {
	const op = "service/profiles/ListProfilesAfter"

	lg := log.From(ctx).With("op", op)

	q, err := s.normalizeQuery(q)
	if err != nil {
		return nil, mapErr(lg, op, err)
	}

	page, err := s.storage.ListProfilesAfter(ctx, q, strings.TrimSpace(token))
	if err != nil {
		return nil, mapErr(lg, op, err)
	}

	return page, nil
}

func (s *Service) profilesLoader(q models.ListQuery) func(context.Context) (*models.ProfilePage, error) {
	return func(ctx context.Context) (*models.ProfilePage, error) {
		return s.storage.ListProfiles(ctx, q)
	}
}

// Profile возвращает карточку профиля через кэш.
func (s *Service) Profile(ctx context.Context, id string) (*models.Profile, error) {
	const op = "service/profiles/Profile"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "id", id)

	if id == "" {
		lg.Warn("invalid argument: empty id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	p, err := querycache.Fetch(ctx, s.cache, ProfileKey(id), func(ctx context.Context) (*models.Profile, error) {
		p, ok, err := s.storage.ProfileByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotFound
		}
		return p, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			lg.Warn("profile not found")
		}
		return nil, mapErr(lg, op, err)
	}

	return p, nil
}

// ProfileOptions возвращает уникальные города, штаты и звёзды через кэш.
func (s *Service) ProfileOptions(ctx context.Context) (*models.ProfileOptions, error) {
	const op = "service/profiles/ProfileOptions"

	lg := log.From(ctx).With("op", op)

	opts, err := querycache.Fetch(ctx, s.cache, OptionsKey(), s.storage.ProfileOptions)
	if err != nil {
		return nil, mapErr(lg, op, err)
	}

	return opts, nil
}

// CreateProfile — создание профиля.
//
// Валидация схемы до обращения к хранилищу; statusId должен ссылаться на
// существующий статус (проверка без гарантии от гонок с удалением статуса).
// После записи устаревают списки и справочник опций.
func (s *Service) CreateProfile(ctx context.Context, session string, p models.Profile) (_ *models.Profile, err error) {
	const op = "service/profiles/CreateProfile"

	lg := log.From(ctx).With("op", op)

	done := s.begin(session, MutationCreateProfile)
	defer func() { done(err) }()

	p.ID = ""
	if err := models.ValidateProfile(p); err != nil {
		return nil, mapErr(lg, op, err)
	}
	if err := s.checkStatusRef(ctx, p.StatusID); err != nil {
		return nil, mapErr(lg, op, err)
	}

	created, err := s.storage.CreateProfile(ctx, p)
	if err != nil {
		return nil, mapErr(lg, op, err)
	}

	s.invalidate(ctx, querycache.NewKey(KindProfiles), OptionsKey())
	lg.Info("profile created", "id", created.ID)

	return created, nil
}

// UpdateProfile — частичное обновление профиля.
//
// Поведение/ошибки:
//   - пустой апдейт или нарушение схемы — ErrInvalidArgument;
//   - профиль не найден — ErrNotFound;
//   - после записи устаревают карточка, списки и справочник опций.
func (s *Service) UpdateProfile(ctx context.Context, session, id string, u models.ProfileUpdate) (_ *models.Profile, err error) {
	const op = "service/profiles/UpdateProfile"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "id", id)

	done := s.begin(session, MutationUpdateProfile)
	defer func() { done(err) }()

	if id == "" {
		lg.Warn("invalid argument: empty id")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}
	if err := models.ValidateProfileUpdate(u); err != nil {
		return nil, mapErr(lg, op, err)
	}
	if u.StatusID != nil {
		if err := s.checkStatusRef(ctx, *u.StatusID); err != nil {
			return nil, mapErr(lg, op, err)
		}
	}

	updated, ok, err := s.storage.UpdateProfile(ctx, id, u)
	if err != nil {
		return nil, mapErr(lg, op, err)
	}
	if !ok {
		lg.Warn("profile not found")
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	s.invalidate(ctx, ProfileKey(id), querycache.NewKey(KindProfiles), OptionsKey())

	return updated, nil
}

// DeleteProfile удаляет профиль и возвращает состояние фильтров сессии.
//
// Если удалённая запись была единственной на показанной странице и страница
// не первая, сессия переходит на предыдущую страницу.
func (s *Service) DeleteProfile(ctx context.Context, session, id string) (_ filterstate.State, err error) {
	const op = "service/profiles/DeleteProfile"

	id = strings.TrimSpace(id)
	lg := log.From(ctx).With("op", op, "id", id)

	done := s.begin(session, MutationDeleteProfile)
	defer func() { done(err) }()

	if id == "" {
		lg.Warn("invalid argument: empty id")
		return filterstate.State{}, fmt.Errorf("%s: %w", op, ErrInvalidArgument)
	}

	mgr := s.sessionFilters(session)
	st, err := mgr.State(ctx)
	if err != nil {
		return filterstate.State{}, mapErr(lg, op, err)
	}

	displayed, err := s.displayedPage(ctx, session, st)
	if err != nil {
		return filterstate.State{}, mapErr(lg, op, err)
	}

	ok, err := s.storage.DeleteProfile(ctx, id)
	if err != nil {
		return filterstate.State{}, mapErr(lg, op, err)
	}
	if !ok {
		lg.Warn("profile not found")
		return filterstate.State{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	s.invalidate(ctx, ProfileKey(id), querycache.NewKey(KindProfiles), OptionsKey())

	if soleItem(displayed, id) && st.CurrentPage > 1 {
		st, err = mgr.Rebalance(ctx, st.CurrentPage-1)
		if err != nil {
			return filterstate.State{}, mapErr(lg, op, err)
		}
	}

	return st, nil
}

// displayedPage возвращает страницу, которую сейчас видит сессия: страницу текущих
// фильтров с размером последнего показанного результата (из кэша, если он есть).
func (s *Service) displayedPage(ctx context.Context, session string, st filterstate.State) (*models.ProfilePage, error) {
	size := s.pageSize(0)

	snap := s.observer(session).Current()
	if page, ok := snap.Value.(*models.ProfilePage); ok && !snap.Placeholder {
		size = page.PageSize
	}

	q, err := s.normalizeQuery(st.Query(size))
	if err != nil {
		return nil, err
	}

	return querycache.Fetch(ctx, s.cache, ProfilesKey(q), s.profilesLoader(q))
}

func soleItem(page *models.ProfilePage, id string) bool {
	return page != nil && len(page.Items) == 1 && page.Items[0].ID == id
}

// checkStatusRef проверяет, что statusId ссылается на существующий статус.
func (s *Service) checkStatusRef(ctx context.Context, statusID string) error {
	ok, err := s.storage.StatusExists(ctx, statusID)
	if err != nil {
		return err
	}
	if !ok {
		return &models.ValidationError{Fields: map[string]string{"statusId": "unknown status"}}
	}

	return nil
}
