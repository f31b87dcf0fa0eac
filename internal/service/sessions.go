package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JeevanMahesha/studio/internal/filterstate"
	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/querycache"
	"github.com/JeevanMahesha/studio/pkg/log"
)

// ProfileView — экран списка профилей сессии.
type ProfileView struct {
	Page    *models.ProfilePage
	Filters filterstate.State
	// Placeholder — показана предыдущая страница: новая не успела загрузиться.
	Placeholder bool
	// Refreshing — данные из кэша устарели и обновляются в фоне.
	Refreshing bool
}

// observer возвращает наблюдателя экрана списка сессии.
func (s *Service) observer(session string) *querycache.Observer {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	s.seen[session] = s.now()
	o, ok := s.observers[session]
	if !ok {
		o = querycache.NewObserver(s.cache, nil)
		s.observers[session] = o
	}

	return o
}

// touch отмечает обращение сессии.
func (s *Service) touch(session string) {
	s.obsMu.Lock()
	s.seen[session] = s.now()
	s.obsMu.Unlock()
}

// sessionFilters — менеджер фильтров сессии с отметкой обращения.
func (s *Service) sessionFilters(session string) *filterstate.Manager {
	s.touch(session)
	return s.filters.Session(session)
}

// begin начинает отслеживание мутации сессии.
func (s *Service) begin(session, kind string) func(err error) {
	s.touch(session)
	return s.mutations.Begin(session, kind)
}

// SweepSessions освобождает состояние сессий без обращений дольше idle:
// наблюдателя списка, менеджер фильтров (и фильтры, если они в памяти процесса)
// и записи мутаций. Возвращает число удалённых сессий.
func (s *Service) SweepSessions(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}

	cutoff := s.now().Add(-idle)

	s.obsMu.Lock()
	var idleIDs []string
	for id, at := range s.seen {
		if at.After(cutoff) {
			continue
		}
		idleIDs = append(idleIDs, id)
		delete(s.seen, id)
		delete(s.observers, id)
	}
	s.obsMu.Unlock()

	for _, id := range idleIDs {
		s.filters.Forget(id)
		s.mutations.Forget(id)
	}

	return len(idleIDs)
}

// Run периодически вызывает SweepSessions с cfg.Sessions.IdleTTL до отмены ctx.
func (s *Service) Run(ctx context.Context) {
	idle := s.cfg.Sessions.IdleTTL
	if idle <= 0 {
		return
	}

	interval := idle / 2
	if interval < time.Second {
		interval = time.Second
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.SweepSessions(idle); n > 0 {
				log.From(ctx).Debug("idle sessions released", "count", n)
			}
		}
	}
}

// SessionProfiles возвращает страницу по сохранённым фильтрам сессии.
//
// Пока грузится страница нового запроса (или перечитывается после записи), ожидание
// ограничено ctx; если оно истекло, а у сессии есть предыдущие данные, они
// возвращаются с признаком Placeholder. Первая загрузка сессии плейсхолдера не имеет.
// Устаревшая по времени страница отдаётся сразу и обновляется в фоне.
func (s *Service) SessionProfiles(ctx context.Context, session string, pageSize int32) (*ProfileView, error) {
	const op = "service/sessions/SessionProfiles"

	lg := log.From(ctx).With("op", op)

	st, err := s.sessionFilters(session).State(ctx)
	if err != nil {
		return nil, mapErr(lg, op, err)
	}

	q, err := s.normalizeQuery(st.Query(pageSize))
	if err != nil {
		return nil, mapErr(lg, op, err)
	}

	obs := s.observer(session)
	snap := obs.Watch(ctx, ProfilesKey(q), func(ctx context.Context) (any, error) {
		return s.storage.ListProfiles(ctx, q)
	})

	if snap.Loading && (snap.Value == nil || snap.Placeholder || snap.Invalidated) {
		snap, err = obs.Await(ctx)
		if err != nil && snap.Value == nil {
			return nil, mapErr(lg, op, err)
		}
	}
	if snap.Err != nil {
		return nil, mapErr(lg, op, snap.Err)
	}

	page, ok := snap.Value.(*models.ProfilePage)
	if !ok {
		lg.Error("unexpected cache value", "type", fmt.Sprintf("%T", snap.Value))
		return nil, fmt.Errorf("%s: %w", op, ErrUnavailable)
	}

	return &ProfileView{
		Page:        page,
		Filters:     st,
		Placeholder: snap.Placeholder || (snap.Loading && snap.Invalidated),
		Refreshing:  snap.Loading,
	}, nil
}

// Filters возвращает состояние фильтров сессии.
func (s *Service) Filters(ctx context.Context, session string) (filterstate.State, error) {
	const op = "service/sessions/Filters"

	st, err := s.sessionFilters(session).State(ctx)
	if err != nil {
		return filterstate.State{}, mapErr(log.From(ctx).With("op", op), op, err)
	}

	return st, nil
}

// ApplyFilters меняет фильтры сессии. Смена поиска, статуса или сортировки
// возвращает на первую страницу.
func (s *Service) ApplyFilters(ctx context.Context, session string, p filterstate.Patch) (filterstate.State, error) {
	const op = "service/sessions/ApplyFilters"

	if p.SearchTerm != nil {
		term := strings.TrimSpace(*p.SearchTerm)
		p.SearchTerm = &term
	}

	st, err := s.sessionFilters(session).Apply(ctx, p)
	if err != nil {
		return filterstate.State{}, mapErr(log.From(ctx).With("op", op), op, err)
	}

	return st, nil
}

// ClearFilters сбрасывает фильтры сессии к значениям по умолчанию.
func (s *Service) ClearFilters(ctx context.Context, session string) (filterstate.State, error) {
	const op = "service/sessions/ClearFilters"

	st, err := s.sessionFilters(session).Clear(ctx)
	if err != nil {
		return filterstate.State{}, mapErr(log.From(ctx).With("op", op), op, err)
	}

	return st, nil
}
