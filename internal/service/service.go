// service содержит бизнес-логику profiles-service: чтение через кэш запросов,
// оркестрацию записей с инвалидацией кэша и состояние фильтров по сессиям.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/JeevanMahesha/studio/internal/config"
	"github.com/JeevanMahesha/studio/internal/filterstate"
	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/querycache"
	"github.com/JeevanMahesha/studio/internal/storage"
	"github.com/JeevanMahesha/studio/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrInvalidArgument — неверные входные данные; оборачивает *models.ValidationError, если есть поля.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound — сущность отсутствует в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrStatusInUse — статус используется профилями, удалить нельзя.
	ErrStatusInUse = errors.New("status is in use and cannot be deleted")
	// ErrInvalidCursor — битый/чужой page_token.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrUnavailable — хранилище недоступно или ответило ошибкой.
	ErrUnavailable = errors.New("storage unavailable")
)

// Виды ключей кэша. Префикс вида инвалидирует всё семейство.
const (
	KindProfiles       = "profiles"
	KindProfile        = "profile"
	KindStatuses       = "statuses"
	KindProfileOptions = "profileOptions"
)

// Service — бизнес-логика profiles-service.
type Service struct {
	storage   storage.Storage
	cache     *querycache.Cache
	filters   *filterstate.Registry
	cfg       config.Config
	mutations *MutationTracker

	obsMu     sync.Mutex
	observers map[string]*querycache.Observer
	// seen — время последнего обращения сессии; по нему SweepSessions чистит простаивающие.
	seen map[string]time.Time
	now  func() time.Time
}

// New создаёт сервис. reg может быть nil (без метрик мутаций).
func New(st storage.Storage, cache *querycache.Cache, filters *filterstate.Registry, cfg config.Config, reg prometheus.Registerer) *Service {
	return &Service{
		storage:   st,
		cache:     cache,
		filters:   filters,
		cfg:       cfg,
		mutations: NewMutationTracker(reg),
		observers: make(map[string]*querycache.Observer),
		seen:      make(map[string]time.Time),
		now:       time.Now,
	}
}

// Mutations возвращает трекер состояний мутаций.
func (s *Service) Mutations() *MutationTracker { return s.mutations }

// pageSize нормализует размер страницы по лимитам конфига.
func (s *Service) pageSize(size int32) int32 {
	def, maxSize := s.cfg.Limits.Default, s.cfg.Limits.Max
	if def <= 0 {
		def = 10
	}
	if maxSize < def {
		maxSize = def
	}

	switch {
	case size <= 0:
		return def
	case size > maxSize:
		return maxSize
	default:
		return size
	}
}

// normalizeQuery приводит запрос к канонической форме, чтобы равные запросы
// давали один ключ кэша.
func (s *Service) normalizeQuery(q models.ListQuery) (models.ListQuery, error) {
	sort, err := models.ParseSort(q.SortBy)
	if err != nil {
		return models.ListQuery{}, err
	}

	q.SortBy = sort.String()
	q.PageSize = s.pageSize(q.PageSize)
	if q.Page < 1 {
		q.Page = 1
	}

	return q, nil
}

// ProfilesKey — ключ страницы списка. q должен быть нормализован.
func ProfilesKey(q models.ListQuery) querycache.Key {
	return querycache.NewKey(KindProfiles,
		q.SearchTerm,
		string(q.Status),
		q.SortBy,
		strconv.FormatInt(int64(q.Page), 10),
		strconv.FormatInt(int64(q.PageSize), 10),
	)
}

// ProfileKey — ключ карточки профиля.
func ProfileKey(id string) querycache.Key {
	return querycache.NewKey(KindProfile, id)
}

// StatusesKey — ключ списка статусов.
func StatusesKey() querycache.Key {
	return querycache.NewKey(KindStatuses)
}

// OptionsKey — ключ справочника городов/штатов/звёзд.
func OptionsKey() querycache.Key {
	return querycache.NewKey(KindProfileOptions)
}

// invalidate помечает устаревшими семейства ключей.
func (s *Service) invalidate(ctx context.Context, keys ...querycache.Key) {
	n := 0
	for _, k := range keys {
		n += s.cache.Invalidate(k)
	}

	log.From(ctx).Debug("cache invalidated", "families", len(keys), "entries", n)
}

// mapErr переводит ошибки хранилища и контекста в ошибки сервиса.
// Ошибки сервиса проходят без изменений.
func mapErr(lg *slog.Logger, op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrStatusInUse),
		errors.Is(err, ErrInvalidCursor),
		errors.Is(err, ErrUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, models.ErrValidation):
		lg.Warn("invalid argument", "err", err)
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidArgument, err)
	case errors.Is(err, filterstate.ErrInvalidState):
		lg.Warn("invalid filter state", "err", err)
		return fmt.Errorf("%s: %w: %w", op, ErrInvalidArgument, err)
	case errors.Is(err, storage.ErrInvalidCursor):
		lg.Warn("invalid cursor")
		return fmt.Errorf("%s: %w", op, ErrInvalidCursor)
	case errors.Is(err, storage.ErrStatusInUse):
		lg.Warn("status in use")
		return fmt.Errorf("%s: %w", op, ErrStatusInUse)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		lg.Warn("request aborted", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	default:
		lg.Error("storage error", "err", err)
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
}
