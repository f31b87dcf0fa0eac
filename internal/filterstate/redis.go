package filterstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/redis/go-redis/v9"
)

// Имена значений в Redis. Каждое значение — отдельный строковый ключ под префиксом сессии.
const (
	keySearchTerm   = "studio_profile_search_term"
	keyStatusFilter = "studio_profile_status_filter"
	keyCurrentPage  = "studio_profile_current_page"
	keySortBy       = "studio_profile_sort_by"
)

// RedisSessions хранит состояние фильтров в Redis.
type RedisSessions struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessions создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "studio:filters:". ttl=0 — ключи без срока жизни.
func NewRedisSessions(redisURL, prefix string, ttl time.Duration) (*RedisSessions, error) {
	const op = "filterstate/NewRedisSessions"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return NewRedisSessionsFromClient(rdb, prefix, ttl), nil
}

// NewRedisSessionsFromClient оборачивает готовый клиент.
func NewRedisSessionsFromClient(rdb *redis.Client, prefix string, ttl time.Duration) *RedisSessions {
	if prefix == "" {
		prefix = "studio:filters:"
	}

	return &RedisSessions{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisSessions) Session(id string) Store {
	return &redisStore{rdb: r.rdb, base: r.prefix + id + ":", ttl: r.ttl}
}

// Ping проверяет доступность Redis (readiness).
func (r *RedisSessions) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close закрывает клиент Redis.
func (r *RedisSessions) Close() error { return r.rdb.Close() }

type redisStore struct {
	rdb  *redis.Client
	base string
	ttl  time.Duration
}

func (s *redisStore) key(name string) string { return s.base + name }

func (s *redisStore) keys() []string {
	return []string{
		s.key(keySearchTerm),
		s.key(keyStatusFilter),
		s.key(keyCurrentPage),
		s.key(keySortBy),
	}
}

func (s *redisStore) Load(ctx context.Context) (State, error) {
	const op = "filterstate/redisStore.Load"

	vals, err := s.rdb.MGet(ctx, s.keys()...).Result()
	if err != nil {
		return State{}, fmt.Errorf("%s: %w", op, err)
	}

	st := Default()
	if v, ok := vals[0].(string); ok {
		st.SearchTerm = v
	}
	if v, ok := vals[1].(string); ok {
		st.StatusFilter = models.StatusFilter(v)
	}
	if v, ok := vals[2].(string); ok {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			st.CurrentPage = int32(n)
		}
	}
	if v, ok := vals[3].(string); ok {
		st.SortBy = v
	}

	return st.Normalize(), nil
}

func (s *redisStore) Save(ctx context.Context, st State) error {
	const op = "filterstate/redisStore.Save"

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key(keySearchTerm), st.SearchTerm, s.ttl)
	if st.StatusFilter.IsDefault() {
		pipe.Del(ctx, s.key(keyStatusFilter))
	} else {
		pipe.Set(ctx, s.key(keyStatusFilter), string(st.StatusFilter), s.ttl)
	}
	pipe.Set(ctx, s.key(keyCurrentPage), strconv.FormatInt(int64(st.CurrentPage), 10), s.ttl)
	pipe.Set(ctx, s.key(keySortBy), st.SortBy, s.ttl)

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	const op = "filterstate/redisStore.Clear"

	if err := s.rdb.Del(ctx, s.keys()...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
