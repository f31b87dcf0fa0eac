package filterstate

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestMain поднимает Redis в контейнере один раз на пакет; адрес уходит в REDIS_URL.
func TestMain(m *testing.M) {
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		os.Exit(m.Run())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis testcontainer: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := redisC.Endpoint(ctx, "")
	if err != nil {
		_ = redisC.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}

	_ = os.Setenv("REDIS_URL", "redis://"+endpoint+"/0")

	code := m.Run()

	_ = redisC.Terminate(context.Background())
	os.Exit(code)
}

// newRedisSessions подключается к контейнеру с уникальным префиксом на тест.
func newRedisSessions(t *testing.T, ttl time.Duration) (*RedisSessions, string) {
	t.Helper()
	if os.Getenv("GO_TEST_INTEGRATION") == "" {
		t.Skip("set GO_TEST_INTEGRATION=1 to run Redis integration tests")
	}

	prefix := "test:" + uuid.NewString() + ":"
	rs, err := NewRedisSessions(os.Getenv("REDIS_URL"), prefix, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	return rs, prefix
}

func TestRedis_RoundTrip(t *testing.T) {
	rs, _ := newRedisSessions(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, rs.Ping(ctx))
	s := rs.Session("s1")

	st, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, Default(), st)

	want := State{SearchTerm: "Ra", StatusFilter: "contacted", CurrentPage: 3, SortBy: "-age"}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)

	// Новый клиент видит то же состояние (переживает перезапуск процесса).
	again, err := NewRedisSessions(os.Getenv("REDIS_URL"), rs.prefix, time.Hour)
	require.NoError(t, err)
	defer again.Close()

	got, err = again.Session("s1").Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)

	other, err := rs.Session("s2").Load(ctx)
	require.NoError(t, err)
	require.Equal(t, Default(), other)
}

func TestRedis_KeysAndTTL(t *testing.T) {
	rs, prefix := newRedisSessions(t, time.Hour)
	ctx := context.Background()
	s := rs.Session("s1")

	require.NoError(t, s.Save(ctx, State{StatusFilter: "new", CurrentPage: 2, SortBy: "name"}))

	base := prefix + "s1:"
	n, err := rs.rdb.Exists(ctx, base+keySearchTerm, base+keyStatusFilter, base+keyCurrentPage, base+keySortBy).Result()
	require.NoError(t, err)
	require.EqualValues(t, 4, n)

	ttl, err := rs.rdb.TTL(ctx, base+keyCurrentPage).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	// Пустой фильтр статуса удаляет ключ.
	require.NoError(t, s.Save(ctx, State{CurrentPage: 1, SortBy: "name"}))
	n, err = rs.rdb.Exists(ctx, base+keyStatusFilter).Result()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRedis_GarbledValuesFallBackToDefaults(t *testing.T) {
	rs, prefix := newRedisSessions(t, 0)
	ctx := context.Background()

	base := prefix + "s1:"
	require.NoError(t, rs.rdb.Set(ctx, base+keyCurrentPage, "not-a-number", 0).Err())
	require.NoError(t, rs.rdb.Set(ctx, base+keySortBy, "mobileNumber", 0).Err())
	require.NoError(t, rs.rdb.Set(ctx, base+keySearchTerm, "Ka", 0).Err())

	st, err := rs.Session("s1").Load(ctx)
	require.NoError(t, err)
	require.Equal(t, State{SearchTerm: "Ka", CurrentPage: 1, SortBy: "updatedAt"}, st)

	require.NoError(t, rs.rdb.Set(ctx, base+keyCurrentPage, "-4", 0).Err())
	st, err = rs.Session("s1").Load(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), st.CurrentPage)
}

func TestRedis_ClearAndManager(t *testing.T) {
	rs, prefix := newRedisSessions(t, time.Hour)
	ctx := context.Background()
	m := NewRegistry(rs).Session("s1")

	_, err := m.SetSearchTerm(ctx, "Ra")
	require.NoError(t, err)
	_, err = m.SetPage(ctx, 2)
	require.NoError(t, err)

	st, err := m.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, Default(), st)

	keys, err := rs.rdb.Keys(ctx, prefix+"s1:*").Result()
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestNewRedisSessions_BadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedisSessions("not-a-url", "", 0)
	require.Error(t, err)
}
