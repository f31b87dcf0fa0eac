// mongo — хранилище профилей и статусов в MongoDB.
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JeevanMahesha/studio/internal/config"
	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	profilesCollection = "profiles"
	statusesCollection = "statuses"
	defaultDBName      = "studio"
)

var (
	_ storage.Storage = (*Mongo)(nil)
	_ storage.Cursor  = (*Mongo)(nil)
)

// Mongo — тонкий адаптер для подключения и коллекций MongoDB.
type Mongo struct {
	cfg      *config.Config
	client   *mongodriver.Client
	db       *mongodriver.Database
	profiles *mongodriver.Collection
	statuses *mongodriver.Collection

	planOpts storage.PlanOptions
	pager    *storage.Pager
}

// New подключается к MongoDB, проверяет его, подготавливает коллекции и обеспечивает индексацию.
func New(ctx context.Context, cfg *config.Config) (*Mongo, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mongo: nil config")
	}

	if cfg.DB.URL == "" {
		return nil, fmt.Errorf("mongo: empty cfg.DB.URL")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.DB.URL))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(cfg.DB.URL))

	m := &Mongo{
		cfg:      cfg,
		client:   cli,
		db:       db,
		profiles: db.Collection(profilesCollection),
		statuses: db.Collection(statusesCollection),
		// MongoDB не требует, чтобы поле неравенства было первым ключом сортировки.
		planOpts: storage.PlanOptions{RejectedID: cfg.Statuses.RejectedID},
	}
	m.pager = storage.NewPager(m, cfg.Limits.Default, cfg.Limits.Max, cfg.Cache.MaxPageTokens)

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}

	return m, nil
}

// Close закрывает соединение.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping проверяет доступность primary (/healthz).
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// ensureIndexes создаёт индексы под выдачу списка и проверку ссылок статуса.
// - name — поиск по префиксу (диапазон);
// - status_id — фильтр статуса и проверка ссылок перед удалением статуса;
// - updated_at и status_id+updated_at — сортировка по умолчанию с исключением отклонённых;
// - statuses.name — список статусов по имени.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	profileIdx := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("name_asc"),
		},
		{
			Keys:    bson.D{{Key: "status_id", Value: 1}},
			Options: options.Index().SetName("status_id"),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("updated_at_asc"),
		},
		{
			Keys:    bson.D{{Key: "status_id", Value: 1}, {Key: "updated_at", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("status_updated_at_asc"),
		},
	}

	if _, err := m.profiles.Indexes().CreateMany(ctx, profileIdx); err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}

	_, err := m.statuses.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetName("name_asc"),
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}

	return nil
}

// databaseFromURI извлекает имя базы данных из URI-пути mongodb.
// Если оно отсутствует или не поддается расшифровке, возвращает значение по умолчанию.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}

// toMS — MongoDB DateTime хранит миллисекунды.
func toMS(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// plan собирает план запроса с ограничениями MongoDB.
func (m *Mongo) plan(q models.ListQuery) (storage.Plan, error) {
	return storage.NewPlan(q, m.planOpts)
}
