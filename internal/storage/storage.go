// storage содержит контракты слоя хранилищ profiles-service.
//
// storage.go — интерфейсы хранилища и sentinel-ошибки;
// plan.go — план запроса списка профилей (поиск по префиксу, фильтр статуса, сортировка);
// pager.go — постраничная выдача по номеру страницы поверх курсорного хранилища.
package storage

import (
	"context"
	"errors"

	"github.com/JeevanMahesha/studio/internal/models"
)

var (
	// ErrInvalidCursor — битый/чужой page_token.
	ErrInvalidCursor = errors.New("invalid cursor")
	// ErrStatusInUse — на статус ссылается хотя бы один профиль, удаление запрещено.
	ErrStatusInUse = errors.New("status in use")
)

// Profiles — операции над профилями.
// «Не найдено» — допустимый результат, а не ошибка: (nil, false, nil).
type Profiles interface {
	// ListProfiles возвращает страницу q.Page (с единицы) и общее число подходящих профилей.
	// Страница за концом выдачи — пустой Items с корректным Total.
	ListProfiles(ctx context.Context, q models.ListQuery) (*models.ProfilePage, error)

	// ListProfilesAfter возвращает страницу после непрозрачного токена NextPageToken.
	// При некорректном токене — ErrInvalidCursor.
	ListProfilesAfter(ctx context.Context, q models.ListQuery, token string) (*models.ProfilePage, error)

	// ProfileByID возвращает профиль по id.
	ProfileByID(ctx context.Context, id string) (*models.Profile, bool, error)

	// CreateProfile сохраняет профиль. ID, CreatedAt и UpdatedAt назначает хранилище.
	CreateProfile(ctx context.Context, p models.Profile) (*models.Profile, error)

	// UpdateProfile проверяет существование и применяет частичный апдейт.
	// UpdatedAt обновляется всегда, CreatedAt не меняется.
	UpdateProfile(ctx context.Context, id string, u models.ProfileUpdate) (*models.Profile, bool, error)

	// DeleteProfile удаляет профиль; false — профиля не было.
	DeleteProfile(ctx context.Context, id string) (bool, error)

	// ProfileOptions возвращает уникальные города, штаты и звёзды (по возрастанию).
	ProfileOptions(ctx context.Context) (*models.ProfileOptions, error)
}

// Statuses — операции над таксономией статусов.
type Statuses interface {
	// ListStatuses возвращает все статусы, упорядоченные по имени.
	ListStatuses(ctx context.Context) ([]models.ProfileStatus, error)

	// StatusExists проверяет наличие статуса (для мягкой ссылки statusId).
	StatusExists(ctx context.Context, id string) (bool, error)

	// CreateStatus сохраняет статус. Пустой ID назначает хранилище.
	CreateStatus(ctx context.Context, s models.ProfileStatus) (*models.ProfileStatus, error)

	// UpdateStatus проверяет существование и применяет частичный апдейт.
	UpdateStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.ProfileStatus, bool, error)

	// DeleteStatus удаляет статус, если на него не ссылается ни один профиль.
	// Сначала проверяется существование: статуса нет — (false, nil), даже при висячих
	// ссылках из профилей. Есть ссылки — (false, ErrStatusInUse).
	DeleteStatus(ctx context.Context, id string) (bool, error)

	// SeedStatuses записывает статусы только в пустую коллекцию и возвращает число записанных.
	SeedStatuses(ctx context.Context, statuses []models.ProfileStatus) (int, error)
}

// Storage — верхнеуровневый интерфейс хранилища.
type Storage interface {
	Profiles
	Statuses

	// Close закрывает соединения/ресурсы хранилища.
	Close(ctx context.Context) error
}

// Batch — результат одной выборки из курсорного хранилища.
type Batch struct {
	// Items — прошедшие валидацию профили.
	Items []models.Profile
	// Scanned — сколько документов прочитано, включая отброшенные при валидации.
	Scanned int
	// Next — токен позиции после последнего прочитанного документа ("" если ничего не прочитано).
	Next string
}

// Cursor — курсорные примитивы документного хранилища, поверх которых работает Pager.
// Токены непрозрачны и привязаны к плану: токен чужого плана — ErrInvalidCursor.
type Cursor interface {
	// Fetch читает до limit документов плана после токена after ("" — с начала).
	Fetch(ctx context.Context, plan Plan, after string, limit int) (Batch, error)

	// Discard пропускает n документов после after, читая только ключи сортировки,
	// и возвращает токен позиции и число реально пропущенных документов.
	Discard(ctx context.Context, plan Plan, after string, n int) (string, int, error)

	// Count считает документы под предикатом плана без сортировки и пагинации.
	Count(ctx context.Context, plan Plan) (int64, error)
}
