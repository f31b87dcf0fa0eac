package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ListStatuses возвращает статусы по имени.
func (m *Mongo) ListStatuses(ctx context.Context) ([]models.ProfileStatus, error) {
	const op = "storage/mongo/ListStatuses"

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := m.statuses.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	out := []models.ProfileStatus{}
	for cur.Next(ctx) {
		var doc statusDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		out = append(out, doc.model())
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return out, nil
}

// StatusExists проверяет наличие статуса.
func (m *Mongo) StatusExists(ctx context.Context, id string) (bool, error) {
	const op = "storage/mongo/StatusExists"

	err := m.statuses.FindOne(ctx, bson.D{{Key: "_id", Value: id}},
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})).Err()
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

// CreateStatus вставляет статус с новым id (hex ObjectID).
func (m *Mongo) CreateStatus(ctx context.Context, s models.ProfileStatus) (*models.ProfileStatus, error) {
	const op = "storage/mongo/CreateStatus"

	s.ID = primitive.NewObjectID().Hex()

	if _, err := m.statuses.InsertOne(ctx, statusDoc{ID: s.ID, Name: s.Name, Description: s.Description}); err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	return &s, nil
}

// UpdateStatus применяет апдейт к существующему статусу.
func (m *Mongo) UpdateStatus(ctx context.Context, id string, u models.StatusUpdate) (*models.ProfileStatus, bool, error) {
	const op = "storage/mongo/UpdateStatus"

	set := bson.D{}
	if u.Name != nil {
		set = append(set, bson.E{Key: "name", Value: *u.Name})
	}
	if u.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *u.Description})
	}

	filter := bson.D{{Key: "_id", Value: strings.TrimSpace(id)}}

	var doc statusDoc
	var err error
	if len(set) == 0 {
		err = m.statuses.FindOne(ctx, filter).Decode(&doc)
	} else {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		err = m.statuses.FindOneAndUpdate(ctx, filter, bson.D{{Key: "$set", Value: set}}, opts).Decode(&doc)
	}

	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	out := doc.model()
	return &out, true, nil
}

// DeleteStatus удаляет статус, если на него не ссылается ни один профиль.
//
// Без транзакций это read-check-then-delete: профиль, созданный между проверкой
// и удалением, останется со ссылкой на удалённый статус. С db.transactions=true
// проверка и удаление идут в одной транзакции (нужен replica set).
func (m *Mongo) DeleteStatus(ctx context.Context, id string) (bool, error) {
	const op = "storage/mongo/DeleteStatus"

	if !m.cfg.DB.Transactions {
		ok, err := m.deleteStatusIfUnused(ctx, id)
		if err != nil {
			return false, fmt.Errorf("%s: %w", op, err)
		}
		return ok, nil
	}

	sess, err := m.client.StartSession()
	if err != nil {
		return false, fmt.Errorf("%s: start session: %w", op, err)
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(sc mongodriver.SessionContext) (any, error) {
		return m.deleteStatusIfUnused(sc, id)
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	ok, _ := res.(bool)
	return ok, nil
}

// deleteStatusIfUnused: сначала существование статуса, затем ссылки. Отсутствующий
// статус — (false, nil), даже если на его id ещё ссылаются профили.
func (m *Mongo) deleteStatusIfUnused(ctx context.Context, id string) (bool, error) {
	idOnly := bson.D{{Key: "_id", Value: 1}}

	err := m.statuses.FindOne(ctx, bson.D{{Key: "_id", Value: id}},
		options.FindOne().SetProjection(idOnly)).Err()
	switch {
	case errors.Is(err, mongodriver.ErrNoDocuments):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check status: %w", err)
	}

	err = m.profiles.FindOne(ctx, bson.D{{Key: "status_id", Value: id}},
		options.FindOne().SetProjection(idOnly)).Err()
	switch {
	case err == nil:
		return false, storage.ErrStatusInUse
	case !errors.Is(err, mongodriver.ErrNoDocuments):
		return false, fmt.Errorf("check references: %w", err)
	}

	res, err := m.statuses.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}

	return res.DeletedCount > 0, nil
}

// SeedStatuses записывает статусы только в пустую коллекцию.
func (m *Mongo) SeedStatuses(ctx context.Context, statuses []models.ProfileStatus) (int, error) {
	const op = "storage/mongo/SeedStatuses"

	n, err := m.statuses.CountDocuments(ctx, bson.D{}, options.Count().SetLimit(1))
	if err != nil {
		return 0, fmt.Errorf("%s: count: %w", op, err)
	}
	if n > 0 || len(statuses) == 0 {
		return 0, nil
	}

	docs := make([]any, 0, len(statuses))
	for _, s := range statuses {
		if s.ID == "" {
			s.ID = primitive.NewObjectID().Hex()
		}
		docs = append(docs, statusDoc{ID: s.ID, Name: s.Name, Description: s.Description})
	}

	if _, err := m.statuses.InsertMany(ctx, docs); err != nil {
		return 0, fmt.Errorf("%s: insert: %w", op, err)
	}

	return len(docs), nil
}
