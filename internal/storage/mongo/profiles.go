package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/pkg/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ListProfiles возвращает страницу q.Page.
// Страница N>1 получается пропуском (N-1)*size документов, если токен её начала не закэширован.
func (m *Mongo) ListProfiles(ctx context.Context, q models.ListQuery) (*models.ProfilePage, error) {
	const op = "storage/mongo/ListProfiles"

	plan, err := m.plan(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m.pager.Page(ctx, plan, q.Page, q.PageSize)
}

// ListProfilesAfter возвращает страницу после токена.
func (m *Mongo) ListProfilesAfter(ctx context.Context, q models.ListQuery, token string) (*models.ProfilePage, error) {
	const op = "storage/mongo/ListProfilesAfter"

	plan, err := m.plan(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return m.pager.After(ctx, plan, token, q.PageSize)
}

// ProfileByID возвращает профиль по идентификатору.
// Некорректный формат id трактуется как «нет такой записи».
func (m *Mongo) ProfileByID(ctx context.Context, id string) (*models.Profile, bool, error) {
	const op = "storage/mongo/ProfileByID"

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return nil, false, nil
	}

	var doc profileDoc
	if err := m.profiles.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	p := doc.model()
	if err := models.ValidateStoredProfile(p); err != nil {
		log.From(ctx).With("op", op).Warn("stored profile is invalid", "id", p.ID, "err", err)
		return nil, false, nil
	}

	return &p, true, nil
}

// CreateProfile вставляет документ; _id генерирует драйвер.
func (m *Mongo) CreateProfile(ctx context.Context, p models.Profile) (*models.Profile, error) {
	const op = "storage/mongo/CreateProfile"

	now := toMS(time.Now())
	p.CreatedAt = now
	p.UpdatedAt = now

	res, err := m.profiles.InsertOne(ctx, toProfileDoc(p))
	if err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%s: inserted id type", op)
	}

	m.pager.Reset()

	p.ID = oid.Hex()
	if p.Comments == nil {
		p.Comments = []string{}
	}

	return &p, nil
}

// updateSet собирает $set из заданных полей апдейта.
func updateSet(u models.ProfileUpdate, now time.Time) bson.D {
	set := bson.D{}
	add := func(key string, v any) { set = append(set, bson.E{Key: key, Value: v}) }

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.CasteRaise != nil {
		add("caste_raise", *u.CasteRaise)
	}
	if u.Age != nil {
		add("age", *u.Age)
	}
	if u.Star != nil {
		add("star", *u.Star)
	}
	if u.StarMatchScore != nil {
		add("star_match_score", *u.StarMatchScore)
	}
	if u.City != nil {
		add("city", *u.City)
	}
	if u.State != nil {
		add("state", *u.State)
	}
	if u.MobileNumber != nil {
		add("mobile_number", *u.MobileNumber)
	}
	if u.StatusID != nil {
		add("status_id", *u.StatusID)
	}
	if u.MatrimonyID != nil {
		add("matrimony_id", *u.MatrimonyID)
	}
	if u.Comments != nil {
		comments := *u.Comments
		if comments == nil {
			comments = []string{}
		}
		add("comments", comments)
	}
	add("updated_at", now)

	return set
}

// UpdateProfile применяет апдейт к существующему документу одной операцией
// findOneAndUpdate: существование проверяется фильтром по _id.
func (m *Mongo) UpdateProfile(ctx context.Context, id string, u models.ProfileUpdate) (*models.Profile, bool, error) {
	const op = "storage/mongo/UpdateProfile"

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return nil, false, nil
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.D{{Key: "$set", Value: updateSet(u, toMS(time.Now()))}}

	var doc profileDoc
	if err := m.profiles.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	m.pager.Reset()

	p := doc.model()
	return &p, true, nil
}

// DeleteProfile удаляет документ; false — документа не было.
func (m *Mongo) DeleteProfile(ctx context.Context, id string) (bool, error) {
	const op = "storage/mongo/DeleteProfile"

	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return false, nil
	}

	res, err := m.profiles.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return false, nil
	}

	m.pager.Reset()

	return true, nil
}

// ProfileOptions собирает уникальные города, штаты и звёзды через distinct.
func (m *Mongo) ProfileOptions(ctx context.Context) (*models.ProfileOptions, error) {
	const op = "storage/mongo/ProfileOptions"

	distinct := func(field string) ([]string, error) {
		vals, err := m.profiles.Distinct(ctx, field, bson.D{})
		if err != nil {
			return nil, fmt.Errorf("%s: distinct %s: %w", op, field, err)
		}

		out := make([]string, 0, len(vals))
		for _, v := range vals {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		sort.Strings(out)

		return out, nil
	}

	cities, err := distinct("city")
	if err != nil {
		return nil, err
	}
	states, err := distinct("state")
	if err != nil {
		return nil, err
	}
	stars, err := distinct("star")
	if err != nil {
		return nil, err
	}

	return &models.ProfileOptions{Cities: cities, States: states, Stars: stars}, nil
}
