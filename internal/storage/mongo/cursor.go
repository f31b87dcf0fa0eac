package mongo

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/storage"
	"github.com/JeevanMahesha/studio/pkg/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// cursorDoc — содержимое токена: ключи сортировки последнего документа, его _id и отпечаток плана.
type cursorDoc struct {
	Plan   string             `bson:"p"`
	Values bson.A             `bson:"v"`
	ID     primitive.ObjectID `bson:"i"`
}

// encodeCursor кодирует позицию в непрозрачный токен для клиента.
func encodeCursor(c cursorDoc) (string, error) {
	raw, err := bson.Marshal(c)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// decodeCursor декодирует токен и сверяет его с планом.
func decodeCursor(plan storage.Plan, token string) (cursorDoc, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return cursorDoc{}, storage.ErrInvalidCursor
	}

	var c cursorDoc
	if err := bson.Unmarshal(raw, &c); err != nil {
		return cursorDoc{}, storage.ErrInvalidCursor
	}

	if c.Plan != plan.Hash() || len(c.Values) != len(plan.Order) || c.ID.IsZero() {
		return cursorDoc{}, storage.ErrInvalidCursor
	}

	return c, nil
}

// planFilter — предикат плана без сортировки и пагинации.
func planFilter(plan storage.Plan) bson.D {
	filter := bson.D{}

	if plan.Prefix != "" {
		filter = append(filter, bson.E{Key: "name", Value: bson.D{
			{Key: "$gte", Value: plan.Prefix},
			{Key: "$lt", Value: plan.RangeEnd()},
		}})
	}

	switch plan.Status.Mode {
	case storage.StatusEq:
		filter = append(filter, bson.E{Key: "status_id", Value: plan.Status.Value})
	case storage.StatusNe:
		filter = append(filter, bson.E{Key: "status_id", Value: bson.D{{Key: "$ne", Value: plan.Status.Value}}})
	}

	return filter
}

// planSort — ключи сортировки плана и _id в конце.
func planSort(plan storage.Plan) bson.D {
	sort := make(bson.D, 0, len(plan.Order)+1)
	for _, k := range plan.Order {
		dir := 1
		if k.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: sortFieldNames[k.Field], Value: dir})
	}

	return append(sort, bson.E{Key: "_id", Value: 1})
}

// afterFilter — условие «строго после позиции c» для составного ключа сортировки:
// (k1 > v1) OR (k1 = v1 AND k2 > v2) OR ... OR (все равны AND _id > id).
func afterFilter(plan storage.Plan, c cursorDoc) bson.E {
	branches := make(bson.A, 0, len(plan.Order)+1)
	eq := bson.D{}

	for i, k := range plan.Order {
		field := sortFieldNames[k.Field]
		op := "$gt"
		if k.Desc {
			op = "$lt"
		}

		branch := append(bson.D{}, eq...)
		branch = append(branch, bson.E{Key: field, Value: bson.D{{Key: op, Value: c.Values[i]}}})
		branches = append(branches, branch)

		eq = append(eq, bson.E{Key: field, Value: c.Values[i]})
	}

	last := append(bson.D{}, eq...)
	last = append(last, bson.E{Key: "_id", Value: bson.D{{Key: "$gt", Value: c.ID}}})
	branches = append(branches, last)

	return bson.E{Key: "$or", Value: branches}
}

// keysProjection — только поля сортировки и _id (для Discard).
func keysProjection(plan storage.Plan) bson.D {
	proj := bson.D{{Key: "_id", Value: 1}}
	for _, k := range plan.Order {
		proj = append(proj, bson.E{Key: sortFieldNames[k.Field], Value: 1})
	}

	return proj
}

// positionOf собирает позицию документа прямо из сырого BSON,
// чтобы курсор двигался и по документам, не прошедшим декодирование.
func positionOf(plan storage.Plan, raw bson.Raw) (cursorDoc, error) {
	oid, ok := raw.Lookup("_id").ObjectIDOK()
	if !ok {
		return cursorDoc{}, fmt.Errorf("document without ObjectID _id")
	}

	c := cursorDoc{Plan: plan.Hash(), ID: oid, Values: make(bson.A, 0, len(plan.Order))}
	for _, k := range plan.Order {
		rv, err := raw.LookupErr(sortFieldNames[k.Field])
		if err != nil {
			c.Values = append(c.Values, nil)
			continue
		}
		c.Values = append(c.Values, rv)
	}

	return c, nil
}

// find выполняет выборку плана после токена.
func (m *Mongo) find(ctx context.Context, plan storage.Plan, after string, limit int, opts *options.FindOptions) (*mongodriver.Cursor, error) {
	filter := planFilter(plan)

	if strings.TrimSpace(after) != "" {
		c, err := decodeCursor(plan, after)
		if err != nil {
			return nil, err
		}
		filter = append(filter, afterFilter(plan, c))
	}

	opts.SetSort(planSort(plan)).SetLimit(int64(limit))

	return m.profiles.Find(ctx, filter, opts)
}

// Fetch читает до limit документов после after.
// Документ, который не декодируется или не проходит валидацию, отбрасывается с WARN.
func (m *Mongo) Fetch(ctx context.Context, plan storage.Plan, after string, limit int) (storage.Batch, error) {
	const op = "storage/mongo/Fetch"

	cur, err := m.find(ctx, plan, after, limit, options.Find())
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCursor) {
			return storage.Batch{}, fmt.Errorf("%s: %w", op, err)
		}
		return storage.Batch{}, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	lg := log.From(ctx).With("op", op)

	var (
		batch storage.Batch
		last  bson.Raw
	)
	for cur.Next(ctx) {
		batch.Scanned++
		// Current валиден только до следующего Next.
		last = append(last[:0], cur.Current...)

		var doc profileDoc
		if err := cur.Decode(&doc); err != nil {
			lg.Warn("drop undecodable profile", "id", cur.Current.Lookup("_id").String(), "err", err)
			continue
		}

		p := doc.model()
		if err := models.ValidateStoredProfile(p); err != nil {
			lg.Warn("drop invalid profile", "id", p.ID, "err", err)
			continue
		}
		batch.Items = append(batch.Items, p)
	}

	if err := cur.Err(); err != nil {
		return storage.Batch{}, fmt.Errorf("%s: cursor: %w", op, err)
	}

	if last != nil {
		pos, err := positionOf(plan, last)
		if err != nil {
			return storage.Batch{}, fmt.Errorf("%s: %w", op, err)
		}
		if batch.Next, err = encodeCursor(pos); err != nil {
			return storage.Batch{}, fmt.Errorf("%s: encode cursor: %w", op, err)
		}
	}

	return batch, nil
}

// Discard пропускает n документов после after, читая только ключи сортировки.
func (m *Mongo) Discard(ctx context.Context, plan storage.Plan, after string, n int) (string, int, error) {
	const op = "storage/mongo/Discard"

	cur, err := m.find(ctx, plan, after, n, options.Find().SetProjection(keysProjection(plan)))
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	var (
		skipped int
		last    bson.Raw
	)
	for cur.Next(ctx) {
		skipped++
		last = append(last[:0], cur.Current...)
	}

	if err := cur.Err(); err != nil {
		return "", 0, fmt.Errorf("%s: cursor: %w", op, err)
	}

	if last == nil {
		return after, 0, nil
	}

	pos, err := positionOf(plan, last)
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}

	tok, err := encodeCursor(pos)
	if err != nil {
		return "", 0, fmt.Errorf("%s: encode cursor: %w", op, err)
	}

	return tok, skipped, nil
}

// Count считает документы под предикатом плана.
func (m *Mongo) Count(ctx context.Context, plan storage.Plan) (int64, error) {
	const op = "storage/mongo/Count"

	n, err := m.profiles.CountDocuments(ctx, planFilter(plan))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}
