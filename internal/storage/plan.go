package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/JeevanMahesha/studio/internal/models"
)

// PrefixSentinel — верхняя граница диапазона для поиска по префиксу:
// name >= term AND name < term+PrefixSentinel.
const PrefixSentinel = "\uf8ff"

// FieldStatusID — поле статуса; в сортировке появляется только как ведущий ключ неравенства.
const FieldStatusID models.SortField = "statusId"

// StatusMode — режим предиката по статусу.
type StatusMode int8

const (
	// StatusAny — без предиката.
	StatusAny StatusMode = iota
	// StatusEq — statusId == Value.
	StatusEq
	// StatusNe — statusId != Value.
	StatusNe
)

// StatusPredicate — предикат по statusId.
type StatusPredicate struct {
	Mode  StatusMode
	Value string
}

// OrderKey — ключ сортировки.
type OrderKey struct {
	Field models.SortField
	Desc  bool
}

// PlanOptions — ограничения конкретного хранилища.
type PlanOptions struct {
	// RejectedID — статус, исключаемый в режиме фильтра по умолчанию.
	RejectedID string
	// InequalityLeadsOrder — хранилище требует, чтобы поле с неравенством было
	// первым ключом сортировки. MongoDB этого не требует.
	InequalityLeadsOrder bool
}

// Plan — нормализованный запрос списка профилей.
// Последний ключ сортировки всегда id (в Order не входит).
type Plan struct {
	Prefix string
	Status StatusPredicate
	Order  []OrderKey
}

// NewPlan собирает план из параметров выдачи.
func NewPlan(q models.ListQuery, opts PlanOptions) (Plan, error) {
	sort, err := models.ParseSort(q.SortBy)
	if err != nil {
		return Plan{}, err
	}

	p := Plan{Prefix: q.SearchTerm}

	switch {
	case q.Status.IsIncludeAll():
		p.Status = StatusPredicate{Mode: StatusAny}
	case q.Status.IsDefault():
		if opts.RejectedID != "" {
			p.Status = StatusPredicate{Mode: StatusNe, Value: opts.RejectedID}
		}
	default:
		p.Status = StatusPredicate{Mode: StatusEq, Value: string(q.Status)}
	}

	main := OrderKey{Field: sort.Field, Desc: sort.Desc}

	if opts.InequalityLeadsOrder {
		// Поля с неравенством идут первыми, остальное — после.
		if p.Prefix != "" && main.Field != models.SortName {
			p.Order = append(p.Order, OrderKey{Field: models.SortName})
		}
		if p.Status.Mode == StatusNe && main.Field != FieldStatusID {
			p.Order = append(p.Order, OrderKey{Field: FieldStatusID})
		}
	}
	p.Order = append(p.Order, main)

	return p, nil
}

// RangeEnd возвращает верхнюю (исключающую) границу диапазона поиска.
func (p Plan) RangeEnd() string {
	return p.Prefix + PrefixSentinel
}

// Hash — стабильный отпечаток плана; кладётся в курсорные токены.
func (p Plan) Hash() string {
	var b strings.Builder
	b.WriteString("prefix=")
	b.WriteString(strconv.Quote(p.Prefix))
	b.WriteString(";status=")
	b.WriteString(strconv.Itoa(int(p.Status.Mode)))
	b.WriteByte(':')
	b.WriteString(strconv.Quote(p.Status.Value))
	b.WriteString(";order=")
	for _, k := range p.Order {
		if k.Desc {
			b.WriteByte('-')
		}
		b.WriteString(string(k.Field))
		b.WriteByte(',')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// Match проверяет профиль на соответствие предикату плана.
func (p Plan) Match(pr models.Profile) bool {
	if p.Prefix != "" && !(pr.Name >= p.Prefix && pr.Name < p.RangeEnd()) {
		return false
	}

	switch p.Status.Mode {
	case StatusEq:
		return pr.StatusID == p.Status.Value
	case StatusNe:
		return pr.StatusID != p.Status.Value
	default:
		return true
	}
}

// Compare сравнивает профили в порядке плана с id в конце: -1, 0 или 1.
func (p Plan) Compare(a, b models.Profile) int {
	for _, k := range p.Order {
		c := compareField(a, b, k.Field)
		if k.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}

	return strings.Compare(a.ID, b.ID)
}

func compareField(a, b models.Profile, f models.SortField) int {
	switch f {
	case models.SortName:
		return strings.Compare(a.Name, b.Name)
	case models.SortAge:
		return compareOrdered(a.Age, b.Age)
	case models.SortStarMatchScore:
		return compareOrdered(a.StarMatchScore, b.StarMatchScore)
	case models.SortCity:
		return strings.Compare(a.City, b.City)
	case models.SortState:
		return strings.Compare(a.State, b.State)
	case models.SortMatrimonyID:
		return strings.Compare(a.MatrimonyID, b.MatrimonyID)
	case models.SortCreatedAt:
		return compareTime(a.CreatedAt, b.CreatedAt)
	case models.SortUpdatedAt:
		return compareTime(a.UpdatedAt, b.UpdatedAt)
	case FieldStatusID:
		return strings.Compare(a.StatusID, b.StatusID)
	default:
		return 0
	}
}

func compareOrdered[T int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareTime(a, b time.Time) int {
	return a.Compare(b)
}
