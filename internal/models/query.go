package models

import (
	"fmt"
	"strings"
)

// StatusIncludeAll — значение фильтра статуса, отключающее исключение отклонённых.
const StatusIncludeAll = "include-all"

// StatusFilter — фильтр по статусу.
//   - "" — режим по умолчанию: отклонённые профили исключаются;
//   - StatusIncludeAll — без фильтра по статусу;
//   - любое другое значение — ровно этот statusId.
type StatusFilter string

// IsDefault — режим по умолчанию (исключить отклонённые).
func (f StatusFilter) IsDefault() bool { return f == "" }

// IsIncludeAll — режим без фильтра.
func (f StatusFilter) IsIncludeAll() bool { return f == StatusIncludeAll }

// SortField — поле профиля, по которому допустима сортировка.
type SortField string

const (
	SortName           SortField = "name"
	SortAge            SortField = "age"
	SortStarMatchScore SortField = "starMatchScore"
	SortCity           SortField = "city"
	SortState          SortField = "state"
	SortMatrimonyID    SortField = "matrimonyId"
	SortCreatedAt      SortField = "createdAt"
	SortUpdatedAt      SortField = "updatedAt"
)

// DefaultSortField — сортировка по умолчанию («последние изменения»).
const DefaultSortField = SortUpdatedAt

var sortFields = map[SortField]struct{}{
	SortName: {}, SortAge: {}, SortStarMatchScore: {}, SortCity: {},
	SortState: {}, SortMatrimonyID: {}, SortCreatedAt: {}, SortUpdatedAt: {},
}

// Sort — разобранное значение sortBy.
type Sort struct {
	Field SortField
	Desc  bool
}

// String возвращает sortBy в исходном виде ("-field" для убывания).
func (s Sort) String() string {
	if s.Desc {
		return "-" + string(s.Field)
	}

	return string(s.Field)
}

// ParseSort разбирает sortBy: "field" — по возрастанию, "-field" — по убыванию.
// Пустая строка — сортировка по умолчанию.
func ParseSort(raw string) (Sort, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Sort{Field: DefaultSortField}, nil
	}

	s := Sort{}
	if strings.HasPrefix(raw, "-") {
		s.Desc = true
		raw = raw[1:]
	}

	s.Field = SortField(raw)
	if _, ok := sortFields[s.Field]; !ok {
		return Sort{}, &ValidationError{Fields: map[string]string{
			"sortBy": fmt.Sprintf("unsupported sort field %q", raw),
		}}
	}

	return s, nil
}

// ListQuery — параметры выдачи списка профилей.
// Page — с единицы; PageSize=0 означает размер страницы по умолчанию.
type ListQuery struct {
	SearchTerm string
	Status     StatusFilter
	SortBy     string
	Page       int32
	PageSize   int32
}
