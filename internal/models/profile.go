// models содержит доменные сущности profiles-service.
// Эти типы используются слоями бизнес-логики, хранилища и транспорта.
package models

import "time"

// Profile — анкета кандидата.
// Важно:
//   - ID присваивает хранилище, после создания не меняется.
//   - StatusID — мягкая ссылка на ProfileStatus, проверяется только при записи.
//   - Comments — канонически список строк.
//   - CreatedAt ставится один раз, UpdatedAt обновляется при каждой записи.
type Profile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"           validate:"notblank"`
	CasteRaise     string    `json:"casteRaise"     validate:"notblank"`
	Age            int       `json:"age"            validate:"min=18"`
	Star           string    `json:"star"           validate:"notblank"`
	StarMatchScore float64   `json:"starMatchScore" validate:"gte=0,lte=10"`
	City           string    `json:"city"           validate:"notblank"`
	State          string    `json:"state"          validate:"notblank"`
	MobileNumber   string    `json:"mobileNumber"   validate:"min=10,phone"`
	StatusID       string    `json:"statusId"       validate:"notblank"`
	MatrimonyID    string    `json:"matrimonyId"    validate:"notblank"`
	Comments       []string  `json:"comments"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ProfileUpdate — частичный апдейт профиля.
// Параметры задаются pointer-полями: обновляются только непустые указатели.
type ProfileUpdate struct {
	Name           *string   `json:"name"           validate:"omitnil,notblank"`
	CasteRaise     *string   `json:"casteRaise"     validate:"omitnil,notblank"`
	Age            *int      `json:"age"            validate:"omitnil,min=18"`
	Star           *string   `json:"star"           validate:"omitnil,notblank"`
	StarMatchScore *float64  `json:"starMatchScore" validate:"omitnil,gte=0,lte=10"`
	City           *string   `json:"city"           validate:"omitnil,notblank"`
	State          *string   `json:"state"          validate:"omitnil,notblank"`
	MobileNumber   *string   `json:"mobileNumber"   validate:"omitnil,min=10,phone"`
	StatusID       *string   `json:"statusId"       validate:"omitnil,notblank"`
	MatrimonyID    *string   `json:"matrimonyId"    validate:"omitnil,notblank"`
	Comments       *[]string `json:"comments"`
}

// Empty сообщает, что апдейт ничего не меняет.
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.CasteRaise == nil && u.Age == nil && u.Star == nil &&
		u.StarMatchScore == nil && u.City == nil && u.State == nil && u.MobileNumber == nil &&
		u.StatusID == nil && u.MatrimonyID == nil && u.Comments == nil
}

// Apply накладывает апдейт на копию профиля.
func (u ProfileUpdate) Apply(p Profile) Profile {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.CasteRaise != nil {
		p.CasteRaise = *u.CasteRaise
	}
	if u.Age != nil {
		p.Age = *u.Age
	}
	if u.Star != nil {
		p.Star = *u.Star
	}
	if u.StarMatchScore != nil {
		p.StarMatchScore = *u.StarMatchScore
	}
	if u.City != nil {
		p.City = *u.City
	}
	if u.State != nil {
		p.State = *u.State
	}
	if u.MobileNumber != nil {
		p.MobileNumber = *u.MobileNumber
	}
	if u.StatusID != nil {
		p.StatusID = *u.StatusID
	}
	if u.MatrimonyID != nil {
		p.MatrimonyID = *u.MatrimonyID
	}
	if u.Comments != nil {
		p.Comments = append([]string(nil), (*u.Comments)...)
	}

	return p
}

// ProfileOptions — уникальные значения для выпадающих списков фильтров/формы.
type ProfileOptions struct {
	Cities []string `json:"cities"`
	States []string `json:"states"`
	Stars  []string `json:"stars"`
}

// ProfilePage — результат постраничной выдачи.
// Total не зависит от Page/PageSize: это число всех документов под фильтром.
type ProfilePage struct {
	Items         []Profile `json:"items"`
	Total         int64     `json:"total"`
	Page          int32     `json:"page"`
	PageSize      int32     `json:"pageSize"`
	NextPageToken string    `json:"nextPageToken,omitempty"`
}
