package models

// ProfileStatus — этап воронки (элемент таксономии), на который ссылаются профили.
type ProfileStatus struct {
	ID          string `json:"id"`
	Name        string `json:"name"        validate:"notblank"`
	Description string `json:"description,omitempty"`
}

// StatusUpdate — частичный апдейт статуса.
type StatusUpdate struct {
	Name        *string `json:"name"        validate:"omitnil,notblank"`
	Description *string `json:"description"`
}

// Empty сообщает, что апдейт ничего не меняет.
func (u StatusUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil
}

// Apply накладывает апдейт на копию статуса.
func (u StatusUpdate) Apply(s ProfileStatus) ProfileStatus {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Description != nil {
		s.Description = *u.Description
	}

	return s
}

// Идентификаторы стандартных статусов.
const (
	StatusNew              = "new"
	StatusContacted        = "contacted"
	StatusMeetingScheduled = "meeting-scheduled"
	StatusRejected         = "rejected"
	StatusAccepted         = "accepted"
	StatusOnHold           = "on-hold"
	StatusShared           = "shared"
)

// StatusDisplay — отображение статуса в списках: порядок и цвет бейджа.
// Меньший Priority выводится раньше.
type StatusDisplay struct {
	Priority int    `json:"priority"`
	Color    string `json:"color"`
}

// Для неизвестных статусов: нейтральный бейдж в конце списка.
const (
	neutralColor   = "gray"
	lowestPriority = 100
)

var wellKnown = []struct {
	status  ProfileStatus
	display StatusDisplay
}{
	{ProfileStatus{ID: StatusNew, Name: "New", Description: "Profile just added, not contacted yet"}, StatusDisplay{Priority: 1, Color: "blue"}},
	{ProfileStatus{ID: StatusContacted, Name: "Contacted", Description: "Family has been contacted"}, StatusDisplay{Priority: 2, Color: "yellow"}},
	{ProfileStatus{ID: StatusMeetingScheduled, Name: "Meeting Scheduled", Description: "Meeting with the family is scheduled"}, StatusDisplay{Priority: 3, Color: "purple"}},
	{ProfileStatus{ID: StatusShared, Name: "Profile Shared", Description: "Profile shared with the family"}, StatusDisplay{Priority: 4, Color: "teal"}},
	{ProfileStatus{ID: StatusOnHold, Name: "On Hold", Description: "Decision postponed"}, StatusDisplay{Priority: 5, Color: "orange"}},
	{ProfileStatus{ID: StatusAccepted, Name: "Accepted", Description: "Both sides agreed to proceed"}, StatusDisplay{Priority: 6, Color: "green"}},
	{ProfileStatus{ID: StatusRejected, Name: "Rejected", Description: "Profile is not a match"}, StatusDisplay{Priority: 7, Color: "red"}},
}

// DefaultStatuses возвращает набор статусов для засева пустой коллекции.
func DefaultStatuses() []ProfileStatus {
	out := make([]ProfileStatus, 0, len(wellKnown))
	for _, w := range wellKnown {
		out = append(out, w.status)
	}

	return out
}

// StatusDisplayFor возвращает отображение статуса по id.
// Для неизвестного id — нейтральный бейдж с наименьшим приоритетом.
func StatusDisplayFor(id string) StatusDisplay {
	for _, w := range wellKnown {
		if w.status.ID == id {
			return w.display
		}
	}

	return StatusDisplay{Priority: lowestPriority, Color: neutralColor}
}
