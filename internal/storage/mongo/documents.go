package mongo

import (
	"time"

	"github.com/JeevanMahesha/studio/internal/models"
	"github.com/JeevanMahesha/studio/internal/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// profileDoc — документ коллекции profiles.
type profileDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	CasteRaise     string             `bson:"caste_raise"`
	Age            int                `bson:"age"`
	Star           string             `bson:"star"`
	StarMatchScore float64            `bson:"star_match_score"`
	City           string             `bson:"city"`
	State          string             `bson:"state"`
	MobileNumber   string             `bson:"mobile_number"`
	StatusID       string             `bson:"status_id"`
	MatrimonyID    string             `bson:"matrimony_id"`
	Comments       []string           `bson:"comments"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

// statusDoc — документ коллекции statuses; _id строковый.
type statusDoc struct {
	ID          string `bson:"_id"`
	Name        string `bson:"name"`
	Description string `bson:"description,omitempty"`
}

// sortFieldNames — соответствие полей сортировки именам в документе.
var sortFieldNames = map[models.SortField]string{
	models.SortName:           "name",
	models.SortAge:            "age",
	models.SortStarMatchScore: "star_match_score",
	models.SortCity:           "city",
	models.SortState:          "state",
	models.SortMatrimonyID:    "matrimony_id",
	models.SortCreatedAt:      "created_at",
	models.SortUpdatedAt:      "updated_at",
	storage.FieldStatusID:     "status_id",
}

func toProfileDoc(p models.Profile) profileDoc {
	comments := p.Comments
	if comments == nil {
		comments = []string{}
	}

	return profileDoc{
		Name:           p.Name,
		CasteRaise:     p.CasteRaise,
		Age:            p.Age,
		Star:           p.Star,
		StarMatchScore: p.StarMatchScore,
		City:           p.City,
		State:          p.State,
		MobileNumber:   p.MobileNumber,
		StatusID:       p.StatusID,
		MatrimonyID:    p.MatrimonyID,
		Comments:       comments,
		CreatedAt:      toMS(p.CreatedAt),
		UpdatedAt:      toMS(p.UpdatedAt),
	}
}

func (d profileDoc) model() models.Profile {
	comments := d.Comments
	if comments == nil {
		comments = []string{}
	}

	return models.Profile{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		CasteRaise:     d.CasteRaise,
		Age:            d.Age,
		Star:           d.Star,
		StarMatchScore: d.StarMatchScore,
		City:           d.City,
		State:          d.State,
		MobileNumber:   d.MobileNumber,
		StatusID:       d.StatusID,
		MatrimonyID:    d.MatrimonyID,
		Comments:       comments,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
}

func (d statusDoc) model() models.ProfileStatus {
	return models.ProfileStatus{ID: d.ID, Name: d.Name, Description: d.Description}
}
