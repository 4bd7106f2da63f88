package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Coordinates struct for latitude and longitude
type Coordinates struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

type Shelter struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID         primitive.ObjectID `bson:"owner_id" json:"ownerId"`
	Name            string             `bson:"name" json:"name"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	Coordinates     Coordinates        `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
	Location        string             `bson:"location,omitempty" json:"location,omitempty"`
	Phone           string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Email           string             `bson:"email,omitempty" json:"email,omitempty"`
	Images          []string           `bson:"images" json:"images"`
	DonationGoal    float64            `bson:"donation_goal" json:"donationGoal"`
	DonationCurrent Money              `bson:"donation_current" json:"donationCurrent"`

	ReconciledDonations []primitive.ObjectID `bson:"reconciled_donations,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}
