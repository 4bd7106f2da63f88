package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AnimalAvailable = "available"
	AnimalReserved  = "reserved"
	AnimalAdopted   = "adopted"
)

type Animal struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ShelterID       primitive.ObjectID `bson:"shelter_id" json:"shelterId"`
	Name            string             `bson:"name" json:"name"`
	Species         string             `bson:"species" json:"species"` // dog, cat, other
	Breed           string             `bson:"breed,omitempty" json:"breed,omitempty"`
	AgeMonths       int                `bson:"age_months,omitempty" json:"ageMonths,omitempty"`
	Description     string             `bson:"description,omitempty" json:"description,omitempty"`
	Status          string             `bson:"status" json:"status"`
	Images          []string           `bson:"images" json:"images"`
	DonationGoal    float64            `bson:"donation_goal" json:"donationGoal"`
	DonationCurrent Money              `bson:"donation_current" json:"donationCurrent"`

	ReconciledDonations []primitive.ObjectID `bson:"reconciled_donations,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}
