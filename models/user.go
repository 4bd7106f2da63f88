package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type DonationStatsSummary struct {
	TotalAmount      Money      `bson:"total_amount" json:"totalAmount"`
	DonationsCount   int64      `bson:"donations_count" json:"donationsCount"`
	LastDonationDate *time.Time `bson:"last_donation_date,omitempty" json:"lastDonationDate,omitempty"`
}

type User struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name          string               `bson:"name" json:"name"`
	Email         string               `bson:"email" json:"email"`
	PasswordHash  string               `bson:"password_hash" json:"-"`
	Role          string               `bson:"role" json:"role"`
	DonationStats DonationStatsSummary `bson:"donation_stats" json:"donationStats"`

	// ids of donations already counted in DonationStats
	ReconciledDonations []primitive.ObjectID `bson:"reconciled_donations,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// UserSummary is the populated form of a donation's user reference.
type UserSummary struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
}
