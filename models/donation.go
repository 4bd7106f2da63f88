package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MinDonationAmount is the smallest accepted donation, in currency units.
const MinDonationAmount = 20

const (
	DonationPending    = "pending"
	DonationProcessing = "processing"
	DonationCompleted  = "completed"
	DonationFailed     = "failed"
	DonationRefunded   = "refunded"
)

const (
	TargetGeneral = "general"
	TargetShelter = "shelter"
	TargetAnimal  = "animal"
)

const (
	TargetModelShelter = "Shelter"
	TargetModelAnimal  = "Animal"
)

const (
	PaymentCard   = "card"
	PaymentLiqPay = "liqpay"
	PaymentPayPal = "paypal"
	PaymentCrypto = "crypto"
)

type Donation struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Amount        float64             `bson:"amount" json:"amount"`
	DonorName     string              `bson:"donor_name,omitempty" json:"donorName,omitempty"`
	DonorEmail    string              `bson:"donor_email,omitempty" json:"donorEmail,omitempty"`
	Message       string              `bson:"message,omitempty" json:"message,omitempty"`
	User          *primitive.ObjectID `bson:"user,omitempty" json:"user,omitempty"`
	Target        string              `bson:"target" json:"target"`
	TargetID      *primitive.ObjectID `bson:"target_id,omitempty" json:"targetId,omitempty"`
	TargetModel   string              `bson:"target_model,omitempty" json:"targetModel,omitempty"`
	PaymentMethod string              `bson:"payment_method" json:"paymentMethod"`
	Status        string              `bson:"status" json:"status"`
	TransactionID string              `bson:"transaction_id,omitempty" json:"transactionId,omitempty"`

	// Reconciled is true while the donation's amount is counted in the user
	// and beneficiary aggregates.
	Reconciled   bool       `bson:"reconciled" json:"reconciled"`
	ReconciledAt *time.Time `bson:"reconciled_at,omitempty" json:"reconciledAt,omitempty"`
	// SyncPending is set with every status write and cleared once the
	// aggregates have been brought in line with that status.
	SyncPending bool `bson:"sync_pending" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// InSync reports whether the aggregates agree with the donation status.
func (d *Donation) InSync() bool {
	return !d.SyncPending && (d.Status == DonationCompleted) == d.Reconciled
}

func IsValidDonationStatus(s string) bool {
	switch s {
	case DonationPending, DonationProcessing, DonationCompleted, DonationFailed, DonationRefunded:
		return true
	}
	return false
}

func IsValidTarget(t string) bool {
	return t == TargetGeneral || t == TargetShelter || t == TargetAnimal
}

func IsValidPaymentMethod(m string) bool {
	switch m {
	case PaymentCard, PaymentLiqPay, PaymentPayPal, PaymentCrypto:
		return true
	}
	return false
}

// TargetModelFor maps a donation target to the beneficiary model name.
func TargetModelFor(target string) string {
	switch target {
	case TargetShelter:
		return TargetModelShelter
	case TargetAnimal:
		return TargetModelAnimal
	}
	return ""
}

// DonationStats is the public reporting aggregate over completed donations.
type DonationStats struct {
	TotalAmount          float64 `bson:"totalAmount" json:"totalAmount"`
	CountDonations       int64   `bson:"countDonations" json:"countDonations"`
	UniqueDonorsCount    int64   `bson:"uniqueDonorsCount" json:"uniqueDonorsCount"`
	SheltersDonatedCount int64   `bson:"sheltersDonatedCount" json:"sheltersDonatedCount"`
	AnimalsDonatedCount  int64   `bson:"animalsDonatedCount" json:"animalsDonatedCount"`
}

// DonationFilter narrows ledger listings. Zero values mean "any".
type DonationFilter struct {
	Status string
	Target string
	User   *primitive.ObjectID
	From   *time.Time
	To     *time.Time
}
