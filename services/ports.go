package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/shelter-donations-go/models"
)

// Identity is the caller resolved from an authorization credential.
// A nil *Identity means the request was anonymous.
type Identity struct {
	UserID primitive.ObjectID
	Role   string
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// CanAccessUser reports whether the caller may read userID's private data.
func (i *Identity) CanAccessUser(userID primitive.ObjectID) bool {
	if i == nil {
		return false
	}
	return i.IsAdmin() || i.UserID == userID
}

// DonationRepository is the ledger.
type DonationRepository interface {
	Insert(ctx context.Context, d *models.Donation) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error)
	// UpdateStatus overwrites status, and transactionID when non-empty, and
	// returns the updated record.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status, transactionID string) (*models.Donation, error)
	// SetReconciled flips the reconciled flag and reports whether this call
	// changed it.
	SetReconciled(ctx context.Context, id primitive.ObjectID, reconciled bool, at time.Time) (bool, error)
	// MarkSynced clears the sync_pending marker if the donation still has
	// the given status.
	MarkSynced(ctx context.Context, id primitive.ObjectID, status string) error
	List(ctx context.Context, filter models.DonationFilter, page, limit int) ([]models.Donation, int64, error)
	// ListOutOfSync returns donations whose reconciled flag disagrees with
	// their status or whose last status write was never synced, oldest first.
	ListOutOfSync(ctx context.Context, limit int) ([]models.Donation, error)
	StatsSource
}

// StatsSource aggregates completed donations.
type StatsSource interface {
	Stats(ctx context.Context) (*models.DonationStats, error)
}

// UserRepository is the identity store. Apply and Revert are guarded per
// donation id so replays do not double count.
type UserRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ApplyDonation(ctx context.Context, userID, donationID primitive.ObjectID, amount float64, at time.Time) (bool, error)
	RevertDonation(ctx context.Context, userID, donationID primitive.ObjectID, amount float64) (bool, error)
}

// BeneficiaryRepository is the shelter and animal registry, addressed by
// donation target kind.
type BeneficiaryRepository interface {
	Exists(ctx context.Context, target string, id primitive.ObjectID) (bool, error)
	FindShelter(ctx context.Context, id primitive.ObjectID) (*models.Shelter, error)
	FindAnimal(ctx context.Context, id primitive.ObjectID) (*models.Animal, error)
	ApplyDonation(ctx context.Context, target string, id, donationID primitive.ObjectID, amount float64) (bool, error)
	RevertDonation(ctx context.Context, target string, id, donationID primitive.ObjectID, amount float64) (bool, error)
}

// Notifier is told once per donation when it is first counted as completed.
type Notifier interface {
	DonationCompleted(ctx context.Context, d *models.Donation) error
}

// StatsCache stores the serialized stats aggregate.
type StatsCache interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, namespace, key string) error
}
