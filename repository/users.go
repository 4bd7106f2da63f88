package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/phillip/shelter-donations-go/models"
	"github.com/phillip/shelter-donations-go/services"
)

const usersCollection = "users"

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(usersCollection)}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.col.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("user %s: %w", u.Email, services.ErrConflict)
	}
	return err
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id}, id.Hex())
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.findOne(ctx, bson.M{"email": email}, email)
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M, ref string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var u models.User
	err := r.col.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %s: %w", ref, services.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ApplyDonation counts a donation once: the filter excludes users that
// already list donationID, and the same update records it.
func (r *UserRepository) ApplyDonation(ctx context.Context, userID, donationID primitive.ObjectID, amount float64, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": userID, "reconciled_donations": bson.M{"$ne": donationID}},
		bson.M{
			"$inc": bson.M{
				"donation_stats.total_amount":    models.NewMoney(amount).Decimal128(),
				"donation_stats.donations_count": 1,
			},
			"$set": bson.M{
				"donation_stats.last_donation_date": at,
				"updated_at":                        at,
			},
			"$addToSet": bson.M{"reconciled_donations": donationID},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *UserRepository) RevertDonation(ctx context.Context, userID, donationID primitive.ObjectID, amount float64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": userID, "reconciled_donations": donationID},
		bson.M{
			"$inc": bson.M{
				"donation_stats.total_amount":    models.NewMoney(amount).Neg().Decimal128(),
				"donation_stats.donations_count": -1,
			},
			"$set":  bson.M{"updated_at": time.Now()},
			"$pull": bson.M{"reconciled_donations": donationID},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}
