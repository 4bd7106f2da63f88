package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/phillip/shelter-donations-go/models"
	"github.com/phillip/shelter-donations-go/services"
)

const (
	SheltersCollection = "shelters"
	AnimalsCollection  = "animals"
)

// BeneficiaryRepository covers the shelters and animals collections, which
// share the donation_current / reconciled_donations layout.
type BeneficiaryRepository struct {
	shelters *mongo.Collection
	animals  *mongo.Collection
}

func NewBeneficiaryRepository(db *mongo.Database) *BeneficiaryRepository {
	return &BeneficiaryRepository{
		shelters: db.Collection(SheltersCollection),
		animals:  db.Collection(AnimalsCollection),
	}
}

func (r *BeneficiaryRepository) collection(target string) (*mongo.Collection, error) {
	switch target {
	case models.TargetShelter:
		return r.shelters, nil
	case models.TargetAnimal:
		return r.animals, nil
	}
	return nil, fmt.Errorf("unknown beneficiary target %q", target)
}

func (r *BeneficiaryRepository) Exists(ctx context.Context, target string, id primitive.ObjectID) (bool, error) {
	col, err := r.collection(target)
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := col.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *BeneficiaryRepository) FindShelter(ctx context.Context, id primitive.ObjectID) (*models.Shelter, error) {
	var s models.Shelter
	if err := r.findOne(ctx, r.shelters, id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *BeneficiaryRepository) FindAnimal(ctx context.Context, id primitive.ObjectID) (*models.Animal, error) {
	var a models.Animal
	if err := r.findOne(ctx, r.animals, id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *BeneficiaryRepository) findOne(ctx context.Context, col *mongo.Collection, id primitive.ObjectID, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := col.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", col.Name(), id.Hex(), services.ErrNotFound)
	}
	return err
}

func (r *BeneficiaryRepository) ApplyDonation(ctx context.Context, target string, id, donationID primitive.ObjectID, amount float64) (bool, error) {
	return r.adjust(ctx, target,
		bson.M{"_id": id, "reconciled_donations": bson.M{"$ne": donationID}},
		bson.M{
			"$inc":      bson.M{"donation_current": models.NewMoney(amount).Decimal128()},
			"$set":      bson.M{"updated_at": time.Now()},
			"$addToSet": bson.M{"reconciled_donations": donationID},
		})
}

func (r *BeneficiaryRepository) RevertDonation(ctx context.Context, target string, id, donationID primitive.ObjectID, amount float64) (bool, error) {
	return r.adjust(ctx, target,
		bson.M{"_id": id, "reconciled_donations": donationID},
		bson.M{
			"$inc":  bson.M{"donation_current": models.NewMoney(amount).Neg().Decimal128()},
			"$set":  bson.M{"updated_at": time.Now()},
			"$pull": bson.M{"reconciled_donations": donationID},
		})
}

func (r *BeneficiaryRepository) adjust(ctx context.Context, target string, filter, update bson.M) (bool, error) {
	col, err := r.collection(target)
	if err != nil {
		return false, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}
