package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/phillip/shelter-donations-go/models"
	"github.com/phillip/shelter-donations-go/services"
)

const donationsCollection = "donations"

type DonationRepository struct {
	col *mongo.Collection
}

func NewDonationRepository(db *mongo.Database) *DonationRepository {
	return &DonationRepository{col: db.Collection(donationsCollection)}
}

func (r *DonationRepository) Insert(ctx context.Context, d *models.Donation) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, d)
	return err
}

func (r *DonationRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var d models.Donation
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("donation %s: %w", id.Hex(), services.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DonationRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status, transactionID string) (*models.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{"status": status, "sync_pending": true, "updated_at": time.Now()}
	if transactionID != "" {
		set["transaction_id"] = transactionID
	}

	var d models.Donation
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("donation %s: %w", id.Hex(), services.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DonationRepository) SetReconciled(ctx context.Context, id primitive.ObjectID, reconciled bool, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{"$set": bson.M{"reconciled": reconciled, "reconciled_at": at, "updated_at": at}}
	if !reconciled {
		update = bson.M{
			"$set":   bson.M{"reconciled": false, "updated_at": at},
			"$unset": bson.M{"reconciled_at": ""},
		}
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "reconciled": bson.M{"$ne": reconciled}}, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// MarkSynced clears the pending marker, but only while the donation still
// has the status the aggregates were synced against.
func (r *DonationRepository) MarkSynced(ctx context.Context, id primitive.ObjectID, status string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": status, "sync_pending": true},
		bson.M{"$set": bson.M{"sync_pending": false}},
	)
	return err
}

func (r *DonationRepository) List(ctx context.Context, filter models.DonationFilter, page, limit int) ([]models.Donation, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := donationQuery(filter)
	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(models.Skip(page, limit)).
		SetLimit(int64(limit))
	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}

	var donations []models.Donation
	if err := cursor.All(ctx, &donations); err != nil {
		return nil, 0, err
	}
	return donations, total, nil
}

func (r *DonationRepository) ListOutOfSync(ctx context.Context, limit int) ([]models.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := bson.M{"$or": bson.A{
		bson.M{"sync_pending": true},
		bson.M{"status": models.DonationCompleted, "reconciled": bson.M{"$ne": true}},
		bson.M{"status": bson.M{"$ne": models.DonationCompleted}, "reconciled": true},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	var donations []models.Donation
	if err := cursor.All(ctx, &donations); err != nil {
		return nil, err
	}
	return donations, nil
}

// Stats aggregates completed donations in a single $group stage.
func (r *DonationRepository) Stats(ctx context.Context) (*models.DonationStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	distinctTarget := func(kind string) bson.M {
		return bson.M{"$addToSet": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$target", kind}},
			"$target_id",
			"$$REMOVE",
		}}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.DonationCompleted}}},
		{{Key: "$group", Value: bson.M{
			"_id":            nil,
			"totalAmount":    bson.M{"$sum": "$amount"},
			"countDonations": bson.M{"$sum": 1},
			"donors":         bson.M{"$addToSet": "$donor_email"},
			"shelters":       distinctTarget(models.TargetShelter),
			"animals":        distinctTarget(models.TargetAnimal),
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":                  0,
			"totalAmount":          1,
			"countDonations":       1,
			"uniqueDonorsCount":    bson.M{"$size": "$donors"},
			"sheltersDonatedCount": bson.M{"$size": "$shelters"},
			"animalsDonatedCount":  bson.M{"$size": "$animals"},
		}}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []models.DonationStats
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &models.DonationStats{}, nil
	}
	return &rows[0], nil
}

func donationQuery(f models.DonationFilter) bson.M {
	query := bson.M{}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.Target != "" {
		query["target"] = f.Target
	}
	if f.User != nil {
		query["user"] = *f.User
	}
	created := bson.M{}
	if f.From != nil {
		created["$gte"] = *f.From
	}
	if f.To != nil {
		created["$lte"] = *f.To
	}
	if len(created) > 0 {
		query["created_at"] = created
	}
	return query
}
