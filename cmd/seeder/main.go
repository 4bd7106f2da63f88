package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	config "github.com/phillip/shelter-donations-go/config"
	models "github.com/phillip/shelter-donations-go/models"
	repository "github.com/phillip/shelter-donations-go/repository"
	services "github.com/phillip/shelter-donations-go/services"
)

type seedDonation struct {
	amount float64
	name   string
	email  string
	target string
}

var seedDonations = []seedDonation{
	{100, "Olena Koval", "olena@example.com", models.TargetShelter},
	{250, "Taras Bondar", "taras@example.com", models.TargetAnimal},
	{500, "Olena Koval", "olena@example.com", models.TargetGeneral},
	{1000, "Iryna Melnyk", "iryna@example.com", models.TargetShelter},
	{150, "Anonymous Friend", "friend@example.com", models.TargetAnimal},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := cfg.ConnectMongo(ctx); err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer cfg.MongoClient.Disconnect(context.Background())

	db := cfg.DB()
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal("Failed to create indexes", zap.Error(err))
	}

	logger.Info("--- Seeding Database ---")

	count, err := db.Collection("donations").CountDocuments(ctx, bson.M{})
	if err != nil {
		logger.Fatal("Failed to count donations", zap.Error(err))
	}
	if count > 0 {
		logger.Info("Database already has donations. Skipping.", zap.Int64("count", count))
		return
	}

	users := repository.NewUserRepository(db)
	adminPassword := os.Getenv("SEED_ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "change-me-admin"
	}
	admin := mustUser(ctx, logger, users, "Shelter Admin", "admin@example.com", adminPassword, models.RoleAdmin)
	olena := mustUser(ctx, logger, users, "Olena Koval", "olena@example.com", "olena-password", models.RoleUser)
	mustUser(ctx, logger, users, "Taras Bondar", "taras@example.com", "taras-password", models.RoleUser)

	now := time.Now()
	shelter := models.Shelter{
		ID:           primitive.NewObjectID(),
		OwnerID:      admin.ID,
		Name:         "Happy Paws Shelter",
		Description:  "Dogs and cats waiting for a home",
		Coordinates:  models.Coordinates{Lat: 50.4501, Lng: 30.5234},
		Location:     "Kyiv",
		Images:       []string{},
		DonationGoal: 50000,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := db.Collection(repository.SheltersCollection).InsertOne(ctx, shelter); err != nil {
		logger.Fatal("Failed to insert shelter", zap.Error(err))
	}

	animal := models.Animal{
		ID:           primitive.NewObjectID(),
		ShelterID:    shelter.ID,
		Name:         "Barsik",
		Species:      "cat",
		AgeMonths:    18,
		Status:       models.AnimalAvailable,
		Images:       []string{},
		DonationGoal: 5000,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := db.Collection(repository.AnimalsCollection).InsertOne(ctx, animal); err != nil {
		logger.Fatal("Failed to insert animal", zap.Error(err))
	}

	// sandbox mode completes and reconciles each donation on creation
	donationRepo := repository.NewDonationRepository(db)
	beneficiaries := repository.NewBeneficiaryRepository(db)
	reconciler := services.NewReconciler(donationRepo, users, beneficiaries, logger)
	svc := services.NewDonationService(donationRepo, users, beneficiaries, reconciler, true, logger)

	for _, sd := range seedDonations {
		in := services.CreateDonationInput{
			Amount:        sd.amount,
			DonorName:     sd.name,
			DonorEmail:    sd.email,
			Target:        sd.target,
			PaymentMethod: models.PaymentCard,
		}
		switch sd.target {
		case models.TargetShelter:
			in.TargetID = shelter.ID.Hex()
		case models.TargetAnimal:
			in.TargetID = animal.ID.Hex()
		}

		d, err := svc.Create(ctx, nil, in)
		if err != nil {
			logger.Fatal("Failed to create donation", zap.Float64("amount", sd.amount), zap.Error(err))
		}
		logger.Info("Seeded donation",
			zap.String("id", d.ID.Hex()),
			zap.Float64("amount", d.Amount),
			zap.Bool("reconciled", d.Reconciled))
	}

	logger.Info("Seeding complete",
		zap.Int("donations", len(seedDonations)),
		zap.String("admin", admin.Email),
		zap.String("sample_user", olena.Email))
}

func mustUser(ctx context.Context, logger *zap.Logger, users *repository.UserRepository, name, email, password, role string) *models.User {
	if existing, err := users.FindByEmail(ctx, email); err == nil {
		return existing
	} else if !errors.Is(err, services.ErrNotFound) {
		logger.Fatal("Failed to look up user", zap.String("email", email), zap.Error(err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Fatal("Failed to hash password", zap.Error(err))
	}
	now := time.Now()
	u := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, u); err != nil {
		logger.Fatal("Failed to create user", zap.String("email", email), zap.Error(err))
	}
	return u
}
