package routes

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/shelter-donations-go/models"
)

type mockDonations struct{ mock.Mock }

func (m *mockDonations) Insert(ctx context.Context, d *models.Donation) error {
	return m.Called(ctx, d).Error(0)
}

func (m *mockDonations) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*models.Donation)
	return d, args.Error(1)
}

func (m *mockDonations) UpdateStatus(ctx context.Context, id primitive.ObjectID, status, transactionID string) (*models.Donation, error) {
	args := m.Called(ctx, id, status, transactionID)
	d, _ := args.Get(0).(*models.Donation)
	return d, args.Error(1)
}

func (m *mockDonations) SetReconciled(ctx context.Context, id primitive.ObjectID, reconciled bool, at time.Time) (bool, error) {
	args := m.Called(ctx, id, reconciled, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockDonations) MarkSynced(ctx context.Context, id primitive.ObjectID, status string) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockDonations) List(ctx context.Context, filter models.DonationFilter, page, limit int) ([]models.Donation, int64, error) {
	args := m.Called(ctx, filter, page, limit)
	items, _ := args.Get(0).([]models.Donation)
	return items, args.Get(1).(int64), args.Error(2)
}

func (m *mockDonations) ListOutOfSync(ctx context.Context, limit int) ([]models.Donation, error) {
	args := m.Called(ctx, limit)
	items, _ := args.Get(0).([]models.Donation)
	return items, args.Error(1)
}

func (m *mockDonations) Stats(ctx context.Context) (*models.DonationStats, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*models.DonationStats)
	return s, args.Error(1)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *mockUsers) ApplyDonation(ctx context.Context, userID, donationID primitive.ObjectID, amount float64, at time.Time) (bool, error) {
	args := m.Called(ctx, userID, donationID, amount, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockUsers) RevertDonation(ctx context.Context, userID, donationID primitive.ObjectID, amount float64) (bool, error) {
	args := m.Called(ctx, userID, donationID, amount)
	return args.Bool(0), args.Error(1)
}

type mockBeneficiaries struct{ mock.Mock }

func (m *mockBeneficiaries) Exists(ctx context.Context, target string, id primitive.ObjectID) (bool, error) {
	args := m.Called(ctx, target, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockBeneficiaries) FindShelter(ctx context.Context, id primitive.ObjectID) (*models.Shelter, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*models.Shelter)
	return s, args.Error(1)
}

func (m *mockBeneficiaries) FindAnimal(ctx context.Context, id primitive.ObjectID) (*models.Animal, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*models.Animal)
	return a, args.Error(1)
}

func (m *mockBeneficiaries) ApplyDonation(ctx context.Context, target string, id, donationID primitive.ObjectID, amount float64) (bool, error) {
	args := m.Called(ctx, target, id, donationID, amount)
	return args.Bool(0), args.Error(1)
}

func (m *mockBeneficiaries) RevertDonation(ctx context.Context, target string, id, donationID primitive.ObjectID, amount float64) (bool, error) {
	args := m.Called(ctx, target, id, donationID, amount)
	return args.Bool(0), args.Error(1)
}
