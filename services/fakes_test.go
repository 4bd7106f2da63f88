package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/phillip/shelter-donations-go/models"
)

type memDonations struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]models.Donation
}

func newMemDonations() *memDonations {
	return &memDonations{items: map[primitive.ObjectID]models.Donation{}}
}

func (m *memDonations) Insert(_ context.Context, d *models.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[d.ID] = *d
	return nil
}

func (m *memDonations) FindByID(_ context.Context, id primitive.ObjectID) (*models.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *memDonations) UpdateStatus(_ context.Context, id primitive.ObjectID, status, txID string) (*models.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	d.Status = status
	if txID != "" {
		d.TransactionID = txID
	}
	d.SyncPending = true
	d.UpdatedAt = time.Now()
	m.items[id] = d
	return &d, nil
}

func (m *memDonations) MarkSynced(_ context.Context, id primitive.ObjectID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok || d.Status != status {
		return nil
	}
	d.SyncPending = false
	m.items[id] = d
	return nil
}

func (m *memDonations) SetReconciled(_ context.Context, id primitive.ObjectID, reconciled bool, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok || d.Reconciled == reconciled {
		return false, nil
	}
	d.Reconciled = reconciled
	if reconciled {
		d.ReconciledAt = &at
	} else {
		d.ReconciledAt = nil
	}
	m.items[id] = d
	return true, nil
}

func (m *memDonations) List(_ context.Context, f models.DonationFilter, page, limit int) ([]models.Donation, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.Donation
	for _, d := range m.items {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.Target != "" && d.Target != f.Target {
			continue
		}
		if f.User != nil && (d.User == nil || *d.User != *f.User) {
			continue
		}
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	skip := int(models.Skip(page, limit))
	if skip >= len(all) {
		return nil, int64(len(all)), nil
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}
	return all[skip:end], int64(len(all)), nil
}

func (m *memDonations) ListOutOfSync(_ context.Context, limit int) ([]models.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Donation
	for _, d := range m.items {
		if !d.InSync() {
			out = append(out, d)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memDonations) Stats(_ context.Context) (*models.DonationStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.DonationStats{}
	donors := map[string]bool{}
	shelters := map[primitive.ObjectID]bool{}
	animals := map[primitive.ObjectID]bool{}
	for _, d := range m.items {
		if d.Status != models.DonationCompleted {
			continue
		}
		stats.TotalAmount += d.Amount
		stats.CountDonations++
		if d.DonorEmail != "" {
			donors[d.DonorEmail] = true
		}
		if d.TargetID != nil && d.Target == models.TargetShelter {
			shelters[*d.TargetID] = true
		}
		if d.TargetID != nil && d.Target == models.TargetAnimal {
			animals[*d.TargetID] = true
		}
	}
	stats.UniqueDonorsCount = int64(len(donors))
	stats.SheltersDonatedCount = int64(len(shelters))
	stats.AnimalsDonatedCount = int64(len(animals))
	return stats, nil
}

// counted mirrors the per-document reconciled id sets of the mongo store.
type counted map[primitive.ObjectID]bool

type memUsers struct {
	mu      sync.Mutex
	users   map[primitive.ObjectID]*models.User
	counted map[primitive.ObjectID]counted
	failErr error
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{users: map[primitive.ObjectID]*models.User{}, counted: map[primitive.ObjectID]counted{}}
	for _, u := range users {
		m.users[u.ID] = u
		m.counted[u.ID] = counted{}
	}
	return m
}

func (m *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) ApplyDonation(_ context.Context, userID, donationID primitive.ObjectID, amount float64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return false, m.failErr
	}
	u, ok := m.users[userID]
	if !ok || m.counted[userID][donationID] {
		return false, nil
	}
	u.DonationStats.TotalAmount = u.DonationStats.TotalAmount.Add(models.NewMoney(amount))
	u.DonationStats.DonationsCount++
	u.DonationStats.LastDonationDate = &at
	m.counted[userID][donationID] = true
	return true, nil
}

func (m *memUsers) RevertDonation(_ context.Context, userID, donationID primitive.ObjectID, amount float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok || !m.counted[userID][donationID] {
		return false, nil
	}
	u.DonationStats.TotalAmount = u.DonationStats.TotalAmount.Sub(models.NewMoney(amount))
	u.DonationStats.DonationsCount--
	delete(m.counted[userID], donationID)
	return true, nil
}

func (m *memUsers) stats(id primitive.ObjectID) models.DonationStatsSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].DonationStats
}

type memBeneficiaries struct {
	mu       sync.Mutex
	shelters map[primitive.ObjectID]*models.Shelter
	animals  map[primitive.ObjectID]*models.Animal
	counted  map[primitive.ObjectID]counted
	failErr  error
}

func newMemBeneficiaries() *memBeneficiaries {
	return &memBeneficiaries{
		shelters: map[primitive.ObjectID]*models.Shelter{},
		animals:  map[primitive.ObjectID]*models.Animal{},
		counted:  map[primitive.ObjectID]counted{},
	}
}

func (m *memBeneficiaries) addShelter(s *models.Shelter) {
	m.shelters[s.ID] = s
	m.counted[s.ID] = counted{}
}

func (m *memBeneficiaries) addAnimal(a *models.Animal) {
	m.animals[a.ID] = a
	m.counted[a.ID] = counted{}
}

func (m *memBeneficiaries) Exists(_ context.Context, target string, id primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch target {
	case models.TargetShelter:
		_, ok := m.shelters[id]
		return ok, nil
	case models.TargetAnimal:
		_, ok := m.animals[id]
		return ok, nil
	}
	return false, errors.New("unknown target")
}

func (m *memBeneficiaries) FindShelter(_ context.Context, id primitive.ObjectID) (*models.Shelter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shelters[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memBeneficiaries) FindAnimal(_ context.Context, id primitive.ObjectID) (*models.Animal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.animals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memBeneficiaries) ApplyDonation(_ context.Context, target string, id, donationID primitive.ObjectID, amount float64) (bool, error) {
	return m.adjust(target, id, donationID, models.NewMoney(amount), true)
}

func (m *memBeneficiaries) RevertDonation(_ context.Context, target string, id, donationID primitive.ObjectID, amount float64) (bool, error) {
	return m.adjust(target, id, donationID, models.NewMoney(amount).Neg(), false)
}

func (m *memBeneficiaries) adjust(target string, id, donationID primitive.ObjectID, delta models.Money, apply bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if apply && m.failErr != nil {
		return false, m.failErr
	}
	set, ok := m.counted[id]
	if !ok || set[donationID] == apply {
		return false, nil
	}
	switch target {
	case models.TargetShelter:
		m.shelters[id].DonationCurrent = m.shelters[id].DonationCurrent.Add(delta)
	case models.TargetAnimal:
		m.animals[id].DonationCurrent = m.animals[id].DonationCurrent.Add(delta)
	}
	if apply {
		set[donationID] = true
	} else {
		delete(set, donationID)
	}
	return true, nil
}

func (m *memBeneficiaries) shelterCurrent(id primitive.ObjectID) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shelters[id].DonationCurrent.Float64()
}

func (m *memBeneficiaries) animalCurrent(id primitive.ObjectID) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.animals[id].DonationCurrent.Float64()
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]string
	deletes int
}

func newMemCache() *memCache { return &memCache{entries: map[string]string{}} }

func (c *memCache) Get(_ context.Context, ns, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[ns+":"+key]
	if !ok {
		return "", errors.New("cache miss")
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, ns, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ns+":"+key] = value.(string)
	return nil
}

func (c *memCache) Delete(_ context.Context, ns, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ns+":"+key)
	c.deletes++
	return nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []primitive.ObjectID
}

func (n *recordingNotifier) DonationCompleted(_ context.Context, d *models.Donation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, d.ID)
	return nil
}

// fixture wires the services over in-memory stores.
type fixture struct {
	donations     *memDonations
	users         *memUsers
	beneficiaries *memBeneficiaries
	reconciler    *Reconciler
	service       *DonationService
	notifier      *recordingNotifier
}

func newFixture(sandbox bool, users ...*models.User) *fixture {
	f := &fixture{
		donations:     newMemDonations(),
		users:         newMemUsers(users...),
		beneficiaries: newMemBeneficiaries(),
		notifier:      &recordingNotifier{},
	}
	f.reconciler = NewReconciler(f.donations, f.users, f.beneficiaries, nil)
	f.reconciler.SetNotifier(f.notifier)
	f.service = NewDonationService(f.donations, f.users, f.beneficiaries, f.reconciler, sandbox, nil)
	return f
}

func newUser(name, email string) *models.User {
	return &models.User{ID: primitive.NewObjectID(), Name: name, Email: email, Role: models.RoleUser}
}
