package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/phillip/shelter-donations-go/metrics"
	"github.com/phillip/shelter-donations-go/models"
)

type CreateDonationInput struct {
	Amount        float64
	DonorName     string
	DonorEmail    string
	Message       string
	User          string
	Target        string
	TargetID      string
	TargetModel   string
	PaymentMethod string
}

// DonationDetail is a donation with its user and beneficiary populated.
type DonationDetail struct {
	*models.Donation
	User    *models.UserSummary `json:"user,omitempty"`
	Shelter *models.Shelter     `json:"shelter,omitempty"`
	Animal  *models.Animal      `json:"animal,omitempty"`
}

type DonationService struct {
	donations     DonationRepository
	users         UserRepository
	beneficiaries BeneficiaryRepository
	reconciler    *Reconciler
	sandbox       bool
	logger        *zap.Logger
	now           func() time.Time
}

// NewDonationService builds the ledger service. In sandbox mode donations are
// completed on creation since no gateway confirmation will follow.
func NewDonationService(
	donations DonationRepository,
	users UserRepository,
	beneficiaries BeneficiaryRepository,
	reconciler *Reconciler,
	sandbox bool,
	logger *zap.Logger,
) *DonationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DonationService{
		donations:     donations,
		users:         users,
		beneficiaries: beneficiaries,
		reconciler:    reconciler,
		sandbox:       sandbox,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *DonationService) Create(ctx context.Context, caller *Identity, in CreateDonationInput) (*models.Donation, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	target := strings.ToLower(strings.TrimSpace(in.Target))
	if target == "" {
		target = models.TargetGeneral
	}
	if !models.IsValidTarget(target) {
		return nil, invalid("target", "must be one of general, shelter, animal")
	}

	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if method == "" {
		method = models.PaymentCard
	}
	if !models.IsValidPaymentMethod(method) {
		return nil, invalid("paymentMethod", "must be one of card, liqpay, paypal, crypto")
	}

	targetID, err := s.resolveTarget(ctx, target, in.TargetID, in.TargetModel)
	if err != nil {
		return nil, err
	}

	donorName := strings.TrimSpace(in.DonorName)
	donorEmail := strings.ToLower(strings.TrimSpace(in.DonorEmail))
	if caller == nil && (donorName == "" || donorEmail == "") {
		return nil, invalid("donorEmail", "donorName and donorEmail are required for anonymous donations")
	}

	user, err := s.resolveUser(ctx, caller, in.User, donorEmail)
	if err != nil {
		return nil, err
	}

	now := s.now()
	d := &models.Donation{
		ID:            primitive.NewObjectID(),
		Amount:        amount,
		DonorName:     donorName,
		DonorEmail:    donorEmail,
		Message:       strings.TrimSpace(in.Message),
		Target:        target,
		TargetID:      targetID,
		TargetModel:   models.TargetModelFor(target),
		PaymentMethod: method,
		Status:        models.DonationPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if user != nil {
		d.User = &user.ID
		if d.DonorName == "" {
			d.DonorName = user.Name
		}
		if d.DonorEmail == "" {
			d.DonorEmail = user.Email
		}
	}
	if s.sandbox {
		d.Status = models.DonationCompleted
		d.TransactionID = newSandboxTransactionID()
	}
	d.SyncPending = d.Status == models.DonationCompleted

	if err := s.donations.Insert(ctx, d); err != nil {
		return nil, fmt.Errorf("insert donation: %w", err)
	}
	metrics.DonationsCreated.WithLabelValues(d.Target, d.Status).Inc()

	s.logger.Info("donation created",
		zap.String("donation_id", d.ID.Hex()),
		zap.Float64("amount", d.Amount),
		zap.String("target", d.Target),
		zap.String("status", d.Status),
		zap.Bool("attributed", d.User != nil))

	if d.Status == models.DonationCompleted {
		return s.sync(ctx, d), nil
	}
	return d, nil
}

// UpdateStatus overwrites the donation status. Aggregates follow the new
// status through the reconciler, so repeated calls count the amount once.
func (s *DonationService) UpdateStatus(ctx context.Context, id primitive.ObjectID, status, transactionID string) (*models.Donation, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !models.IsValidDonationStatus(status) {
		return nil, invalid("status", "must be one of pending, processing, completed, failed, refunded")
	}

	d, err := s.donations.UpdateStatus(ctx, id, status, strings.TrimSpace(transactionID))
	if err != nil {
		return nil, err
	}

	s.logger.Info("donation status updated",
		zap.String("donation_id", d.ID.Hex()),
		zap.String("status", d.Status))

	if d.InSync() {
		return d, nil
	}
	return s.sync(ctx, d), nil
}

// sync runs the fan-out inline. A failure leaves the donation out of sync for
// the worker to retry; the ledger write already stands.
func (s *DonationService) sync(ctx context.Context, d *models.Donation) *models.Donation {
	if s.reconciler == nil {
		return d
	}
	synced, err := s.reconciler.Sync(ctx, d.ID)
	if err != nil {
		s.logger.Warn("inline reconciliation failed, deferring to worker",
			zap.String("donation_id", d.ID.Hex()),
			zap.Error(err))
		return d
	}
	return synced
}

func (s *DonationService) Get(ctx context.Context, id primitive.ObjectID) (*DonationDetail, error) {
	d, err := s.donations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &DonationDetail{Donation: d}

	if d.User != nil {
		u, err := s.users.FindByID(ctx, *d.User)
		switch {
		case err == nil:
			detail.User = &models.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	if d.TargetID != nil {
		switch d.Target {
		case models.TargetShelter:
			sh, err := s.beneficiaries.FindShelter(ctx, *d.TargetID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			detail.Shelter = sh
		case models.TargetAnimal:
			an, err := s.beneficiaries.FindAnimal(ctx, *d.TargetID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			detail.Animal = an
		}
	}
	return detail, nil
}

func (s *DonationService) List(ctx context.Context, filter models.DonationFilter, page, limit int) ([]models.Donation, models.Pagination, error) {
	if filter.Status != "" && !models.IsValidDonationStatus(filter.Status) {
		return nil, models.Pagination{}, invalid("status", "unknown status filter")
	}
	if filter.Target != "" && !models.IsValidTarget(filter.Target) {
		return nil, models.Pagination{}, invalid("target", "unknown target filter")
	}
	page, limit = models.NormalizePage(page, limit)
	items, total, err := s.donations.List(ctx, filter, page, limit)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	if items == nil {
		items = []models.Donation{}
	}
	return items, models.NewPagination(page, limit, total), nil
}

// UserDonations lists the donations attributed to userID. Only the user
// themselves or an admin may read them.
func (s *DonationService) UserDonations(ctx context.Context, caller *Identity, userID primitive.ObjectID, page, limit int) ([]models.Donation, models.Pagination, error) {
	if !caller.CanAccessUser(userID) {
		return nil, models.Pagination{}, ErrForbidden
	}
	return s.List(ctx, models.DonationFilter{User: &userID}, page, limit)
}

func (s *DonationService) resolveTarget(ctx context.Context, target, rawID, model string) (*primitive.ObjectID, error) {
	if target == models.TargetGeneral {
		return nil, nil
	}
	if strings.TrimSpace(rawID) == "" {
		return nil, invalid("targetId", "required when target is "+target)
	}
	if model != "" && model != models.TargetModelFor(target) {
		return nil, invalid("targetModel", "must be "+models.TargetModelFor(target)+" for target "+target)
	}
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(rawID))
	if err != nil {
		return nil, invalid("targetId", "invalid id")
	}
	ok, err := s.beneficiaries.Exists(ctx, target, oid)
	if err != nil {
		return nil, fmt.Errorf("lookup %s %s: %w", target, oid.Hex(), err)
	}
	if !ok {
		return nil, invalid("targetId", target+" not found")
	}
	return &oid, nil
}

// resolveUser picks the contributing user: the authenticated caller, then an
// explicit user id, then a lookup by donor email. nil means unattributed.
func (s *DonationService) resolveUser(ctx context.Context, caller *Identity, rawUserID, email string) (*models.User, error) {
	candidates := make([]primitive.ObjectID, 0, 2)
	if caller != nil {
		candidates = append(candidates, caller.UserID)
	}
	if rawUserID = strings.TrimSpace(rawUserID); rawUserID != "" {
		oid, err := primitive.ObjectIDFromHex(rawUserID)
		if err != nil {
			return nil, invalid("user", "invalid id")
		}
		candidates = append(candidates, oid)
	}

	for _, id := range candidates {
		u, err := s.users.FindByID(ctx, id)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("lookup user %s: %w", id.Hex(), err)
		}
	}

	if email == "" {
		return nil, nil
	}
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}
	return u, nil
}

func normalizeAmount(v float64) (float64, error) {
	amount := decimal.NewFromFloat(v)
	if amount.LessThan(decimal.NewFromInt(models.MinDonationAmount)) {
		return 0, invalid("amount", fmt.Sprintf("must be at least %d", models.MinDonationAmount))
	}
	f, _ := amount.Round(2).Float64()
	return f, nil
}

func newSandboxTransactionID() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	return "sandbox_" + id.String()
}
