package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/phillip/shelter-donations-go/metrics"
	"github.com/phillip/shelter-donations-go/models"
)

// Reconciler keeps user and beneficiary aggregates equal to the sum of the
// completed donations referencing them.
//
// Every aggregate owner records which donation ids it has counted, and each
// apply or revert is a single guarded document update, so Sync can be
// replayed any number of times (inline after a write, or by the worker)
// without double counting.
type Reconciler struct {
	donations     DonationRepository
	users         UserRepository
	beneficiaries BeneficiaryRepository
	notifier      Notifier
	invalidator   interface{ Invalidate(ctx context.Context) }
	logger        *zap.Logger
	now           func() time.Time
}

func NewReconciler(
	donations DonationRepository,
	users UserRepository,
	beneficiaries BeneficiaryRepository,
	logger *zap.Logger,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		donations:     donations,
		users:         users,
		beneficiaries: beneficiaries,
		logger:        logger,
		now:           time.Now,
	}
}

// SetNotifier registers the receiver of first-completion events.
func (r *Reconciler) SetNotifier(n Notifier) { r.notifier = n }

// SetInvalidator registers a cache to drop after aggregates change.
func (r *Reconciler) SetInvalidator(inv interface{ Invalidate(ctx context.Context) }) {
	r.invalidator = inv
}

// Sync brings the aggregates for one donation in line with its status and
// returns the donation as stored afterwards.
func (r *Reconciler) Sync(ctx context.Context, id primitive.ObjectID) (*models.Donation, error) {
	d, err := r.donations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Non-completed statuses revert even when reconciled is false: an apply
	// that failed halfway may already have counted some aggregates.
	if d.Status == models.DonationCompleted {
		err = r.apply(ctx, d)
	} else {
		err = r.revert(ctx, d)
	}
	if err != nil {
		return nil, err
	}

	if err := r.donations.MarkSynced(ctx, d.ID, d.Status); err != nil {
		return nil, fmt.Errorf("mark donation %s synced: %w", d.ID.Hex(), err)
	}
	d.SyncPending = false
	return d, nil
}

func (r *Reconciler) apply(ctx context.Context, d *models.Donation) error {
	now := r.now()

	if d.User != nil {
		applied, err := r.users.ApplyDonation(ctx, *d.User, d.ID, d.Amount, now)
		if err != nil {
			metrics.Reconciliations.WithLabelValues("apply", "error").Inc()
			return fmt.Errorf("apply donation %s to user %s: %w", d.ID.Hex(), d.User.Hex(), err)
		}
		r.logger.Debug("user aggregate",
			zap.String("donation_id", d.ID.Hex()),
			zap.String("user_id", d.User.Hex()),
			zap.Bool("applied", applied))
	}

	if hasBeneficiary(d) {
		applied, err := r.beneficiaries.ApplyDonation(ctx, d.Target, *d.TargetID, d.ID, d.Amount)
		if err != nil {
			metrics.Reconciliations.WithLabelValues("apply", "error").Inc()
			return fmt.Errorf("apply donation %s to %s %s: %w", d.ID.Hex(), d.Target, d.TargetID.Hex(), err)
		}
		r.logger.Debug("beneficiary aggregate",
			zap.String("donation_id", d.ID.Hex()),
			zap.String("target", d.Target),
			zap.Bool("applied", applied))
	}

	flipped, err := r.donations.SetReconciled(ctx, d.ID, true, now)
	if err != nil {
		metrics.Reconciliations.WithLabelValues("apply", "error").Inc()
		return fmt.Errorf("mark donation %s reconciled: %w", d.ID.Hex(), err)
	}
	d.Reconciled = true
	if !flipped {
		metrics.Reconciliations.WithLabelValues("apply", "noop").Inc()
		return nil
	}
	d.ReconciledAt = &now
	metrics.Reconciliations.WithLabelValues("apply", "ok").Inc()
	r.logger.Info("donation reconciled",
		zap.String("donation_id", d.ID.Hex()),
		zap.Float64("amount", d.Amount))

	r.invalidate(ctx)
	if r.notifier != nil && d.DonorEmail != "" {
		if err := r.notifier.DonationCompleted(ctx, d); err != nil {
			r.logger.Warn("donation receipt not sent",
				zap.String("donation_id", d.ID.Hex()),
				zap.Error(err))
		}
	}
	return nil
}

// revert removes a donation that left the completed status from the
// aggregates. lastDonationDate is left as is.
func (r *Reconciler) revert(ctx context.Context, d *models.Donation) error {
	var reverted bool
	if d.User != nil {
		ok, err := r.users.RevertDonation(ctx, *d.User, d.ID, d.Amount)
		if err != nil {
			metrics.Reconciliations.WithLabelValues("revert", "error").Inc()
			return fmt.Errorf("revert donation %s from user %s: %w", d.ID.Hex(), d.User.Hex(), err)
		}
		reverted = reverted || ok
	}
	if hasBeneficiary(d) {
		ok, err := r.beneficiaries.RevertDonation(ctx, d.Target, *d.TargetID, d.ID, d.Amount)
		if err != nil {
			metrics.Reconciliations.WithLabelValues("revert", "error").Inc()
			return fmt.Errorf("revert donation %s from %s %s: %w", d.ID.Hex(), d.Target, d.TargetID.Hex(), err)
		}
		reverted = reverted || ok
	}

	flipped, err := r.donations.SetReconciled(ctx, d.ID, false, r.now())
	if err != nil {
		metrics.Reconciliations.WithLabelValues("revert", "error").Inc()
		return fmt.Errorf("mark donation %s unreconciled: %w", d.ID.Hex(), err)
	}
	d.Reconciled = false
	d.ReconciledAt = nil
	if !flipped && !reverted {
		metrics.Reconciliations.WithLabelValues("revert", "noop").Inc()
		return nil
	}
	metrics.Reconciliations.WithLabelValues("revert", "ok").Inc()
	r.logger.Info("donation reversed",
		zap.String("donation_id", d.ID.Hex()),
		zap.String("status", d.Status),
		zap.Float64("amount", d.Amount))
	r.invalidate(ctx)
	return nil
}

func (r *Reconciler) invalidate(ctx context.Context) {
	if r.invalidator != nil {
		r.invalidator.Invalidate(ctx)
	}
}

func hasBeneficiary(d *models.Donation) bool {
	return d.TargetID != nil && (d.Target == models.TargetShelter || d.Target == models.TargetAnimal)
}
