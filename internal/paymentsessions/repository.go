package paymentsessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/db/models"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/enums"
	"github.com/obedyakpa0-dev/VitalAndGreen/pkg/types"
)

// Repository persists payment sessions. Status changes are conditional
// updates guarded by status = pending so terminal sessions are never rewritten.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, session *models.PaymentSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *Repository) FindByReference(ctx context.Context, reference string) (*models.PaymentSession, error) {
	var session models.PaymentSession
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentSession, error) {
	var session models.PaymentSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// SetCheckoutURL stores the hosted checkout link on a pending session.
func (r *Repository) SetCheckoutURL(ctx context.Context, id uuid.UUID, url string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentSession{}).
		Where("id = ? AND status = ?", id, enums.SessionStatusPending).
		Updates(map[string]any{"checkout_url": url, "updated_at": now})
	return res.RowsAffected == 1, res.Error
}

// RecordPayload keeps the latest provider response for a session that stays pending.
func (r *Repository) RecordPayload(ctx context.Context, id uuid.UUID, payload types.RawJSON, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentSession{}).
		Where("id = ? AND status = ?", id, enums.SessionStatusPending).
		Updates(map[string]any{"provider_payload": payload, "updated_at": now})
	return res.RowsAffected == 1, res.Error
}

// MarkFailed moves a pending session to failed.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, payload types.RawJSON, now time.Time) (bool, error) {
	updates := map[string]any{"status": enums.SessionStatusFailed, "updated_at": now}
	if len(payload) > 0 {
		updates["provider_payload"] = payload
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentSession{}).
		Where("id = ? AND status = ? AND order_id IS NULL", id, enums.SessionStatusPending).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

// ClaimForOrder is the compare-and-swap that lets exactly one caller turn a
// pending session into a paid one bound to orderID.
func (r *Repository) ClaimForOrder(ctx context.Context, id, orderID uuid.UUID, payload types.RawJSON, now time.Time) (bool, error) {
	updates := map[string]any{
		"status":     enums.SessionStatusPaid,
		"order_id":   orderID,
		"updated_at": now,
	}
	if len(payload) > 0 {
		updates["provider_payload"] = payload
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentSession{}).
		Where("id = ? AND status = ? AND order_id IS NULL", id, enums.SessionStatusPending).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}
