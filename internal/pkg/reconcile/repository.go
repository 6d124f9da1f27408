package reconcile

import (
	"context"
	"errors"

	"github.com/ledgersync/ledgersync/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the storage operations the dispatcher needs. The
// dispatcher never sees the storage engine directly; tests substitute an
// in-memory fake.
type Repository interface {
	// AlreadyProcessed reports whether an audit row exists for the event id.
	AlreadyProcessed(eventID string) (bool, error)
	// FindAccountForUpdate loads an account under a row lock so concurrent
	// transitions on the same identity serialize. Returns (nil, nil) when
	// the identity is unknown.
	FindAccountForUpdate(email string) (*models.Account, error)
	// FindAccount loads an account without locking.
	FindAccount(email string) (*models.Account, error)
	// SaveAccount writes the full replacement state of an account.
	SaveAccount(acct *models.Account) error
	// RecordEvent appends the audit row. Returns false when the event id is
	// already recorded (duplicate insert is not an error).
	RecordEvent(rec *models.ProcessedEvent) (bool, error)
	// ListEvents returns the audit trail for an identity, newest first.
	ListEvents(email string, limit int) ([]models.ProcessedEvent, error)
	// Transact runs fn inside a single transaction; fn receives a Repository
	// bound to that transaction.
	Transact(ctx context.Context, fn func(tx Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciliation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) AlreadyProcessed(eventID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *gormRepository) FindAccountForUpdate(email string) (*models.Account, error) {
	var acct models.Account
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("email = ?", email).
		First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *gormRepository) FindAccount(email string) (*models.Account, error) {
	var acct models.Account
	err := r.db.Where("email = ?", email).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (r *gormRepository) SaveAccount(acct *models.Account) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"account_type",
			"token_balance",
			"subscription_status",
			"invoice_status",
			"current_plan",
			"next_renewal_date",
			"updated_at",
		}),
	}).Create(acct).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("email = ?", acct.Email).First(acct).Error
}

func (r *gormRepository) RecordEvent(rec *models.ProcessedEvent) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(rec)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) ListEvents(email string, limit int) ([]models.ProcessedEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.ProcessedEvent
	err := r.db.Where("email = ?", email).
		Order("processed_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *gormRepository) Transact(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
