package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPeriodRepository implements PeriodRepository using GORM
type GormPeriodRepository struct {
	db *gorm.DB
}

// NewGormPeriodRepository creates a new GormPeriodRepository
func NewGormPeriodRepository(db *gorm.DB) *GormPeriodRepository {
	return &GormPeriodRepository{db: db}
}

// FindByID finds a ledger period by its ID
func (r *GormPeriodRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.LedgerPeriod, error) {
	var model models.LedgerPeriodModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindLatest returns the period with the highest sequence number
func (r *GormPeriodRepository) FindLatest(ctx context.Context) (*billing.LedgerPeriod, error) {
	var model models.LedgerPeriodModel
	if err := r.db.WithContext(ctx).
		Order("sequence_number DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns all ledger periods, newest first
func (r *GormPeriodRepository) FindAll(ctx context.Context) ([]billing.LedgerPeriod, error) {
	var periodModels []models.LedgerPeriodModel
	if err := r.db.WithContext(ctx).
		Order("sequence_number DESC").
		Find(&periodModels).Error; err != nil {
		return nil, err
	}
	periods := make([]billing.LedgerPeriod, len(periodModels))
	for i, model := range periodModels {
		periods[i] = *model.ToDomain()
	}
	return periods, nil
}

// Create inserts a new ledger period. A sequence number collision from a
// concurrent closing surfaces as shared.ErrConcurrencyConflict.
func (r *GormPeriodRepository) Create(ctx context.Context, period *billing.LedgerPeriod) error {
	model := &models.LedgerPeriodModel{}
	model.FromDomain(period)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

// Update saves changes to an existing ledger period
func (r *GormPeriodRepository) Update(ctx context.Context, period *billing.LedgerPeriod) error {
	model := &models.LedgerPeriodModel{}
	model.FromDomain(period)
	result := r.db.WithContext(ctx).
		Model(&models.LedgerPeriodModel{}).
		Where("id = ?", period.ID).
		Updates(map[string]any{
			"aggregate_total": model.AggregateTotal,
			"closed_at":       model.ClosedAt,
			"updated_at":      model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a unique constraint violation.
// Matched textually so both the postgres and the sqlite driver are covered.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// Ensure GormPeriodRepository implements PeriodRepository
var _ billing.PeriodRepository = (*GormPeriodRepository)(nil)
