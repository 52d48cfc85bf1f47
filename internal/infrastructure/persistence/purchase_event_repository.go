package persistence

import (
	"context"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPurchaseEventRepository implements PurchaseEventRepository using GORM
type GormPurchaseEventRepository struct {
	db *gorm.DB
}

// NewGormPurchaseEventRepository creates a new GormPurchaseEventRepository
func NewGormPurchaseEventRepository(db *gorm.DB) *GormPurchaseEventRepository {
	return &GormPurchaseEventRepository{db: db}
}

// FindUnbilled returns all unbilled purchase events ordered by payer then
// occurrence time.
func (r *GormPurchaseEventRepository) FindUnbilled(ctx context.Context) ([]billing.PurchaseEvent, error) {
	var eventModels []models.PurchaseEventModel
	if err := r.db.WithContext(ctx).
		Where("billed = ?", false).
		Order("payer_id ASC, occurred_at ASC").
		Find(&eventModels).Error; err != nil {
		return nil, err
	}
	events := make([]billing.PurchaseEvent, len(eventModels))
	for i, model := range eventModels {
		events[i] = *model.ToDomain()
	}
	return events, nil
}

// MarkBilled flips the billed flag on the given events. The billed guard
// keeps an already-billed event from ever being flipped twice.
func (r *GormPurchaseEventRepository) MarkBilled(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.PurchaseEventModel{}).
		Where("id IN ? AND billed = ?", ids, false).
		Update("billed", true)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Save creates or updates a purchase event
func (r *GormPurchaseEventRepository) Save(ctx context.Context, event *billing.PurchaseEvent) error {
	model := &models.PurchaseEventModel{}
	model.FromDomain(event)
	return r.db.WithContext(ctx).Save(model).Error
}

// Ensure GormPurchaseEventRepository implements PurchaseEventRepository
var _ billing.PurchaseEventRepository = (*GormPurchaseEventRepository)(nil)
