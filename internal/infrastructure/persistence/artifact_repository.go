package persistence

import (
	"context"
	"errors"

	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormArtifactRepository implements ArtifactRepository using GORM
type GormArtifactRepository struct {
	db *gorm.DB
}

// NewGormArtifactRepository creates a new GormArtifactRepository
func NewGormArtifactRepository(db *gorm.DB) *GormArtifactRepository {
	return &GormArtifactRepository{db: db}
}

// FindByOwner finds the live cache entry for an owner
func (r *GormArtifactRepository) FindByOwner(ctx context.Context, ownerType billing.ArtifactOwnerType, ownerID uuid.UUID) (*billing.ExportArtifact, error) {
	var model models.ExportArtifactModel
	if err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new cache entry. A concurrent generation for the same
// owner surfaces as shared.ErrAlreadyExists; the caller keeps the winner's
// row and discards its own object.
func (r *GormArtifactRepository) Create(ctx context.Context, artifact *billing.ExportArtifact) error {
	model := &models.ExportArtifactModel{}
	model.FromDomain(artifact)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// DeleteByOwner removes the cache entry for an owner. Removing an entry that
// is already gone is not an error.
func (r *GormArtifactRepository) DeleteByOwner(ctx context.Context, ownerType billing.ArtifactOwnerType, ownerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Delete(&models.ExportArtifactModel{}).Error
}

// Ensure GormArtifactRepository implements ArtifactRepository
var _ billing.ArtifactRepository = (*GormArtifactRepository)(nil)
