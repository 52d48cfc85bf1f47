package billing

import (
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ArtifactOwnerType identifies what an export artifact was derived from.
type ArtifactOwnerType string

const (
	ArtifactOwnerPeriod  ArtifactOwnerType = "PERIOD"  // tabular export, one per period
	ArtifactOwnerInvoice ArtifactOwnerType = "INVOICE" // document, one per invoice
)

// IsValid checks if the owner type is valid
func (t ArtifactOwnerType) IsValid() bool {
	return t == ArtifactOwnerPeriod || t == ArtifactOwnerInvoice
}

// ExportArtifact is a cache entry pointing at a durably stored export file.
// It is never the source of truth: the file content is always re-derivable
// from period, invoice, and line state, and a dangling entry is simply
// dropped and regenerated.
type ExportArtifact struct {
	shared.BaseEntity
	OwnerType  ArtifactOwnerType
	OwnerID    uuid.UUID
	StorageKey string
	StorageURL string
	FileName   string
	FileSize   int64
}

// NewExportArtifact creates a cache entry for a freshly uploaded export.
func NewExportArtifact(ownerType ArtifactOwnerType, ownerID uuid.UUID, storageKey, storageURL, fileName string, fileSize int64) *ExportArtifact {
	return &ExportArtifact{
		BaseEntity: shared.NewBaseEntity(),
		OwnerType:  ownerType,
		OwnerID:    ownerID,
		StorageKey: storageKey,
		StorageURL: storageURL,
		FileName:   fileName,
		FileSize:   fileSize,
	}
}
