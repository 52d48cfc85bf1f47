package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clubledger/backend/internal/application/billing/render"
	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/internal/infrastructure/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	csvContentType = "text/csv"
	pdfContentType = "application/pdf"
)

// ArtifactService serves export artifacts through a get-or-generate
// cache: a database row plus an object in durable storage. The row is
// only trusted when the object it points at is actually visible; a
// dangling row is dropped and the artifact regenerated.
type ArtifactService struct {
	artifacts billing.ArtifactRepository
	periods   billing.PeriodRepository
	invoices  billing.InvoiceRepository
	storage   ObjectStorage

	csvOptions        render.CSVOptions
	visibilityRetries int
	visibilityBackoff time.Duration

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// ArtifactServiceConfig carries the rendering and visibility poll
// settings of the ArtifactService.
type ArtifactServiceConfig struct {
	CSVDelimiter      rune
	PaymentLinkBase   string
	VisibilityRetries int
	VisibilityBackoff time.Duration
}

// NewArtifactService creates an ArtifactService.
func NewArtifactService(
	artifacts billing.ArtifactRepository,
	periods billing.PeriodRepository,
	invoices billing.InvoiceRepository,
	storage ObjectStorage,
	cfg ArtifactServiceConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ArtifactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.VisibilityRetries < 1 {
		cfg.VisibilityRetries = 5
	}
	if cfg.VisibilityBackoff <= 0 {
		cfg.VisibilityBackoff = 200 * time.Millisecond
	}
	return &ArtifactService{
		artifacts: artifacts,
		periods:   periods,
		invoices:  invoices,
		storage:   storage,
		csvOptions: render.CSVOptions{
			Delimiter:       cfg.CSVDelimiter,
			PaymentLinkBase: cfg.PaymentLinkBase,
		},
		visibilityRetries: cfg.VisibilityRetries,
		visibilityBackoff: cfg.VisibilityBackoff,
		metrics:           m,
		logger:            logger,
	}
}

// ArtifactResult is what callers get back from the cache: where the
// artifact lives and whether this call created it.
type ArtifactResult struct {
	StorageURL  string `json:"storage_url"`
	DownloadURL string `json:"download_url,omitempty"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	WasExisting bool   `json:"was_existing"`
}

// GetOrCreatePeriodExport returns the tabular export of a period,
// rendering and uploading it first if no valid cached copy exists.
func (s *ArtifactService) GetOrCreatePeriodExport(ctx context.Context, periodID uuid.UUID) (*ArtifactResult, error) {
	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to load period: %w", err)
	}

	return s.getOrCreate(ctx, billing.ArtifactOwnerPeriod, period.ID, func() (string, []byte, string, error) {
		invoices, err := s.invoices.FindByPeriod(ctx, period.ID)
		if err != nil {
			return "", nil, "", fmt.Errorf("failed to load period invoices: %w", err)
		}
		data, err := render.PeriodCSV(period, invoices, s.csvOptions)
		if err != nil {
			return "", nil, "", fmt.Errorf("failed to render period export: %w", err)
		}
		return render.PeriodExportFileName(period), data, csvContentType, nil
	})
}

// GetOrCreateInvoiceDocument returns the printable document of an
// invoice, rendering and uploading it first if no valid cached copy
// exists.
func (s *ArtifactService) GetOrCreateInvoiceDocument(ctx context.Context, invoiceID uuid.UUID) (*ArtifactResult, error) {
	invoice, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	period, err := s.periods.FindByID(ctx, invoice.PeriodID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice period: %w", err)
	}

	return s.getOrCreate(ctx, billing.ArtifactOwnerInvoice, invoice.ID, func() (string, []byte, string, error) {
		data, err := render.InvoicePDF(period, invoice)
		if err != nil {
			return "", nil, "", fmt.Errorf("failed to render invoice document: %w", err)
		}
		return render.InvoiceDocumentFileName(period, invoice), data, pdfContentType, nil
	})
}

// getOrCreate implements the cache protocol. generate is only invoked
// on a miss and returns the file name, content, and content type.
func (s *ArtifactService) getOrCreate(
	ctx context.Context,
	ownerType billing.ArtifactOwnerType,
	ownerID uuid.UUID,
	generate func() (string, []byte, string, error),
) (*ArtifactResult, error) {
	cached, err := s.artifacts.FindByOwner(ctx, ownerType, ownerID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up artifact: %w", err)
	}

	if cached != nil {
		exists, err := s.storage.ObjectExists(ctx, cached.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("%w: existence probe failed: %v", shared.ErrStorageFailure, err)
		}
		if exists {
			if s.metrics != nil {
				s.metrics.ArtifactCacheHit.WithLabelValues(string(ownerType)).Inc()
			}
			return s.resultFor(ctx, cached, true), nil
		}

		// The row points at an object that is gone. Drop it and rebuild.
		s.logger.Warn("dropping dangling artifact row",
			zap.String("owner_type", string(ownerType)),
			zap.String("owner_id", ownerID.String()),
			zap.String("storage_key", cached.StorageKey))
		if err := s.artifacts.DeleteByOwner(ctx, ownerType, ownerID); err != nil {
			return nil, fmt.Errorf("failed to drop dangling artifact row: %w", err)
		}
	}

	fileName, data, contentType, err := generate()
	if err != nil {
		return nil, err
	}

	storageKey := s.storageKey(ownerType, ownerID, fileName)
	if err := s.storage.Upload(ctx, storageKey, data, contentType); err != nil {
		return nil, fmt.Errorf("%w: upload failed: %v", shared.ErrStorageFailure, err)
	}

	if err := s.awaitVisibility(ctx, storageKey); err != nil {
		return nil, err
	}

	artifact := billing.NewExportArtifact(ownerType, ownerID, storageKey,
		s.storage.ObjectURL(storageKey), fileName, int64(len(data)))
	if err := s.artifacts.Create(ctx, artifact); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			// A concurrent call won the insert race. Serve its artifact
			// and discard our duplicate object.
			winner, lookupErr := s.artifacts.FindByOwner(ctx, ownerType, ownerID)
			if lookupErr != nil {
				return nil, fmt.Errorf("failed to load winning artifact: %w", lookupErr)
			}
			if winner.StorageKey != storageKey {
				if delErr := s.storage.DeleteObject(ctx, storageKey); delErr != nil {
					s.logger.Warn("failed to discard losing artifact object",
						zap.String("storage_key", storageKey), zap.Error(delErr))
				}
			}
			return s.resultFor(ctx, winner, true), nil
		}
		return nil, fmt.Errorf("failed to record artifact: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ArtifactsBuilt.WithLabelValues(string(ownerType)).Inc()
	}
	s.logger.Info("export artifact generated",
		zap.String("owner_type", string(ownerType)),
		zap.String("owner_id", ownerID.String()),
		zap.String("file_name", fileName),
		zap.Int("bytes", len(data)))

	return s.resultFor(ctx, artifact, false), nil
}

// awaitVisibility polls until the freshly uploaded object is readable,
// bounded by the configured retries and fixed backoff. Eventually
// consistent stores may briefly miss their own writes.
func (s *ArtifactService) awaitVisibility(ctx context.Context, storageKey string) error {
	for attempt := 0; attempt < s.visibilityRetries; attempt++ {
		exists, err := s.storage.ObjectExists(ctx, storageKey)
		if err == nil && exists {
			return nil
		}
		if err != nil {
			s.logger.Debug("visibility probe failed",
				zap.String("storage_key", storageKey),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.visibilityBackoff):
		}
	}
	return fmt.Errorf("%w: object %s not visible after %d probes",
		shared.ErrStorageTimeout, storageKey, s.visibilityRetries)
}

func (s *ArtifactService) storageKey(ownerType billing.ArtifactOwnerType, ownerID uuid.UUID, fileName string) string {
	switch ownerType {
	case billing.ArtifactOwnerPeriod:
		return fmt.Sprintf("exports/periods/%s/%s", ownerID, fileName)
	default:
		return fmt.Sprintf("exports/invoices/%s/%s", ownerID, fileName)
	}
}

func (s *ArtifactService) resultFor(ctx context.Context, artifact *billing.ExportArtifact, wasExisting bool) *ArtifactResult {
	result := &ArtifactResult{
		StorageURL:  artifact.StorageURL,
		FileName:    artifact.FileName,
		FileSize:    artifact.FileSize,
		WasExisting: wasExisting,
	}
	if url, _, err := s.storage.GenerateDownloadURL(ctx, artifact.StorageKey, 0); err == nil {
		result.DownloadURL = url
	}
	return result
}
