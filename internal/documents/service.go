// Package documents renders formal documents and keeps them in object storage.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aero-portal/maintenance-portal/inspection-backend/pkg/storage"
)

var (
	// ErrRenderFailed wraps failures of the PDF generator
	ErrRenderFailed = errors.New("document render failed")
	// ErrStoreFailed wraps failures to persist the rendered bytes
	ErrStoreFailed = errors.New("document store failed")
	// ErrDocumentNotFound is returned when no stored document exists under a key
	ErrDocumentNotFound = errors.New("document not found")
)

// Rendered identifies a stored document
type Rendered struct {
	Ref        string
	TemplateID string
	StorageKey string
	Size       int64
	RenderedAt time.Time
}

type Renderer interface {
	Render(ctx context.Context, ref, templateID string, payload interface{}) (*Rendered, error)
	Discard(ctx context.Context, storageKey string) error
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	URL(ctx context.Context, storageKey string, expiration time.Duration) (string, error)
}

type renderer struct {
	pdf     *PDFService
	storage *StorageProvider
	logger  *zap.Logger
}

func NewRenderer(pdf *PDFService, storage *StorageProvider, logger *zap.Logger) Renderer {
	return &renderer{
		pdf:     pdf,
		storage: storage,
		logger:  logger,
	}
}

// Render produces the document and stores it under ref, or under a fresh ref
// when ref is empty. Nothing is stored when generation fails.
func (r *renderer) Render(ctx context.Context, ref, templateID string, payload interface{}) (*Rendered, error) {
	content, size, err := r.pdf.Generate(ctx, templateID, payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	if ref == "" {
		ref = uuid.NewString()
	}
	key := r.storage.GenerateKey(templateID, ref)
	if err := r.storage.Upload(ctx, key, content); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}

	r.logger.Info("Document rendered",
		zap.String("ref", ref),
		zap.String("template_id", templateID),
		zap.Int64("size", size))

	return &Rendered{
		Ref:        ref,
		TemplateID: templateID,
		StorageKey: key,
		Size:       size,
		RenderedAt: time.Now().UTC(),
	}, nil
}

// Discard removes a document whose owning transaction did not commit
func (r *renderer) Discard(ctx context.Context, storageKey string) error {
	if err := r.storage.Delete(ctx, storageKey); err != nil {
		r.logger.Error("Failed to discard document", zap.String("storage_key", storageKey), zap.Error(err))
		return fmt.Errorf("failed to discard document: %w", err)
	}
	return nil
}

func (r *renderer) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	body, err := r.storage.Download(ctx, storageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	return body, nil
}

func (r *renderer) URL(ctx context.Context, storageKey string, expiration time.Duration) (string, error) {
	return r.storage.PresignedURL(ctx, storageKey, expiration)
}
