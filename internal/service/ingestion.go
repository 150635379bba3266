package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/verdantlabs/verdant/internal/domain"
	"github.com/verdantlabs/verdant/internal/pagination"
)

// minExtractedChars is the smallest extraction worth indexing.
const minExtractedChars = 50

// DocumentPage is one page of a tenant's documents, newest first.
type DocumentPage struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.Document, error)
	ListByTenantWithCursor(ctx context.Context, tenantID string, cursor *pagination.Cursor, limit int) (*DocumentPage, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int, errMsg string) error
	Delete(ctx context.Context, id string) error
}

type IngestJobRepository interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error
}

type VectorRepository interface {
	UpsertBatch(ctx context.Context, records []domain.VectorRecord) error
	Query(ctx context.Context, tenantID string, embedding []float32, topK int) ([]domain.RetrievalMatch, error)
	DeleteByDocument(ctx context.Context, tenantID, documentID string) error
}

// ObjectStore persists raw uploaded files.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Embedder turns text into vectors. Both ingestion chunks and chat queries go
// through the same embedder.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// TextExtractor pulls plain text from raw document bytes.
type TextExtractor interface {
	Extract(data []byte) (string, error)
}

// IngestionService owns the document lifecycle: upload, the background
// extract/segment/embed/index pipeline, listing, and deletion. A document is
// never visible to retrieval before its vectors are fully indexed.
type IngestionService struct {
	docs      DocumentRepository
	jobs      IngestJobRepository
	vectors   VectorRepository
	store     ObjectStore
	extractor TextExtractor
	embedder  Embedder
	segmenter *Segmenter
	uuidGen   UUIDGenerator
}

func NewIngestionService(
	docs DocumentRepository,
	jobs IngestJobRepository,
	vectors VectorRepository,
	store ObjectStore,
	extractor TextExtractor,
	embedder Embedder,
	segmenter *Segmenter,
	uuidGen UUIDGenerator,
) *IngestionService {
	return &IngestionService{
		docs:      docs,
		jobs:      jobs,
		vectors:   vectors,
		store:     store,
		extractor: extractor,
		embedder:  embedder,
		segmenter: segmenter,
		uuidGen:   uuidGen,
	}
}

// Upload stores the raw file, registers the document in the processing state,
// and queues an ingestion job. The document row exists before the job so a
// crashed worker never strands an invisible upload.
func (s *IngestionService) Upload(ctx context.Context, tenantID, originalName string, data []byte) (*domain.Document, error) {
	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	if originalName == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "file name is required")
	}
	if !strings.HasSuffix(strings.ToLower(originalName), ".pdf") {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "only PDF files are supported")
	}
	if len(data) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "file is empty")
	}

	now := time.Now().UTC()
	docID := s.uuidGen.NewString()
	storageKey := fmt.Sprintf("%s/%s.pdf", tenantID, docID)

	doc := domain.NewDocument(docID, tenantID, docID+".pdf", originalName, storageKey, int64(len(data)), now)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, storageKey, data, "application/pdf"); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store file", err)
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}

	job := domain.NewIngestJob(s.uuidGen.NewString(), docID, tenantID, now)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	return doc, nil
}

// Ingest runs the pipeline for one queued document: extract, segment, embed,
// index. Each stage either fully succeeds or fails the document; a failed
// document indexes nothing. Failure is terminal, recovery is re-upload.
func (s *IngestionService) Ingest(ctx context.Context, documentID string) error {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.runPipeline(ctx, doc); err != nil {
		if markErr := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusFailed, 0, err.Error()); markErr != nil {
			log.Printf("Failed to mark document %s as failed: %v", doc.ID, markErr)
		}
		return err
	}
	return nil
}

func (s *IngestionService) runPipeline(ctx context.Context, doc *domain.Document) error {
	data, err := s.store.Get(ctx, doc.StorageKey)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to fetch stored file", err)
	}

	text, err := s.extractor.Extract(data)
	if err != nil {
		return err
	}

	// A scanned or image-only PDF extracts to almost nothing. Fail it rather
	// than index a useless sliver.
	if len(strings.TrimSpace(text)) < minExtractedChars {
		return domain.NewDomainError(domain.ErrCodeExtraction, "document contains too little extractable text")
	}

	chunks := s.segmenter.Segment(text)
	if len(chunks) == 0 {
		return domain.NewDomainError(domain.ErrCodeExtraction, "document produced no indexable chunks")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, "failed to embed document chunks", err)
	}

	records := make([]domain.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = domain.VectorRecord{
			ID:         domain.VectorRecordID(doc.ID, c.Index),
			Embedding:  embeddings[i],
			Text:       c.Text,
			DocumentID: doc.ID,
			TenantID:   doc.TenantID,
			ChunkIndex: c.Index,
		}
	}

	if err := s.vectors.UpsertBatch(ctx, records); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndex, "failed to index document chunks", err)
	}

	return s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusReady, len(records), "")
}

func (s *IngestionService) GetDocument(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.TenantID != tenantID {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *IngestionService) ListDocuments(ctx context.Context, tenantID string) ([]*domain.Document, error) {
	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}
	return s.docs.ListByTenant(ctx, tenantID)
}

// ListDocumentsPage pages a tenant's documents newest first using an opaque
// cursor from a previous page.
func (s *IngestionService) ListDocumentsPage(ctx context.Context, tenantID, cursor string, limit int) (*DocumentPage, error) {
	if tenantID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "tenant ID is required")
	}

	decoded, err := pagination.DecodeCursor(cursor)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "invalid cursor")
	}

	return s.docs.ListByTenantWithCursor(ctx, tenantID, decoded, limit)
}

// DeleteDocument removes the document's vectors first, then the row, then the
// stored file. Vector deletion leads so a half-finished delete degrades to a
// document with no retrievable chunks rather than orphaned vectors.
func (s *IngestionService) DeleteDocument(ctx context.Context, tenantID, id string) error {
	doc, err := s.GetDocument(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.vectors.DeleteByDocument(ctx, tenantID, doc.ID); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndex, "failed to delete document vectors", err)
	}

	if err := s.docs.Delete(ctx, doc.ID); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, doc.StorageKey); err != nil {
		log.Printf("Failed to delete stored file %s: %v", doc.StorageKey, err)
	}

	return nil
}
