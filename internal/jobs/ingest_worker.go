package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/verdantlabs/verdant/internal/domain"
)

// IngestJobRepository defines the interface for ingestion job persistence
type IngestJobRepository interface {
	// GetPendingJobs retrieves and claims pending ingestion jobs
	GetPendingJobs(ctx context.Context) ([]*domain.IngestJob, error)

	// UpdateStatus updates the status of an ingestion job
	UpdateStatus(ctx context.Context, id string, status domain.IngestJobStatus, errMsg string) error
}

// Ingestor runs the document pipeline for one queued document.
type Ingestor interface {
	Ingest(ctx context.Context, documentID string) error
}

// IngestWorker drains the ingestion queue. A failed job is marked failed and
// never retried: the document is already marked failed with the cause, and
// the recovery path is a fresh upload.
type IngestWorker struct {
	repo     IngestJobRepository
	ingestor Ingestor
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(repo IngestJobRepository, ingestor Ingestor) *IngestWorker {
	return &IngestWorker{
		repo:     repo,
		ingestor: ingestor,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending ingestion jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IngestWorker) processJob(ctx context.Context, job *domain.IngestJob) error {
	log.Printf("Processing job %s for document %s", job.ID, job.DocumentID)

	if err := w.ingestor.Ingest(ctx, job.DocumentID); err != nil {
		log.Printf("Job %s failed: %v", job.ID, err)
		if updateErr := w.repo.UpdateStatus(ctx, job.ID, domain.IngestJobStatusFailed, err.Error()); updateErr != nil {
			return fmt.Errorf("failed to update job status to failed: %w", updateErr)
		}
		return nil
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.IngestJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed successfully", job.ID)
	return nil
}
