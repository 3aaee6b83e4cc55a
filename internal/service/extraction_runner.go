package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/suteetoe/tradeflow/internal/model"
	"github.com/suteetoe/tradeflow/pkg/extractor"
	"github.com/suteetoe/tradeflow/pkg/storage"
	"github.com/suteetoe/tradeflow/prometheus"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExtractionRunner extracts document data in the background, at most maxConcurrency
// documents at a time.
//
// Each run claims the document by bumping extraction_version and only writes its
// result while the row still carries that version, so an older run finishing late never
// overwrites a newer one.
type ExtractionRunner struct {
	db        *gorm.DB
	store     storage.BlobStore
	extractor extractor.Extractor
	sem       *semaphore.Weighted
	timeout   time.Duration
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewExtractionRunner(db *gorm.DB, store storage.BlobStore, ex extractor.Extractor, maxConcurrency int64, timeout time.Duration, log *zap.Logger) *ExtractionRunner {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ExtractionRunner{
		db:        db,
		store:     store,
		extractor: ex,
		sem:       semaphore.NewWeighted(maxConcurrency),
		timeout:   timeout,
		logger:    log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Enabled reports whether an extraction backend is configured
func (r *ExtractionRunner) Enabled() bool {
	if r.extractor == nil {
		return false
	}
	_, disabled := r.extractor.(extractor.Disabled)
	return !disabled
}

// Enqueue schedules extraction of a freshly uploaded document and returns immediately
func (r *ExtractionRunner) Enqueue(documentID string) {
	log := r.logger.With(zap.String("document_id", documentID))
	if !r.Enabled() {
		log.Debug("Extraction disabled, not enqueued")
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		if err := r.sem.Acquire(r.ctx, 1); err != nil {
			log.Warn("Extraction abandoned on shutdown")
			return
		}
		defer r.sem.Release(1)

		if _, _, err := r.Run(context.WithoutCancel(r.ctx), documentID); err != nil {
			log.Error("Background extraction failed", zap.Error(err))
		}
	}()
}

// Run extracts documentID synchronously and stores the result
func (r *ExtractionRunner) Run(ctx context.Context, documentID string) (*model.Document, *extractor.Result, error) {
	if !r.Enabled() {
		return nil, nil, Unavailable("Document extraction is not configured")
	}
	log := r.logger.With(zap.String("document_id", documentID))

	doc, version, err := r.claim(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}

	job := &model.ExtractionJob{DocumentID: doc.ID, Status: model.ExtractionProcessing}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, nil, err
	}

	done := prometheus.TrackExtraction()
	result, err := r.extract(ctx, doc)
	if err != nil {
		done(model.ExtractionFailed)
		r.fail(doc.ID, version, job, err, log)
		return nil, nil, err
	}

	now := time.Now().UTC()
	confidence := result.Confidence
	res := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND extraction_version = ?", doc.ID, version).
		Updates(map[string]interface{}{
			"extracted_data":    datatypes.JSONMap(result.Fields),
			"confidence_score":  confidence,
			"extraction_method": result.Method,
			"needs_review":      result.NeedsReview,
			"extraction_status": model.ExtractionCompleted,
			"extracted_at":      now,
		})
	if res.Error != nil {
		done(model.ExtractionFailed)
		r.fail(doc.ID, version, job, res.Error, log)
		return nil, nil, res.Error
	}
	if res.RowsAffected == 0 {
		done(model.ExtractionFailed)
		r.fail(doc.ID, version, job, errors.New("superseded by a newer extraction"), log)
		return nil, nil, Conflict("Extraction was superseded by a newer run")
	}
	done(model.ExtractionCompleted)

	if err := r.db.WithContext(ctx).Model(job).Updates(map[string]interface{}{
		"status":             model.ExtractionCompleted,
		"model_used":         result.Model,
		"processing_time_ms": result.ProcessingTimeMs,
	}).Error; err != nil {
		log.Warn("Failed to mark extraction job completed", zap.String("job_id", job.ID), zap.Error(err))
	}

	log.Info("Document extracted",
		zap.Float64("confidence", result.Confidence),
		zap.Bool("needs_review", result.NeedsReview),
		zap.Int64("processing_time_ms", result.ProcessingTimeMs))

	doc.ExtractedData = datatypes.JSONMap(result.Fields)
	doc.ConfidenceScore = &confidence
	doc.ExtractionMethod = result.Method
	doc.NeedsReview = result.NeedsReview
	doc.ExtractionStatus = model.ExtractionCompleted
	doc.ExtractionVersion = version
	doc.ExtractedAt = &now
	return doc, result, nil
}

// claim moves the document to processing under a new extraction version
func (r *ExtractionRunner) claim(ctx context.Context, documentID string) (*model.Document, int, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Where("id = ?", documentID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, NotFound("Document not found")
	}
	if err != nil {
		return nil, 0, err
	}

	version := doc.ExtractionVersion + 1
	res := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND extraction_version = ?", doc.ID, doc.ExtractionVersion).
		Updates(map[string]interface{}{
			"extraction_status":  model.ExtractionProcessing,
			"extraction_version": version,
		})
	if res.Error != nil {
		return nil, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, 0, Conflict("Document is already being extracted")
	}
	doc.ExtractionStatus = model.ExtractionProcessing
	doc.ExtractionVersion = version
	return &doc, version, nil
}

func (r *ExtractionRunner) extract(ctx context.Context, doc *model.Document) (*extractor.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.store.Download(ctx, doc.StorageKey)
	if err != nil {
		return nil, err
	}
	return r.extractor.Extract(ctx, data, doc.MimeType, doc.DocumentType)
}

// fail records err on the job and, if this run still owns the document, on the document.
// It runs on a fresh context so a cancelled request still leaves a failed record behind.
func (r *ExtractionRunner) fail(documentID string, version int, job *model.ExtractionJob, cause error, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Error("Extraction failed", zap.Error(cause))

	if err := r.db.WithContext(ctx).Model(job).Updates(map[string]interface{}{
		"status":        model.ExtractionFailed,
		"error_message": cause.Error(),
		"attempts":      gorm.Expr("attempts + ?", 1),
	}).Error; err != nil {
		log.Warn("Failed to update extraction job", zap.Error(err))
	}

	if err := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND extraction_version = ?", documentID, version).
		Update("extraction_status", model.ExtractionFailed).Error; err != nil {
		log.Warn("Failed to mark document extraction failed", zap.Error(err))
	}
}

// Wait blocks until queued extractions have finished
func (r *ExtractionRunner) Wait() {
	r.wg.Wait()
}

// Shutdown abandons extractions still waiting for a slot and waits for running ones
// until ctx is done
func (r *ExtractionRunner) Shutdown(ctx context.Context) error {
	r.cancel()
	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
