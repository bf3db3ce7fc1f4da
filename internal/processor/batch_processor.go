package processor

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"toperty/server/config"
	"toperty/server/internal/database"
	"toperty/server/internal/logging"
	"toperty/server/internal/models"
	"toperty/server/internal/queue"
)

// Transactor runs fc in a database transaction. *gorm.DB satisfies it.
type Transactor interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// Stats counts the work done since start.
type Stats struct {
	Batches  int64 `json:"batches"`
	Listings int64 `json:"listings"`
	Failed   int64 `json:"failed_batches"`
}

// BatchProcessor stores listing batches taken from the queue
type BatchProcessor struct {
	db     Transactor
	logger *logrus.Logger
	config *config.Config
	queue  *queue.ListingQueue
	ctx    context.Context
	cancel context.CancelFunc

	batches  int64
	listings int64
	failed   int64
}

// NewBatchProcessor creates a new batch processor instance
func NewBatchProcessor(db Transactor, queue *queue.ListingQueue, config *config.Config, logger *logrus.Logger) *BatchProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		db:     db,
		queue:  queue,
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the queue and starts its workers
func (p *BatchProcessor) Start() {
	p.queue.Subscribe(p.processBatch)
	p.queue.Start(p.config.BatchProcessing.ProcessorCount)
}

// Stop interrupts pending retries, then drains the queue
func (p *BatchProcessor) Stop() {
	p.cancel()
	_ = p.queue.Close()
}

func (p *BatchProcessor) Stats() Stats {
	return Stats{
		Batches:  atomic.LoadInt64(&p.batches),
		Listings: atomic.LoadInt64(&p.listings),
		Failed:   atomic.LoadInt64(&p.failed),
	}
}

// processBatch upserts a batch in one transaction, retrying with a delay
func (p *BatchProcessor) processBatch(batch []*models.Listing) error {
	maxRetries := p.config.BatchProcessing.MaxRetries
	delay := time.Duration(p.config.BatchProcessing.RetryDelay) * time.Second

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying batch processing, attempt %d of %d", attempt, maxRetries)
			select {
			case <-p.ctx.Done():
				return fmt.Errorf("batch processing stopped: %w", err)
			case <-time.After(delay):
			}
		}

		err = p.db.Transaction(func(tx *gorm.DB) error {
			if err := database.UpsertListings(tx, batch); err != nil {
				return fmt.Errorf("failed to upsert listings batch: %w", err)
			}
			return nil
		})

		if err == nil {
			atomic.AddInt64(&p.batches, 1)
			atomic.AddInt64(&p.listings, int64(len(batch)))
			p.logger.WithField("batch_size", len(batch)).Info("Successfully processed batch")
			return nil
		}

		p.logger.WithError(err).WithField(logging.FieldErrorKind, logging.KindInfrastructure).Error("Batch processing failed")
	}

	atomic.AddInt64(&p.failed, 1)
	return fmt.Errorf("failed to process batch after %d attempts: %w", maxRetries+1, err)
}
