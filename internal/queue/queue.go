package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"toperty/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// ListingQueue is an in-memory queue of listing batches waiting to be stored
type ListingQueue struct {
	items    chan []*models.Listing
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func([]*models.Listing) error
	workers  sync.WaitGroup
}

// NewListingQueue creates a queue holding at most bufferSize batches
func NewListingQueue(bufferSize int, logger *logrus.Logger) *ListingQueue {
	return &ListingQueue{
		items:    make(chan []*models.Listing, bufferSize),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func([]*models.Listing) error, 0),
	}
}

// Push adds a batch without blocking; a full queue rejects it
func (q *ListingQueue) Push(listings []*models.Listing) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- listings:
		q.logger.WithField("batch_size", len(listings)).Debug("Pushed batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler called for each batch
func (q *ListingQueue) Subscribe(handler func([]*models.Listing) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start runs workers goroutines consuming the queue
func (q *ListingQueue) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.workers.Add(1)
		go q.process()
	}
}

func (q *ListingQueue) process() {
	defer q.workers.Done()
	for batch := range q.items {
		q.processBatch(batch)
	}
}

// processBatch sends the batch to all subscribed handlers
func (q *ListingQueue) processBatch(batch []*models.Listing) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).WithField("batch_size", len(batch)).Error("Handler failed to process batch")
		}
	}
}

// Close stops accepting batches and waits for the workers to drain the
// ones already queued
func (q *ListingQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.items)
	q.mu.Unlock()

	q.workers.Wait()
	return nil
}

// Len returns the number of batches waiting
func (q *ListingQueue) Len() int {
	return len(q.items)
}

func (q *ListingQueue) Cap() int {
	return q.maxSize
}

func (q *ListingQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
