package processor

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"toperty/server/config"
	"toperty/server/internal/models"
	"toperty/server/internal/queue"
)

// MockDB is a mock implementation of Transactor
type MockDB struct {
	mock.Mock
}

func (m *MockDB) Transaction(fc func(*gorm.DB) error, opts ...*sql.TxOptions) error {
	args := m.Called(fc)
	return args.Error(0)
}

func testConfig(retries int) *config.Config {
	cfg := &config.Config{}
	cfg.BatchProcessing.ProcessorCount = 2
	cfg.BatchProcessing.MaxRetries = retries
	cfg.BatchProcessing.RetryDelay = 0
	return cfg
}

func testBatch() []*models.Listing {
	return []*models.Listing{
		{Property: models.Property{ID: 1, Offer: models.OfferSell, Price: 300000000, Area: 60}},
		{Property: models.Property{ID: 2, Offer: models.OfferRent, Price: 2500000, Area: 50}},
	}
}

func TestNewBatchProcessor(t *testing.T) {
	logger, _ := test.NewNullLogger()
	mockDB := &MockDB{}
	q := queue.NewListingQueue(10, logger)
	cfg := testConfig(3)

	processor := NewBatchProcessor(mockDB, q, cfg, logger)

	assert.NotNil(t, processor)
	assert.Equal(t, mockDB, processor.db)
	assert.Equal(t, q, processor.queue)
	assert.Equal(t, cfg, processor.config)
	assert.Equal(t, Stats{}, processor.Stats())
}

func TestBatchProcessor_ProcessBatch(t *testing.T) {
	logger, _ := test.NewNullLogger()
	mockDB := &MockDB{}
	processor := NewBatchProcessor(mockDB, queue.NewListingQueue(10, logger), testConfig(2), logger)

	mockDB.On("Transaction", mock.Anything).Return(nil).Once()
	require.NoError(t, processor.processBatch(testBatch()))

	mockDB.On("Transaction", mock.Anything).Return(errors.New("db error")).Times(3)
	err := processor.processBatch(testBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process batch after 3 attempts")

	mockDB.AssertExpectations(t)
	assert.Equal(t, Stats{Batches: 1, Listings: 2, Failed: 1}, processor.Stats())
}

func TestBatchProcessor_RecoversAfterRetry(t *testing.T) {
	logger, hook := test.NewNullLogger()
	mockDB := &MockDB{}
	processor := NewBatchProcessor(mockDB, queue.NewListingQueue(10, logger), testConfig(3), logger)

	mockDB.On("Transaction", mock.Anything).Return(errors.New("temporary error")).Twice()
	mockDB.On("Transaction", mock.Anything).Return(nil).Once()

	require.NoError(t, processor.processBatch(testBatch()))
	mockDB.AssertNumberOfCalls(t, "Transaction", 3)

	var failures int
	for _, e := range hook.AllEntries() {
		if e.Message == "Batch processing failed" {
			failures++
			assert.Equal(t, "infrastructure", e.Data["error_kind"])
		}
	}
	assert.Equal(t, 2, failures)
}

func TestBatchProcessor_StopInterruptsRetries(t *testing.T) {
	logger, _ := test.NewNullLogger()
	mockDB := &MockDB{}
	cfg := testConfig(5)
	cfg.BatchProcessing.RetryDelay = 60
	processor := NewBatchProcessor(mockDB, queue.NewListingQueue(10, logger), cfg, logger)

	mockDB.On("Transaction", mock.Anything).Return(errors.New("db error"))
	processor.cancel()

	err := processor.processBatch(testBatch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch processing stopped")
	mockDB.AssertNumberOfCalls(t, "Transaction", 1)
}

func TestBatchProcessor_StartStop(t *testing.T) {
	logger, _ := test.NewNullLogger()
	mockDB := &MockDB{}
	q := queue.NewListingQueue(10, logger)
	processor := NewBatchProcessor(mockDB, q, testConfig(0), logger)

	mockDB.On("Transaction", mock.Anything).Return(nil)

	processor.Start()
	require.NoError(t, q.Push(testBatch()))
	processor.Stop()

	assert.True(t, q.IsClosed())
	assert.Equal(t, int64(1), processor.Stats().Batches)
}
