package queue

import (
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toperty/server/internal/models"
)

func listing(id int64) *models.Listing {
	return &models.Listing{Property: models.Property{ID: id, Offer: models.OfferSell}}
}

func TestNewListingQueue(t *testing.T) {
	logger, _ := test.NewNullLogger()
	q := NewListingQueue(10, logger)
	assert.NotNil(t, q)
	assert.Equal(t, 10, q.Cap())
	assert.False(t, q.IsClosed())
}

func TestListingQueue_Push(t *testing.T) {
	logger, _ := test.NewNullLogger()
	q := NewListingQueue(2, logger)

	batch := []*models.Listing{listing(1)}
	require.NoError(t, q.Push(batch))
	assert.Equal(t, 1, q.Len())

	require.NoError(t, q.Push(batch))
	assert.ErrorIs(t, q.Push(batch), ErrQueueFull)

	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Push(batch), ErrQueueClosed)
}

func TestListingQueue_Subscribe(t *testing.T) {
	logger, _ := test.NewNullLogger()
	q := NewListingQueue(10, logger)

	var (
		mu        sync.Mutex
		processed []*models.Listing
	)
	q.Subscribe(func(batch []*models.Listing) error {
		mu.Lock()
		processed = append(processed, batch...)
		mu.Unlock()
		return nil
	})
	q.Start(1)

	require.NoError(t, q.Push([]*models.Listing{listing(1), listing(2)}))
	require.NoError(t, q.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, processed, 2)
	assert.Equal(t, int64(1), processed[0].ID)
	assert.Equal(t, int64(2), processed[1].ID)
}

func TestListingQueue_CloseDrains(t *testing.T) {
	logger, _ := test.NewNullLogger()
	q := NewListingQueue(10, logger)

	var (
		mu    sync.Mutex
		count int
	)
	q.Subscribe(func(batch []*models.Listing) error {
		mu.Lock()
		count += len(batch)
		mu.Unlock()
		return nil
	})

	for i := int64(0); i < 5; i++ {
		require.NoError(t, q.Push([]*models.Listing{listing(i)}))
	}
	q.Start(3)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.True(t, q.IsClosed())
	assert.Equal(t, 5, count)
}

func TestListingQueue_EveryHandlerRuns(t *testing.T) {
	logger, hook := test.NewNullLogger()
	q := NewListingQueue(10, logger)

	var (
		mu    sync.Mutex
		calls int
	)
	for i := 0; i < 3; i++ {
		q.Subscribe(func(batch []*models.Listing) error {
			mu.Lock()
			calls++
			mu.Unlock()
			return errors.New("store unavailable")
		})
	}
	q.Start(1)

	require.NoError(t, q.Push([]*models.Listing{listing(1)}))
	require.NoError(t, q.Close())

	assert.Equal(t, 3, calls)
	assert.Len(t, hook.AllEntries(), 3)
	assert.Equal(t, "Handler failed to process batch", hook.LastEntry().Message)
}
