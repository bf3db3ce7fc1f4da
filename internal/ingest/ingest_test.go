package ingest

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"toperty/server/internal/models"
	"toperty/server/internal/queue"
)

const validBatch = `[
	{"fr_property_id": 101, "area": 60, "price": 300000000, "offer": "sell",
	 "rooms": 3, "baths": "2", "stratum": "Estrato 4", "antiquity": "FROM_1_TO_8_YEARS",
	 "title": "Apartamento en Chapinero", "location_main": "Chapinero",
	 "latitude": 4.6097, "longitude": -74.0817, "creation_date": "2024-01-10",
	 "city_id": 1, "previous_value": 250000000, "updated_date": "2024-02-01"},
	{"fr_property_id": 102, "area": 45, "price": 1800000, "offer": "rent",
	 "rooms": null, "latitude": null, "longitude": null, "creation_date": null}
]`

func TestDecode(t *testing.T) {
	listings, err := Decode([]byte(validBatch), 100)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	first := listings[0]
	assert.Equal(t, int64(101), first.ID)
	assert.Equal(t, "3", *first.Rooms)
	assert.Equal(t, "2", *first.Baths)
	assert.Equal(t, "Chapinero", *first.LocationMain)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), *first.CreationDate)
	assert.Equal(t, 250000000.0, *first.PreviousValue)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), *first.UpdatedDate)

	second := listings[1]
	assert.Equal(t, models.OfferRent, second.Offer)
	assert.Nil(t, second.Rooms)
	assert.Nil(t, second.Latitude)
	assert.Nil(t, second.CreationDate)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"fr_property_id":`},
		{"not an array", `{"fr_property_id": 1, "area": 1, "price": 1, "offer": "sell"}`},
		{"empty batch", `[]`},
		{"missing offer", `[{"fr_property_id": 1, "area": 1, "price": 1}]`},
		{"unknown offer", `[{"fr_property_id": 1, "area": 1, "price": 1, "offer": "lease"}]`},
		{"negative price", `[{"fr_property_id": 1, "area": 1, "price": -5, "offer": "sell"}]`},
		{"latitude out of range", `[{"fr_property_id": 1, "area": 1, "price": 1, "offer": "sell", "latitude": 123}]`},
		{"bad date", `[{"fr_property_id": 1, "area": 1, "price": 1, "offer": "sell", "creation_date": "10/01/2024"}]`},
		{"rooms as object", `[{"fr_property_id": 1, "area": 1, "price": 1, "offer": "sell", "rooms": {"n": 3}}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.body), 100)
			assert.ErrorIs(t, err, ErrInvalidBatch)
		})
	}
}

func TestDecode_MaxBatch(t *testing.T) {
	_, err := Decode([]byte(validBatch), 1)
	assert.ErrorIs(t, err, ErrInvalidBatch)
}

type MockAcknowledger struct {
	mock.Mock
}

func (m *MockAcknowledger) Ack(tag uint64, multiple bool) error {
	return m.Called(tag, multiple).Error(0)
}

func (m *MockAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	return m.Called(tag, multiple, requeue).Error(0)
}

func (m *MockAcknowledger) Reject(tag uint64, requeue bool) error {
	return m.Called(tag, requeue).Error(0)
}

type MockPusher struct {
	mock.Mock
}

func (m *MockPusher) Push(listings []*models.Listing) error {
	return m.Called(listings).Error(0)
}

func newTestConsumer(pusher Pusher) *Consumer {
	logger, _ := test.NewNullLogger()
	return &Consumer{queue: "listings", pusher: pusher, maxBatch: 100, logger: logger}
}

func delivery(ack amqp.Acknowledger, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Body: []byte(body)}
}

func TestConsumer_Handle(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		pushErr error
		expect  func(a *MockAcknowledger)
	}{
		{
			name:   "accepted",
			body:   validBatch,
			expect: func(a *MockAcknowledger) { a.On("Ack", uint64(7), false).Return(nil) },
		},
		{
			name:   "invalid payload is dropped",
			body:   `[{"fr_property_id": 1}]`,
			expect: func(a *MockAcknowledger) { a.On("Nack", uint64(7), false, false).Return(nil) },
		},
		{
			name:    "full queue requeues",
			body:    validBatch,
			pushErr: queue.ErrQueueFull,
			expect:  func(a *MockAcknowledger) { a.On("Nack", uint64(7), false, true).Return(nil) },
		},
		{
			name:    "closed queue requeues",
			body:    validBatch,
			pushErr: queue.ErrQueueClosed,
			expect:  func(a *MockAcknowledger) { a.On("Nack", uint64(7), false, true).Return(nil) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := new(MockAcknowledger)
			tt.expect(ack)
			pusher := new(MockPusher)
			pusher.On("Push", mock.Anything).Return(tt.pushErr).Maybe()

			newTestConsumer(pusher).handle(delivery(ack, tt.body))
			ack.AssertExpectations(t)
		})
	}
}

func TestConsumer_HandlePushesToQueue(t *testing.T) {
	logger, _ := test.NewNullLogger()
	q := queue.NewListingQueue(1, logger)
	c := newTestConsumer(q)

	ack := new(MockAcknowledger)
	ack.On("Ack", uint64(7), false).Return(nil).Once()
	ack.On("Nack", uint64(7), false, true).Return(nil).Once()

	c.handle(delivery(ack, validBatch))
	c.handle(delivery(ack, validBatch))

	assert.Equal(t, 1, q.Len())
	ack.AssertExpectations(t)
}
