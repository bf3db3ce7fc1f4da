package zones

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"toperty/server/config"
	"toperty/server/internal/filter"
	"toperty/server/internal/geocoding"
	"toperty/server/internal/models"
)

func strp(s string) *string  { return &s }
func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

type memoryStore struct {
	rows []models.ZoneRow
}

func (s *memoryStore) ZoneCandidates(ctx context.Context, set filter.Set, updatedFrom, updatedTo *time.Time) ([]models.ZoneRow, error) {
	var out []models.ZoneRow
	for _, r := range s.rows {
		r := r
		if set.Match(&r.Property) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) PostalCodeStats(ctx context.Context, set filter.Set) ([]models.PostalCodeStats, error) {
	return nil, nil
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) ZoneCandidates(ctx context.Context, set filter.Set, updatedFrom, updatedTo *time.Time) ([]models.ZoneRow, error) {
	args := m.Called(ctx, set, updatedFrom, updatedTo)
	rows, _ := args.Get(0).([]models.ZoneRow)
	return rows, args.Error(1)
}

func (m *MockStore) PostalCodeStats(ctx context.Context, set filter.Set) ([]models.PostalCodeStats, error) {
	args := m.Called(ctx, set)
	stats, _ := args.Get(0).([]models.PostalCodeStats)
	return stats, args.Error(1)
}

type MockGeocoder struct {
	mock.Mock
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (geocoding.Location, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(geocoding.Location), args.Error(1)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Zones.MinProperties = 3
	cfg.Zones.LowPercentile = 0.2
	cfg.Zones.HighPercentile = 0.8
	cfg.Zones.OutlierSigma = 3
	cfg.Zones.ComparisonDays = 30
	cfg.Zones.GeohashPrecision = 6
	return cfg
}

func newAggregator(store Store, geocoder Geocoder) *Aggregator {
	logger, _ := test.NewNullLogger()
	return NewAggregator(store, geocoder, testConfig(), logger)
}

func zrow(id int64, label, offer string, price, area, lat, lng float64) models.ZoneRow {
	return models.ZoneRow{Property: models.Property{
		ID: id, LocationMain: strp(label), Offer: offer, Price: price, Area: area,
		Latitude: f64(lat), Longitude: f64(lng),
	}}
}

func chapinero() []models.ZoneRow {
	rows := []models.ZoneRow{
		zrow(1, "Chapinero", "sell", 300000000, 60, 4.60, -74.07),
		zrow(2, "Chapinero", "sell", 400000000, 100, 4.61, -74.04),
		zrow(3, "Chapinero", "rent", 2400000, 60, 4.62, -74.06),
		zrow(4, "Chapinero", "rent", 3000000, 100, 4.63, -74.05),
	}
	rows[0].PreviousValue = f64(240000000)
	return rows
}

func TestAggregate_Basic(t *testing.T) {
	rows := append(chapinero(),
		zrow(5, "Usaquén", "sell", 1, 1, 4.70, -74.03),
		zrow(6, "Usaquén", "sell", 1, 1, 4.71, -74.03),
		zrow(7, "Usaquén", "sell", 1, 1, 4.72, -74.03),
		zrow(8, "Usaquén", "sell", 1, 0, 4.72, -74.03),
	)
	noCoords := zrow(9, "Usaquén", "sell", 1, 1, 0, 0)
	noCoords.Latitude = nil
	rows = append(rows, noCoords)

	zones, err := newAggregator(&memoryStore{rows: rows}, nil).Aggregate(context.Background(), Query{Mode: Basic})
	require.NoError(t, err)
	require.Len(t, zones, 1)

	z := zones[0]
	assert.Equal(t, "chapinero", z.ID)
	assert.Equal(t, "Chapinero", z.Name)
	assert.Equal(t, 4, z.PropertyCount)
	assert.Equal(t, models.Bounds{MinLat: 4.60, MaxLat: 4.63, MinLng: -74.07, MaxLng: -74.04}, z.Bounds)
	assert.InDelta(t, 4.615, z.CenterLat, 1e-9)
	assert.InDelta(t, -74.055, z.CenterLng, 1e-9)
	assert.Zero(t, z.SalePriceM2)
	assert.Zero(t, z.CapRate)
}

func TestAggregate_Full(t *testing.T) {
	zones, err := newAggregator(&memoryStore{rows: chapinero()}, nil).Aggregate(context.Background(), Query{Mode: Full})
	require.NoError(t, err)
	require.Len(t, zones, 1)

	z := zones[0]
	assert.InDelta(t, 4.606, z.Bounds.MinLat, 1e-9)
	assert.InDelta(t, 4.624, z.Bounds.MaxLat, 1e-9)
	assert.InDelta(t, 4.615, z.CenterLat, 1e-9)
	assert.InDelta(t, 4500000, z.SalePriceM2, 1e-6)
	assert.InDelta(t, 35000, z.RentPriceM2, 1e-6)
	assert.InDelta(t, 12.5, z.SaleValorization, 1e-9)
	assert.Zero(t, z.RentValorization)
	assert.InDelta(t, 35000.0/4500000/12, z.CapRate, 1e-12)
}

func TestAggregate_NoRentListings(t *testing.T) {
	rows := chapinero()
	for i := range rows {
		rows[i].Offer = models.OfferSell
	}
	zones, err := newAggregator(&memoryStore{rows: rows}, nil).Aggregate(context.Background(), Query{Mode: Full})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, 0.0, zones[0].CapRate)
	assert.Equal(t, 0.0, zones[0].RentPriceM2)
	assert.Equal(t, 0.0, zones[0].RentValorization)
}

func TestAggregate_MinimumCount(t *testing.T) {
	rows := chapinero()[:3]
	for _, mode := range []Mode{Basic, Full} {
		zones, err := newAggregator(&memoryStore{rows: rows}, nil).Aggregate(context.Background(), Query{Mode: mode})
		require.NoError(t, err)
		assert.Empty(t, zones)
	}
}

func TestAggregate_FullSplitsCities(t *testing.T) {
	var rows []models.ZoneRow
	for i, r := range append(chapinero(), chapinero()...) {
		r.ID = int64(i + 1)
		city := "Bogotá"
		if i >= 4 {
			city = "Chía"
		}
		r.CityName = strp(city)
		rows = append(rows, r)
	}
	store := &memoryStore{rows: rows}

	zones, err := newAggregator(store, nil).Aggregate(context.Background(), Query{Mode: Full})
	require.NoError(t, err)
	require.Len(t, zones, 2)
	assert.Equal(t, "chapinero_bogotá", zones[0].ID)
	assert.Equal(t, "chapinero_chía", zones[1].ID)
	assert.Equal(t, "Chía", zones[1].CityName)

	zones, err = newAggregator(store, nil).Aggregate(context.Background(), Query{Mode: Basic})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, 8, zones[0].PropertyCount)
}

func TestAggregate_Geohash(t *testing.T) {
	cell := geohash.EncodeWithPrecision(4.65, -74.05, 6)
	lat, lng := geohash.DecodeCenter(cell)
	rows := []models.ZoneRow{
		zrow(1, "", "sell", 1, 1, lat, lng),
		zrow(2, "", "sell", 1, 1, lat+0.0001, lng),
		zrow(3, "", "rent", 1, 1, lat, lng-0.0001),
		zrow(4, "", "rent", 1, 1, lat-0.0001, lng+0.0001),
		zrow(5, "", "rent", 1, 1, 6.2442, -75.5812),
	}
	rows[0].LocationMain = nil

	zones, err := newAggregator(&memoryStore{rows: rows}, nil).Aggregate(context.Background(), Query{GroupBy: GroupByGeohash})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, cell, zones[0].ID)
	assert.Equal(t, 4, zones[0].PropertyCount)
}

func TestAggregate_Radius(t *testing.T) {
	far := []models.ZoneRow{
		zrow(11, "Laureles", "sell", 1, 1, 6.2442, -75.5812),
		zrow(12, "Laureles", "sell", 1, 1, 6.2443, -75.5812),
		zrow(13, "Laureles", "sell", 1, 1, 6.2444, -75.5812),
		zrow(14, "Laureles", "sell", 1, 1, 6.2445, -75.5812),
	}
	store := &memoryStore{rows: append(chapinero(), far...)}

	zones, err := newAggregator(store, nil).Aggregate(context.Background(), Query{
		Latitude: f64(4.615), Longitude: f64(-74.055), Radius: intp(5000),
	})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "Chapinero", zones[0].Name)

	geocoder := new(MockGeocoder)
	geocoder.On("Geocode", mock.Anything, "Laureles, Medellín").
		Return(geocoding.Location{Latitude: 6.2443, Longitude: -75.5812}, nil)
	zones, err = newAggregator(store, geocoder).Aggregate(context.Background(), Query{
		SearchAddress: "Laureles, Medellín", Radius: intp(1000),
	})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "Laureles", zones[0].Name)
}

func TestAggregate_GeocodeFailureDegrades(t *testing.T) {
	far := []models.ZoneRow{
		zrow(11, "Laureles", "sell", 1, 1, 6.2442, -75.5812),
		zrow(12, "Laureles", "sell", 1, 1, 6.2443, -75.5812),
		zrow(13, "Laureles", "sell", 1, 1, 6.2444, -75.5812),
		zrow(14, "Laureles", "sell", 1, 1, 6.2445, -75.5812),
	}
	geocoder := new(MockGeocoder)
	geocoder.On("Geocode", mock.Anything, "nowhere").Return(geocoding.Location{}, geocoding.ErrNoResults)

	zones, err := newAggregator(&memoryStore{rows: append(chapinero(), far...)}, geocoder).Aggregate(context.Background(), Query{
		SearchAddress: "nowhere", Radius: intp(10),
	})
	require.NoError(t, err)
	assert.Len(t, zones, 2)
	geocoder.AssertExpectations(t)
}

func TestAggregate_GeocodeFailureKeepsCoordinates(t *testing.T) {
	far := []models.ZoneRow{
		zrow(11, "Laureles", "sell", 1, 1, 6.2442, -75.5812),
		zrow(12, "Laureles", "sell", 1, 1, 6.2443, -75.5812),
		zrow(13, "Laureles", "sell", 1, 1, 6.2444, -75.5812),
		zrow(14, "Laureles", "sell", 1, 1, 6.2445, -75.5812),
	}
	geocoder := new(MockGeocoder)
	geocoder.On("Geocode", mock.Anything, "nowhere").Return(geocoding.Location{}, geocoding.ErrProviderStatus)

	zones, err := newAggregator(&memoryStore{rows: append(chapinero(), far...)}, geocoder).Aggregate(context.Background(), Query{
		SearchAddress: "nowhere", Latitude: f64(4.615), Longitude: f64(-74.055), Radius: intp(5000),
	})
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "Chapinero", zones[0].Name)
	geocoder.AssertExpectations(t)
}

func TestAggregate_PassesFilters(t *testing.T) {
	store := new(MockStore)
	from, to := day("2024-01-01"), day("2024-02-01")
	cityID := int64(7)
	store.On("ZoneCandidates", mock.Anything, mock.MatchedBy(func(set filter.Set) bool {
		return set.Len() == 4
	}), from, to).Return(chapinero(), nil)

	zones, err := newAggregator(store, nil).Aggregate(context.Background(), Query{
		Mode: Full, CityID: &cityID, UpdatedFrom: from, UpdatedTo: to,
	})
	require.NoError(t, err)
	assert.Len(t, zones, 1)
	store.AssertExpectations(t)
}

func TestAggregate_Errors(t *testing.T) {
	_, err := newAggregator(&memoryStore{}, nil).Aggregate(context.Background(), Query{GroupBy: "district"})
	assert.ErrorIs(t, err, ErrInvalidZoneQuery)

	_, err = newAggregator(&memoryStore{}, nil).Aggregate(context.Background(), Query{Latitude: f64(1), Longitude: f64(1), Radius: intp(-5)})
	assert.ErrorIs(t, err, ErrInvalidZoneQuery)

	storeErr := errors.New("database is locked")
	store := new(MockStore)
	store.On("ZoneCandidates", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, storeErr)
	_, err = newAggregator(store, nil).Aggregate(context.Background(), Query{})
	assert.ErrorIs(t, err, storeErr)
}

func TestGeoJSON(t *testing.T) {
	fc, err := newAggregator(&memoryStore{rows: chapinero()}, nil).GeoJSON(context.Background(), Query{Mode: Full})
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	f := fc.Features[0]
	assert.Equal(t, "chapinero", f.ID)
	assert.Equal(t, "Polygon", f.Geometry.GeoJSONType())
	assert.Equal(t, "convex", f.Properties["hull_type"])
	assert.Equal(t, 4, f.Properties["property_count"])
}

func TestPostalCodes(t *testing.T) {
	cityID := int64(2)
	want := []models.PostalCodeStats{{PostalCode: "Chapinero", HasProperties: true, PropertyCount: 5}}

	store := new(MockStore)
	store.On("PostalCodeStats", mock.Anything, mock.MatchedBy(func(set filter.Set) bool { return set.Len() == 1 })).Return(want, nil).Once()
	store.On("PostalCodeStats", mock.Anything, mock.MatchedBy(func(set filter.Set) bool { return set.Len() == 0 })).Return(want, nil).Once()

	agg := newAggregator(store, nil)
	got, err := agg.PostalCodes(context.Background(), &cityID)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = agg.PostalCodes(context.Background(), nil)
	require.NoError(t, err)
	store.AssertExpectations(t)
}
