package zones

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"toperty/server/config"
	"toperty/server/internal/filter"
	"toperty/server/internal/geocoding"
	"toperty/server/internal/geometry"
	"toperty/server/internal/logging"
	"toperty/server/internal/models"
)

var ErrInvalidZoneQuery = errors.New("invalid zone query")

type Store interface {
	ZoneCandidates(ctx context.Context, set filter.Set, updatedFrom, updatedTo *time.Time) ([]models.ZoneRow, error)
	PostalCodeStats(ctx context.Context, set filter.Set) ([]models.PostalCodeStats, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (geocoding.Location, error)
}

type Mode int

const (
	Basic Mode = iota
	Full
)

type GroupBy string

const (
	GroupByLocation GroupBy = "location"
	GroupByGeohash  GroupBy = "geohash"
)

// Query selects the listings to aggregate. Radius and SearchAddress follow
// the same rules as a property search.
type Query struct {
	Mode        Mode
	GroupBy     GroupBy
	CityID      *int64
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time

	Latitude      *float64
	Longitude     *float64
	Radius        *int
	SearchAddress string
}

type Aggregator struct {
	store    Store
	geocoder Geocoder
	logger   *logrus.Logger

	minProperties    int
	lowPercentile    float64
	highPercentile   float64
	sigma            float64
	comparisonDays   int
	geohashPrecision uint

	now func() time.Time
}

func NewAggregator(store Store, geocoder Geocoder, cfg *config.Config, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		store:            store,
		geocoder:         geocoder,
		logger:           logger,
		minProperties:    cfg.Zones.MinProperties,
		lowPercentile:    cfg.Zones.LowPercentile,
		highPercentile:   cfg.Zones.HighPercentile,
		sigma:            cfg.Zones.OutlierSigma,
		comparisonDays:   cfg.Zones.ComparisonDays,
		geohashPrecision: cfg.Zones.GeohashPrecision,
		now:              time.Now,
	}
}

// group is the set of listings sharing a zone key.
type group struct {
	label    string
	cityName string
	rows     []models.ZoneRow
}

func (g *group) points() []orb.Point {
	pts := make([]orb.Point, 0, len(g.rows))
	for _, r := range g.rows {
		pts = append(pts, orb.Point{*r.Longitude, *r.Latitude})
	}
	return pts
}

var lower = cases.Lower(language.Spanish)

func slug(s string) string {
	return strings.NewReplacer(" ", "_", "/", "_").Replace(lower.String(strings.TrimSpace(s)))
}

// Aggregate groups the candidate listings into zones and returns those with
// more than the configured minimum of listings, largest first.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) ([]models.ZoneSummary, error) {
	zones, _, err := a.aggregate(ctx, q)
	return zones, err
}

// GeoJSON returns the zones of q as a feature collection.
func (a *Aggregator) GeoJSON(ctx context.Context, q Query) (*geojson.FeatureCollection, error) {
	zones, members, err := a.aggregate(ctx, q)
	if err != nil {
		return nil, err
	}
	return geometry.ZoneCollection(zones, members), nil
}

func (a *Aggregator) aggregate(ctx context.Context, q Query) ([]models.ZoneSummary, map[string][]orb.Point, error) {
	if q.GroupBy == "" {
		q.GroupBy = GroupByLocation
	}
	if q.GroupBy != GroupByLocation && q.GroupBy != GroupByGeohash {
		return nil, nil, fmt.Errorf("%w: unknown grouping %q", ErrInvalidZoneQuery, q.GroupBy)
	}
	if q.Radius != nil && *q.Radius < 0 {
		return nil, nil, fmt.Errorf("%w: negative radius", ErrInvalidZoneQuery)
	}

	var set filter.Set
	set.Add(filter.PositiveAreaPrice())
	set.Add(filter.HasCoordinates())
	if q.GroupBy == GroupByLocation {
		set.Add(filter.HasLocation())
	}
	if q.CityID != nil {
		set.Add(filter.CityIn([]int64{*q.CityID}))
	}

	rows, err := a.store.ZoneCandidates(ctx, set, q.UpdatedFrom, q.UpdatedTo)
	if err != nil {
		return nil, nil, err
	}
	if center, ok := a.resolveCenter(ctx, q); ok {
		rows = withinRadius(rows, center, float64(*q.Radius))
	}

	groups := a.group(rows, q)
	zones := make([]models.ZoneSummary, 0, len(groups))
	members := make(map[string][]orb.Point, len(groups))
	for _, g := range groups {
		if len(g.rows) <= a.minProperties {
			continue
		}
		z := a.summarize(g, q)
		zones = append(zones, z)
		members[z.ID] = g.points()
	}
	sort.SliceStable(zones, func(i, j int) bool {
		if zones[i].PropertyCount != zones[j].PropertyCount {
			return zones[i].PropertyCount > zones[j].PropertyCount
		}
		return zones[i].ID < zones[j].ID
	})

	a.logger.WithFields(logrus.Fields{
		"candidates": len(rows),
		"groups":     len(groups),
		"zones":      len(zones),
		"group_by":   q.GroupBy,
	}).Debug("Aggregated zones")
	return zones, members, nil
}

// group keys rows by zone label, or geohash cell. The full variant also
// splits a label shared by two cities.
func (a *Aggregator) group(rows []models.ZoneRow, q Query) []*group {
	index := make(map[string]*group)
	var order []*group
	for _, r := range rows {
		var label, city string
		if q.GroupBy == GroupByGeohash {
			label = geohash.EncodeWithPrecision(*r.Latitude, *r.Longitude, a.geohashPrecision)
		} else {
			label = strings.TrimSpace(*r.LocationMain)
		}
		if q.Mode == Full && r.CityName != nil {
			city = *r.CityName
		}

		key := label + "\x00" + city
		g, ok := index[key]
		if !ok {
			g = &group{label: label, cityName: city}
			index[key] = g
			order = append(order, g)
		}
		g.rows = append(g.rows, r)
	}
	return order
}

func (a *Aggregator) summarize(g *group, q Query) models.ZoneSummary {
	lats := make([]float64, 0, len(g.rows))
	lngs := make([]float64, 0, len(g.rows))
	for _, r := range g.rows {
		lats = append(lats, *r.Latitude)
		lngs = append(lngs, *r.Longitude)
	}

	z := models.ZoneSummary{
		ID:            slug(g.label),
		Name:          g.label,
		CityName:      g.cityName,
		PropertyCount: len(g.rows),
		CenterLat:     geometry.Mean(lats),
		CenterLng:     geometry.Mean(lngs),
	}
	if g.cityName != "" {
		z.ID += "_" + slug(g.cityName)
	}

	if q.Mode == Basic {
		z.Bounds = models.Bounds{
			MinLat: geometry.Percentile(lats, 0), MaxLat: geometry.Percentile(lats, 1),
			MinLng: geometry.Percentile(lngs, 0), MaxLng: geometry.Percentile(lngs, 1),
		}
		return z
	}

	z.Bounds = models.Bounds{
		MinLat: geometry.Percentile(lats, a.lowPercentile), MaxLat: geometry.Percentile(lats, a.highPercentile),
		MinLng: geometry.Percentile(lngs, a.lowPercentile), MaxLng: geometry.Percentile(lngs, a.highPercentile),
	}

	var sale, rent, prevSale, prevRent []float64
	for _, r := range g.rows {
		perArea := r.Price / r.Area
		var prev float64
		if r.PreviousValue != nil && *r.PreviousValue > 0 {
			prev = *r.PreviousValue / r.Area
		}
		switch r.Offer {
		case models.OfferSell:
			sale = append(sale, perArea)
			if prev > 0 {
				prevSale = append(prevSale, prev)
			}
		case models.OfferRent:
			rent = append(rent, perArea)
			if prev > 0 {
				prevRent = append(prevRent, prev)
			}
		}
	}

	z.SalePriceM2 = geometry.Finite(geometry.Mean(sale))
	z.RentPriceM2 = geometry.Finite(geometry.Mean(rent))
	z.SaleValorization = valorization(geometry.Mean(prevSale), z.SalePriceM2)
	z.RentValorization = valorization(geometry.Mean(prevRent), z.RentPriceM2)
	z.CapRate = capRate(z.RentPriceM2, z.SalePriceM2)
	return z
}

// valorization is the percentage change from prev to cur, 0 when either is
// missing.
func valorization(prev, cur float64) float64 {
	if prev <= 0 || cur <= 0 {
		return 0
	}
	return geometry.Finite((cur - prev) / prev * 100)
}

func capRate(rentM2, saleM2 float64) float64 {
	if rentM2 <= 0 || saleM2 <= 0 {
		return 0
	}
	return geometry.Finite(rentM2 / saleM2 / 12)
}

type point struct{ lat, lng float64 }

// resolveCenter mirrors the property search: a geocoded address wins over
// coordinates, and a failed lookup falls back to them when they are set.
func (a *Aggregator) resolveCenter(ctx context.Context, q Query) (point, bool) {
	if q.Radius == nil {
		return point{}, false
	}
	if q.SearchAddress != "" && a.geocoder != nil {
		loc, err := a.geocoder.Geocode(ctx, q.SearchAddress)
		if err == nil {
			return point{lat: loc.Latitude, lng: loc.Longitude}, true
		}
		kind := logging.KindInfrastructure
		if errors.Is(err, geocoding.ErrNoResults) {
			kind = logging.KindInput
		}
		a.logger.WithError(err).WithFields(logrus.Fields{
			"address":              q.SearchAddress,
			logging.FieldErrorKind: kind,
		}).Warn("Geocoding failed, falling back to coordinates")
	}
	if q.Latitude != nil && q.Longitude != nil {
		return point{lat: *q.Latitude, lng: *q.Longitude}, true
	}
	return point{}, false
}

func withinRadius(rows []models.ZoneRow, center point, radius float64) []models.ZoneRow {
	kept := rows[:0:0]
	for _, r := range rows {
		if !r.HasCoordinates() {
			continue
		}
		if geometry.Distance(center.lat, center.lng, *r.Latitude, *r.Longitude) <= radius {
			kept = append(kept, r)
		}
	}
	return kept
}

// PostalCodes lists every located zone label with its aggregate prices.
func (a *Aggregator) PostalCodes(ctx context.Context, cityID *int64) ([]models.PostalCodeStats, error) {
	var set filter.Set
	if cityID != nil {
		set.Add(filter.CityIn([]int64{*cityID}))
	}
	return a.store.PostalCodeStats(ctx, set)
}
