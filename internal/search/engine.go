package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"toperty/server/config"
	"toperty/server/internal/filter"
	"toperty/server/internal/geocoding"
	"toperty/server/internal/geometry"
	"toperty/server/internal/logging"
	"toperty/server/internal/models"
)

// Store is the part of the property store the engine queries.
type Store interface {
	CountProperties(ctx context.Context, set filter.Set) (int64, error)
	FindProperties(ctx context.Context, set filter.Set, sort models.SortOrder, offset, limit int) ([]models.PropertyWithCity, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (geocoding.Location, error)
}

// Query carries every search parameter. Nil pointers and empty slices
// mean "no filter".
type Query struct {
	Page  int
	Limit int
	Sort  models.SortOrder

	CityIDs   []int64
	Offer     string
	Price     filter.Bounds
	SalePrice filter.Bounds
	RentPrice filter.Bounds
	Area      filter.Bounds

	Rooms   []string
	Baths   []string
	Garages []string
	Stratum []string

	Antiquity            []int
	AntiquityUnspecified bool
	PropertyTypes        []string

	UpdatedFrom *time.Time
	UpdatedTo   *time.Time

	Latitude      *float64
	Longitude     *float64
	Radius        *int
	SearchAddress string
}

// Item is one search hit. Distance is set on the radius path only.
type Item struct {
	models.PropertyWithCity
	Distance *float64
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"total_count"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

type Result struct {
	Items      []Item
	Pagination Pagination
	// SearchLocation is the geocoded address when one was resolved.
	SearchLocation *geocoding.Location
}

// Engine is the property query engine.
type Engine struct {
	store        Store
	geocoder     Geocoder
	logger       *logrus.Logger
	defaultLimit int
	maxLimit     int
}

func NewEngine(store Store, geocoder Geocoder, cfg *config.Config, logger *logrus.Logger) *Engine {
	return &Engine{
		store:        store,
		geocoder:     geocoder,
		logger:       logger,
		defaultLimit: cfg.Search.DefaultLimit,
		maxLimit:     cfg.Search.MaxLimit,
	}
}

// BuildFilterSet turns the non-geographic parameters of q into a filter set.
func BuildFilterSet(q Query) (filter.Set, error) {
	var set filter.Set

	set.Add(filter.CityIn(q.CityIDs))
	if q.Offer != "" {
		if q.Offer != models.OfferSell && q.Offer != models.OfferRent {
			return set, fmt.Errorf("%w: unknown offer type %q", filter.ErrInvalidFilter, q.Offer)
		}
		set.Add(filter.OfferIs(q.Offer))
	}
	set.Add(filter.PriceBetween(q.Price))
	set.Add(filter.PriceByOffer(q.SalePrice, q.RentPrice))
	set.Add(filter.AreaBetween(q.Area))

	builders := []func([]string) (filter.Predicate, error){filter.Rooms, filter.Baths, filter.Garages, filter.Stratum}
	for i, values := range [][]string{q.Rooms, q.Baths, q.Garages, q.Stratum} {
		pred, err := builders[i](values)
		if err != nil {
			return set, err
		}
		set.Add(pred)
	}

	antiquity, err := filter.Antiquity(q.Antiquity, q.AntiquityUnspecified)
	if err != nil {
		return set, err
	}
	set.Add(antiquity)
	set.Add(filter.PropertyType(q.PropertyTypes))
	set.Add(filter.UpdatedBetween(q.UpdatedFrom, q.UpdatedTo))
	return set, nil
}

func (e *Engine) normalize(q *Query) error {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = e.defaultLimit
	}
	if q.Limit > e.maxLimit {
		q.Limit = e.maxLimit
	}
	// Offsets must not overflow; pages past the cap are empty anyway.
	if maxPage := math.MaxInt32 / q.Limit; q.Page > maxPage {
		q.Page = maxPage
	}
	if q.Sort == "" {
		q.Sort = models.SortRecent
	}
	switch q.Sort {
	case models.SortRecent, models.SortPriceAsc, models.SortPriceDesc, models.SortAreaAsc, models.SortAreaDesc:
	default:
		return fmt.Errorf("%w: unknown sort %q", filter.ErrInvalidFilter, q.Sort)
	}
	if q.Radius != nil && *q.Radius < 0 {
		return fmt.Errorf("%w: negative radius", filter.ErrInvalidFilter)
	}
	return nil
}

// Search runs q and returns one page of results.
func (e *Engine) Search(ctx context.Context, q Query) (*Result, error) {
	if err := e.normalize(&q); err != nil {
		return nil, err
	}
	set, err := BuildFilterSet(q)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	center, ok := e.resolveCenter(ctx, &q, result)
	if ok {
		return e.searchRadius(ctx, q, set, center, result)
	}

	total, err := e.store.CountProperties(ctx, set)
	if err != nil {
		return nil, err
	}
	rows, err := e.store.FindProperties(ctx, set, q.Sort, (q.Page-1)*q.Limit, q.Limit)
	if err != nil {
		return nil, err
	}

	result.Items = make([]Item, 0, len(rows))
	for _, r := range rows {
		result.Items = append(result.Items, Item{PropertyWithCity: r})
	}
	result.Pagination = paginate(q.Page, q.Limit, total)
	return result, nil
}

type point struct{ lat, lng float64 }

// resolveCenter decides whether the radius path applies. A resolved
// address takes precedence over explicit coordinates. When the address fails
// to geocode the coordinates are used if present, otherwise the radius
// filter is dropped.
func (e *Engine) resolveCenter(ctx context.Context, q *Query, result *Result) (point, bool) {
	if q.Radius == nil {
		return point{}, false
	}
	if q.SearchAddress != "" && e.geocoder != nil {
		loc, err := e.geocoder.Geocode(ctx, q.SearchAddress)
		if err == nil {
			result.SearchLocation = &loc
			return point{lat: loc.Latitude, lng: loc.Longitude}, true
		}
		kind := logging.KindInfrastructure
		if errors.Is(err, geocoding.ErrNoResults) {
			kind = logging.KindInput
		}
		e.logger.WithError(err).WithFields(logrus.Fields{
			"address":              q.SearchAddress,
			logging.FieldErrorKind: kind,
		}).Warn("Geocoding failed, falling back to coordinates")
	}
	if q.Latitude != nil && q.Longitude != nil {
		return point{lat: *q.Latitude, lng: *q.Longitude}, true
	}
	return point{}, false
}

// searchRadius cannot push distance into the store: it loads every match,
// keeps those within the radius and paginates in memory.
func (e *Engine) searchRadius(ctx context.Context, q Query, set filter.Set, center point, result *Result) (*Result, error) {
	rows, err := e.store.FindProperties(ctx, set.With(filter.HasCoordinates()), models.SortRecent, 0, -1)
	if err != nil {
		return nil, err
	}

	radius := float64(*q.Radius)
	within := make([]Item, 0, len(rows))
	for _, r := range rows {
		if !r.HasCoordinates() {
			continue
		}
		d := geometry.Distance(center.lat, center.lng, *r.Latitude, *r.Longitude)
		if d > radius {
			continue
		}
		within = append(within, Item{PropertyWithCity: r, Distance: &d})
	}
	sort.SliceStable(within, func(i, j int) bool { return *within[i].Distance < *within[j].Distance })

	total := len(within)
	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	result.Items = within[start:end]
	result.Pagination = paginate(q.Page, q.Limit, int64(total))
	return result, nil
}

func paginate(page, limit int, total int64) Pagination {
	pages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		Page:       page,
		Limit:      limit,
		TotalCount: total,
		TotalPages: pages,
		HasNext:    int64(page)*int64(limit) < total,
		HasPrev:    page > 1,
	}
}
