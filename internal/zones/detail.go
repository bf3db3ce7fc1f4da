package zones

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"toperty/server/internal/filter"
	"toperty/server/internal/geometry"
	"toperty/server/internal/models"
)

// DetailQuery selects one zone, by label or by bounding box. The box wins
// when both are given.
type DetailQuery struct {
	ZoneName      string
	Box           *models.Bounds
	CityID        *int64
	PropertyTypes []string
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	TrimOutliers  bool
}

func (q DetailQuery) hasDateFilter() bool {
	return q.CreatedFrom != nil || q.CreatedTo != nil
}

// Detail computes sale and rent metrics of a zone for the requested period.
// With a date filter it also computes them for the most recent days so the
// caller can compare the two.
func (a *Aggregator) Detail(ctx context.Context, q DetailQuery) (*models.ZoneDetail, error) {
	var base filter.Set
	switch {
	case q.Box != nil:
		if err := filter.ValidateBox(*q.Box); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidZoneQuery, err)
		}
		base.Add(filter.WithinBox(*q.Box))
	case strings.TrimSpace(q.ZoneName) != "":
		base.Add(filter.LocationIs(strings.TrimSpace(q.ZoneName)))
	default:
		return nil, fmt.Errorf("%w: zone name or bounding box required", ErrInvalidZoneQuery)
	}
	base.Add(filter.PositiveAreaPrice())
	if q.CityID != nil {
		base.Add(filter.CityIn([]int64{*q.CityID}))
	}
	base.Add(filter.PropertyType(q.PropertyTypes))

	rows, err := a.store.ZoneCandidates(ctx, base.With(filter.CreatedBetween(q.CreatedFrom, q.CreatedTo)), nil, nil)
	if err != nil {
		return nil, err
	}
	detail := &models.ZoneDetail{FilteredPeriod: a.period(rows, q.TrimOutliers)}

	if q.hasDateFilter() {
		cutoff := a.now().AddDate(0, 0, -a.comparisonDays)
		cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
		recent, err := a.store.ZoneCandidates(ctx, base.With(filter.CreatedBetween(&cutoff, nil)), nil, nil)
		if err != nil {
			return nil, err
		}
		current := a.period(recent, q.TrimOutliers)
		detail.CurrentPeriod = &current
		detail.HasComparison = detail.FilteredPeriod.PropertyCount > 0 && current.PropertyCount > 0
	}

	a.logger.WithFields(logrus.Fields{
		"zone":           q.ZoneName,
		"filtered_count": detail.FilteredPeriod.PropertyCount,
		"has_comparison": detail.HasComparison,
	}).Debug("Computed zone detail")
	return detail, nil
}

// period computes the metrics of rows, optionally dropping outliers first.
func (a *Aggregator) period(rows []models.ZoneRow, trim bool) models.ZonePeriod {
	var p models.ZonePeriod
	if trim {
		kept := trimOutliers(rows, a.sigma)
		p.Excluded = len(rows) - len(kept)
		rows = kept
	}

	var saleM2, rentM2, salePrice, rentPrice []float64
	for _, r := range rows {
		switch r.Offer {
		case models.OfferSell:
			saleM2 = append(saleM2, r.Price/r.Area)
			salePrice = append(salePrice, r.Price)
		case models.OfferRent:
			rentM2 = append(rentM2, r.Price/r.Area)
			rentPrice = append(rentPrice, r.Price)
		}
	}

	p.PropertyCount = len(rows)
	p.SaleCount = len(saleM2)
	p.RentCount = len(rentM2)
	p.SaleAvgPriceM2 = geometry.Finite(geometry.Mean(saleM2))
	p.RentAvgPriceM2 = geometry.Finite(geometry.Mean(rentM2))
	p.AvgSalePrice = geometry.Finite(geometry.Mean(salePrice))
	p.AvgRentPrice = geometry.Finite(geometry.Mean(rentPrice))
	p.CapRate = capRate(p.RentAvgPriceM2, p.SaleAvgPriceM2)
	return p
}

// band is the interval mean ± sigma standard deviations of values. It is
// unbounded when the values have no spread to measure.
type band struct {
	lo, hi float64
	open   bool
}

func newBand(values []float64, sigma float64) band {
	sd := geometry.StdDev(values)
	if len(values) < 2 || sd == 0 {
		return band{open: true}
	}
	mean := geometry.Mean(values)
	return band{lo: mean - sigma*sd, hi: mean + sigma*sd}
}

func (b band) contains(v float64) bool {
	return b.open || (v >= b.lo && v <= b.hi)
}

// trimOutliers drops rows whose area is outside the band of all areas, or
// whose price is outside the band of its offer type.
func trimOutliers(rows []models.ZoneRow, sigma float64) []models.ZoneRow {
	areas := make([]float64, 0, len(rows))
	prices := make(map[string][]float64)
	for _, r := range rows {
		areas = append(areas, r.Area)
		prices[r.Offer] = append(prices[r.Offer], r.Price)
	}

	areaBand := newBand(areas, sigma)
	priceBands := make(map[string]band, len(prices))
	for offer, values := range prices {
		priceBands[offer] = newBand(values, sigma)
	}

	kept := make([]models.ZoneRow, 0, len(rows))
	for _, r := range rows {
		if areaBand.contains(r.Area) && priceBands[r.Offer].contains(r.Price) {
			kept = append(kept, r)
		}
	}
	return kept
}
