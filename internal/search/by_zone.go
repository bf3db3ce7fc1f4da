package search

import (
	"context"
	"time"

	"toperty/server/internal/filter"
	"toperty/server/internal/models"
)

// ZoneQuery selects located listings for the map view.
type ZoneQuery struct {
	CityID        *int64
	Box           *models.Bounds
	PropertyTypes []string
	UpdatedFrom   *time.Time
	UpdatedTo     *time.Time
}

type ZoneSummary struct {
	Total   int `json:"total"`
	ForSale int `json:"for_sale"`
	ForRent int `json:"for_rent"`
}

type ZoneListing struct {
	Properties []models.PropertyWithCity
	Summary    ZoneSummary
}

// ByZone returns every located listing inside the optional box with sale and
// rent counts.
func (e *Engine) ByZone(ctx context.Context, q ZoneQuery) (*ZoneListing, error) {
	var set filter.Set
	set.Add(filter.HasCoordinates())
	if q.CityID != nil {
		set.Add(filter.CityIn([]int64{*q.CityID}))
	}
	if q.Box != nil {
		if err := filter.ValidateBox(*q.Box); err != nil {
			return nil, err
		}
		set.Add(filter.WithinBox(*q.Box))
	}
	set.Add(filter.PropertyType(q.PropertyTypes))
	set.Add(filter.UpdatedBetween(q.UpdatedFrom, q.UpdatedTo))

	rows, err := e.store.FindProperties(ctx, set, models.SortRecent, 0, -1)
	if err != nil {
		return nil, err
	}

	listing := &ZoneListing{Properties: rows, Summary: ZoneSummary{Total: len(rows)}}
	for _, r := range rows {
		switch r.Offer {
		case models.OfferSell:
			listing.Summary.ForSale++
		case models.OfferRent:
			listing.Summary.ForRent++
		}
	}
	return listing, nil
}
