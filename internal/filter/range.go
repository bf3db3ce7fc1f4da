package filter

import (
	"fmt"
	"time"

	"toperty/server/internal/models"
)

// Bounds is an optional inclusive numeric range.
type Bounds struct {
	Min *float64
	Max *float64
}

func (b Bounds) IsZero() bool { return b.Min == nil && b.Max == nil }

func between(column string, get func(*models.Property) float64, b Bounds) Predicate {
	var preds []Predicate
	if b.Min != nil {
		lo := *b.Min
		preds = append(preds, static(func(p *models.Property) bool { return get(p) >= lo }, column+" >= ?", lo))
	}
	if b.Max != nil {
		hi := *b.Max
		preds = append(preds, static(func(p *models.Property) bool { return get(p) <= hi }, column+" <= ?", hi))
	}
	return And(preds...)
}

func PriceBetween(b Bounds) Predicate {
	return between("p.price", func(p *models.Property) float64 { return p.Price }, b)
}

func AreaBetween(b Bounds) Predicate {
	return between("p.area", func(p *models.Property) float64 { return p.Area }, b)
}

// OfferIs matches the offer type ("sell" or "rent").
func OfferIs(offer string) Predicate {
	return static(func(p *models.Property) bool { return p.Offer == offer }, "p.offer = ?", offer)
}

// PriceByOffer applies sale bounds to sell listings and rent bounds to rent
// listings. A side without bounds accepts every listing of its offer type,
// so sale bounds never drop a rent listing and vice versa.
func PriceByOffer(sale, rent Bounds) Predicate {
	if sale.IsZero() && rent.IsZero() {
		return nil
	}
	return Or(
		And(OfferIs(models.OfferSell), PriceBetween(sale)),
		And(OfferIs(models.OfferRent), PriceBetween(rent)),
	)
}

// CityIn matches listings whose city id is one of ids.
func CityIn(ids []int64) Predicate {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return static(func(p *models.Property) bool {
		if p.CityID == nil {
			return false
		}
		_, ok := set[*p.CityID]
		return ok
	}, "p.city_id IN (?)", ids)
}

func dateBetween(column string, get func(*models.Property) *time.Time, from, to *time.Time) Predicate {
	var preds []Predicate
	if from != nil {
		f := *from
		preds = append(preds, static(func(p *models.Property) bool {
			d := get(p)
			return d != nil && !d.Before(f)
		}, column+" >= ?", f))
	}
	if to != nil {
		t := *to
		preds = append(preds, static(func(p *models.Property) bool {
			d := get(p)
			return d != nil && !d.After(t)
		}, column+" <= ?", t))
	}
	return And(preds...)
}

// UpdatedBetween bounds the last update date, both ends inclusive.
func UpdatedBetween(from, to *time.Time) Predicate {
	return dateBetween("p.last_update", func(p *models.Property) *time.Time { return p.LastUpdate }, from, to)
}

// CreatedBetween bounds the creation date, both ends inclusive.
func CreatedBetween(from, to *time.Time) Predicate {
	return dateBetween("p.creation_date", func(p *models.Property) *time.Time { return p.CreationDate }, from, to)
}

func LocationIs(label string) Predicate {
	return static(func(p *models.Property) bool {
		return p.LocationMain != nil && *p.LocationMain == label
	}, "p.location_main = ?", label)
}

// HasLocation requires a non-empty zone label.
func HasLocation() Predicate {
	return static(func(p *models.Property) bool {
		return p.LocationMain != nil && *p.LocationMain != ""
	}, "p.location_main IS NOT NULL AND p.location_main <> ''")
}

func HasCoordinates() Predicate {
	return static(func(p *models.Property) bool { return p.HasCoordinates() },
		"p.latitude IS NOT NULL AND p.longitude IS NOT NULL")
}

// PositiveAreaPrice drops listings that cannot yield a price per m².
func PositiveAreaPrice() Predicate {
	return static(func(p *models.Property) bool { return p.Area > 0 && p.Price > 0 },
		"p.area > 0 AND p.price > 0")
}

// WithinBox matches coordinates inside the box, edges included.
func WithinBox(b models.Bounds) Predicate {
	return static(func(p *models.Property) bool {
		if !p.HasCoordinates() {
			return false
		}
		lat, lng := *p.Latitude, *p.Longitude
		return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
	}, "p.latitude BETWEEN ? AND ? AND p.longitude BETWEEN ? AND ?", b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
}

// ValidateBox rejects boxes with inverted edges.
func ValidateBox(b models.Bounds) error {
	if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
		return fmt.Errorf("%w: inverted bounding box", ErrInvalidFilter)
	}
	return nil
}
