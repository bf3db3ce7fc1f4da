package models

import "time"

const (
	OfferSell = "sell"
	OfferRent = "rent"
)

// Property is a scraped listing. Categorical attributes are stored as free
// text exactly as the ingestion source delivered them.
type Property struct {
	ID           int64      `json:"id" gorm:"column:fr_property_id;primaryKey;autoIncrement:false"`
	Area         float64    `json:"area" gorm:"column:area"`
	Price        float64    `json:"price" gorm:"column:price"`
	Offer        string     `json:"offer" gorm:"column:offer;size:10"`
	Rooms        *string    `json:"rooms" gorm:"column:rooms"`
	Baths        *string    `json:"baths" gorm:"column:baths"`
	Garages      *string    `json:"garages" gorm:"column:garages"`
	Stratum      *string    `json:"stratum" gorm:"column:stratum"`
	Antiquity    *string    `json:"antiquity" gorm:"column:antiquity"`
	Title        *string    `json:"title" gorm:"column:title"`
	Address      *string    `json:"address" gorm:"column:address"`
	LocationMain *string    `json:"location_main" gorm:"column:location_main;index"`
	Latitude     *float64   `json:"latitude" gorm:"column:latitude;index:idx_property_coordinates"`
	Longitude    *float64   `json:"longitude" gorm:"column:longitude;index:idx_property_coordinates"`
	CreationDate *time.Time `json:"creation_date" gorm:"column:creation_date;type:date;index"`
	LastUpdate   *time.Time `json:"last_update" gorm:"column:last_update;type:date"`
	CityID       *int64     `json:"city_id" gorm:"column:city_id;index"`
	IsNew        *bool      `json:"is_new" gorm:"column:is_new"`
}

func (Property) TableName() string { return "property" }

// HasCoordinates reports whether the listing can take part in distance filtering.
func (p *Property) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

type City struct {
	ID          int64  `json:"id" gorm:"column:id;primaryKey"`
	Name        string `json:"name" gorm:"column:name;size:100"`
	WebsiteName string `json:"website_name" gorm:"column:website_name;size:50"`
}

func (City) TableName() string { return "city" }

// UpdatedProperty is the valuation snapshot taken when a listing changed price.
// PreviousValue is the price before the change.
type UpdatedProperty struct {
	PropertyID    int64      `json:"property_id" gorm:"column:property_id;primaryKey;autoIncrement:false"`
	PreviousValue *float64   `json:"previous_value" gorm:"column:previous_value"`
	UpdatedDate   *time.Time `json:"updated_date" gorm:"column:updated_date;type:date"`
}

func (UpdatedProperty) TableName() string { return "updated_property" }

// Listing is one ingested record: the property and, when its price changed,
// the valuation snapshot to store alongside it.
type Listing struct {
	Property
	PreviousValue *float64
	UpdatedDate   *time.Time
}

// SortOrder selects the ordering of a non-radius property search.
type SortOrder string

const (
	SortRecent    SortOrder = "recent"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
	SortAreaAsc   SortOrder = "area_asc"
	SortAreaDesc  SortOrder = "area_desc"
)

// PropertyWithCity is a property row joined with its (optional) city.
type PropertyWithCity struct {
	Property
	CityName *string `gorm:"column:city_name"`
}

// ZoneRow is the per-listing input of zone aggregation: a property with its
// city name and, when a valuation snapshot exists, the previous price.
type ZoneRow struct {
	Property
	CityName      *string  `gorm:"column:city_name"`
	PreviousValue *float64 `gorm:"column:previous_value"`
}
