package models

// Bounds is a latitude/longitude box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// ZoneSummary is one aggregated zone. The price fields stay zero in the
// basic variant.
type ZoneSummary struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	CityName         string  `json:"city_name"`
	PropertyCount    int     `json:"property_count"`
	Bounds           Bounds  `json:"bounds"`
	CenterLat        float64 `json:"center_lat"`
	CenterLng        float64 `json:"center_lng"`
	SalePriceM2      float64 `json:"sale_price_m2"`
	RentPriceM2      float64 `json:"rent_price_m2"`
	SaleValorization float64 `json:"sale_valorization"`
	RentValorization float64 `json:"rent_valorization"`
	CapRate          float64 `json:"cap_rate"`
}

// ZonePeriod holds the detail metrics of a zone over one period.
type ZonePeriod struct {
	PropertyCount  int     `json:"property_count"`
	SaleCount      int     `json:"sale_count"`
	RentCount      int     `json:"rent_count"`
	SaleAvgPriceM2 float64 `json:"sale_avg_price_m2"`
	RentAvgPriceM2 float64 `json:"rent_avg_price_m2"`
	AvgSalePrice   float64 `json:"avg_sale_price"`
	AvgRentPrice   float64 `json:"avg_rent_price"`
	CapRate        float64 `json:"cap_rate"`
	Excluded       int     `json:"excluded_outliers"`
}

type ZoneDetail struct {
	FilteredPeriod ZonePeriod  `json:"filtered_period"`
	CurrentPeriod  *ZonePeriod `json:"current_period"`
	HasComparison  bool        `json:"has_comparison"`
}

// PostalCodeStats is the grouped aggregate per location label.
type PostalCodeStats struct {
	PostalCode     string   `json:"postal_code" gorm:"column:postal_code"`
	HasProperties  bool     `json:"has_properties" gorm:"-"`
	PropertyCount  int      `json:"property_count" gorm:"column:property_count"`
	CenterLat      *float64 `json:"center_lat" gorm:"column:center_lat"`
	CenterLng      *float64 `json:"center_lng" gorm:"column:center_lng"`
	AvgSalePriceM2 float64  `json:"avg_sale_price_m2" gorm:"column:avg_sale_price_m2"`
	AvgRentPriceM2 float64  `json:"avg_rent_price_m2" gorm:"column:avg_rent_price_m2"`
}
