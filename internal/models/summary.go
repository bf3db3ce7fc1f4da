package models

// PropertySummary is the store-wide listing overview for one day.
type PropertySummary struct {
	Date                string         `json:"date"`
	TotalCities         int            `json:"total_cities"`
	PropertiesTotal     int64          `json:"properties_total"`
	PropertiesToday     int64          `json:"properties_today"`
	PropertiesYesterday int64          `json:"properties_yesterday"`
	WeekAgoTotal        int64          `json:"week_ago_total"`
	Changes             SummaryChanges `json:"changes"`
	Cities              []CityCount    `json:"cities"`
}

// SummaryChanges are percentage changes rounded to one decimal. They stay
// zero when the baseline is zero.
type SummaryChanges struct {
	PropertiesTodayChange float64 `json:"properties_today_change"`
	TotalChange           float64 `json:"total_change"`
}

type CityCount struct {
	ID              int64  `json:"id" gorm:"column:id"`
	Name            string `json:"name" gorm:"column:name"`
	PropertiesTotal int64  `json:"properties_total" gorm:"column:properties_total"`
	PropertiesToday int64  `json:"properties_today" gorm:"column:properties_today"`
}
