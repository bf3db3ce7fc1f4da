package config

// City holds the map defaults of a city the scrapers cover
type City struct {
	WebsiteName string    `json:"website_name"`
	Center      []float64 `json:"center"`
	ZoomLevel   int       `json:"zoom_level"`
}

// SupportedCities is keyed by the city's website code
var SupportedCities = []City{
	{WebsiteName: "bogota", Center: []float64{4.7110, -74.0721}, ZoomLevel: 12},
	{WebsiteName: "medellin", Center: []float64{6.2442, -75.5812}, ZoomLevel: 12},
	{WebsiteName: "cali", Center: []float64{3.4516, -76.5320}, ZoomLevel: 12},
	{WebsiteName: "barranquilla", Center: []float64{10.9685, -74.7813}, ZoomLevel: 12},
	{WebsiteName: "cartagena", Center: []float64{10.3910, -75.4794}, ZoomLevel: 13},
	{WebsiteName: "chia", Center: []float64{4.8617, -74.0325}, ZoomLevel: 14},
	// Add more cities here as needed
}

// GetCityNames returns the website codes of the supported cities
func GetCityNames() []string {
	names := make([]string, len(SupportedCities))
	for i, city := range SupportedCities {
		names[i] = city.WebsiteName
	}
	return names
}

// GetCityByName returns the map defaults of a city by website code
func GetCityByName(name string) *City {
	for _, city := range SupportedCities {
		if city.WebsiteName == name {
			return &city
		}
	}
	return nil
}
