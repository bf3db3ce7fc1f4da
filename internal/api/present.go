package api

import (
	"fmt"
	"time"

	"toperty/server/internal/filter"
	"toperty/server/internal/models"
	"toperty/server/internal/search"
)

const (
	listingURL = "https://www.fincaraiz.com.co/inmueble/%d"
	mapsURL    = "https://www.google.com/maps?q=%v,%v"
)

// PropertyView is a search hit as the dashboard renders it.
type PropertyView struct {
	ID            int64       `json:"id"`
	City          string      `json:"city"`
	Area          float64     `json:"area"`
	Rooms         interface{} `json:"rooms"`
	Price         float64     `json:"price"`
	OfferType     string      `json:"offer_type"`
	CreationDate  *string     `json:"creation_date"`
	LastUpdate    *string     `json:"last_update"`
	Title         *string     `json:"title"`
	FincaRaizLink *string     `json:"finca_raiz_link"`
	MapsLink      *string     `json:"maps_link"`
	Latitude      *float64    `json:"latitude"`
	Longitude     *float64    `json:"longitude"`
	Baths         interface{} `json:"baths"`
	Garages       interface{} `json:"garages"`
	Stratum       *int        `json:"stratum"`
	Antiquity     *string     `json:"antiquity"`
	IsNew         *bool       `json:"is_new"`
	Address       *string     `json:"address"`
	Distance      *float64    `json:"distance"`
}

// ZoneListingView is the compact form used by the map layer.
type ZoneListingView struct {
	ID           int64    `json:"id"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Price        float64  `json:"price"`
	Offer        string   `json:"offer"`
	Area         float64  `json:"area"`
	Rooms        *string  `json:"rooms"`
	CityID       *int64   `json:"city_id"`
	LocationMain *string  `json:"location_main"`
	Stratum      *string  `json:"stratum"`
	Title        *string  `json:"title"`
	LastUpdate   *string  `json:"last_update"`
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func presentProperty(item search.Item) PropertyView {
	p := item.Property
	v := PropertyView{
		ID:           p.ID,
		City:         "Sin especificar",
		Area:         p.Area,
		Rooms:        filter.ParseValue(p.Rooms).Display(),
		Price:        p.Price,
		OfferType:    "Renta",
		Title:        p.Title,
		CreationDate: formatDate(p.CreationDate),
		LastUpdate:   formatDate(p.LastUpdate),
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Baths:        filter.ParseValue(p.Baths).Display(),
		Garages:      filter.ParseValue(p.Garages).Display(),
		Stratum:      filter.StratumLevel(p.Stratum),
		Antiquity:    filter.AntiquityLabel(p.Antiquity),
		IsNew:        p.IsNew,
		Address:      p.Address,
		Distance:     item.Distance,
	}
	if item.CityName != nil {
		v.City = *item.CityName
	}
	if p.Offer == models.OfferSell {
		v.OfferType = "Venta"
	}
	if p.ID != 0 {
		link := fmt.Sprintf(listingURL, p.ID)
		v.FincaRaizLink = &link
	}
	if p.HasCoordinates() {
		link := fmt.Sprintf(mapsURL, *p.Latitude, *p.Longitude)
		v.MapsLink = &link
	}
	return v
}

func presentZoneListing(p models.PropertyWithCity) ZoneListingView {
	v := ZoneListingView{
		ID:           p.ID,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Price:        p.Price,
		Offer:        p.Offer,
		Area:         p.Area,
		Rooms:        p.Rooms,
		CityID:       p.CityID,
		LocationMain: p.LocationMain,
		Stratum:      p.Stratum,
		Title:        p.Title,
		LastUpdate:   formatDate(p.LastUpdate),
	}
	return v
}
