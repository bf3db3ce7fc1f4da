package ingest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"toperty/server/internal/models"
)

var ErrInvalidBatch = errors.New("invalid listing batch")

const schemaURL = "listing_batch.schema.json"

//go:embed listing_batch.schema.json
var batchSchemaJSON string

var batchSchema = compileSchema()

func compileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(schemaURL, strings.NewReader(batchSchemaJSON)); err != nil {
		panic(fmt.Sprintf("failed to add schema resource: %v", err))
	}
	return compiler.MustCompile(schemaURL)
}

// Text is a free-text attribute that scrapers send either as a string or as
// a bare number.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*t = Text(n.String())
	return nil
}

func (t *Text) ptr() *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

// Record is one listing on the wire.
type Record struct {
	ID            int64    `json:"fr_property_id"`
	Area          float64  `json:"area"`
	Price         float64  `json:"price"`
	Offer         string   `json:"offer"`
	Rooms         *Text    `json:"rooms"`
	Baths         *Text    `json:"baths"`
	Garages       *Text    `json:"garages"`
	Stratum       *Text    `json:"stratum"`
	Antiquity     *Text    `json:"antiquity"`
	Title         *string  `json:"title"`
	Address       *string  `json:"address"`
	LocationMain  *string  `json:"location_main"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	CreationDate  *string  `json:"creation_date"`
	LastUpdate    *string  `json:"last_update"`
	CityID        *int64   `json:"city_id"`
	IsNew         *bool    `json:"is_new"`
	PreviousValue *float64 `json:"previous_value"`
	UpdatedDate   *string  `json:"updated_date"`
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Listing converts r to its stored form.
func (r Record) Listing() (*models.Listing, error) {
	l := &models.Listing{
		Property: models.Property{
			ID:           r.ID,
			Area:         r.Area,
			Price:        r.Price,
			Offer:        r.Offer,
			Rooms:        r.Rooms.ptr(),
			Baths:        r.Baths.ptr(),
			Garages:      r.Garages.ptr(),
			Stratum:      r.Stratum.ptr(),
			Antiquity:    r.Antiquity.ptr(),
			Title:        r.Title,
			Address:      r.Address,
			LocationMain: r.LocationMain,
			Latitude:     r.Latitude,
			Longitude:    r.Longitude,
			CityID:       r.CityID,
			IsNew:        r.IsNew,
		},
		PreviousValue: r.PreviousValue,
	}

	var err error
	if l.CreationDate, err = parseDate(r.CreationDate); err != nil {
		return nil, fmt.Errorf("creation_date: %w", err)
	}
	if l.LastUpdate, err = parseDate(r.LastUpdate); err != nil {
		return nil, fmt.Errorf("last_update: %w", err)
	}
	if l.UpdatedDate, err = parseDate(r.UpdatedDate); err != nil {
		return nil, fmt.Errorf("updated_date: %w", err)
	}
	return l, nil
}

// Decode validates body against the listing batch schema and converts it.
// Every failure wraps ErrInvalidBatch.
func Decode(body []byte, maxBatch int) ([]*models.Listing, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: body is not valid JSON: %v", ErrInvalidBatch, err)
	}
	if err := batchSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBatch, err)
	}
	if maxBatch > 0 && len(records) > maxBatch {
		return nil, fmt.Errorf("%w: %d listings exceed the limit of %d", ErrInvalidBatch, len(records), maxBatch)
	}

	listings := make([]*models.Listing, 0, len(records))
	for i, r := range records {
		l, err := r.Listing()
		if err != nil {
			return nil, fmt.Errorf("%w: listing %d: %v", ErrInvalidBatch, i, err)
		}
		listings = append(listings, l)
	}
	return listings, nil
}
