package api

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"toperty/server/internal/filter"
	"toperty/server/internal/models"
	"toperty/server/internal/search"
	"toperty/server/internal/zones"
)

const dateLayout = "2006-01-02"

func invalid(key, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s %s", filter.ErrInvalidFilter, key, fmt.Sprintf(format, args...))
}

// queryList accepts both repeated keys and comma separated values.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func queryInt64s(c *gin.Context, key string) ([]int64, error) {
	values := queryList(c, key)
	out := make([]int64, 0, len(values))
	for _, v := range values {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, invalid(key, "must be a list of integers, got %q", v)
		}
		out = append(out, n)
	}
	return out, nil
}

func queryInts(c *gin.Context, key string) ([]int, error) {
	values, err := queryInt64s(c, key)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out, nil
}

func queryInt(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, invalid(key, "must be an integer, got %q", raw)
	}
	return &n, nil
}

func queryInt64(c *gin.Context, key string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, invalid(key, "must be an integer, got %q", raw)
	}
	return &n, nil
}

func queryFloat(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, invalid(key, "must be a number, got %q", raw)
	}
	return &f, nil
}

func queryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, invalid(key, "must be a YYYY-MM-DD date, got %q", raw)
	}
	return &t, nil
}

func queryBool(c *gin.Context, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def, invalid(key, "must be true or false, got %q", raw)
	}
	return b, nil
}

// parser collects the first parse error so handlers can read every
// parameter before checking.
type parser struct {
	c   *gin.Context
	err error
}

func (p *parser) keep(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *parser) integer(key string) *int {
	v, err := queryInt(p.c, key)
	p.keep(err)
	return v
}

func (p *parser) id(key string) *int64 {
	v, err := queryInt64(p.c, key)
	p.keep(err)
	return v
}

func (p *parser) number(key string) *float64 {
	v, err := queryFloat(p.c, key)
	p.keep(err)
	return v
}

func (p *parser) date(key string) *time.Time {
	v, err := queryDate(p.c, key)
	p.keep(err)
	return v
}

func (p *parser) bounds(minKey, maxKey string) filter.Bounds {
	return filter.Bounds{Min: p.number(minKey), Max: p.number(maxKey)}
}

// box reads north/south/east/west. It returns nil unless all four are set.
func (p *parser) box() *models.Bounds {
	north, south := p.number("north"), p.number("south")
	east, west := p.number("east"), p.number("west")
	if north == nil || south == nil || east == nil || west == nil {
		return nil
	}
	return &models.Bounds{MinLat: *south, MaxLat: *north, MinLng: *west, MaxLng: *east}
}

func parseSearchQuery(c *gin.Context) (search.Query, error) {
	p := &parser{c: c}
	q := search.Query{
		Sort:          models.SortOrder(strings.TrimSpace(c.Query("sort"))),
		Offer:         strings.TrimSpace(c.Query("offer_type")),
		Price:         p.bounds("min_price", "max_price"),
		SalePrice:     p.bounds("min_sale_price", "max_sale_price"),
		RentPrice:     p.bounds("min_rent_price", "max_rent_price"),
		Area:          p.bounds("min_area", "max_area"),
		Rooms:         queryList(c, "rooms"),
		Baths:         queryList(c, "baths"),
		Garages:       queryList(c, "garages"),
		Stratum:       queryList(c, "stratums"),
		PropertyTypes: queryList(c, "property_type"),
		UpdatedFrom:   p.date("updated_date_from"),
		UpdatedTo:     p.date("updated_date_to"),
		Latitude:      p.number("latitude"),
		Longitude:     p.number("longitude"),
		Radius:        p.integer("radius"),
		SearchAddress: strings.TrimSpace(c.Query("search_address")),
	}
	if page := p.integer("page"); page != nil {
		q.Page = *page
	}
	if limit := p.integer("limit"); limit != nil {
		q.Limit = *limit
	}

	var err error
	q.CityIDs, err = queryInt64s(c, "city_ids")
	p.keep(err)
	q.Antiquity, err = queryInts(c, "antiquity_categories")
	p.keep(err)
	q.AntiquityUnspecified = strings.EqualFold(strings.TrimSpace(c.Query("antiquity_filter")), "unspecified")
	return q, p.err
}

func parseZoneListingQuery(c *gin.Context) (search.ZoneQuery, error) {
	p := &parser{c: c}
	q := search.ZoneQuery{
		CityID:        p.id("city_id"),
		Box:           p.box(),
		PropertyTypes: queryList(c, "property_type"),
		UpdatedFrom:   p.date("updated_date_from"),
		UpdatedTo:     p.date("updated_date_to"),
	}
	return q, p.err
}

func parseZoneQuery(c *gin.Context, mode zones.Mode) (zones.Query, error) {
	p := &parser{c: c}
	q := zones.Query{
		Mode:          mode,
		GroupBy:       zones.GroupBy(strings.TrimSpace(c.Query("group_by"))),
		CityID:        p.id("city_id"),
		UpdatedFrom:   p.date("updated_date_from"),
		UpdatedTo:     p.date("updated_date_to"),
		Latitude:      p.number("latitude"),
		Longitude:     p.number("longitude"),
		Radius:        p.integer("radius"),
		SearchAddress: strings.TrimSpace(c.Query("search_address")),
	}
	return q, p.err
}

// parseDetailQuery maps the update-date parameters onto creation dates, the
// column zone detail periods are measured on.
func parseDetailQuery(c *gin.Context) (zones.DetailQuery, error) {
	p := &parser{c: c}
	q := zones.DetailQuery{
		ZoneName:      c.Query("zone_name"),
		Box:           p.box(),
		CityID:        p.id("city_id"),
		PropertyTypes: queryList(c, "property_type"),
		CreatedFrom:   p.date("updated_date_from"),
		CreatedTo:     p.date("updated_date_to"),
	}
	trim, err := queryBool(c, "trim_outliers", true)
	p.keep(err)
	q.TrimOutliers = trim
	return q, p.err
}
