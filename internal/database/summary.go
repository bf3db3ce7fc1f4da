package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"toperty/server/internal/models"
)

const summaryQuery = `
	SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN creation_date >= @today AND creation_date < @tomorrow THEN 1 ELSE 0 END), 0) AS today,
		COALESCE(SUM(CASE WHEN creation_date >= @yesterday AND creation_date < @today THEN 1 ELSE 0 END), 0) AS yesterday,
		COALESCE(SUM(CASE WHEN creation_date < @week THEN 1 ELSE 0 END), 0) AS week_ago
	FROM property
`

const citySummaryQuery = `
	SELECT
		c.id AS id,
		c.name AS name,
		COUNT(p.fr_property_id) AS properties_total,
		COALESCE(SUM(CASE WHEN p.creation_date >= @today AND p.creation_date < @tomorrow THEN 1 ELSE 0 END), 0) AS properties_today
	FROM city c
	LEFT JOIN property p ON p.city_id = c.id
	GROUP BY c.id, c.name
	ORDER BY c.name
`

type summaryCounts struct {
	Total     int64
	Today     int64
	Yesterday int64
	WeekAgo   int64
}

// PropertySummary counts listings created on day and the day before, and
// compares the current total with the total as of a week before day. day
// must be a UTC midnight, the way creation dates are stored.
func (d *Database) PropertySummary(ctx context.Context, day time.Time) (*models.PropertySummary, error) {
	args := map[string]interface{}{
		"today":     day,
		"tomorrow":  day.AddDate(0, 0, 1),
		"yesterday": day.AddDate(0, 0, -1),
		"week":      day.AddDate(0, 0, -6),
	}

	var counts summaryCounts
	if err := d.db.WithContext(ctx).Raw(summaryQuery, args).Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count properties: %w", err)
	}

	var cities []models.CityCount
	if err := d.db.WithContext(ctx).Raw(citySummaryQuery, args).Scan(&cities).Error; err != nil {
		return nil, fmt.Errorf("failed to count properties per city: %w", err)
	}
	if cities == nil {
		cities = []models.CityCount{}
	}

	return &models.PropertySummary{
		Date:                day.Format("2006-01-02"),
		TotalCities:         len(cities),
		PropertiesTotal:     counts.Total,
		PropertiesToday:     counts.Today,
		PropertiesYesterday: counts.Yesterday,
		WeekAgoTotal:        counts.WeekAgo,
		Changes: models.SummaryChanges{
			PropertiesTodayChange: percentChange(counts.Today, counts.Yesterday),
			TotalChange:           percentChange(counts.Total, counts.WeekAgo),
		},
		Cities: cities,
	}, nil
}

func percentChange(cur, prev int64) float64 {
	if prev <= 0 {
		return 0
	}
	return math.Round(float64(cur-prev)/float64(prev)*1000) / 10
}
