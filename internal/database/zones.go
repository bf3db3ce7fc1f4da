package database

import (
	"context"
	"fmt"
	"time"

	"toperty/server/internal/filter"
	"toperty/server/internal/models"
)

// ZoneCandidates returns the listings matching set joined with their city
// name and previous valuation. The update range applies to the valuation
// snapshot; listings without a snapshot always stay.
func (d *Database) ZoneCandidates(ctx context.Context, set filter.Set, updatedFrom, updatedTo *time.Time) ([]models.ZoneRow, error) {
	tx := d.properties(ctx, set).
		Select("p.*, c.name AS city_name, up.previous_value").
		Joins("LEFT JOIN city c ON c.id = p.city_id").
		Joins("LEFT JOIN updated_property up ON up.property_id = p.fr_property_id")
	if updatedFrom != nil {
		tx = tx.Where("(up.updated_date IS NULL OR up.updated_date >= ?)", *updatedFrom)
	}
	if updatedTo != nil {
		tx = tx.Where("(up.updated_date IS NULL OR up.updated_date <= ?)", *updatedTo)
	}

	var rows []models.ZoneRow
	if err := tx.Order("p.fr_property_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query zone candidates: %w", err)
	}
	return rows, nil
}

const postalCodeQuery = `
	SELECT
		p.location_main AS postal_code,
		COUNT(*) AS property_count,
		AVG(p.latitude) AS center_lat,
		AVG(p.longitude) AS center_lng,
		COALESCE(AVG(CASE WHEN p.offer = 'sell' AND p.area > 0 THEN p.price / p.area END), 0) AS avg_sale_price_m2,
		COALESCE(AVG(CASE WHEN p.offer = 'rent' AND p.area > 0 THEN p.price / p.area END), 0) AS avg_rent_price_m2
	FROM property p
	WHERE p.location_main IS NOT NULL
		AND p.location_main <> ''
		AND p.latitude IS NOT NULL
		AND p.longitude IS NOT NULL
		%s
	GROUP BY p.location_main
	ORDER BY property_count DESC, postal_code ASC
`

// PostalCodeStats aggregates every located zone label in the store.
func (d *Database) PostalCodeStats(ctx context.Context, set filter.Set) ([]models.PostalCodeStats, error) {
	extra, args := set.SQL(d.dialect)
	if extra != "" {
		extra = "AND (" + extra + ")"
	}

	var stats []models.PostalCodeStats
	if err := d.db.WithContext(ctx).Raw(fmt.Sprintf(postalCodeQuery, extra), args...).Scan(&stats).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate postal codes: %w", err)
	}
	for i := range stats {
		stats[i].HasProperties = true
	}
	return stats, nil
}
