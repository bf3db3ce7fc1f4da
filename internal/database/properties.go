package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"toperty/server/internal/filter"
	"toperty/server/internal/models"
)

func (d *Database) properties(ctx context.Context, set filter.Set) *gorm.DB {
	return d.where(d.db.WithContext(ctx).Table("property AS p"), set)
}

// CountProperties counts the listings matching set.
func (d *Database) CountProperties(ctx context.Context, set filter.Set) (int64, error) {
	var count int64
	if err := d.properties(ctx, set).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count properties: %w", err)
	}
	return count, nil
}

// FindProperties returns one page of listings matching set with their city
// name. A negative limit returns every match.
func (d *Database) FindProperties(ctx context.Context, set filter.Set, sort models.SortOrder, offset, limit int) ([]models.PropertyWithCity, error) {
	tx := d.properties(ctx, set).
		Select("p.*, c.name AS city_name").
		Joins("LEFT JOIN city c ON c.id = p.city_id").
		Order(orderClause(sort))
	if limit >= 0 {
		tx = tx.Offset(offset).Limit(limit)
	}

	var rows []models.PropertyWithCity
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	return rows, nil
}

// orderClause keeps NULLs last on every store and breaks ties by id so
// pages never overlap.
func orderClause(sort models.SortOrder) string {
	switch sort {
	case models.SortPriceAsc:
		return "p.price ASC, p.fr_property_id ASC"
	case models.SortPriceDesc:
		return "p.price DESC, p.fr_property_id DESC"
	case models.SortAreaAsc:
		return "p.area ASC, p.fr_property_id ASC"
	case models.SortAreaDesc:
		return "p.area DESC, p.fr_property_id DESC"
	default:
		return "CASE WHEN p.creation_date IS NULL THEN 1 ELSE 0 END, p.creation_date DESC, p.fr_property_id DESC"
	}
}

// Cities lists every city ordered by name.
func (d *Database) Cities(ctx context.Context) ([]models.City, error) {
	var cities []models.City
	if err := d.db.WithContext(ctx).Order("name").Find(&cities).Error; err != nil {
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}
	return cities, nil
}
