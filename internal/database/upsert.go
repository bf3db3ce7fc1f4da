package database

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toperty/server/internal/models"
)

// UpsertListings writes a batch of listings through tx. Existing properties
// are overwritten; a listing carrying a previous value replaces the
// property's valuation snapshot. A listing repeated within the batch is
// written once, with its last occurrence.
func UpsertListings(tx *gorm.DB, batch []*models.Listing) error {
	if len(batch) == 0 {
		return nil
	}
	batch = lastByID(batch)

	properties := make([]models.Property, 0, len(batch))
	var snapshots []models.UpdatedProperty
	for _, l := range batch {
		properties = append(properties, l.Property)
		if l.PreviousValue != nil {
			snapshots = append(snapshots, models.UpdatedProperty{
				PropertyID:    l.ID,
				PreviousValue: l.PreviousValue,
				UpdatedDate:   l.UpdatedDate,
			})
		}
	}

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fr_property_id"}},
		UpdateAll: true,
	}).Create(&properties).Error; err != nil {
		return fmt.Errorf("failed to upsert properties: %w", err)
	}

	if len(snapshots) > 0 {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "property_id"}},
			UpdateAll: true,
		}).Create(&snapshots).Error; err != nil {
			return fmt.Errorf("failed to upsert valuation snapshots: %w", err)
		}
	}
	return nil
}

// lastByID drops earlier duplicates of a listing id, keeping first-seen
// order. Postgres rejects ON CONFLICT DO UPDATE touching one row twice.
func lastByID(batch []*models.Listing) []*models.Listing {
	index := make(map[int64]int, len(batch))
	out := make([]*models.Listing, 0, len(batch))
	for _, l := range batch {
		if i, ok := index[l.ID]; ok {
			out[i] = l
			continue
		}
		index[l.ID] = len(out)
		out = append(out, l)
	}
	return out
}

// UpsertCities creates or renames cities by id.
func UpsertCities(tx *gorm.DB, cities []models.City) error {
	if len(cities) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&cities).Error
}
