package database

import (
	"fmt"

	"toperty/server/internal/models"
)

// MigrateSchema creates or updates the city, property and updated_property
// tables with their indexes.
func (d *Database) MigrateSchema() error {
	if err := d.db.AutoMigrate(&models.City{}, &models.Property{}, &models.UpdatedProperty{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
