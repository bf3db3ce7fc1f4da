package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"toperty/server/config"
	"toperty/server/internal/filter"
)

// Database is the relational property store.
type Database struct {
	db      *gorm.DB
	dialect filter.Dialect
}

// NewDatabase opens the store configured in cfg.Database.
func NewDatabase(cfg *config.Config) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	d, err := open(dialector)
	if err != nil {
		return nil, err
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return d, nil
}

// NewTestDB opens a private in-memory sqlite store.
func NewTestDB() (*Database, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	d, err := open(sqlite.Open(dsn))
	if err != nil {
		return nil, err
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return d, nil
}

func open(dialector gorm.Dialector) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	dialect := filter.SQLite
	if db.Dialector.Name() == "postgres" {
		dialect = filter.Postgres
	}
	return &Database{db: db, dialect: dialect}, nil
}

// Dialect reports which SQL flavour filter predicates must render.
func (d *Database) Dialect() filter.Dialect {
	return d.dialect
}

// GetDB exposes the underlying gorm handle for transactional writers.
func (d *Database) GetDB() *gorm.DB {
	return d.db
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// where applies a filter set to a query on "property AS p".
func (d *Database) where(tx *gorm.DB, set filter.Set) *gorm.DB {
	if query, args := set.SQL(d.dialect); query != "" {
		tx = tx.Where("("+query+")", args...)
	}
	return tx
}
