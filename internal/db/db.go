package db

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campus-gate-backend/config"
	"campus-gate-backend/internal/model"
)

// Names of the partial unique indexes that enforce occupancy exclusivity.
const (
	IndexPlateInside = "uniq_vehicle_records_plate_inside"
	IndexSlotInside  = "uniq_vehicle_records_slot_inside"
)

// Init opens the database and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Println("Database initialization complete.")
	return db, nil
}

// Open connects to the configured backend and tunes the connection pool.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.DSN))
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	logMode := logger.Warn
	if cfg.LogSQL {
		logMode = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logMode),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// One connection serializes writers; an in-memory database also
		// lives and dies with its connection.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}

// Migrate creates or updates the schema, including the partial unique
// indexes that gorm tags cannot express.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.VehicleRecord{},
		&model.LogEntry{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return applyOccupancyDDL(db)
}

func applyOccupancyDDL(db *gorm.DB) error {
	ddls := []string{
		// at most one inside record per plate
		"CREATE UNIQUE INDEX IF NOT EXISTS " + IndexPlateInside +
			" ON vehicle_records (plate_number) WHERE status = 'inside'",
		// at most one inside record per assigned slot
		"CREATE UNIQUE INDEX IF NOT EXISTS " + IndexSlotInside +
			" ON vehicle_records (parking_slot) WHERE status = 'inside' AND parking_slot <> ''",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

// sqliteDSN enables WAL and a busy timeout unless the DSN already sets them.
func sqliteDSN(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "_journal_mode") && !strings.Contains(dsn, ":memory:") && !strings.Contains(dsn, "mode=memory") {
		params = append(params, "_journal_mode=WAL")
	}
	if !strings.Contains(dsn, "_busy_timeout") {
		params = append(params, "_busy_timeout=5000")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
