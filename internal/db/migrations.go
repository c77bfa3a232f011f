package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS plates (
		id              BIGSERIAL PRIMARY KEY,
		number          TEXT NOT NULL,
		normalized      TEXT NOT NULL,
		status          TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_plates_number ON plates(number);`,
	`CREATE INDEX IF NOT EXISTS idx_plates_normalized ON plates(normalized);`,
	`CREATE TABLE IF NOT EXISTS detection_events (
		id               VARCHAR(36) PRIMARY KEY,
		frame            INT NOT NULL,
		vehicle_id       INT NOT NULL,
		class            TEXT,
		raw_plate        TEXT NOT NULL,
		normalized_plate TEXT NOT NULL,
		status           TEXT NOT NULL,
		score            DOUBLE PRECISION,
		bbox             JSONB,
		source           TEXT,
		event_time       TIMESTAMPTZ NOT NULL,
		raw_payload      JSONB,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_events_normalized_plate ON detection_events(normalized_plate);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_events_event_time ON detection_events(event_time);`,
	`CREATE INDEX IF NOT EXISTS idx_detection_events_status ON detection_events(status);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
