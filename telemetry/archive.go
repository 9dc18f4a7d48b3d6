package telemetry

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const createReadings = `CREATE TABLE IF NOT EXISTS readings (
	recorded_at    TIMESTAMPTZ NOT NULL,
	rain_hour_mm   DOUBLE PRECISION,
	rain_day_mm    DOUBLE PRECISION,
	wind_direction DOUBLE PRECISION,
	wind_speed     DOUBLE PRECISION,
	wind_gust      DOUBLE PRECISION,
	temperature    DOUBLE PRECISION,
	pressure       DOUBLE PRECISION,
	humidity       DOUBLE PRECISION,
	battery        DOUBLE PRECISION
)`

const insertReading = `INSERT INTO readings (recorded_at, rain_hour_mm, rain_day_mm, wind_direction,
	wind_speed, wind_gust, temperature, pressure, humidity, battery)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Archive keeps every report in PostgreSQL.
type Archive struct {
	db *sql.DB
}

// OpenArchive connects to dsn and makes sure the readings table exists.
func OpenArchive(ctx context.Context, dsn string) (*Archive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	a, err := NewArchive(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func NewArchive(ctx context.Context, db *sql.DB) (*Archive, error) {
	if _, err := db.ExecContext(ctx, createReadings); err != nil {
		return nil, fmt.Errorf("create readings table: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Name() string {
	return "archive"
}

func (a *Archive) Publish(ctx context.Context, r Reading) error {
	_, err := a.db.ExecContext(ctx, insertReading,
		r.Time, r.RainHourMM, r.RainDayMM, r.WindDirection,
		r.WindSpeedMph, r.WindGustMph, r.TemperatureC, r.PressureHPa, r.Humidity, r.BatteryVolts)
	if err != nil {
		return fmt.Errorf("archive reading: %w", err)
	}
	return nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}
