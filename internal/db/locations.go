package db

import (
	"fmt"
	"time"
)

// LocationEvent is one sample queued for asynchronous persistence.
type LocationEvent struct {
	GameID     string
	PlayerID   string
	Lng        float64
	Lat        float64
	ReportedAt time.Time
}

func (d *DB) RecordLocation(ev LocationEvent) error {
	_, err := d.conn.Exec(`
		INSERT INTO location_samples (game_id, player_id, lng, lat, reported_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.GameID, ev.PlayerID, ev.Lng, ev.Lat, ev.ReportedAt)
	if err != nil {
		return fmt.Errorf("recording location: %w", err)
	}
	return nil
}

func (d *DB) BatchRecordLocations(events []LocationEvent) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO location_samples (game_id, player_id, lng, lat, reported_at)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.Exec(ev.GameID, ev.PlayerID, ev.Lng, ev.Lat, ev.ReportedAt); err != nil {
			return fmt.Errorf("recording location in batch: %w", err)
		}
	}

	return tx.Commit()
}
