package db

import (
	"encoding/json"
	"fmt"

	"hideseek/internal/gamedata"
)

func (d *DB) InsertGame(id, joinCode, hostClientID string, timing gamedata.TimingRules) error {
	timingJSON, err := json.Marshal(timing)
	if err != nil {
		return fmt.Errorf("marshaling timing: %w", err)
	}
	_, err = d.conn.Exec(`
		INSERT INTO games (id, join_code, host_client_id, timing)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, id, joinCode, hostClientID, timingJSON)
	if err != nil {
		return fmt.Errorf("inserting game: %w", err)
	}
	return nil
}

func (d *DB) UpdateGamePhase(id, phase string) error {
	// Finishing a game burns its join code.
	_, err := d.conn.Exec(`
		UPDATE games
		SET phase = $2,
		    join_code = CASE WHEN $2 = 'finished' THEN NULL ELSE join_code END
		WHERE id = $1
	`, id, phase)
	if err != nil {
		return fmt.Errorf("updating game phase: %w", err)
	}
	return nil
}

func (d *DB) UpsertPlayer(id, gameID, clientID, name, color string, role *string) error {
	_, err := d.conn.Exec(`
		INSERT INTO players (id, game_id, client_id, name, color, role)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = $4, color = $5, role = $6
	`, id, gameID, clientID, name, color, role)
	if err != nil {
		return fmt.Errorf("upserting player: %w", err)
	}
	return nil
}
