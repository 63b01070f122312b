package db

import (
	"encoding/json"
	"fmt"

	"hideseek/internal/questions"
)

// UpsertQuestion snapshots a question row after each lifecycle change.
// The geometry-heavy fields travel as one JSONB document; the columns
// queried for replay and auditing stay relational.
func (d *DB) UpsertQuestion(gameID string, q *questions.Question) error {
	detail, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshaling question: %w", err)
	}
	_, err = d.conn.Exec(`
		INSERT INTO questions (id, game_id, sequence, question_type, status, detail, asked_at, answered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET status = $5, detail = $6, answered_at = $8
	`, q.ID, gameID, q.Sequence, string(q.Type), string(q.Status), detail, q.AskedAt, q.AnsweredAt)
	if err != nil {
		return fmt.Errorf("upserting question: %w", err)
	}
	return nil
}
