package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brightvolt/quotebot/internal/models"
)

// timeNow is swapped out in tests that need a fixed clock.
var timeNow = time.Now

// marshalAnswers serializes the answer map for a JSON/TEXT column.
func marshalAnswers(answers map[models.Field]string) (string, error) {
	if answers == nil {
		answers = map[models.Field]string{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("failed to marshal answers: %w", err)
	}
	return string(data), nil
}

// scanSession scans a session from a single sql.Row.
func scanSession(row *sql.Row) (*models.Session, error) {
	var sess models.Session
	var stepKind, stepField, answersJSON string
	err := row.Scan(
		&sess.ConversationID, &stepKind, &stepField, &answersJSON,
		&sess.Version, &sess.CreatedAt, &sess.UpdatedAt, &sess.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	sess.Step = models.Step{Kind: models.StepKind(stepKind), Field: models.Field(stepField)}
	if err := json.Unmarshal([]byte(answersJSON), &sess.Answers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}
	if sess.Answers == nil {
		sess.Answers = make(map[models.Field]string)
	}
	return &sess, nil
}
