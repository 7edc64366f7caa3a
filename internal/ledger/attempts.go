package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Attempt is the outcome of one edition within one run.
type Attempt struct {
	ID           int64
	RunID        string
	EditionID    string
	State        string
	FailedStage  string
	ErrorMessage string
	ArtifactPath string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// RecordAttempt appends a run history row.
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO attempts (run_id, edition_id, state, failed_stage, error_message, artifact_path, started_at, finished_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.RunID, a.EditionID, a.State,
			nullableString(a.FailedStage), nullableString(a.ErrorMessage), nullableString(a.ArtifactPath),
			formatTime(a.StartedAt), formatTime(a.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return ioError("record attempt", err)
	}
	return nil
}

// Attempts lists run history, newest first.
func (s *Store) Attempts(ctx context.Context, filter Filter) ([]Attempt, error) {
	builder := sq.Select("id", "run_id", "edition_id", "state", "failed_stage", "error_message", "artifact_path", "started_at", "finished_at").
		From("attempts").
		OrderBy("started_at DESC", "id DESC")
	if filter.EditionID != "" {
		builder = builder.Where(sq.Eq{"edition_id": filter.EditionID})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}

	var out []Attempt
	err := s.query(ctx, builder, func(rows *sql.Rows) error {
		var (
			a                             Attempt
			failedStage, errMsg, artifact sql.NullString
			started, finished             string
		)
		if err := rows.Scan(&a.ID, &a.RunID, &a.EditionID, &a.State, &failedStage, &errMsg, &artifact, &started, &finished); err != nil {
			return err
		}
		a.FailedStage = failedStage.String
		a.ErrorMessage = errMsg.String
		a.ArtifactPath = artifact.String
		a.StartedAt = parseTime(started)
		a.FinishedAt = parseTime(finished)
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, ioError("list attempts", err)
	}
	return out, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
