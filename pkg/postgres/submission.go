package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/cake-orders/pkg/core/model"
	"github.com/jakechorley/cake-orders/pkg/db"
)

const (
	submissionColumns = `collection_id, submission_id, submission_time, last_updated_at, questions, type, state, is_delegated`
	selectColumns     = `collection_id::text, submission_id, submission_time, last_updated_at, questions, type, state, is_delegated`
)

// FindByType retrieves all submissions with the given type
func (d *DB) FindByType(ctx context.Context, t model.SubmissionType) ([]model.PersistedSubmission, error) {
	return d.query(ctx, `SELECT `+selectColumns+` FROM submission WHERE type = $1 ORDER BY submission_time`, string(t))
}

// FindByState retrieves all submissions with the given state
func (d *DB) FindByState(ctx context.Context, s model.SubmissionState) ([]model.PersistedSubmission, error) {
	return d.query(ctx, `SELECT `+selectColumns+` FROM submission WHERE state = $1 ORDER BY submission_time`, string(s))
}

// FindBySubmissionIDs retrieves the stored submissions among ids
func (d *DB) FindBySubmissionIDs(ctx context.Context, ids []string) ([]model.PersistedSubmission, error) {
	if len(ids) == 0 {
		return []model.PersistedSubmission{}, nil
	}
	return d.query(ctx, `SELECT `+selectColumns+` FROM submission WHERE submission_id = ANY($1)`, ids)
}

// Upsert writes the whole document. Without a collection ID it inserts; a concurrent insert of the
// same submission ID only refreshes content columns and hands back the stored workflow state.
func (d *DB) Upsert(ctx context.Context, sub *model.PersistedSubmission) (bool, error) {
	questions, err := json.Marshal(sub.Questions)
	if err != nil {
		return false, fmt.Errorf("failed to encode questions for %s: %w", sub.SubmissionID, err)
	}

	if sub.CollectionID != "" {
		var inserted bool
		err := d.pool.QueryRow(ctx, `
			INSERT INTO submission (`+submissionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (collection_id) DO UPDATE SET
				submission_id = EXCLUDED.submission_id,
				submission_time = EXCLUDED.submission_time,
				last_updated_at = EXCLUDED.last_updated_at,
				questions = EXCLUDED.questions,
				type = EXCLUDED.type,
				state = EXCLUDED.state,
				is_delegated = EXCLUDED.is_delegated,
				updated_at = NOW()
			RETURNING (xmax = 0)
		`, sub.CollectionID, sub.SubmissionID, sub.SubmissionTime, sub.LastUpdatedAt, string(questions),
			string(sub.Type), string(sub.State), sub.IsDelegated).Scan(&inserted)
		if err != nil {
			return false, fmt.Errorf("failed to upsert submission %s: %w", sub.SubmissionID, err)
		}
		return inserted, nil
	}

	var (
		collectionID string
		typ, state   string
		delegated    bool
		inserted     bool
	)
	err = d.pool.QueryRow(ctx, `
		INSERT INTO submission (`+submissionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (submission_id) DO UPDATE SET
			submission_time = EXCLUDED.submission_time,
			last_updated_at = EXCLUDED.last_updated_at,
			questions = EXCLUDED.questions,
			updated_at = NOW()
		RETURNING collection_id::text, type, state, is_delegated, (xmax = 0)
	`, uuid.New().String(), sub.SubmissionID, sub.SubmissionTime, sub.LastUpdatedAt, string(questions),
		string(sub.Type), string(sub.State), sub.IsDelegated).Scan(&collectionID, &typ, &state, &delegated, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to insert submission %s: %w", sub.SubmissionID, err)
	}

	sub.CollectionID = collectionID
	sub.Type = model.SubmissionType(typ)
	sub.State = model.SubmissionState(state)
	sub.IsDelegated = delegated
	return inserted, nil
}

// Update locks the row, applies mutate and writes the whole document back in one transaction
func (d *DB) Update(ctx context.Context, collectionID string, mutate db.MutateFunc) (*model.PersistedSubmission, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+selectColumns+` FROM submission WHERE collection_id = $1 FOR UPDATE`, collectionID)
	sub, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("collection ID %s: %w", collectionID, db.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if !mutate(sub) {
		return sub, nil
	}
	sub.CollectionID = collectionID

	questions, err := json.Marshal(sub.Questions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode questions for %s: %w", sub.SubmissionID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE submission SET
			submission_time = $2,
			last_updated_at = $3,
			questions = $4,
			type = $5,
			state = $6,
			is_delegated = $7,
			updated_at = NOW()
		WHERE collection_id = $1
	`, collectionID, sub.SubmissionTime, sub.LastUpdatedAt, string(questions), string(sub.Type), string(sub.State), sub.IsDelegated)
	if err != nil {
		return nil, fmt.Errorf("failed to update submission %s: %w", sub.SubmissionID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return sub, nil
}

func (d *DB) query(ctx context.Context, sql string, args ...any) ([]model.PersistedSubmission, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	result := make([]model.PersistedSubmission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}
	return result, nil
}

func scanSubmission(row pgx.Row) (*model.PersistedSubmission, error) {
	var (
		sub       model.PersistedSubmission
		questions []byte
		typ       string
		state     string
	)
	err := row.Scan(&sub.CollectionID, &sub.SubmissionID, &sub.SubmissionTime, &sub.LastUpdatedAt,
		&questions, &typ, &state, &sub.IsDelegated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan submission: %w", err)
	}

	if err := json.Unmarshal(questions, &sub.Questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions for %s: %w", sub.SubmissionID, err)
	}
	sub.Type = model.SubmissionType(typ)
	sub.State = model.SubmissionState(state)
	return &sub, nil
}
