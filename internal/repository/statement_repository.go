package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// StatementRepository provides data access methods for the user_statements table.
// Transactions are stored as a JSON document per statement.
type StatementRepository struct {
	db *sql.DB
}

// NewStatementRepository creates a new StatementRepository with the provided database connection.
func NewStatementRepository(db *sql.DB) *StatementRepository {
	return &StatementRepository{db: db}
}

// InsertStatements stores one row per file in a single transaction and
// returns the created records in input order.
func (s *StatementRepository) InsertStatements(userID string, files []model.StatementFile, now time.Time) ([]model.StatementRecord, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.Prepare(`
		INSERT INTO user_statements (id, user_id, filename, transactions, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement insert: %w", err)
	}
	defer stmt.Close()

	createdAt := now.UTC().Truncate(time.Microsecond)
	records := make([]model.StatementRecord, 0, len(files))
	for _, f := range files {
		txns := f.Transactions
		if txns == nil {
			txns = []model.Transaction{}
		}
		payload, err := json.Marshal(txns)
		if err != nil {
			return nil, fmt.Errorf("failed to encode transactions: %w", err)
		}

		rec := model.StatementRecord{
			ID:           uuid.New().String(),
			Filename:     f.Filename,
			Transactions: txns,
			CreatedAt:    createdAt,
		}
		if _, err := stmt.Exec(rec.ID, userID, rec.Filename, string(payload), FormatTime(createdAt)); err != nil {
			return nil, fmt.Errorf("failed to insert statement: %w", err)
		}
		records = append(records, rec)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit statements: %w", err)
	}
	return records, nil
}

// GetStatements returns a user's statements ordered by creation.
// Returns an empty slice if the user has none.
func (s *StatementRepository) GetStatements(userID string) ([]model.StatementRecord, error) {
	query := `
		SELECT id, filename, transactions, created_at
		FROM user_statements
		WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC
	`
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user_statements table: %w", err)
	}
	defer rows.Close()

	statements := []model.StatementRecord{}
	for rows.Next() {
		var rec model.StatementRecord
		var payload, createdAt string
		if err := rows.Scan(&rec.ID, &rec.Filename, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user_statements table results: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &rec.Transactions); err != nil {
			return nil, fmt.Errorf("failed to decode transactions of statement %s: %w", rec.ID, err)
		}
		if rec.CreatedAt, err = ParseTime(createdAt); err != nil {
			return nil, err
		}
		statements = append(statements, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user_statements table: %w", err)
	}
	return statements, nil
}

// DeleteStatement removes one of the user's statements. A statement owned by
// another user is reported as not found.
func (s *StatementRepository) DeleteStatement(userID, statementID string) error {
	res, err := s.db.Exec("DELETE FROM user_statements WHERE id = ? AND user_id = ?", statementID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete statement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete statement: %w", err)
	}
	if n == 0 {
		return apperrors.ErrStatementNotFound
	}
	return nil
}

// GetUsersNeedingSnapshot lists users whose newest statement is newer than
// their newest analysis snapshot, including users with no snapshot at all.
func (s *StatementRepository) GetUsersNeedingSnapshot() ([]string, error) {
	query := `
		SELECT s.user_id
		FROM user_statements s
		GROUP BY s.user_id
		HAVING MAX(s.created_at) > COALESCE(
			(SELECT MAX(a.created_at) FROM analyses a WHERE a.user_id = s.user_id), ''
		)
		ORDER BY s.user_id
	`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale snapshots: %w", err)
	}
	defer rows.Close()

	userIDs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stale snapshot results: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale snapshot results: %w", err)
	}
	return userIDs, nil
}
