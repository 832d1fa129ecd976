package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// AnalysisRepository provides data access methods for the analyses and
// linked_items tables.
type AnalysisRepository struct {
	db *sql.DB
}

// NewAnalysisRepository creates a new AnalysisRepository with the provided database connection.
func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// InsertSnapshot stores a summary snapshot. An empty ID is generated.
func (s *AnalysisRepository) InsertSnapshot(snap model.AnalysisSnapshot) (model.AnalysisSnapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	payload, err := json.Marshal(snap.Summary)
	if err != nil {
		return model.AnalysisSnapshot{}, fmt.Errorf("failed to encode summary: %w", err)
	}

	query := `
		INSERT INTO analyses (id, user_id, source, summary, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, snap.ID, snap.UserID, string(snap.Source), string(payload), FormatTime(snap.CreatedAt)); err != nil {
		return model.AnalysisSnapshot{}, fmt.Errorf("failed to insert analysis: %w", err)
	}
	return snap, nil
}

// GetLatestSnapshot returns the newest snapshot of a user, or
// apperrors.ErrNoAnalysis when there is none.
func (s *AnalysisRepository) GetLatestSnapshot(userID string) (model.AnalysisSnapshot, error) {
	query := `
		SELECT id, user_id, source, summary, created_at
		FROM analyses
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`
	var snap model.AnalysisSnapshot
	var source, payload, createdAt string
	err := s.db.QueryRow(query, userID).Scan(&snap.ID, &snap.UserID, &source, &payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AnalysisSnapshot{}, apperrors.ErrNoAnalysis
	}
	if err != nil {
		return model.AnalysisSnapshot{}, fmt.Errorf("failed to query analysis: %w", err)
	}

	snap.Source = model.Provenance(source)
	if err := json.Unmarshal([]byte(payload), &snap.Summary); err != nil {
		return model.AnalysisSnapshot{}, fmt.Errorf("failed to decode summary: %w", err)
	}
	if snap.CreatedAt, err = ParseTime(createdAt); err != nil {
		return model.AnalysisSnapshot{}, err
	}
	return snap, nil
}

// UpsertLinkedItem stores a bank connection. AccessToken must already be
// encrypted by the caller.
func (s *AnalysisRepository) UpsertLinkedItem(item model.LinkedItem) error {
	query := `
		INSERT INTO linked_items (user_id, item_id, access_token, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, item_id) DO UPDATE SET
			access_token = excluded.access_token,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, item.UserID, item.ItemID, item.AccessToken, FormatTime(item.UpdatedAt)); err != nil {
		return fmt.Errorf("failed to upsert linked item: %w", err)
	}
	return nil
}

// GetLinkedItems returns every bank connection of a user, newest first.
// AccessToken holds the stored ciphertext.
func (s *AnalysisRepository) GetLinkedItems(userID string) ([]model.LinkedItem, error) {
	query := `
		SELECT user_id, item_id, access_token, updated_at
		FROM linked_items
		WHERE user_id = ?
		ORDER BY updated_at DESC
	`
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked_items table: %w", err)
	}
	defer rows.Close()

	items := []model.LinkedItem{}
	for rows.Next() {
		var item model.LinkedItem
		var updatedAt string
		if err := rows.Scan(&item.UserID, &item.ItemID, &item.AccessToken, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan linked_items table results: %w", err)
		}
		if item.UpdatedAt, err = ParseTime(updatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating linked_items table: %w", err)
	}
	return items, nil
}
