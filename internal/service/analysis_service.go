package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/insights"
	"github.com/ndewijer/Finance-Insights/internal/model"
	"github.com/ndewijer/Finance-Insights/internal/repository"
	"github.com/ndewijer/Finance-Insights/internal/secrets"
)

// UnknownItemID is stored for bank connections saved without an item id.
const UnknownItemID = "unknown"

// AnalysisService stores summary snapshots and the bank connections saved
// alongside them.
type AnalysisService struct {
	analyses   *repository.AnalysisRepository
	statements *repository.StatementRepository
	box        *secrets.Box
	now        func() time.Time
	log        zerolog.Logger
}

// NewAnalysisService creates a new AnalysisService. box may be nil, in which
// case saving a bank access token fails with apperrors.ErrEncryptionNotConfigured.
func NewAnalysisService(
	analyses *repository.AnalysisRepository,
	statements *repository.StatementRepository,
	box *secrets.Box,
	log zerolog.Logger,
) *AnalysisService {
	return &AnalysisService{
		analyses:   analyses,
		statements: statements,
		box:        box,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.With().Str("component", "analysis").Logger(),
	}
}

// SaveAnalysis stores req.Summary as a snapshot for the user. When an access
// token is given the bank connection is saved too, encrypted at rest.
// An empty source defaults to pdf-upload.
func (s *AnalysisService) SaveAnalysis(userID string, req model.SaveAnalysisRequest) (model.AnalysisSnapshot, error) {
	source := req.Source
	if source == "" {
		source = model.ProvenancePDFUpload
	}
	if !source.Valid() {
		return model.AnalysisSnapshot{}, fmt.Errorf("unknown analysis source %q", source)
	}

	var sealed string
	if req.AccessToken != "" {
		if s.box == nil {
			return model.AnalysisSnapshot{}, apperrors.ErrEncryptionNotConfigured
		}
		var err error
		if sealed, err = s.box.Encrypt(req.AccessToken); err != nil {
			return model.AnalysisSnapshot{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToSaveAnalysis, err)
		}
	}

	now := s.now()
	snap, err := s.analyses.InsertSnapshot(model.AnalysisSnapshot{
		UserID:    userID,
		Source:    source,
		Summary:   req.Summary,
		CreatedAt: now,
	})
	if err != nil {
		return model.AnalysisSnapshot{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToSaveAnalysis, err)
	}

	if sealed != "" {
		itemID := strings.TrimSpace(req.ItemID)
		if itemID == "" {
			itemID = UnknownItemID
		}
		if err := s.analyses.UpsertLinkedItem(model.LinkedItem{
			UserID:      userID,
			ItemID:      itemID,
			AccessToken: sealed,
			UpdatedAt:   now,
		}); err != nil {
			return model.AnalysisSnapshot{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToSaveAnalysis, err)
		}
		s.log.Info().Str("user_id", userID).Str("item_id", itemID).Msg("bank connection saved")
	}

	s.log.Info().Str("user_id", userID).Str("source", string(source)).Msg("analysis snapshot saved")
	return snap, nil
}

// LatestSnapshot returns the newest snapshot of the user.
func (s *AnalysisService) LatestSnapshot(userID string) (model.AnalysisSnapshot, error) {
	return s.analyses.GetLatestSnapshot(userID)
}

// LinkedAccessToken returns the decrypted access token of the user's most
// recently saved bank connection.
func (s *AnalysisService) LinkedAccessToken(userID string) (string, error) {
	if s.box == nil {
		return "", apperrors.ErrEncryptionNotConfigured
	}
	items, err := s.analyses.GetLinkedItems(userID)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", apperrors.ErrLinkedItemNotFound
	}
	token, err := s.box.Decrypt(items[0].AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to open access token for item %s: %w", items[0].ItemID, err)
	}
	return token, nil
}

// ReconcileSnapshots stores a fresh snapshot for every user whose saved
// statements are newer than their latest snapshot. It repairs accounts whose
// statements were saved but whose summary was not. It returns the number of
// snapshots written and keeps going past per-user failures.
func (s *AnalysisService) ReconcileSnapshots(ctx context.Context) (int, error) {
	userIDs, err := s.statements.GetUsersNeedingSnapshot()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperrors.ErrFailedToReconcileSnapshots, err)
	}

	written := 0
	var firstErr error
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		stmts, err := s.statements.GetStatements(userID)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("failed to load statements for snapshot")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		var all []model.Transaction
		for _, st := range stmts {
			all = append(all, st.Transactions...)
		}

		if _, err := s.analyses.InsertSnapshot(model.AnalysisSnapshot{
			UserID:    userID,
			Source:    model.ProvenancePersisted,
			Summary:   insights.Analyze(all),
			CreatedAt: s.now(),
		}); err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("failed to store snapshot")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written++
	}

	if written > 0 {
		s.log.Info().Int("snapshots", written).Msg("analysis snapshots reconciled")
	}
	if firstErr != nil {
		return written, fmt.Errorf("%w: %w", apperrors.ErrFailedToReconcileSnapshots, firstErr)
	}
	return written, nil
}
