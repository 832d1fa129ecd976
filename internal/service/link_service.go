package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ndewijer/Finance-Insights/internal/aggregator"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/insights"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// DefaultHistoryDays is how far back a bank pull reaches.
const DefaultHistoryDays = 90

// LinkService runs the bank-link handshake and pulls bank transactions
// through the account aggregator.
type LinkService struct {
	client      aggregator.Client
	analyses    *AnalysisService
	historyDays int
	now         func() time.Time
	log         zerolog.Logger
}

// NewLinkService creates a new LinkService. A nil client makes every
// operation fail with apperrors.ErrBankLinkingNotConfigured.
func NewLinkService(client aggregator.Client, analyses *AnalysisService, historyDays int, log zerolog.Logger) *LinkService {
	if historyDays <= 0 {
		historyDays = DefaultHistoryDays
	}
	return &LinkService{
		client:      client,
		analyses:    analyses,
		historyDays: historyDays,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log.With().Str("component", "banklink").Logger(),
	}
}

// Configured reports whether an aggregator is available.
func (s *LinkService) Configured() bool {
	return s.client != nil
}

// CreateLinkToken requests a widget token. Guests get a random client user
// id; signed-in callers pass their account id.
func (s *LinkService) CreateLinkToken(ctx context.Context, userID string) (model.LinkToken, error) {
	if s.client == nil {
		return model.LinkToken{}, apperrors.ErrBankLinkingNotConfigured
	}
	if userID == "" {
		userID = "guest-" + uuid.New().String()
	}
	token, err := s.client.CreateLinkToken(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Msg("link token request failed")
		return model.LinkToken{}, err
	}
	return token, nil
}

// Exchange trades the widget's public token for an access token and item id.
func (s *LinkService) Exchange(ctx context.Context, publicToken string) (model.ExchangeResult, error) {
	if s.client == nil {
		return model.ExchangeResult{}, apperrors.ErrBankLinkingNotConfigured
	}
	if strings.TrimSpace(publicToken) == "" {
		return model.ExchangeResult{}, apperrors.ErrMissingPublicToken
	}
	res, err := s.client.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		s.log.Error().Err(err).Msg("public token exchange failed")
		return model.ExchangeResult{}, err
	}
	s.log.Info().Str("item_id", res.ItemID).Msg("bank item linked")
	return res, nil
}

// Pull fetches the configured history window of transactions and analyzes them.
func (s *LinkService) Pull(ctx context.Context, accessToken string) (model.PullResult, error) {
	if s.client == nil {
		return model.PullResult{}, apperrors.ErrBankLinkingNotConfigured
	}
	if strings.TrimSpace(accessToken) == "" {
		return model.PullResult{}, apperrors.ErrMissingAccessToken
	}

	end := s.now()
	start := end.AddDate(0, 0, -s.historyDays)
	txns, err := s.client.GetTransactions(ctx, accessToken, start, end)
	if err != nil {
		s.log.Error().Err(err).Msg("transaction pull failed")
		return model.PullResult{}, err
	}

	s.log.Info().Int("transactions", len(txns)).Int("days", s.historyDays).Msg("bank transactions pulled")
	return model.PullResult{
		Transactions: txns,
		Analysis:     insights.Analyze(txns),
		Source:       model.ProvenanceBankLink,
	}, nil
}

// PullLinked pulls transactions for the bank connection saved on the
// user's account.
func (s *LinkService) PullLinked(ctx context.Context, userID string) (model.PullResult, error) {
	if s.client == nil {
		return model.PullResult{}, apperrors.ErrBankLinkingNotConfigured
	}
	token, err := s.analyses.LinkedAccessToken(userID)
	if err != nil {
		return model.PullResult{}, fmt.Errorf("failed to load bank connection: %w", err)
	}
	return s.Pull(ctx, token)
}
