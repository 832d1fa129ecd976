package service

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/insights"
	"github.com/ndewijer/Finance-Insights/internal/model"
	"github.com/ndewijer/Finance-Insights/internal/repository"
	"github.com/ndewijer/Finance-Insights/internal/statement"
)

// MaxStatements is the largest batch accepted by one upload.
const MaxStatements = 12

// DefaultStatementFilename names saved statements that arrive without one.
const DefaultStatementFilename = "statement.pdf"

// UploadedFile is one statement file received by the upload endpoint.
type UploadedFile struct {
	Name string
	Data []byte
}

// ParseError reports the file that could not be parsed.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Failed to parse '%s': %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StatementService handles statement parsing and the saved statements of an account.
type StatementService struct {
	statements  *repository.StatementRepository
	parser      *statement.Parser
	parallelism int
	now         func() time.Time
	log         zerolog.Logger
}

// NewStatementService creates a new StatementService.
func NewStatementService(statements *repository.StatementRepository, parser *statement.Parser, log zerolog.Logger) *StatementService {
	return &StatementService{
		statements:  statements,
		parser:      parser,
		parallelism: min(runtime.GOMAXPROCS(0), MaxStatements),
		now:         func() time.Time { return time.Now().UTC() },
		log:         log.With().Str("component", "statements").Logger(),
	}
}

// ParseUploads parses every file of an upload batch in parallel and returns
// the per-file breakdown, the concatenated transactions in file order and
// their summary. The first file that fails to parse fails the whole batch
// with a *ParseError.
func (s *StatementService) ParseUploads(ctx context.Context, files []UploadedFile) (model.UploadResult, error) {
	if len(files) == 0 {
		return model.UploadResult{}, apperrors.ErrNoFilesSelected
	}
	if len(files) > MaxStatements {
		return model.UploadResult{}, apperrors.ErrTooManyFiles
	}

	breakdown := make([]model.StatementFile, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			txns, err := s.parser.Parse(f.Name, f.Data)
			if err != nil {
				return &ParseError{Filename: f.Name, Err: err}
			}
			breakdown[i] = model.StatementFile{Filename: f.Name, Transactions: txns}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Warn().Err(err).Int("files", len(files)).Msg("statement upload rejected")
		return model.UploadResult{}, err
	}

	all := flattenFiles(breakdown)
	summary := insights.Analyze(all)
	s.log.Info().
		Int("files", len(files)).
		Int("transactions", len(all)).
		Float64("income", summary.TotalIncome).
		Float64("expenses", summary.TotalExpenses).
		Float64("cash_flow", summary.CashFlow).
		Msg("statements analyzed")

	return model.UploadResult{
		Files:        breakdown,
		Transactions: all,
		Analysis:     summary,
		Source:       model.ProvenancePDFUpload,
	}, nil
}

// SaveStatements stores one row per file for the user and returns the
// summary of the saved files only.
func (s *StatementService) SaveStatements(userID string, files []model.StatementFile) (model.SaveStatementsResult, error) {
	if len(files) == 0 {
		return model.SaveStatementsResult{}, apperrors.ErrEmptyStatements
	}

	rows := make([]model.StatementFile, len(files))
	for i, f := range files {
		if strings.TrimSpace(f.Filename) == "" {
			f.Filename = DefaultStatementFilename
		}
		if f.Transactions == nil {
			f.Transactions = []model.Transaction{}
		}
		rows[i] = f
	}

	if _, err := s.statements.InsertStatements(userID, rows, s.now()); err != nil {
		return model.SaveStatementsResult{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToSaveStatements, err)
	}

	all := flattenFiles(rows)
	s.log.Info().Str("user_id", userID).Int("statements", len(rows)).Int("transactions", len(all)).Msg("statements saved")
	return model.SaveStatementsResult{
		Status:       "saved",
		Analysis:     insights.Analyze(all),
		Transactions: all,
	}, nil
}

// UserData returns every saved statement of the user in creation order and
// the summary recomputed from all of them.
func (s *StatementService) UserData(userID string) (model.UserData, error) {
	stmts, err := s.statements.GetStatements(userID)
	if err != nil {
		return model.UserData{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToRetrieveUserData, err)
	}

	var all []model.Transaction
	for _, st := range stmts {
		all = append(all, st.Transactions...)
	}
	if all == nil {
		all = []model.Transaction{}
	}
	return model.UserData{
		Statements:   stmts,
		Transactions: all,
		Analysis:     insights.Analyze(all),
		Source:       model.ProvenancePersisted,
	}, nil
}

// DeleteStatement removes one statement of the user and returns the
// recomputed account data.
func (s *StatementService) DeleteStatement(userID, statementID string) (model.UserData, error) {
	if err := s.statements.DeleteStatement(userID, statementID); err != nil {
		return model.UserData{}, err
	}
	s.log.Info().Str("user_id", userID).Str("statement_id", statementID).Msg("statement deleted")
	return s.UserData(userID)
}

// Rerun recomputes the summary from the saved statements without changing them.
func (s *StatementService) Rerun(userID string) (model.UserData, error) {
	return s.UserData(userID)
}

// Analyze summarizes an arbitrary transaction list.
func (s *StatementService) Analyze(txns []model.Transaction) model.AnalysisSummary {
	return insights.Analyze(txns)
}

func flattenFiles(files []model.StatementFile) []model.Transaction {
	all := []model.Transaction{}
	for _, f := range files {
		all = append(all, f.Transactions...)
	}
	return all
}
