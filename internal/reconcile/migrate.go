package reconcile

import (
	"context"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// MigrationState is the outcome of moving a guest analysis to a new account.
type MigrationState string

const (
	// MigrationNotNeeded means there was nothing unsaved to migrate.
	MigrationNotNeeded MigrationState = "not-needed"
	// MigrationComplete means every pending item reached the server.
	MigrationComplete MigrationState = "complete"
	// MigrationStatementsFailed means save_statements failed and nothing was saved.
	MigrationStatementsFailed MigrationState = "statements-failed"
	// MigrationPartial means the statements were saved but the analysis
	// snapshot was not. The server can recompute it from the statements.
	MigrationPartial MigrationState = "partial"
	// MigrationAnalysisFailed means a bank-link analysis could not be saved.
	MigrationAnalysisFailed MigrationState = "analysis-failed"
)

// MigrationResult describes the last sign-up migration.
type MigrationResult struct {
	State           MigrationState `json:"state"`
	Source          string         `json:"source,omitempty"`
	StatementsSaved int            `json:"statements_saved"`
	AnalysisSaved   bool           `json:"analysis_saved"`
	Error           string         `json:"error,omitempty"`
	Err             error          `json:"-"`
}

// LastMigration returns the result of the most recent migration, if any.
func (r *Reconciler) LastMigration() (MigrationResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastMigration == nil {
		return MigrationResult{}, false
	}
	return *r.lastMigration, true
}

// Migrate saves the current guest analysis to the account behind cred.
// Statements go first; when they fail the analysis is not sent. Failures
// are reported in the result and never undo the sign-up.
func (r *Reconciler) Migrate(ctx context.Context, cred model.Credential) MigrationResult {
	done := r.begin()
	defer done()

	res := r.migrate(ctx, cred)
	if res.Err != nil {
		res.Error = apperrors.Message(res.Err)
	}

	r.mu.Lock()
	r.lastMigration = &res
	r.mu.Unlock()

	r.log.Info().
		Str("user_id", cred.UserID).
		Str("state", string(res.State)).
		Int("statements_saved", res.StatementsSaved).
		Bool("analysis_saved", res.AnalysisSaved).
		Msg("guest analysis migration")
	return res
}

func (r *Reconciler) migrate(ctx context.Context, cred model.Credential) MigrationResult {
	if cred.AccessToken == "" {
		return MigrationResult{State: MigrationNotNeeded}
	}

	cur, rev, ok := r.store.Snapshot()
	if !ok {
		return MigrationResult{State: MigrationNotNeeded}
	}
	res := MigrationResult{Source: string(cur.Provenance)}

	switch cur.Provenance {
	case model.ProvenancePDFUpload:
		if !cur.HasPendingFiles() {
			res.State = MigrationNotNeeded
			return res
		}

		saved, err := r.api.SaveStatements(ctx, cred.AccessToken, cur.PendingFiles)
		if err != nil {
			res.State = MigrationStatementsFailed
			res.Err = err
			return res
		}
		res.StatementsSaved = len(cur.PendingFiles)

		persisted := cur
		persisted.PendingFiles = nil
		if !r.store.ReplaceIf(rev, persisted) {
			r.log.Debug().Msg("analysis changed during migration; leaving newer value in place")
		}

		summary := saved.Analysis
		if cur.Summary != nil {
			summary = *cur.Summary
		}
		if err := r.api.SaveAnalysis(ctx, cred.AccessToken, model.SaveAnalysisRequest{
			Source:  model.ProvenancePDFUpload,
			Summary: summary,
		}); err != nil {
			res.State = MigrationPartial
			res.Err = err
			return res
		}
		res.AnalysisSaved = true
		res.State = MigrationComplete
		return res

	case model.ProvenanceBankLink:
		if cur.AccessToken == "" || cur.Summary == nil {
			res.State = MigrationNotNeeded
			return res
		}
		if err := r.api.SaveAnalysis(ctx, cred.AccessToken, model.SaveAnalysisRequest{
			Source:      model.ProvenanceBankLink,
			Summary:     *cur.Summary,
			AccessToken: cur.AccessToken,
			ItemID:      cur.ItemID,
		}); err != nil {
			res.State = MigrationAnalysisFailed
			res.Err = err
			return res
		}
		res.AnalysisSaved = true
		res.State = MigrationComplete
		return res
	}

	res.State = MigrationNotNeeded
	return res
}
