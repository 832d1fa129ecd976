// Package reconcile keeps the analysis store in step with the server-side
// account: it migrates a guest analysis on sign-up and replaces the current
// analysis wholesale with the server's answer after every statement change.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ndewijer/Finance-Insights/internal/acquire"
	"github.com/ndewijer/Finance-Insights/internal/analysis"
	"github.com/ndewijer/Finance-Insights/internal/apiclient"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
	"github.com/ndewijer/Finance-Insights/internal/session"
)

// API is the subset of the server client used for persistence.
type API interface {
	UploadStatements(ctx context.Context, files []apiclient.UploadFile) (model.UploadResult, error)
	SaveStatements(ctx context.Context, bearer string, files []model.StatementFile) (model.SaveStatementsResult, error)
	SaveAnalysis(ctx context.Context, bearer string, req model.SaveAnalysisRequest) error
	GetUserData(ctx context.Context, bearer string) (model.UserData, error)
	DeleteStatement(ctx context.Context, bearer, statementID string) (model.UserData, error)
	RerunAnalysis(ctx context.Context, bearer string) (model.UserData, error)
}

// Sessions is the part of the session store the reconciler depends on.
type Sessions interface {
	Current() (model.Credential, bool)
	Subscribe(fn func(ctx context.Context, ev session.Event)) (unsubscribe func())
}

// Reconciler owns every call that reads or writes the signed-in account.
type Reconciler struct {
	api      API
	sessions Sessions
	store    *analysis.Store
	log      zerolog.Logger

	inFlight atomic.Int32

	mu            sync.Mutex
	lastMigration *MigrationResult
}

// New creates a reconciler. Call Attach to start reacting to session events.
func New(api API, sessions Sessions, store *analysis.Store, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		api:      api,
		sessions: sessions,
		store:    store,
		log:      log.With().Str("component", "reconcile").Logger(),
	}
}

// Attach subscribes to session events: sign-up migrates the guest analysis
// and sign-out clears the store.
func (r *Reconciler) Attach() (detach func()) {
	return r.sessions.Subscribe(r.handle)
}

func (r *Reconciler) handle(ctx context.Context, ev session.Event) {
	switch ev.Type {
	case session.EventSignedUp:
		if ev.Credential == nil {
			return
		}
		res := r.Migrate(ctx, *ev.Credential)
		if res.Err != nil {
			r.log.Warn().Err(res.Err).Str("state", string(res.State)).Msg("guest analysis migration incomplete")
		}
	case session.EventSignedOut:
		r.store.Clear()
		r.log.Debug().Msg("analysis cleared on sign out")
	}
}

// Busy reports whether a reconciliation call is in flight.
func (r *Reconciler) Busy() bool {
	return r.inFlight.Load() > 0
}

// Refresh loads the account's statements and summary and adopts them.
func (r *Reconciler) Refresh(ctx context.Context) (model.UserData, error) {
	const op = "load user data"
	bearer, err := r.bearer(op)
	if err != nil {
		return model.UserData{}, err
	}

	done := r.begin()
	defer done()

	data, err := r.api.GetUserData(ctx, bearer)
	if err != nil {
		return model.UserData{}, err
	}
	r.adoptUserData(data)
	return data, nil
}

// RemoveStatement deletes one statement on the server and adopts the
// recomputed account data. The summary is never adjusted locally.
func (r *Reconciler) RemoveStatement(ctx context.Context, statementID string) (model.UserData, error) {
	const op = "delete statement"
	bearer, err := r.bearer(op)
	if err != nil {
		return model.UserData{}, err
	}
	if err := r.requireDecomposable(op); err != nil {
		return model.UserData{}, err
	}

	done := r.begin()
	defer done()

	data, err := r.api.DeleteStatement(ctx, bearer, statementID)
	if err != nil {
		return model.UserData{}, err
	}
	r.adoptUserData(data)
	r.log.Info().Str("statement_id", statementID).Int("remaining", len(data.Statements)).Msg("statement removed")
	return data, nil
}

// Rerun asks the server to recompute the summary from all saved statements.
func (r *Reconciler) Rerun(ctx context.Context) (model.UserData, error) {
	const op = "rerun analysis"
	bearer, err := r.bearer(op)
	if err != nil {
		return model.UserData{}, err
	}

	done := r.begin()
	defer done()

	data, err := r.api.RerunAnalysis(ctx, bearer)
	if err != nil {
		return model.UserData{}, err
	}
	r.adoptUserData(data)
	return data, nil
}

// AddStatements uploads more statements for a signed-in account, saves them
// and adopts the account data reloaded afterwards. The upload's own summary
// only covers the new files and is discarded. Callers filter files through an
// acquire.Selection first; a batch that breaks its rules is rejected here
// without a network call.
func (r *Reconciler) AddStatements(ctx context.Context, files []apiclient.UploadFile) (model.UserData, error) {
	const op = "add statements"
	bearer, err := r.bearer(op)
	if err != nil {
		return model.UserData{}, err
	}
	if len(files) == 0 {
		return model.UserData{}, apperrors.Validation(op, apperrors.ErrNoFilesSelected)
	}
	if len(files) > acquire.MaxStatements {
		return model.UserData{}, apperrors.Validation(op, apperrors.ErrTooManyFiles)
	}
	for _, f := range files {
		if !acquire.IsPDF(f) {
			return model.UserData{}, apperrors.Validation(op, fmt.Errorf("%w: %s", apperrors.ErrNotPDF, f.Name))
		}
	}
	if err := r.requireDecomposable(op); err != nil {
		return model.UserData{}, err
	}

	done := r.begin()
	defer done()

	up, err := r.api.UploadStatements(ctx, files)
	if err != nil {
		return model.UserData{}, err
	}
	if _, err := r.api.SaveStatements(ctx, bearer, up.Files); err != nil {
		return model.UserData{}, err
	}
	data, err := r.api.GetUserData(ctx, bearer)
	if err != nil {
		return model.UserData{}, err
	}
	r.adoptUserData(data)

	r.log.Info().Int("files", len(up.Files)).Int("statements", len(data.Statements)).Msg("statements added")
	return data, nil
}

// adoptUserData replaces the current analysis with the server's account
// view. An empty account clears a statement-based analysis but leaves a
// bank-link analysis in place.
func (r *Reconciler) adoptUserData(data model.UserData) {
	r.store.SetStatements(data.Statements)

	if len(data.Statements) == 0 && len(data.Transactions) == 0 {
		cur, ok := r.store.Current()
		if !ok || cur.Provenance.Decomposable() {
			r.store.Clear()
		}
		return
	}

	summary := data.Analysis
	r.store.Adopt(model.CurrentAnalysis{
		Summary:      &summary,
		Transactions: data.Transactions,
		Provenance:   model.ProvenancePersisted,
		Stage:        model.StageAuthoritative,
	})
}

func (r *Reconciler) bearer(op string) (string, error) {
	cred, ok := r.sessions.Current()
	if !ok || cred.AccessToken == "" {
		return "", apperrors.Validation(op, apperrors.ErrNotSignedIn)
	}
	return cred.AccessToken, nil
}

func (r *Reconciler) requireDecomposable(op string) error {
	cur, ok := r.store.Current()
	if ok && !cur.Provenance.Decomposable() {
		return apperrors.Validation(op, apperrors.ErrNotDecomposable)
	}
	return nil
}

func (r *Reconciler) begin() func() {
	r.inFlight.Add(1)
	return func() { r.inFlight.Add(-1) }
}
