package acquire

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ndewijer/Finance-Insights/internal/apiclient"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

// UploadAPI is the subset of the server client used by the upload flow.
type UploadAPI interface {
	UploadStatements(ctx context.Context, files []apiclient.UploadFile) (model.UploadResult, error)
}

// UploadState is a step of the upload flow.
type UploadState string

const (
	UploadIdle       UploadState = "idle"
	UploadSubmitting UploadState = "submitting"
	UploadComplete   UploadState = "complete"
	UploadFailed     UploadState = "failed"
)

// Uploader submits a selection as one guest upload.
type Uploader struct {
	api  UploadAPI
	sink Sink
	log  zerolog.Logger

	mu    sync.Mutex
	state UploadState
	err   error
}

// NewUploader creates an idle uploader.
func NewUploader(api UploadAPI, sink Sink, log zerolog.Logger) *Uploader {
	return &Uploader{
		api:   api,
		sink:  sink,
		log:   log.With().Str("component", "upload").Logger(),
		state: UploadIdle,
	}
}

// State returns the current step and the last failure, if any.
func (u *Uploader) State() (UploadState, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state, u.err
}

// Submit uploads every selected file in a single request. On success the
// result is adopted as a tentative pdf-upload analysis whose per-file
// breakdown is kept for a later save_statements.
func (u *Uploader) Submit(ctx context.Context, sel *Selection) (model.UploadResult, error) {
	const op = "upload statements"

	files := sel.Files()
	if len(files) == 0 {
		return model.UploadResult{}, apperrors.Validation(op, apperrors.ErrNoFilesSelected)
	}

	u.mu.Lock()
	if u.state == UploadSubmitting {
		u.mu.Unlock()
		return model.UploadResult{}, apperrors.Validation(op, apperrors.ErrOperationInProgress)
	}
	u.state = UploadSubmitting
	u.err = nil
	u.mu.Unlock()

	res, err := u.api.UploadStatements(ctx, files)
	if err != nil {
		u.finish(UploadFailed, err)
		u.log.Warn().Err(err).Int("files", len(files)).Msg("upload failed")
		return model.UploadResult{}, err
	}

	summary := res.Analysis
	u.sink.Adopt(model.CurrentAnalysis{
		Summary:      &summary,
		Transactions: res.Transactions,
		Provenance:   model.ProvenancePDFUpload,
		Stage:        model.StageTentative,
		PendingFiles: res.Files,
	})
	u.finish(UploadComplete, nil)

	u.log.Info().
		Int("files", len(files)).
		Int("transactions", len(res.Transactions)).
		Msg("statements analyzed")
	return res, nil
}

func (u *Uploader) finish(state UploadState, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.state = state
	u.err = err
}
