package frontend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/ndewijer/Finance-Insights/internal/api/response"
	"github.com/ndewijer/Finance-Insights/internal/apiclient"
	"github.com/ndewijer/Finance-Insights/internal/apperrors"
)

const (
	maxUploadBytes  = 64 << 20
	maxUploadMemory = 16 << 20
)

var errEmptyBody = errors.New("request body is empty")

// failureStatus maps a failure kind to the status returned to the user
// interface. Server failures keep a 4xx status from the backend; anything
// else from the backend is reported as a bad gateway.
func failureStatus(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindAuth:
		return http.StatusUnauthorized
	case apperrors.KindNetwork:
		return http.StatusBadGateway
	case apperrors.KindServer:
		if st := apperrors.StatusOf(err); st >= 400 && st < 500 {
			return st
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondFailure writes err as {error, details} where error is the
// user-facing message and details is the failure kind.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	status := failureStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	response.RespondError(w, status, apperrors.Message(err), string(apperrors.KindOf(err)))
}

func decodeJSON[T any](r *http.Request) (T, error) {
	var v T
	if r.Body == nil || r.Body == http.NoBody {
		return v, errEmptyBody
	}
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, errEmptyBody
		}
		return v, err
	}
	return v, nil
}

func (s *Server) respondBadRequest(w http.ResponseWriter, err error) {
	response.RespondError(w, http.StatusBadRequest, "invalid request body", err.Error())
}

// readUploads returns the files posted under the statements field, in the
// order they were sent. The legacy single statement field is accepted too.
func readUploads(w http.ResponseWriter, r *http.Request) ([]apiclient.UploadFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files only

	headers := r.MultipartForm.File[apiclient.StatementsField]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["statement"]
	}

	files := make([]apiclient.UploadFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, apiclient.UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
