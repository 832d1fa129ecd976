package testutil

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ndewijer/Finance-Insights/internal/auth"
)

// NewRequestWithURLParams creates an HTTP request with chi URL parameters.
// This helper simplifies testing chi handlers that use chi.URLParam() to extract path parameters.
//
// Example:
//
//	req := testutil.NewRequestWithURLParams(
//	    http.MethodDelete,
//	    "/api/statements/"+stmt.ID,
//	    map[string]string{"uuid": stmt.ID},
//	)
func NewRequestWithURLParams(method, path string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, nil)

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for key, value := range params {
			rctx.URLParams.Add(key, value)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	return req
}

// NewRequestWithQueryParams creates an HTTP request with query parameters.
// This helper simplifies testing handlers that use r.URL.Query() to extract query string parameters.
//
// Example:
//
//	req := testutil.NewRequestWithQueryParams(
//	    http.MethodGet,
//	    "/auth/v1/token",
//	    map[string]string{"grant_type": "password"},
//	)
func NewRequestWithQueryParams(method, path string, queryParams map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, nil)

	if len(queryParams) > 0 {
		q := req.URL.Query()
		for key, value := range queryParams {
			q.Add(key, value)
		}
		req.URL.RawQuery = q.Encode()
	}

	return req
}

// NewRequestWithBody creates an HTTP request with a JSON body.
//
// Example:
//
//	req := testutil.NewRequestWithBody(http.MethodPost, "/api/save_analysis", `{"source": "pdf-upload"}`)
func NewRequestWithBody(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithUser returns req carrying userID as the authenticated user, as the
// bearer middleware would set it.
func WithUser(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

// UploadPart is one file of a multipart upload built by NewMultipartRequest.
type UploadPart struct {
	Field       string
	Filename    string
	Data        string
	ContentType string // defaults to application/octet-stream
}

// NewMultipartRequest creates a multipart/form-data POST carrying parts.
//
// Example:
//
//	req := testutil.NewMultipartRequest(t, "/api/upload_statement",
//	    testutil.UploadPart{Field: "statements", Filename: "jan.pdf", Data: testutil.SampleStatement},
//	)
func NewMultipartRequest(t *testing.T, path string, parts ...UploadPart) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, p := range parts {
		ct := p.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.Field, p.Filename))
		h.Set("Content-Type", ct)
		fw, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		if _, err := fw.Write([]byte(p.Data)); err != nil {
			t.Fatalf("Failed to write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
