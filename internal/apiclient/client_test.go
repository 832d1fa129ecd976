package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", srv.Client(), zerolog.Nop())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // Test helper
}

func TestExtractError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"error string", `{"error":"No PDF files provided"}`, "No PDF files provided"},
		{"detail string", `{"detail":"Not authenticated"}`, "Not authenticated"},
		{"details string", `{"details":"bad input"}`, "bad input"},
		{"detail list", `{"detail":[{"msg":"field required"},{"msg":"value is not a valid list"}]}`, "field required; value is not a valid list"},
		{"error with details", `{"error":"Validation failed","details":[{"field":"statements","msg":"a.txt is not a PDF"}]}`, "Validation failed: a.txt is not a PDF"},
		{"null error", `{"error":null,"analysis":{}}`, ""},
		{"empty error", `{"error":""}`, ""},
		{"success body", `{"status":"ok"}`, ""},
		{"not json", `<html>Bad Gateway</html>`, ""},
		{"array body", `[1,2]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractError([]byte(tt.body)))
		})
	}
}

func TestUploadStatements(t *testing.T) {
	t.Run("sends one multipart request with every file", func(t *testing.T) {
		var names []string
		var types []string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/upload_statement", r.URL.Path)
			assert.Empty(t, r.Header.Get("Authorization"))
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			for _, fh := range r.MultipartForm.File[StatementsField] {
				names = append(names, fh.Filename)
				types = append(types, fh.Header.Get("Content-Type"))
			}
			writeJSON(w, http.StatusOK, model.UploadResult{
				Files:    []model.StatementFile{{Filename: "a.pdf"}, {Filename: "b.pdf"}},
				Analysis: model.AnalysisSummary{TotalIncome: 10, CashFlow: 10},
				Source:   model.ProvenancePDFUpload,
			})
		})

		res, err := c.UploadStatements(context.Background(), []UploadFile{
			{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 a")},
			{Name: "b.pdf", Data: []byte("%PDF-1.4 b")},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a.pdf", "b.pdf"}, names)
		assert.Equal(t, []string{"application/pdf", "application/pdf"}, types)
		assert.Len(t, res.Files, 2)
		assert.Equal(t, 10.0, res.Analysis.TotalIncome)
	})

	t.Run("empty batch never reaches the network", func(t *testing.T) {
		called := false
		c := newTestClient(t, func(http.ResponseWriter, *http.Request) { called = true })

		_, err := c.UploadStatements(context.Background(), nil)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		assert.False(t, called)
	})

	t.Run("200 with error field is a server failure", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"error": "Could not read statement.pdf"})
		})

		_, err := c.UploadStatements(context.Background(), []UploadFile{{Name: "statement.pdf", Data: []byte("%PDF")}})
		assert.Equal(t, apperrors.KindServer, apperrors.KindOf(err))
		assert.Equal(t, "Could not read statement.pdf", apperrors.Message(err))
	})

	t.Run("field error list is joined", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"detail": []map[string]string{{"msg": "first"}, {"msg": "second"}},
			})
		})

		_, err := c.UploadStatements(context.Background(), []UploadFile{{Name: "a.pdf", Data: []byte("%PDF")}})
		assert.Equal(t, apperrors.KindServer, apperrors.KindOf(err))
		assert.Equal(t, "first; second", apperrors.Message(err))
		assert.Equal(t, http.StatusUnprocessableEntity, apperrors.StatusOf(err))
	})

	t.Run("non-2xx without structured body is a network failure", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			io.WriteString(w, "upstream down") //nolint:errcheck // Test helper
		})

		_, err := c.UploadStatements(context.Background(), []UploadFile{{Name: "a.pdf", Data: []byte("%PDF")}})
		assert.Equal(t, apperrors.KindNetwork, apperrors.KindOf(err))
		assert.Equal(t, apperrors.GenericMessage, apperrors.Message(err))
	})
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := NewHTTPClient(srv.URL, nil, zerolog.Nop())
	srv.Close()

	_, err := c.CreateHandshakeToken(context.Background())
	assert.Equal(t, apperrors.KindNetwork, apperrors.KindOf(err))
	assert.Equal(t, 0, apperrors.StatusOf(err))
}

func TestBankLinkCalls(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if r.ContentLength > 0 {
			json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck // Test assertion below
		}
		switch r.URL.Path {
		case "/api/create_link_token":
			writeJSON(w, http.StatusOK, model.LinkToken{LinkToken: "link-sandbox-1"})
		case "/api/exchange_public_token":
			if body["public_token"] == "missing" {
				writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
				return
			}
			writeJSON(w, http.StatusOK, model.ExchangeResult{Status: "ok", AccessToken: "access-" + body["public_token"], ItemID: "item-1"})
		case "/api/transactions":
			assert.Equal(t, "access-pub", body["access_token"])
			writeJSON(w, http.StatusOK, model.PullResult{
				Transactions: []model.Transaction{{Merchant: "Coffee", Amount: -4.5}},
				Source:       model.ProvenanceBankLink,
			})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	lt, err := c.CreateHandshakeToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-1", lt.LinkToken)

	ex, err := c.ExchangeHandshake(ctx, "pub")
	require.NoError(t, err)
	assert.Equal(t, "access-pub", ex.AccessToken)

	_, err = c.ExchangeHandshake(ctx, "missing")
	assert.Equal(t, apperrors.KindServer, apperrors.KindOf(err))

	pull, err := c.PullTransactions(ctx, ex.AccessToken)
	require.NoError(t, err)
	assert.Len(t, pull.Transactions, 1)
}

func TestAuthenticatedCalls(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/save_statements":
			var req model.SaveStatementsRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Len(t, req.Statements, 1)
			writeJSON(w, http.StatusOK, model.SaveStatementsResult{Status: "ok"})
		case "/api/save_analysis":
			var req model.SaveAnalysisRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, model.ProvenanceBankLink, req.Source)
			assert.Equal(t, "access-1", req.AccessToken)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		default:
			writeJSON(w, http.StatusOK, model.UserData{
				Statements: []model.StatementRecord{{ID: "s1", Filename: "a.pdf"}},
				Source:     model.ProvenancePersisted,
			})
		}
	})
	ctx := context.Background()

	_, err := c.SaveStatements(ctx, "tok", []model.StatementFile{{Filename: "a.pdf"}})
	require.NoError(t, err)
	require.NoError(t, c.SaveAnalysis(ctx, "tok", model.SaveAnalysisRequest{
		Source: model.ProvenanceBankLink, AccessToken: "access-1", ItemID: "item-1",
	}))
	data, err := c.GetUserData(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "s1", data.Statements[0].ID)
	_, err = c.DeleteStatement(ctx, "tok", "s1")
	require.NoError(t, err)
	_, err = c.RerunAnalysis(ctx, "tok")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST /api/save_statements",
		"POST /api/save_analysis",
		"GET /api/user_data",
		"DELETE /api/statements/s1",
		"POST /api/rerun_analysis",
	}, seen)
}

func TestAuthenticatedCallsRequireBearer(t *testing.T) {
	called := false
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) { called = true })
	ctx := context.Background()

	_, err := c.GetUserData(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrNotSignedIn)
	_, err = c.SaveStatements(ctx, "", nil)
	assert.ErrorIs(t, err, apperrors.ErrNotSignedIn)
	assert.ErrorIs(t, c.SaveAnalysis(ctx, "", model.SaveAnalysisRequest{}), apperrors.ErrNotSignedIn)
	assert.False(t, called)
}
