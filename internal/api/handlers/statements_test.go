package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/Finance-Insights/internal/api/response"
	"github.com/ndewijer/Finance-Insights/internal/logger"
	"github.com/ndewijer/Finance-Insights/internal/model"
	"github.com/ndewijer/Finance-Insights/internal/repository"
	"github.com/ndewijer/Finance-Insights/internal/service"
	"github.com/ndewijer/Finance-Insights/internal/statement"
	"github.com/ndewijer/Finance-Insights/internal/testutil"
)

func setupStatementHandler(t *testing.T) (*StatementHandler, *sql.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return NewStatementHandler(testutil.NewTestStatementService(t, db)), db
}

func TestStatementHandler_UploadStatement(t *testing.T) {
	t.Run("parses files in upload order", func(t *testing.T) {
		handler, db := setupStatementHandler(t)

		req := testutil.NewMultipartRequest(t, "/api/upload_statement",
			testutil.UploadPart{Field: "statements", Filename: "jan.pdf", Data: testutil.SampleStatement},
			testutil.UploadPart{Field: "statements", Filename: "feb.PDF", Data: testutil.SmallStatement},
		)
		w := httptest.NewRecorder()

		handler.UploadStatement(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var res model.UploadResult
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&res)

		if len(res.Files) != 2 || res.Files[0].Filename != "jan.pdf" || res.Files[1].Filename != "feb.PDF" {
			t.Errorf("Unexpected breakdown %+v", res.Files)
		}
		if len(res.Transactions) != 4 || res.Analysis.TotalIncome != 5000 {
			t.Errorf("Unexpected result %+v", res)
		}
		if res.Source != model.ProvenancePDFUpload {
			t.Errorf("Expected source %s, got %s", model.ProvenancePDFUpload, res.Source)
		}
		testutil.AssertRowCount(t, db, "user_statements", 0)
	})

	t.Run("accepts legacy single field", func(t *testing.T) {
		handler, _ := setupStatementHandler(t)

		req := testutil.NewMultipartRequest(t, "/api/upload_statement",
			testutil.UploadPart{Field: "statement", Filename: "one.pdf", Data: testutil.SmallStatement},
		)
		w := httptest.NewRecorder()

		handler.UploadStatement(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("rejects non-PDF by name", func(t *testing.T) {
		handler, _ := setupStatementHandler(t)

		req := testutil.NewMultipartRequest(t, "/api/upload_statement",
			testutil.UploadPart{Field: "statements", Filename: "jan.pdf", Data: testutil.SmallStatement},
			testutil.UploadPart{Field: "statements", Filename: "notes.txt", Data: "hello"},
		)
		w := httptest.NewRecorder()

		handler.UploadStatement(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("rejects more than the batch limit", func(t *testing.T) {
		handler, _ := setupStatementHandler(t)

		parts := make([]testutil.UploadPart, service.MaxStatements+1)
		for i := range parts {
			parts[i] = testutil.UploadPart{Field: "statements", Filename: fmt.Sprintf("s%02d.pdf", i), Data: testutil.SmallStatement}
		}
		w := httptest.NewRecorder()

		handler.UploadStatement(w, testutil.NewMultipartRequest(t, "/api/upload_statement", parts...))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("rejects empty form", func(t *testing.T) {
		handler, _ := setupStatementHandler(t)

		w := httptest.NewRecorder()
		handler.UploadStatement(w, testutil.NewMultipartRequest(t, "/api/upload_statement"))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("unparseable file is named in the error", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := NewStatementHandler(service.NewStatementService(
			repository.NewStatementRepository(db),
			statement.NewParser(statement.PDFExtractor{}, logger.Nop()),
			logger.Nop(),
		))

		req := testutil.NewMultipartRequest(t, "/api/upload_statement",
			testutil.UploadPart{Field: "statements", Filename: "broken.pdf", Data: "not a pdf"},
		)
		w := httptest.NewRecorder()

		handler.UploadStatement(w, req)

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("Expected 422, got %d: %s", w.Code, w.Body.String())
		}

		var body response.ErrorResponse
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&body)
		if want := "Failed to parse 'broken.pdf': "; len(body.Error) < len(want) || body.Error[:len(want)] != want {
			t.Errorf("Unexpected error %q", body.Error)
		}
	})
}

func TestStatementHandler_AnalyzeTransactions(t *testing.T) {
	handler, _ := setupStatementHandler(t)

	t.Run("returns summary", func(t *testing.T) {
		body := `{"transactions": [
			{"date": "2024-01-02", "description": "Payroll", "amount": 5000},
			{"date": "2024-01-03", "description": "Rent", "amount": -2000}
		]}`
		w := httptest.NewRecorder()
		handler.AnalyzeTransactions(w, testutil.NewRequestWithBody(http.MethodPost, "/api/analyze_transactions", body))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var summary model.AnalysisSummary
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&summary)
		if summary.CashFlow != 3000 || summary.TransactionCount != 2 {
			t.Errorf("Unexpected summary %+v", summary)
		}
	})

	t.Run("requires transactions", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.AnalyzeTransactions(w, testutil.NewRequestWithBody(http.MethodPost, "/api/analyze_transactions", `{}`))

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
	})
}

func TestStatementHandler_SaveStatements(t *testing.T) {
	t.Run("saves one row per file", func(t *testing.T) {
		handler, db := setupStatementHandler(t)
		user := testutil.NewUser().Build(t, db)

		body := `{"statements": [
			{"filename": "jan.pdf", "transactions": [{"date": "2024-01-02", "description": "Payroll", "amount": 5000}]},
			{"filename": "feb.pdf", "transactions": [{"date": "2024-02-01", "description": "Rent", "amount": -2000}]}
		]}`
		req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPost, "/api/save_statements", body), user.ID)
		w := httptest.NewRecorder()

		handler.SaveStatements(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var res model.SaveStatementsResult
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&res)
		if res.Status != "saved" || res.Analysis.CashFlow != 3000 {
			t.Errorf("Unexpected result %+v", res)
		}
		testutil.AssertRowCount(t, db, "user_statements", 2)
	})

	t.Run("rejects empty list", func(t *testing.T) {
		handler, db := setupStatementHandler(t)
		user := testutil.NewUser().Build(t, db)

		req := testutil.WithUser(testutil.NewRequestWithBody(http.MethodPost, "/api/save_statements", `{"statements": []}`), user.ID)
		w := httptest.NewRecorder()

		handler.SaveStatements(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
		}
		testutil.AssertRowCount(t, db, "user_statements", 0)
	})

	t.Run("requires a signed-in user", func(t *testing.T) {
		handler, _ := setupStatementHandler(t)

		w := httptest.NewRecorder()
		handler.SaveStatements(w, testutil.NewRequestWithBody(http.MethodPost, "/api/save_statements", `{"statements": []}`))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})
}

func TestStatementHandler_UserData(t *testing.T) {
	handler, db := setupStatementHandler(t)
	user := testutil.NewUser().Build(t, db)
	testutil.CreateStatements(t, db, user.ID, 2)

	w := httptest.NewRecorder()
	handler.UserData(w, testutil.WithUser(httptest.NewRequest(http.MethodGet, "/api/user_data", nil), user.ID))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var data model.UserData
	//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
	json.NewDecoder(w.Body).Decode(&data)
	if len(data.Statements) != 2 || data.Analysis.TotalExpenses != 30 {
		t.Errorf("Unexpected user data %+v", data)
	}
	if data.Source != model.ProvenancePersisted {
		t.Errorf("Expected source %s, got %s", model.ProvenancePersisted, data.Source)
	}
}

func TestStatementHandler_DeleteStatement(t *testing.T) {
	t.Run("removes statement and returns the rest", func(t *testing.T) {
		handler, db := setupStatementHandler(t)
		user := testutil.NewUser().Build(t, db)
		stmts := testutil.CreateStatements(t, db, user.ID, 2)

		req := testutil.NewRequestWithURLParams(http.MethodDelete, "/api/statements/"+stmts[0].ID, map[string]string{"uuid": stmts[0].ID})
		w := httptest.NewRecorder()

		handler.DeleteStatement(w, testutil.WithUser(req, user.ID))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
		}

		var data model.UserData
		//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
		json.NewDecoder(w.Body).Decode(&data)
		if len(data.Statements) != 1 || data.Statements[0].ID != stmts[1].ID {
			t.Errorf("Unexpected remaining statements %+v", data.Statements)
		}
		testutil.AssertRowCount(t, db, "user_statements", 1)
	})

	t.Run("another user's statement is not found", func(t *testing.T) {
		handler, db := setupStatementHandler(t)
		owner := testutil.NewUser().Build(t, db)
		stranger := testutil.NewUser().Build(t, db)
		stmts := testutil.CreateStatements(t, db, owner.ID, 1)

		req := testutil.NewRequestWithURLParams(http.MethodDelete, "/api/statements/"+stmts[0].ID, map[string]string{"uuid": stmts[0].ID})
		w := httptest.NewRecorder()

		handler.DeleteStatement(w, testutil.WithUser(req, stranger.ID))

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d: %s", w.Code, w.Body.String())
		}
		testutil.AssertRowCount(t, db, "user_statements", 1)
	})
}

func TestStatementHandler_RerunAnalysis(t *testing.T) {
	handler, db := setupStatementHandler(t)
	user := testutil.NewUser().Build(t, db)
	testutil.CreateStatements(t, db, user.ID, 3)

	w := httptest.NewRecorder()
	handler.RerunAnalysis(w, testutil.WithUser(httptest.NewRequest(http.MethodPost, "/api/rerun_analysis", nil), user.ID))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var data model.UserData
	//nolint:errcheck // Test assertion - decode failure would cause test to fail anyway
	json.NewDecoder(w.Body).Decode(&data)
	if data.Analysis.TotalExpenses != 60 || len(data.Statements) != 3 {
		t.Errorf("Unexpected rerun result %+v", data)
	}
}
