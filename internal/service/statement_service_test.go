package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ndewijer/Finance-Insights/internal/apperrors"
	"github.com/ndewijer/Finance-Insights/internal/logger"
	"github.com/ndewijer/Finance-Insights/internal/model"
	"github.com/ndewijer/Finance-Insights/internal/repository"
	"github.com/ndewijer/Finance-Insights/internal/service"
	"github.com/ndewijer/Finance-Insights/internal/statement"
	"github.com/ndewijer/Finance-Insights/internal/testutil"
)

// TestStatementService_ParseUploads tests parsing an upload batch.
//
// WHY: Files are parsed concurrently but the breakdown and the flattened
// transaction list must keep the order in which the files were uploaded.
func TestStatementService_ParseUploads(t *testing.T) {
	t.Run("parses files and keeps upload order", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)

		res, err := svc.ParseUploads(context.Background(), []service.UploadedFile{
			{Name: "jan.pdf", Data: []byte(testutil.SampleStatement)},
			{Name: "feb.pdf", Data: []byte(testutil.SmallStatement)},
		})
		if err != nil {
			t.Fatalf("ParseUploads() returned unexpected error: %v", err)
		}

		if len(res.Files) != 2 || res.Files[0].Filename != "jan.pdf" || res.Files[1].Filename != "feb.pdf" {
			t.Fatalf("Unexpected breakdown: %+v", res.Files)
		}
		if len(res.Files[0].Transactions) != 3 || len(res.Files[1].Transactions) != 1 {
			t.Errorf("Unexpected per-file counts: %d, %d", len(res.Files[0].Transactions), len(res.Files[1].Transactions))
		}
		if len(res.Transactions) != 4 || res.Transactions[3].Merchant != "Coffee Shop Downtown" {
			t.Errorf("Expected file order in flattened transactions, got %+v", res.Transactions)
		}
		if res.Analysis.TotalIncome != 5000 || res.Analysis.TotalExpenses != 3245.2 {
			t.Errorf("Unexpected totals: %+v", res.Analysis)
		}
		if res.Source != model.ProvenancePDFUpload {
			t.Errorf("Expected source %s, got %s", model.ProvenancePDFUpload, res.Source)
		}
	})

	t.Run("file without transactions is not an error", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)

		res, err := svc.ParseUploads(context.Background(), []service.UploadedFile{{Name: "empty.pdf", Data: []byte("Nothing here\n")}})
		if err != nil {
			t.Fatalf("ParseUploads() returned unexpected error: %v", err)
		}
		if res.Transactions == nil || len(res.Transactions) != 0 {
			t.Errorf("Expected empty non-nil transactions, got %#v", res.Transactions)
		}
	})

	t.Run("enforces batch size", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)

		if _, err := svc.ParseUploads(context.Background(), nil); !errors.Is(err, apperrors.ErrNoFilesSelected) {
			t.Errorf("Expected ErrNoFilesSelected, got %v", err)
		}

		files := make([]service.UploadedFile, service.MaxStatements+1)
		for i := range files {
			files[i] = service.UploadedFile{Name: fmt.Sprintf("s%02d.pdf", i), Data: []byte(testutil.SmallStatement)}
		}
		if _, err := svc.ParseUploads(context.Background(), files); !errors.Is(err, apperrors.ErrTooManyFiles) {
			t.Errorf("Expected ErrTooManyFiles, got %v", err)
		}

		res, err := svc.ParseUploads(context.Background(), files[:service.MaxStatements])
		if err != nil {
			t.Fatalf("ParseUploads() at the limit returned error: %v", err)
		}
		if len(res.Files) != service.MaxStatements {
			t.Errorf("Expected %d files, got %d", service.MaxStatements, len(res.Files))
		}
	})

	t.Run("names the file that failed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := service.NewStatementService(
			repository.NewStatementRepository(db),
			statement.NewParser(statement.PDFExtractor{}, logger.Nop()),
			logger.Nop(),
		)

		_, err := svc.ParseUploads(context.Background(), []service.UploadedFile{{Name: "broken.pdf", Data: []byte("not a pdf")}})
		var perr *service.ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("Expected *ParseError, got %v", err)
		}
		if perr.Filename != "broken.pdf" {
			t.Errorf("Expected broken.pdf, got %s", perr.Filename)
		}
		if want := "Failed to parse 'broken.pdf': "; err.Error()[:len(want)] != want {
			t.Errorf("Unexpected message %q", err.Error())
		}
	})
}

func TestStatementService_SaveStatements(t *testing.T) {
	t.Run("stores one row per file", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		user := testutil.NewUser().Build(t, db)

		res, err := svc.SaveStatements(user.ID, []model.StatementFile{
			{Filename: "jan.pdf", Transactions: testutil.CreateMockBankTransactions()},
			{Filename: "", Transactions: nil},
		})
		if err != nil {
			t.Fatalf("SaveStatements() returned unexpected error: %v", err)
		}

		if res.Status != "saved" {
			t.Errorf("Expected status saved, got %q", res.Status)
		}
		if res.Analysis.CashFlow != 1800 || len(res.Transactions) != 3 {
			t.Errorf("Unexpected result: %+v", res)
		}
		testutil.AssertRowCount(t, db, "user_statements", 2)

		data, err := svc.UserData(user.ID)
		if err != nil {
			t.Fatalf("UserData() returned unexpected error: %v", err)
		}
		if data.Statements[1].Filename != service.DefaultStatementFilename {
			t.Errorf("Expected default filename, got %q", data.Statements[1].Filename)
		}
	})

	t.Run("rejects empty list", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestStatementService(t, db)
		user := testutil.NewUser().Build(t, db)

		if _, err := svc.SaveStatements(user.ID, nil); !errors.Is(err, apperrors.ErrEmptyStatements) {
			t.Errorf("Expected ErrEmptyStatements, got %v", err)
		}
		testutil.AssertRowCount(t, db, "user_statements", 0)
	})
}

// TestStatementService_UserData tests the account view.
//
// WHY: The summary shown for an account is always recomputed from every
// saved statement, in creation order, never taken from a stored snapshot.
func TestStatementService_UserData(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestStatementService(t, db)
	user := testutil.NewUser().Build(t, db)
	other := testutil.NewUser().Build(t, db)

	now := time.Now().UTC()
	second := testutil.NewStatement(user.ID).WithTransaction("2024-02-01", "Rent February", -2000).WithCreatedAt(now).Build(t, db)
	first := testutil.NewStatement(user.ID).WithTransaction("2024-01-02", "Payroll", 5000).WithCreatedAt(now.Add(-time.Hour)).Build(t, db)
	testutil.NewStatement(other.ID).WithTransaction("2024-01-02", "Payroll", 9999).Build(t, db)
	testutil.NewSnapshot(user.ID).Build(t, db)

	data, err := svc.UserData(user.ID)
	if err != nil {
		t.Fatalf("UserData() returned unexpected error: %v", err)
	}

	if len(data.Statements) != 2 || data.Statements[0].ID != first.ID || data.Statements[1].ID != second.ID {
		t.Fatalf("Expected statements in creation order, got %+v", data.Statements)
	}
	if data.Analysis.TotalIncome != 5000 || data.Analysis.TotalExpenses != 2000 || data.Analysis.CashFlow != 3000 {
		t.Errorf("Unexpected summary: %+v", data.Analysis)
	}
	if data.Source != model.ProvenancePersisted {
		t.Errorf("Expected source %s, got %s", model.ProvenancePersisted, data.Source)
	}

	t.Run("empty account", func(t *testing.T) {
		fresh := testutil.NewUser().Build(t, db)
		data, err := svc.UserData(fresh.ID)
		if err != nil {
			t.Fatalf("UserData() returned unexpected error: %v", err)
		}
		if len(data.Statements) != 0 || data.Transactions == nil || data.Analysis.TransactionCount != 0 {
			t.Errorf("Unexpected empty account data: %+v", data)
		}
	})
}

func TestStatementService_DeleteStatement(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestStatementService(t, db)
	user := testutil.NewUser().Build(t, db)
	stmts := testutil.CreateStatements(t, db, user.ID, 3)

	data, err := svc.DeleteStatement(user.ID, stmts[1].ID)
	if err != nil {
		t.Fatalf("DeleteStatement() returned unexpected error: %v", err)
	}
	if len(data.Statements) != 2 || data.Statements[0].ID != stmts[0].ID || data.Statements[1].ID != stmts[2].ID {
		t.Errorf("Unexpected remaining statements: %+v", data.Statements)
	}
	if data.Analysis.TotalExpenses != 40 {
		t.Errorf("Expected expenses 40 after removal, got %v", data.Analysis.TotalExpenses)
	}

	if _, err := svc.DeleteStatement(user.ID, stmts[1].ID); !errors.Is(err, apperrors.ErrStatementNotFound) {
		t.Errorf("Expected ErrStatementNotFound on second delete, got %v", err)
	}

	stranger := testutil.NewUser().Build(t, db)
	if _, err := svc.DeleteStatement(stranger.ID, stmts[0].ID); !errors.Is(err, apperrors.ErrStatementNotFound) {
		t.Errorf("Expected ErrStatementNotFound for another user's statement, got %v", err)
	}
	testutil.AssertRowCount(t, db, "user_statements", 2)
}

func TestStatementService_Rerun(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := testutil.NewTestStatementService(t, db)
	user := testutil.NewUser().Build(t, db)
	testutil.CreateStatements(t, db, user.ID, 2)

	data, err := svc.Rerun(user.ID)
	if err != nil {
		t.Fatalf("Rerun() returned unexpected error: %v", err)
	}
	if data.Analysis.TotalExpenses != 30 || len(data.Statements) != 2 {
		t.Errorf("Unexpected rerun result: %+v", data)
	}
	testutil.AssertRowCount(t, db, "user_statements", 2)
}
