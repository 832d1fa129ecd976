package testutil

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ndewijer/Finance-Insights/internal/model"
	"github.com/ndewijer/Finance-Insights/internal/repository"
)

// UserBuilder provides a fluent interface for creating test users.
//
// Example usage:
//
//	user := testutil.NewUser().WithEmail("a@example.com").Build(t, db)
type UserBuilder struct {
	ID        string
	Email     string
	Password  string
	CreatedAt time.Time
}

// NewUser creates a UserBuilder with sensible defaults. The default
// password is "password123".
func NewUser() *UserBuilder {
	return &UserBuilder{
		ID:        MakeID(),
		Email:     MakeEmail("user"),
		Password:  "password123",
		CreatedAt: time.Now().UTC(),
	}
}

// WithID sets a custom ID.
func (b *UserBuilder) WithID(id string) *UserBuilder {
	b.ID = id
	return b
}

// WithEmail sets a custom email.
func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.Email = email
	return b
}

// WithPassword sets the plain-text password that is hashed on Build.
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.Password = password
	return b
}

// Build creates the user in the database and returns it.
func (b *UserBuilder) Build(t *testing.T, db *sql.DB) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(b.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash test password: %v", err)
	}

	query := `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := db.Exec(query, b.ID, b.Email, string(hash), repository.FormatTime(b.CreatedAt)); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return model.User{
		ID:           b.ID,
		Email:        b.Email,
		PasswordHash: string(hash),
		CreatedAt:    b.CreatedAt,
	}
}

// StatementBuilder provides a fluent interface for creating saved statements.
//
// Example usage:
//
//	stmt := testutil.NewStatement(userID).
//	    WithTransaction("2024-01-05", "Payroll", 2500).
//	    WithCreatedAt(time.Now().Add(-time.Hour)).
//	    Build(t, db)
type StatementBuilder struct {
	ID           string
	UserID       string
	Filename     string
	Transactions []model.Transaction
	CreatedAt    time.Time
}

// NewStatement creates a StatementBuilder for userID with no transactions.
func NewStatement(userID string) *StatementBuilder {
	return &StatementBuilder{
		ID:           MakeID(),
		UserID:       userID,
		Filename:     MakeFilename("statement"),
		Transactions: []model.Transaction{},
		CreatedAt:    time.Now().UTC(),
	}
}

// WithID sets a custom ID.
func (b *StatementBuilder) WithID(id string) *StatementBuilder {
	b.ID = id
	return b
}

// WithFilename sets a custom filename.
func (b *StatementBuilder) WithFilename(name string) *StatementBuilder {
	b.Filename = name
	return b
}

// WithTransaction appends a transaction.
func (b *StatementBuilder) WithTransaction(date, description string, amount float64) *StatementBuilder {
	b.Transactions = append(b.Transactions, model.Transaction{Date: date, Merchant: description, Amount: amount})
	return b
}

// WithTransactions replaces the transaction list.
func (b *StatementBuilder) WithTransactions(txns []model.Transaction) *StatementBuilder {
	b.Transactions = txns
	return b
}

// WithCreatedAt sets the creation time.
func (b *StatementBuilder) WithCreatedAt(at time.Time) *StatementBuilder {
	b.CreatedAt = at
	return b
}

// Build creates the statement in the database and returns it.
func (b *StatementBuilder) Build(t *testing.T, db *sql.DB) model.StatementRecord {
	t.Helper()

	payload, err := json.Marshal(b.Transactions)
	if err != nil {
		t.Fatalf("Failed to encode test transactions: %v", err)
	}

	query := `
		INSERT INTO user_statements (id, user_id, filename, transactions, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := db.Exec(query, b.ID, b.UserID, b.Filename, string(payload), repository.FormatTime(b.CreatedAt)); err != nil {
		t.Fatalf("Failed to create test statement: %v", err)
	}

	return model.StatementRecord{
		ID:           b.ID,
		Filename:     b.Filename,
		Transactions: b.Transactions,
		CreatedAt:    b.CreatedAt.UTC().Truncate(time.Microsecond),
	}
}

// SnapshotBuilder provides a fluent interface for creating analysis snapshots.
type SnapshotBuilder struct {
	ID        string
	UserID    string
	Source    model.Provenance
	Summary   model.AnalysisSummary
	CreatedAt time.Time
}

// NewSnapshot creates a SnapshotBuilder for userID with an empty summary.
func NewSnapshot(userID string) *SnapshotBuilder {
	return &SnapshotBuilder{
		ID:     MakeID(),
		UserID: userID,
		Source: model.ProvenancePDFUpload,
		Summary: model.AnalysisSummary{
			ByCategory:      map[string]float64{},
			TopMerchants:    []model.MerchantTotal{},
			CashFlowByMonth: map[string]float64{},
		},
		CreatedAt: time.Now().UTC(),
	}
}

// WithSource sets the snapshot source.
func (b *SnapshotBuilder) WithSource(source model.Provenance) *SnapshotBuilder {
	b.Source = source
	return b
}

// WithSummary sets the stored summary.
func (b *SnapshotBuilder) WithSummary(summary model.AnalysisSummary) *SnapshotBuilder {
	b.Summary = summary
	return b
}

// WithCreatedAt sets the creation time.
func (b *SnapshotBuilder) WithCreatedAt(at time.Time) *SnapshotBuilder {
	b.CreatedAt = at
	return b
}

// Build creates the snapshot in the database and returns it.
func (b *SnapshotBuilder) Build(t *testing.T, db *sql.DB) model.AnalysisSnapshot {
	t.Helper()

	payload, err := json.Marshal(b.Summary)
	if err != nil {
		t.Fatalf("Failed to encode test summary: %v", err)
	}

	query := `
		INSERT INTO analyses (id, user_id, source, summary, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := db.Exec(query, b.ID, b.UserID, string(b.Source), string(payload), repository.FormatTime(b.CreatedAt)); err != nil {
		t.Fatalf("Failed to create test snapshot: %v", err)
	}

	return model.AnalysisSnapshot{
		ID:        b.ID,
		UserID:    b.UserID,
		Source:    b.Source,
		Summary:   b.Summary,
		CreatedAt: b.CreatedAt,
	}
}

// Convenience functions

// CreateStatements creates n statements for a user, each holding one
// expense, spaced one minute apart so their order is stable.
func CreateStatements(t *testing.T, db *sql.DB, userID string, n int) []model.StatementRecord {
	t.Helper()

	base := time.Now().UTC().Add(-time.Duration(n) * time.Minute)
	out := make([]model.StatementRecord, 0, n)
	for i := range n {
		out = append(out, NewStatement(userID).
			WithFilename(fmt.Sprintf("statement-%02d.pdf", i+1)).
			WithTransaction("2024-01-15", fmt.Sprintf("Vendor%02d", i+1), -float64(10*(i+1))).
			WithCreatedAt(base.Add(time.Duration(i)*time.Minute)).
			Build(t, db))
	}
	return out
}
