package testutil

import (
	"database/sql"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ndewijer/Finance-Insights/internal/aggregator"
	"github.com/ndewijer/Finance-Insights/internal/auth"
	"github.com/ndewijer/Finance-Insights/internal/logger"
	"github.com/ndewijer/Finance-Insights/internal/repository"
	"github.com/ndewijer/Finance-Insights/internal/secrets"
	"github.com/ndewijer/Finance-Insights/internal/service"
	"github.com/ndewijer/Finance-Insights/internal/statement"
)

// TestJWTSecret signs access tokens issued in tests.
const TestJWTSecret = "test-jwt-secret-with-enough-bytes"

// NewTestIssuer returns an issuer using TestJWTSecret and a one hour ttl.
func NewTestIssuer() *auth.Issuer {
	return auth.NewIssuer(TestJWTSecret, time.Hour)
}

// NewTestBox returns an encryption box with a freshly generated key.
func NewTestBox(t *testing.T) *secrets.Box {
	t.Helper()

	key, err := secrets.GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate encryption key: %v", err)
	}
	box, err := secrets.NewBox(key)
	if err != nil {
		t.Fatalf("Failed to create encryption box: %v", err)
	}
	return box
}

// NewTestParser returns a statement parser that reads plain text, with pages
// separated by form feeds, instead of PDF.
func NewTestParser() *statement.Parser {
	return statement.NewParser(statement.TextExtractor{}, logger.Nop())
}

func NewTestIdentityService(t *testing.T, db *sql.DB) *service.IdentityService {
	t.Helper()

	return service.NewIdentityService(
		repository.NewUserRepository(db),
		NewTestIssuer(),
		logger.Nop(),
	).WithBcryptCost(bcrypt.MinCost)
}

func NewTestStatementService(t *testing.T, db *sql.DB) *service.StatementService {
	t.Helper()

	return service.NewStatementService(
		repository.NewStatementRepository(db),
		NewTestParser(),
		logger.Nop(),
	)
}

// NewTestAnalysisService creates an AnalysisService. A nil box disables
// saving bank connections.
func NewTestAnalysisService(t *testing.T, db *sql.DB, box *secrets.Box) *service.AnalysisService {
	t.Helper()

	return service.NewAnalysisService(
		repository.NewAnalysisRepository(db),
		repository.NewStatementRepository(db),
		box,
		logger.Nop(),
	)
}

// NewTestLinkService creates a LinkService over client. A nil client
// disables bank linking.
func NewTestLinkService(t *testing.T, db *sql.DB, client aggregator.Client, box *secrets.Box) *service.LinkService {
	t.Helper()

	return service.NewLinkService(
		client,
		NewTestAnalysisService(t, db, box),
		service.DefaultHistoryDays,
		logger.Nop(),
	)
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db, true, true)
}
