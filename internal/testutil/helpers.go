package testutil

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeEmail generates a unique email address for testing.
//
// Example usage:
//
//	email := testutil.MakeEmail("alex")
//	// Returns: "alex.k3j9x2@example.com"
func MakeEmail(base string) string {
	if base == "" {
		base = "user"
	}
	return base + "." + strings.ToLower(randomAlphanumeric(6)) + "@example.com"
}

// MakeFilename generates a unique PDF filename for testing.
//
// Example usage:
//
//	name := testutil.MakeFilename("march")
//	// Returns: "march-ABC123.pdf"
func MakeFilename(base string) string {
	if base == "" {
		base = "statement"
	}
	return base + "-" + randomAlphanumeric(6) + ".pdf"
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}

// SampleStatement is a plain-text statement readable by NewTestParser. It
// holds 5000 of income and 3200 of expenses across two pages.
const SampleStatement = "Chequing statement\n" +
	"2024-01-02 PAYROLL ACME CORP 5,000.00\n" +
	"2024-01-03 Rent January -$2,000.00\n" +
	"\f" +
	"2024-01-10 LOBLAWS GROCERY -$1,200.00\n"

// SmallStatement is a plain-text statement with a single 45.20 expense.
const SmallStatement = "2024-02-05 Coffee Shop Downtown -$45.20\n"
