// Package testbackend runs the complete analysis backend in-process for
// end-to-end tests. It lives outside testutil because it imports the api
// package, which testutil cannot.
package testbackend

import (
	"database/sql"
	"net/http/httptest"
	"testing"

	"github.com/ndewijer/Finance-Insights/internal/api"
	"github.com/ndewijer/Finance-Insights/internal/config"
	"github.com/ndewijer/Finance-Insights/internal/logger"
	"github.com/ndewijer/Finance-Insights/internal/secrets"
	"github.com/ndewijer/Finance-Insights/internal/testutil"
)

// Backend is a running test server with handles on its collaborators.
type Backend struct {
	*httptest.Server
	DB         *sql.DB
	Aggregator *testutil.MockAggregator
	Box        *secrets.Box
}

// Options tweaks the backend. The zero value gives a backend with bank
// linking, encryption and the development identity provider enabled.
type Options struct {
	// APIKey, when set, is required on /auth/v1 requests.
	APIKey string
	// NoBankLink disables the aggregator.
	NoBankLink bool
}

// New starts a backend on a fresh in-memory database. The server is closed
// when the test ends.
//
// Example usage:
//
//	backend := testbackend.New(t, testbackend.Options{})
//	client := apiclient.NewHTTPClient(backend.URL, backend.Client(), logger.Nop())
func New(t *testing.T, opts Options) *Backend {
	t.Helper()

	db := testutil.SetupTestDB(t)
	box := testutil.NewTestBox(t)

	b := &Backend{DB: db, Box: box}
	svc := api.Services{
		System:     testutil.NewTestSystemService(t, db),
		Identity:   testutil.NewTestIdentityService(t, db),
		Statements: testutil.NewTestStatementService(t, db),
		Analyses:   testutil.NewTestAnalysisService(t, db, box),
		Issuer:     testutil.NewTestIssuer(),
	}
	if opts.NoBankLink {
		svc.Link = testutil.NewTestLinkService(t, db, nil, box)
	} else {
		b.Aggregator = testutil.NewMockAggregator()
		svc.Link = testutil.NewTestLinkService(t, db, b.Aggregator, box)
	}

	cfg := &config.Config{
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
		Auth: config.AuthConfig{DevIdentity: true, APIKey: opts.APIKey},
	}

	b.Server = httptest.NewServer(api.NewRouter(svc, cfg, logger.Nop()))
	t.Cleanup(b.Server.Close)
	return b
}
