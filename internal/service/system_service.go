package service

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/ndewijer/Finance-Insights/internal/database"
	"github.com/ndewijer/Finance-Insights/internal/model"
	"github.com/ndewijer/Finance-Insights/internal/version"
)

// SystemService handles system-related operations
type SystemService struct {
	db         *sql.DB
	bankLink   bool
	encryption bool
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB, bankLink, encryption bool) *SystemService {
	return &SystemService{
		db:         db,
		bankLink:   bankLink,
		encryption: encryption,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

// CheckVersion reports the build and schema version together with the
// optional features this server has credentials for.
func (s *SystemService) CheckVersion(ctx context.Context) (model.VersionInfo, error) {
	status, err := database.Status(ctx, s.db)
	if err != nil {
		return model.VersionInfo{}, err
	}

	info := model.VersionInfo{
		AppVersion: version.Version,
		Commit:     version.Commit(),
		DbVersion:  strconv.FormatInt(status.Version, 10),
		Features: map[string]bool{
			"bank_linking":       s.bankLink,
			"encrypted_tokens":   s.encryption,
			"statement_upload":   true,
			"snapshot_reconcile": true,
		},
		MigrationNeeded: status.Pending,
	}
	if status.Pending {
		msg := "database schema is behind; restart the server to apply migrations"
		info.MigrationMessage = &msg
	}
	return info, nil
}
