package model

// VersionInfo contains version and feature information for the application.
type VersionInfo struct {
	AppVersion       string          `json:"app_version"`
	Commit           string          `json:"commit,omitempty"`
	DbVersion        string          `json:"db_version"`
	Features         map[string]bool `json:"features"`
	MigrationNeeded  bool            `json:"migration_needed"`
	MigrationMessage *string         `json:"migration_message,omitempty"`
}

// HealthStatus is the body of the health endpoint.
type HealthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Error    string `json:"error,omitempty"`
}
