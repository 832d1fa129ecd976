package apperrors

import "errors"

// Domain entity errors represent missing or invalid entities in the system.
// These errors indicate that a requested resource does not exist.
var (
	// ErrStatementNotFound indicates that a statement with the given ID does not exist
	// for the requesting account.
	ErrStatementNotFound = errors.New("statement not found")

	// ErrUserNotFound indicates that no account matches the given email or ID.
	ErrUserNotFound = errors.New("user not found")

	// ErrLinkedItemNotFound indicates that the account has no linked bank item.
	ErrLinkedItemNotFound = errors.New("linked bank item not found")

	// ErrNoAnalysis indicates that there is no current analysis to act on.
	ErrNoAnalysis = errors.New("no analysis data")
)

// Session errors describe the state of the caller's identity.
var (
	// ErrNotSignedIn indicates that an operation requiring a credential was
	// attempted while anonymous.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrInvalidCredentials indicates that the email/password pair was rejected.
	ErrInvalidCredentials = errors.New("invalid login credentials")

	// ErrUserExists indicates that the email is already registered.
	ErrUserExists = errors.New("user already registered")

	// ErrWeakPassword indicates that a new password does not meet the minimum length.
	ErrWeakPassword = errors.New("password should be at least 6 characters")

	// ErrInvalidToken indicates that a bearer or refresh token is missing, malformed or expired.
	ErrInvalidToken = errors.New("invalid token")

	// ErrPasswordMismatch indicates that the password confirmation did not match.
	ErrPasswordMismatch = errors.New("passwords do not match")

	// ErrInvalidEmail indicates that the email address is not well formed.
	ErrInvalidEmail = errors.New("please enter a valid email address")

	// ErrMissingCredentials indicates that email or password was left empty.
	ErrMissingCredentials = errors.New("please enter email and password")
)

// Business logic errors represent validation failures or constraint violations.
// These errors indicate that an operation cannot be completed due to business rules.
var (
	// ErrNoFilesSelected indicates an upload was submitted with no valid PDF.
	ErrNoFilesSelected = errors.New("please select at least one PDF file")

	// ErrTooManyFiles indicates a batch above the statement cap.
	ErrTooManyFiles = errors.New("too many statements")

	// ErrNotPDF indicates that a file is not a PDF.
	ErrNotPDF = errors.New("only PDF files are accepted")

	// ErrNotDecomposable indicates a statement operation on an analysis that
	// is not made of statements (e.g. a bank-link analysis).
	ErrNotDecomposable = errors.New("analysis is not made of removable statements")

	// ErrHandshakeNotReady indicates that the bank-link widget was completed
	// without a live handshake token.
	ErrHandshakeNotReady = errors.New("bank link is not ready; request a new link token")

	// ErrOperationInProgress indicates that a flow is already running and
	// cannot be started again until it finishes.
	ErrOperationInProgress = errors.New("an operation is already in progress")

	// ErrLinkRestarted indicates that a bank-link step finished after the
	// flow was reset or restarted; its result is discarded.
	ErrLinkRestarted = errors.New("bank link was restarted")

	// ErrMissingPublicToken indicates that the widget yielded no public token.
	ErrMissingPublicToken = errors.New("no public token provided")

	// ErrMissingAccessToken indicates that a bank operation was requested without an access token.
	ErrMissingAccessToken = errors.New("access_token required")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrEmptyStatements indicates a save_statements call with nothing to save.
	ErrEmptyStatements = errors.New("statements must be a non-empty list of {filename, transactions}")
)

// Operation failure errors represent system-level failures when retrieving or processing data.
var (
	ErrFailedToRetrieveUserData   = errors.New("failed to retrieve user data")
	ErrFailedToSaveStatements     = errors.New("failed to save statements")
	ErrFailedToSaveAnalysis       = errors.New("failed to save analysis")
	ErrFailedToDeleteStatement    = errors.New("failed to delete statement")
	ErrFailedToRerunAnalysis      = errors.New("failed to rerun analysis")
	ErrFailedToParseStatement     = errors.New("failed to parse statement")
	ErrFailedToCreateLinkToken    = errors.New("failed to create bank link")
	ErrFailedToExchangeToken      = errors.New("failed to exchange public token")
	ErrFailedToPullTransactions   = errors.New("failed to fetch bank transactions")
	ErrFailedToIssueToken         = errors.New("failed to issue session")
	ErrDatabaseNotConfigured      = errors.New("database not configured")
	ErrBankLinkingNotConfigured   = errors.New("bank linking is not configured")
	ErrEncryptionNotConfigured    = errors.New("encryption key not configured")
	ErrFailedToReconcileSnapshots = errors.New("failed to reconcile analysis snapshots")
)
