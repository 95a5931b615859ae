package constants

// General.

const (
	ServiceName  = "siphon"
	EnvVarPrefix = "SIPHON" // prefix for environment variable overrides.

	// TimeFormatObjectKey is an ISO8601/RFC3339-compatible UTC format used in
	// object store key paths. Colons are avoided since some stores and tools
	// mishandle them in keys.
	TimeFormatObjectKey = "20060102T150405Z"

	// Home directory and config files.
	HomeDirName         = ".siphon"
	ErpConfigFileName   = "erp-config.yaml"
	CredentialsFileName = "credentials.yaml"
	WatermarksFileName  = "watermarks.yaml"
	LineageDirName      = "lineage"
)

// ERP access types.

const (
	AccessTypeApi      = "api"
	AccessTypeDatabase = "database"
)

// Connection types supported by the database extractor.

const (
	ConnectionTypeSqlServer = "sqlserver"
	ConnectionTypePostgres  = "postgres"
	ConnectionTypeMock      = "mock"
)

// Extraction modes recorded in object metadata and lineage.

const (
	ExtractModeFull        = "full"
	ExtractModeIncremental = "incremental"
)

// Defaults applied when ERP configuration omits optional fields.

const (
	DefaultBatchSize        = 1000
	DefaultPageSize         = 100
	DefaultTimeoutSeconds   = 60
	DefaultMaxRetries       = 3
	DefaultBreakerThreshold = 5
	DefaultBulkheadLimit    = 4
	DefaultRetryBaseMillis  = 250
	DefaultRetryCapMillis   = 30000
	DefaultRetryJitterMills = 250
	DefaultBreakSeconds     = 30
)

// Process exit codes for the extract command.

const (
	ExitOk           = 0
	ExitConfigError  = 1
	ExitCredError    = 2
	ExitExtractError = 3
	ExitDataQuality  = 4
	ExitUploadError  = 5
	ExitUnknownError = 10
)
