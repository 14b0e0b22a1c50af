package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldRange      = "range"
	FieldRowsIn     = "rows_in"
	FieldRowsKept   = "rows_kept"
	FieldTableRows  = "table_rows"
	FieldRawRows    = "raw_rows"
	FieldFetchedAt  = "fetched_at"
	FieldBackend    = "backend"
	FieldEmail      = "email"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentSheets    = "sheets"
	ComponentDashboard = "dashboard"
	ComponentSnapshot  = "snapshot"
	ComponentAMQP      = "amqp"
	ComponentAuth      = "auth"
)
