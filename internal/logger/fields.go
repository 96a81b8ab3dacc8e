package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Tracing fields, attached to the context logger and inherited by every
// line logged below them.
const (
	FieldRequestID = "request_id"
	FieldRunID     = "run_id"
	FieldStage     = "stage"     // run state being executed
	FieldComponent = "component" // cli command, api, scheduler, gorm
	FieldSource    = "source"    // extraction source id
	FieldTable     = "table"     // warehouse table being written
)

// Metric fields, attached per line through Entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size" // response bytes
	FieldStatus     = "status"
	FieldBatch      = "batch" // 1-based batch number within a table load
	FieldInserted   = "inserted"
	FieldSkipped    = "skipped"
	FieldFailed     = "failed"
)
