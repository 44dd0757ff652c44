package logging

// Standardized structured logging keys.
const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldStage     = "stage"
	// FieldItem names the chunk or segment a log line is about (chunk_0003, c0003-s001).
	FieldItem   = "item"
	FieldSource = "source"
	// FieldEventType classifies lifecycle lines such as stage_start or stage_failed.
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldErrorKind = "error_kind"
	FieldImpact    = "impact"
	FieldAlert     = "alert"
)

// leadingKeys are printed first by the console handler, in this order.
var leadingKeys = []string{FieldRunID, FieldStage, FieldItem, FieldEventType}
