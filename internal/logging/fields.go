package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for job identifiers.
	FieldJobID = "job_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldOwner is the standardized structured logging key for the submitting owner.
	FieldOwner = "owner_id"
	// FieldSourceID is the standardized structured logging key for content identifiers.
	FieldSourceID = "source_id"
	// FieldWorker identifies the daemon worker goroutine handling a job.
	FieldWorker = "worker"
	// FieldCorrelationID is the standardized structured logging key for run correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldEventType names the event a log line records (stage_complete, cache_hit, ...).
	FieldEventType = "event_type"
	// FieldDecisionType names the decision a log line explains.
	FieldDecisionType   = "decision_type"
	FieldDecisionResult = "decision_result"
	FieldDecisionReason = "decision_reason"
	// FieldSessionID identifies one daemon run.
	FieldSessionID = "session_id"
	// FieldErrorKind carries services.ErrorKind.
	FieldErrorKind = "error_kind"
	// FieldErrorOperation carries the operation that failed.
	FieldErrorOperation = "error_operation"
	// FieldErrorCode carries a stable error code.
	FieldErrorCode = "error_code"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldProgressStage, FieldProgressPercent and FieldProgressMessage mirror job progress.
	FieldProgressStage   = "progress_stage"
	FieldProgressPercent = "progress_percent"
	FieldProgressMessage = "progress_message"
)
