package pipeline

// RunResult is the in-memory summary of one orchestrator execution. It
// exists for the duration of one run: the notification composer consumes it
// immediately and the counters are persisted on the pipeline run row.
type RunResult struct {
	// Processed counts items that reached Done this run.
	Processed int

	// Retried counts items scheduled for another attempt.
	Retried int

	// Failed counts items that reached PermanentlyFailed this run, whether
	// pattern-detected or retries-exhausted.
	Failed int

	// Skipped counts items previewed but not invoked (dry run only).
	Skipped int

	// FirstFailureTitle is the title of the first permanent failure, for
	// the notification surface. Empty when Failed is zero.
	FirstFailureTitle string
}
