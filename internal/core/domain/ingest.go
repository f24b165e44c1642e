package domain

// IngestResult summarizes one ingestion run for a single source.
type IngestResult struct {
	RunID          string  `json:"run_id"`
	Source         *Source `json:"source"`
	ChunksAccepted int     `json:"chunks_accepted"`
	ChunksEmbedded int     `json:"chunks_embedded"`
}

// BackfillResult summarizes an embedding backfill run.
type BackfillResult struct {
	Sweeps   int `json:"sweeps"`
	Updated  int `json:"updated"`
	Failed   int `json:"failed"`  // embedding calls that failed; retryable next run
	Skipped  int `json:"skipped"` // chunks with nothing to embed
	Remained int `json:"remained"`
}

// BackfillOptions bounds a backfill run. Zero values use the pipeline's
// configured defaults.
type BackfillOptions struct {
	// BatchSize is the maximum chunks fetched per sweep.
	BatchSize int `json:"batch_size"`

	// MaxSweeps caps the number of sweeps so a run cannot starve on
	// chunks that can never be embedded (e.g. persistently empty content).
	MaxSweeps int `json:"max_sweeps"`

	// Workers bounds concurrent embedding calls within a sweep.
	Workers int `json:"workers"`
}
