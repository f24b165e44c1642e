package domain

// SearchOptions configures a retrieval request. Zero values mean "use the
// configured default" and are resolved by the retrieval engine.
type SearchOptions struct {
	// Limit caps the number of results (match_count).
	Limit int `json:"limit"`

	// Threshold is the minimum similarity for semantic search.
	Threshold float64 `json:"threshold"`

	// SemanticWeight is the fraction of the hybrid score attributed to
	// vector similarity, in [0,1]. 1.0 degenerates to pure semantic,
	// 0.0 to pure keyword.
	SemanticWeight float64 `json:"semantic_weight"`
}

// SearchDefaults holds the configured fallback values for SearchOptions.
type SearchDefaults struct {
	Limit          int
	Threshold      float64
	SemanticWeight float64
}

// DefaultSearchDefaults returns sensible defaults.
func DefaultSearchDefaults() SearchDefaults {
	return SearchDefaults{
		Limit:          10,
		Threshold:      0.5,
		SemanticWeight: 0.7,
	}
}

// Resolve fills unset options from defaults and clamps the semantic
// weight into [0,1].
func (o SearchOptions) Resolve(d SearchDefaults) SearchOptions {
	if o.Limit <= 0 {
		o.Limit = d.Limit
	}
	if o.Threshold <= 0 {
		o.Threshold = d.Threshold
	}
	if o.SemanticWeight <= 0 {
		o.SemanticWeight = d.SemanticWeight
	}
	if o.SemanticWeight > 1 {
		o.SemanticWeight = 1
	}
	return o
}
