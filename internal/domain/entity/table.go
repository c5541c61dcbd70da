package entity

// TableResult is the outcome of heuristic line-item table extraction,
// including arithmetic cross-validation of the detected rows.
type TableResult struct {
	LineItems     []LineItem `json:"line_items"`
	ClaimedTotal  *float64   `json:"claimed_total"`
	ComputedTotal *float64   `json:"computed_total"`
	TotalMatch    bool       `json:"total_match"`
	Discrepancies []string   `json:"discrepancies"`
	TableDetected bool       `json:"table_detected"`
	Confidence    float64    `json:"confidence"`
}

// TableValidation is the per-document extraction metadata attached to an
// outcome for caller transparency. It is not part of the canonical schema.
type TableValidation struct {
	ClaimedTotal    *float64 `json:"claimed_total"`
	ComputedTotal   *float64 `json:"computed_total"`
	TotalMatch      bool     `json:"total_match"`
	Discrepancies   []string `json:"discrepancies"`
	TableConfidence float64  `json:"table_confidence"`
	ModelParseOK    bool     `json:"model_parse_ok"`
}
