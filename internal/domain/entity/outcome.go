package entity

import "time"

// ExtractionOutcome is the persisted and returned unit for one document:
// the canonical, normalized and insurer-mapped views of the same extraction,
// plus validation metadata.
type ExtractionOutcome struct {
	ID                    string           `json:"id"`
	InsurerKey            string           `json:"insurer_key"`
	InsurerDisplayName    string           `json:"insurer_display_name"`
	ConfigVersion         string           `json:"config_version"`
	Canonical             *CanonicalRecord `json:"canonical_fields"`
	Normalized            *CanonicalRecord `json:"normalized_fields"`
	MappedFields          map[string]any   `json:"mapped_fields"`
	MissingRequiredFields []string         `json:"missing_required_fields"`
	Success               bool             `json:"extraction_complete"`
	TableValidation       TableValidation  `json:"table_validation"`
	Model                 string           `json:"model"`
	CreatedAt             time.Time        `json:"created_at"`
}
