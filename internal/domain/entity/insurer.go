package entity

// InsurerConfig is the declarative, versioned per-insurer schema. Adding an
// insurer is a data change only; the mapping engine is generic over whichever
// configuration is loaded.
type InsurerConfig struct {
	Key            string            `json:"-"`
	DisplayName    string            `json:"display_name"`
	Version        string            `json:"version"`
	Currency       string            `json:"currency"`
	DateFormat     string            `json:"date_format"`
	Aliases        []string          `json:"aliases"`
	RequiredFields []string          `json:"required_fields"`
	OutputSchema   map[string]string `json:"output_schema"`
}
