package insurer

import (
	"errors"
	"io/fs"
	"strings"
	"sync"

	"github.com/Dee-Olulo/OCR-system/internal/domain/entity"
	"go.uber.org/zap"
)

// Mapper renames normalized canonical fields to insurer-specific output
// names and validates required fields, driven entirely by loaded
// configuration. No per-insurer branching: adding an insurer is a data
// change only.
//
// Configurations are cached write-once per lower-cased key for the process
// lifetime; there is no invalidation path, a config update requires a
// restart.
type Mapper struct {
	store  Store
	cache  sync.Map // lower-cased key -> *entity.InsurerConfig
	logger *zap.Logger
}

// ProcessResult is the outcome of mapping plus validation for one insurer.
type ProcessResult struct {
	Insurer       string         `json:"insurer"`
	DisplayName   string         `json:"insurer_display_name"`
	ConfigVersion string         `json:"config_version"`
	MappedFields  map[string]any `json:"mapped_fields"`
	Success       bool           `json:"success"`
	MissingFields []string       `json:"missing_fields"`
}

// NewMapper creates a mapping engine over the given config store.
func NewMapper(store Store, logger *zap.Logger) *Mapper {
	return &Mapper{store: store, logger: logger}
}

// ListAvailable returns the configured insurer keys.
func (m *Mapper) ListAvailable() ([]string, error) {
	return m.store.List()
}

// LoadConfig returns the configuration for key, loading it from the store on
// first use and from the cache afterwards. A missing configuration yields a
// *ConfigNotFoundError carrying the available keys.
func (m *Mapper) LoadConfig(key string) (*entity.InsurerConfig, error) {
	k := strings.ToLower(key)

	if cached, ok := m.cache.Load(k); ok {
		return cached.(*entity.InsurerConfig), nil
	}

	cfg, err := m.store.Load(k)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			available, _ := m.store.List()
			return nil, &ConfigNotFoundError{Key: key, Available: available}
		}
		return nil, err
	}

	actual, _ := m.cache.LoadOrStore(k, cfg)
	m.logger.Info("Loaded insurer config",
		zap.String("insurer", k),
		zap.String("version", cfg.Version))
	return actual.(*entity.InsurerConfig), nil
}

// DetectInsurer matches the record's extracted insurer field against the
// aliases of every configured insurer and returns the first matching key, or
// "" when the field is empty or nothing matches. Substring matching runs in
// both directions, case-insensitively. Configs that fail to load are
// skipped, not fatal.
func (m *Mapper) DetectInsurer(r *entity.CanonicalRecord) string {
	if r == nil || r.Insurer == nil {
		return ""
	}
	raw := strings.ToUpper(strings.TrimSpace(*r.Insurer))
	if raw == "" {
		return ""
	}

	keys, err := m.store.List()
	if err != nil {
		m.logger.Warn("Failed to list insurer configs", zap.Error(err))
		return ""
	}

	for _, key := range keys {
		cfg, err := m.LoadConfig(key)
		if err != nil {
			continue
		}
		for _, alias := range cfg.Aliases {
			a := strings.ToUpper(alias)
			if strings.Contains(raw, a) || strings.Contains(a, raw) {
				m.logger.Info("Auto-detected insurer", zap.String("insurer", key))
				return key
			}
		}
	}

	m.logger.Warn("Could not detect insurer", zap.String("value", raw))
	return ""
}

// AliasMap enumerates all loaded configs into {key: aliases}, used for
// raw-text insurer fallback detection during extraction.
func (m *Mapper) AliasMap() map[string][]string {
	aliases := make(map[string][]string)
	keys, err := m.store.List()
	if err != nil {
		return aliases
	}
	for _, key := range keys {
		cfg, err := m.LoadConfig(key)
		if err != nil {
			continue
		}
		aliases[key] = cfg.Aliases
	}
	return aliases
}

// MapFields renames normalized canonical fields to the insurer's output
// field names. Mapping is a pure rename; canonical fields absent from the
// output schema are dropped.
func (m *Mapper) MapFields(r *entity.CanonicalRecord, key string) (map[string]any, error) {
	cfg, err := m.LoadConfig(key)
	if err != nil {
		return nil, err
	}

	source := r.AsMap()
	output := make(map[string]any, len(cfg.OutputSchema))
	for target, canonical := range cfg.OutputSchema {
		output[target] = source[canonical]
	}
	return output, nil
}

// Validate checks that every required output field is present and non-empty.
func (m *Mapper) Validate(mapped map[string]any, key string) (bool, []string, error) {
	cfg, err := m.LoadConfig(key)
	if err != nil {
		return false, nil, err
	}

	missing := []string{}
	for _, field := range cfg.RequiredFields {
		if isEmpty(mapped[field]) {
			missing = append(missing, field)
		}
	}
	return len(missing) == 0, missing, nil
}

// Process runs mapping plus validation in one call.
func (m *Mapper) Process(r *entity.CanonicalRecord, key string) (*ProcessResult, error) {
	cfg, err := m.LoadConfig(key)
	if err != nil {
		return nil, err
	}

	mapped, err := m.MapFields(r, key)
	if err != nil {
		return nil, err
	}
	success, missing, err := m.Validate(mapped, key)
	if err != nil {
		return nil, err
	}

	return &ProcessResult{
		Insurer:       strings.ToUpper(cfg.Key),
		DisplayName:   cfg.DisplayName,
		ConfigVersion: cfg.Version,
		MappedFields:  mapped,
		Success:       success,
		MissingFields: missing,
	}, nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return t == 0
	case []entity.LineItem:
		return len(t) == 0
	default:
		return false
	}
}
