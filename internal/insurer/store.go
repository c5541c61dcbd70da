package insurer

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Dee-Olulo/OCR-system/internal/domain/entity"
)

// Store is an addressable, enumerable source of insurer configurations.
type Store interface {
	// Load reads the configuration for key. It returns an error wrapping
	// fs.ErrNotExist when no configuration exists for the key.
	Load(key string) (*entity.InsurerConfig, error)
	// List returns all configured insurer keys, sorted.
	List() ([]string, error)
}

// FileStore reads one JSON document per insurer key from a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a config store over dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Load reads and decodes <dir>/<key>.json.
func (s *FileStore) Load(key string) (*entity.InsurerConfig, error) {
	path := filepath.Join(s.dir, key+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("insurer config %q: %w", key, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read insurer config %q: %w", key, err)
	}

	var cfg entity.InsurerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse insurer config %q: %w", key, err)
	}
	cfg.Key = key
	return &cfg, nil
}

// List returns the keys of all JSON configs in the directory.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list insurer configs: %w", err)
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}
