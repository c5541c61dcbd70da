package insurer

import (
	"fmt"
	"strings"
)

// ConfigNotFoundError reports a requested insurer key with no configuration,
// listing the keys that are configured.
type ConfigNotFoundError struct {
	Key       string
	Available []string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("no configuration for insurer %q (available: %s)",
		e.Key, strings.Join(e.Available, ", "))
}
