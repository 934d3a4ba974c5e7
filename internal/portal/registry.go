package portal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alpineops/vouchergw/internal/config"
)

// ErrUnsupportedSite is returned by Resolve for site keys with no registered
// factory. Use errors.Is to detect it; the wrapped message names the key.
var ErrUnsupportedSite = errors.New("unsupported site")

// siteAliases maps accepted spellings to canonical site names.
var siteAliases = map[string]string{
	"cbm":        "cbm",
	"earlybird":  "earlybird",
	"early-bird": "earlybird",
	"early_bird": "earlybird",
}

// Registry maps site keys to task factories. It is built once at startup
// from the configuration and is safe for concurrent use afterwards.
type Registry struct {
	defaultSite string
	factories   map[string]Factory
}

// NewRegistry builds the closed set of known site factories. Sites without a
// config entry still resolve; their factory fails at construction time with a
// missing-credentials error, which the orchestrator treats as terminal.
func NewRegistry(cfg *config.Config) *Registry {
	cbmConf := cfg.Sites["cbm"]
	ebConf := cfg.Sites["earlybird"]

	return &Registry{
		defaultSite: cfg.Orchestrator.DefaultSite,
		factories: map[string]Factory{
			"cbm":       func() (Task, error) { return NewCBMTask(cbmConf) },
			"earlybird": func() (Task, error) { return NewEarlyBirdTask(ebConf) },
		},
	}
}

// Resolve returns the task factory for a site key. The key is trimmed and
// lower-cased; an empty key resolves to the configured default site. Unknown
// keys return ErrUnsupportedSite. Resolve never panics.
func (r *Registry) Resolve(siteKey string) (Factory, error) {
	key := strings.ToLower(strings.TrimSpace(siteKey))
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(r.defaultSite))
	}

	canonical, ok := siteAliases[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSite, key)
	}

	factory, ok := r.factories[canonical]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSite, key)
	}
	return factory, nil
}
