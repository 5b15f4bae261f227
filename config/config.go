// Package config implements the configuration hot-reload plumbing for the
// utility layer. A Manager holds named Reloaders (the limiter, the logger,
// the metrics reporter); operator-issued updates arrive as raw section maps,
// are decoded into each component's typed configuration struct, and are
// applied through the component's Reload hook. A component that rejects a
// section keeps running on its previous configuration; the error is
// surfaced only to the configuration source.
package config

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/linchenxuan/kvutil/log"
)

var (
	ErrReloaderNotFound  = errors.New("reloader not found")
	ErrDuplicateReloader = errors.New("duplicate reloader")
	ErrInvalidFormat     = errors.New("invalid config format")
	ErrSectionDecode     = errors.New("config section decode error")
	ErrReloadThrottled   = errors.New("config reload throttled")
)

// Reloader is implemented by components that accept configuration sections
// at runtime.
type Reloader interface {
	// SectionType returns a pointer to a fresh struct instance the section
	// decodes into.
	SectionType() any

	// Reload applies a decoded section. When Reload returns an error the
	// component must keep its previous configuration active.
	Reload(section any) error
}

// Manager routes configuration updates to registered reloaders. Updates are
// rate limited so a misbehaving configuration source cannot spin components
// through reload churn.
type Manager struct {
	lock      sync.RWMutex
	reloaders map[string]Reloader
	guard     *rate.Limiter
}

// NewManager creates a Manager. By default at most one update per second is
// applied, with a small burst allowance; use SetApplyLimit to change it.
func NewManager() *Manager {
	return &Manager{
		reloaders: make(map[string]Reloader),
		guard:     rate.NewLimiter(rate.Limit(1), 4),
	}
}

// SetApplyLimit replaces the update-rate guard: at most limit updates per
// second with the given burst.
func (m *Manager) SetApplyLimit(limit float64, burst int) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.guard = rate.NewLimiter(rate.Limit(limit), burst)
}

// Register adds a reloader under the given section name.
func (m *Manager) Register(name string, r Reloader) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, exists := m.reloaders[name]; exists {
		return fmt.Errorf("%w: section '%s'", ErrDuplicateReloader, name)
	}
	m.reloaders[name] = r
	return nil
}

// Apply decodes and dispatches every section of the update that has a
// registered reloader. Sections without a reloader are ignored. Decode and
// reload failures for one section do not prevent other sections from being
// applied; all failures are joined into the returned error.
func (m *Manager) Apply(update map[string]any) error {
	m.lock.RLock()
	guard := m.guard
	m.lock.RUnlock()
	if !guard.Allow() {
		return ErrReloadThrottled
	}

	var errs []error
	for name, raw := range update {
		m.lock.RLock()
		r, ok := m.reloaders[name]
		m.lock.RUnlock()
		if !ok {
			continue
		}

		sectionMap, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: section '%s' is not a map", ErrInvalidFormat, name))
			continue
		}

		target := r.SectionType()
		if target == nil {
			errs = append(errs, fmt.Errorf("%w: section '%s' provided no target type", ErrInvalidFormat, name))
			continue
		}
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: false,
			Result:           target,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: section '%s': %v", ErrSectionDecode, name, err))
			continue
		}
		if err := decoder.Decode(sectionMap); err != nil {
			errs = append(errs, fmt.Errorf("%w: section '%s': %v", ErrSectionDecode, name, err))
			continue
		}

		if err := r.Reload(target); err != nil {
			log.Warn().Str("section", name).Err(err).Msg("config section rejected")
			errs = append(errs, fmt.Errorf("section '%s': %w", name, err))
			continue
		}
		log.Info().Str("section", name).Msg("config section applied")
	}
	return errors.Join(errs...)
}

// Load reads a YAML configuration file into a raw section map.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	update := map[string]any{}
	if err := yaml.Unmarshal(data, &update); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return normalize(update), nil
}

// LoadAndApply reads a YAML configuration file and applies it.
func (m *Manager) LoadAndApply(path string) error {
	update, err := Load(path)
	if err != nil {
		return err
	}
	return m.Apply(update)
}

// normalize rewrites yaml's map[any]any values into map[string]any so
// section maps decode uniformly regardless of nesting depth.
func normalize(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalize(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[fmt.Sprint(k)] = normalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalizeValue(inner)
		}
		return out
	default:
		return v
	}
}
