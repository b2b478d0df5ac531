// Package catalog loads the two named resources the tool is driven by: the
// models available per provider, and the prompt templates per strategy.
//
// A missing resource is not an error: the built-in default is used instead.
// A resource that exists but can't be decoded is a *ConfigurationError.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fleveque/wyckoff-journal/internal/prompt"
)

// Resource keys.
const (
	ResourceProviders = "providers"
	ResourcePrompts   = "prompts"
)

// extensions are tried in order; JSON is valid YAML so one decoder covers both.
var extensions = []string{".yaml", ".yml", ".json"}

// ConfigurationError reports a resource that is present but malformed.
type ConfigurationError struct {
	Resource string
	Path     string
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration resource %q (%s): %v", e.Resource, e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Loader reads resources from a directory.
type Loader struct {
	dir    string
	logger *zap.Logger
}

// NewLoader creates a Loader rooted at dir.
func NewLoader(dir string, logger *zap.Logger) *Loader {
	return &Loader{dir: dir, logger: logger}
}

// Load decodes the resource named key into a value of type T. When the
// resource is absent, unreadable or empty, def is returned unchanged.
//
// Go generics: Load is a function rather than a method because methods
// can't declare their own type parameters.
func Load[T any](l *Loader, key string, def T) (T, error) {
	path, data, ok := l.read(key)
	if !ok {
		return def, nil
	}

	var value T
	if err := yaml.Unmarshal(data, &value); err != nil {
		return def, &ConfigurationError{Resource: key, Path: path, Err: err}
	}
	return value, nil
}

// read returns the first readable, non-empty file for key.
func (l *Loader) read(key string) (string, []byte, bool) {
	for _, ext := range extensions {
		path := filepath.Join(l.dir, key+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			l.logger.Warn("catalog resource unreadable, using default",
				zap.String("resource", key),
				zap.String("path", path),
				zap.Error(err),
			)
			return "", nil, false
		}
		if len(bytes.TrimSpace(data)) == 0 {
			l.logger.Debug("catalog resource empty, using default", zap.String("path", path))
			return "", nil, false
		}
		return path, data, true
	}

	l.logger.Debug("catalog resource not found, using default",
		zap.String("resource", key),
		zap.String("dir", l.dir),
	)
	return "", nil, false
}

// ProviderCatalog maps a provider name to its ordered model names.
type ProviderCatalog map[string][]string

// Names returns the provider names sorted alphabetically.
func (c ProviderCatalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Models returns the models for a provider, matching the name case-insensitively.
func (c ProviderCatalog) Models(provider string) ([]string, bool) {
	if models, ok := c[provider]; ok {
		return models, true
	}
	for name, models := range c {
		if strings.EqualFold(name, provider) {
			return models, true
		}
	}
	return nil, false
}

// PromptCatalog maps a strategy name to its template.
type PromptCatalog map[string]string

// Names returns the strategy names sorted alphabetically.
func (c PromptCatalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Template returns the template for a strategy.
func (c PromptCatalog) Template(strategy string) (string, bool) {
	tmpl, ok := c[strategy]
	return tmpl, ok
}

// LoadProviders loads the provider catalog, falling back to DefaultProviders.
func (l *Loader) LoadProviders() (ProviderCatalog, error) {
	return Load(l, ResourceProviders, DefaultProviders())
}

// LoadPrompts loads the prompt catalog, falling back to DefaultPrompts.
func (l *Loader) LoadPrompts() (PromptCatalog, error) {
	return Load(l, ResourcePrompts, DefaultPrompts())
}

// Catalogs holds both resources plus any configuration errors met loading
// them.
type Catalogs struct {
	Providers ProviderCatalog
	Prompts   PromptCatalog
	Errors    []error
}

// LoadAll loads both resources. A malformed resource falls back to its
// default; the error is logged and kept in Errors so callers can show it.
// Templates are checked too, but a bad one only logs a warning: it fails
// when a generation uses it.
func (l *Loader) LoadAll() Catalogs {
	var out Catalogs
	var err error

	if out.Providers, err = l.LoadProviders(); err != nil {
		l.logger.Error("provider catalog invalid, using defaults", zap.Error(err))
		out.Errors = append(out.Errors, err)
	}
	if out.Prompts, err = l.LoadPrompts(); err != nil {
		l.logger.Error("prompt catalog invalid, using defaults", zap.Error(err))
		out.Errors = append(out.Errors, err)
	}

	for _, name := range out.Prompts.Names() {
		if err := prompt.Validate(out.Prompts[name]); err != nil {
			l.logger.Warn("prompt template will not render",
				zap.String("strategy", name),
				zap.Error(err),
			)
		}
	}
	return out
}
