// Package alias maps user-supplied project names to storage-safe aliases.
//
// A Registry is the process-wide lookup table. It is built once at boot from
// the projects table (Load) and extended by every project registration.
// Lookups are case-insensitive and accept either the display name or the
// alias itself.
package alias

import (
	"fmt"
	"strings"
	"sync"

	"github.com/zulandar/testyard/internal/apperr"
	"github.com/zulandar/testyard/internal/models"
	"gorm.io/gorm"
)

// MaxLength is the longest name or alias accepted.
const MaxLength = 63

// forbidden lists characters that may not appear in a project name.
const forbidden = `/\$*<>:|?. `

// Validate checks a project name against the naming rules.
func Validate(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("alias: name is empty: %w", apperr.ErrProjectNameInvalid)
	case name == "*":
		return fmt.Errorf("alias: %q is reserved: %w", name, apperr.ErrProjectNameInvalid)
	case len(name) > MaxLength:
		return fmt.Errorf("alias: %q is longer than %d characters: %w", name, MaxLength, apperr.ErrProjectNameInvalid)
	}
	if i := strings.IndexAny(name, forbidden); i >= 0 {
		return fmt.Errorf("alias: %q contains forbidden character %q: %w", name, name[i], apperr.ErrProjectNameInvalid)
	}
	return nil
}

// Sanitize derives the alias of a name: lowercased, forbidden characters
// removed, truncated to MaxLength.
func Sanitize(name string) string {
	s := strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbidden, r) {
			return -1
		}
		return r
	}, strings.ToLower(name))
	if len(s) > MaxLength {
		s = s[:MaxLength]
	}
	return s
}

// Registry is a concurrency-safe, case-insensitive name → alias table.
type Registry struct {
	mu      sync.RWMutex
	aliases map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{aliases: make(map[string]string)}
}

// Load registers every project stored in the database.
func (r *Registry) Load(db *gorm.DB) error {
	var projects []models.Project
	if err := db.Find(&projects).Error; err != nil {
		return fmt.Errorf("alias: load projects: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range projects {
		r.put(p.Name, p.Alias)
	}
	return nil
}

// Register stores name → alias and alias → alias. An empty alias is derived
// with Sanitize. Registering the same name twice leaves the table unchanged.
func (r *Registry) Register(name, alias string) (string, error) {
	if err := Validate(name); err != nil {
		return "", err
	}
	if alias == "" {
		alias = Sanitize(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(name, alias)
	return alias, nil
}

func (r *Registry) put(name, alias string) {
	r.aliases[strings.ToLower(name)] = alias
	r.aliases[strings.ToLower(alias)] = alias
}

// Provide returns the alias for a name or alias.
func (r *Registry) Provide(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.aliases[strings.ToLower(name)]
	return a, ok
}

// Resolve is Provide returning ErrProjectNotRegistered when name is unknown.
func (r *Registry) Resolve(name string) (string, error) {
	a, ok := r.Provide(name)
	if !ok {
		return "", fmt.Errorf("alias: %q: %w", name, apperr.ErrProjectNotRegistered)
	}
	return a, nil
}

// Contains reports whether name (or alias) is registered.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Provide(name)
	return ok
}

// Len returns the number of keys in the table.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.aliases)
}
