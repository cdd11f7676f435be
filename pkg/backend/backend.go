package backend

import (
	"errors"
	"fmt"
	"sync"

	"github.com/warpdrive/fstrace/pkg/config"
	"github.com/warpdrive/fstrace/pkg/vfs"
)

// Backend is a named file system that can be traced.
type Backend interface {
	vfs.FileSystem

	// Name returns the configured name of this backend.
	Name() string

	// Type returns the backend type (e.g. "local", "memory", "s3").
	Type() string

	// Close releases resources held by this backend.
	Close() error
}

// New builds the backend described by cfg. "local" and "memory" are served
// by go-billy; every other type is looked up in the rclone registry.
func New(cfg config.FileSystemConfig) (Backend, error) {
	switch cfg.Type {
	case "local":
		b, err := NewLocal(cfg.Name, cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("backend.New: %w", err)
		}
		return b, nil
	case "memory":
		return NewMemory(cfg.Name), nil
	case "":
		return nil, fmt.Errorf("backend.New: %q has empty type", cfg.Name)
	default:
		params := cfg.Config
		if params == nil {
			params = map[string]string{}
		}
		b, err := NewRcloneBackend(cfg.Name, cfg.Type, cfg.Root, params)
		if err != nil {
			return nil, fmt.Errorf("backend.New: %w", err)
		}
		return b, nil
	}
}

// Registry manages named backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend to the registry, keyed by its Name().
func (r *Registry) Register(b Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := b.Name()
	if _, exists := r.backends[name]; exists {
		return fmt.Errorf("backend.Registry: backend %q already registered", name)
	}
	r.backends[name] = b
	return nil
}

// Get returns a backend by name.
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("backend.Registry: backend %q not found", name)
	}
	return b, nil
}

// All returns a copy of all registered backends.
func (r *Registry) All() map[string]Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := make(map[string]Backend, len(r.backends))
	for k, v := range r.backends {
		m[k] = v
	}
	return m
}

// Close closes all registered backends.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, b := range r.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("backend %s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
