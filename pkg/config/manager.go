package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Manager holds the loaded configuration and the sources it came from.
type Manager struct {
	Service   Service
	current   atomic.Pointer[Config]
	mu        sync.Mutex
	sources   []Source
	closeOnce sync.Once
}

func NewManager(service Service) *Manager {
	if service == nil {
		service = NewService()
	}
	return &Manager{Service: service}
}

func (m *Manager) Load(ctx context.Context, sources ...Source) (*Config, error) {
	m.mu.Lock()
	m.sources = append([]Source(nil), sources...)
	m.mu.Unlock()
	config, err := m.Service.Load(ctx, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	m.current.Store(config)
	return config, nil
}

// Get returns the current configuration, or nil before Load.
func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Reload loads the configuration again from the same sources.
func (m *Manager) Reload(ctx context.Context) (*Config, error) {
	m.mu.Lock()
	sources := append([]Source(nil), m.sources...)
	m.mu.Unlock()
	return m.Load(ctx, sources...)
}

func (m *Manager) Close(_ context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		var errs []error
		for _, src := range m.sources {
			if src == nil {
				continue
			}
			if closeErr := src.Close(); closeErr != nil {
				errs = append(errs, closeErr)
			}
		}
		err = errors.Join(errs...)
	})
	return err
}
