package config

import (
	"context"
	"sync"

	"github.com/compozy/guidebook/pkg/logger"
)

type ContextKey string

const ManagerCtxKey ContextKey = "config_manager"

func ContextWithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, ManagerCtxKey, m)
}

var (
	defaultManager     *Manager
	defaultManagerOnce sync.Once
)

// ManagerFromContext returns the manager stored in ctx, falling back to a
// lazily loaded manager built from defaults and the environment.
func ManagerFromContext(ctx context.Context) *Manager {
	if ctx != nil {
		if m, ok := ctx.Value(ManagerCtxKey).(*Manager); ok && m != nil {
			return m
		}
	}
	return getDefaultManager(ctx)
}

// FromContext returns the active configuration for ctx.
func FromContext(ctx context.Context) *Config {
	m := ManagerFromContext(ctx)
	if cfg := m.Get(); cfg != nil {
		return cfg
	}
	return Default()
}

func getDefaultManager(ctx context.Context) *Manager {
	defaultManagerOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		m := NewManager(NewService())
		if _, err := m.Load(ctx); err != nil {
			logger.FromContext(ctx).Warn("failed to load default configuration, using fallback defaults", "error", err)
		}
		defaultManager = m
	})
	return defaultManager
}
