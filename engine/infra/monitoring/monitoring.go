package monitoring

import (
	"context"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/compozy/guidebook/pkg/logger"
	"github.com/compozy/guidebook/pkg/version"
)

// Service owns the meter provider for one guidebook run and writes the
// collected metrics to a Prometheus textfile when the run ends.
type Service struct {
	meter             metric.Meter
	provider          *sdkmetric.MeterProvider
	registry          *prom.Registry
	config            *Config
	initialized       bool
	initializationErr error
}

// newDisabledService creates a service instance with no-op implementations
func newDisabledService(cfg *Config, initErr error) *Service {
	return &Service{
		config:            cfg,
		meter:             noop.NewMeterProvider().Meter("guidebook"),
		initialized:       false,
		initializationErr: initErr,
	}
}

// NewMonitoringService creates a new monitoring service with Prometheus exporter
func NewMonitoringService(ctx context.Context, cfg *Config) (*Service, error) {
	log := logger.FromContext(ctx)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Debug("Monitoring disabled, using no-op meter")
		return newDisabledService(cfg, nil), nil
	}
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("guidebook")
	recordBuildInfo(ctx, meter)
	log.Debug("Monitoring service initialized", "path", cfg.Path)
	return &Service{
		meter:       meter,
		provider:    provider,
		registry:    registry,
		config:      cfg,
		initialized: true,
	}, nil
}

// NewMonitoringServiceWithFallback degrades to a no-op service when the
// exporter cannot be built, so a broken metrics setup never blocks a run.
func NewMonitoringServiceWithFallback(ctx context.Context, cfg *Config) *Service {
	service, err := NewMonitoringService(ctx, cfg)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to initialize monitoring, using no-op implementation", "error", err)
		if cfg == nil {
			cfg = DefaultConfig()
		}
		return newDisabledService(cfg, err)
	}
	return service
}

func recordBuildInfo(ctx context.Context, meter metric.Meter) {
	gauge, err := meter.Float64Gauge(
		"guidebook_build_info",
		metric.WithDescription("Build information (value=1)"),
	)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to create build info gauge", "error", err)
		return
	}
	info := version.Get()
	gauge.Record(ctx, 1, metric.WithAttributes(
		attribute.String("version", info.Version),
		attribute.String("commit", info.CommitHash),
	))
}

// Meter returns the OpenTelemetry meter for custom instrumentation
func (s *Service) Meter() metric.Meter {
	return s.meter
}

// IsInitialized returns whether the monitoring service was successfully initialized
func (s *Service) IsInitialized() bool {
	return s.initialized
}

// InitializationError returns any error that occurred during initialization
func (s *Service) InitializationError() error {
	return s.initializationErr
}

// Flush writes everything gathered so far to the configured textfile.
func (s *Service) Flush(ctx context.Context) error {
	if !s.initialized {
		return nil
	}
	if err := prom.WriteToTextfile(s.config.Path, s.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", s.config.Path, err)
	}
	logger.FromContext(ctx).Debug("Wrote metrics", "path", s.config.Path)
	return nil
}

// Shutdown flushes the textfile and releases the meter provider.
func (s *Service) Shutdown(ctx context.Context) error {
	if !s.initialized {
		return nil
	}
	flushErr := s.Flush(ctx)
	if err := s.provider.Shutdown(ctx); err != nil {
		return err
	}
	return flushErr
}
