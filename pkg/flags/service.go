package flags

import (
	"context"
	"maps"

	"github.com/surrealdb/dualstore/pkg/logger"
	"github.com/surrealdb/dualstore/pkg/metrics"
)

// Service is the application-facing flag API. Its lookups never fail: a
// missing provider or a provider error yields the caller's default.
type Service struct {
	provider Provider
	name     string
	fallback map[string]any
	logger   logger.Logger
	metrics  *metrics.Recorder
}

type ServiceOption func(*Service)

func WithLogger(l logger.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Recorder) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithProviderName labels the provider in Status.
func WithProviderName(name string) ServiceOption {
	return func(s *Service) { s.name = name }
}

// NewService wraps provider, which may be nil.
func NewService(provider Provider, opts ...ServiceOption) *Service {
	s := &Service{
		provider: provider,
		name:     "custom",
		fallback: Defaults(),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if provider == nil {
		s.logger.Info("flag provider not configured, using fallback values for all feature flags")
	}
	return s
}

// Provider returns the wrapped provider, or nil.
func (s *Service) Provider() Provider {
	return s.provider
}

func (s *Service) failed(key, callerID string, err error) {
	s.metrics.FlagError()
	s.logger.Warn("error evaluating feature flag, using default", "key", key, "caller", callerID, "error", err)
}

func (s *Service) GetBooleanValue(ctx context.Context, callerID, key string, def bool) bool {
	if s.provider == nil {
		return def
	}
	v, err := s.provider.GetBoolean(ctx, callerID, key, def)
	if err != nil {
		s.failed(key, callerID, err)
		return def
	}
	s.logger.Debug("feature flag evaluated", "key", key, "value", v, "caller", callerID)
	return v
}

// Enabled is GetBooleanValue with the fallback value of key as the default.
func (s *Service) Enabled(ctx context.Context, callerID, key string) bool {
	def, _ := s.fallback[key].(bool)
	return s.GetBooleanValue(ctx, callerID, key, def)
}

func (s *Service) GetNumberValue(ctx context.Context, callerID, key string, def float64) float64 {
	if s.provider == nil {
		return def
	}
	v, err := s.provider.GetNumber(ctx, callerID, key, def)
	if err != nil {
		s.failed(key, callerID, err)
		return def
	}
	return v
}

// AllFeatures returns the fallback flags overlaid with whatever the provider
// knows for callerID. On provider failure only the fallbacks are returned.
func (s *Service) AllFeatures(ctx context.Context, callerID string) map[string]any {
	out := maps.Clone(s.fallback)
	if s.provider == nil {
		return out
	}
	values, err := s.provider.All(ctx, callerID)
	if err != nil {
		s.logger.Warn("error getting all features, using fallbacks", "caller", callerID, "error", err)
		s.metrics.FlagError()
		return out
	}
	maps.Copy(out, values)
	return out
}

// Status describes where flag values come from.
func (s *Service) Status() map[string]any {
	source := s.name
	if s.provider == nil {
		source = "fallback"
	}
	return map[string]any{
		"connected": s.provider != nil,
		"source":    source,
	}
}
