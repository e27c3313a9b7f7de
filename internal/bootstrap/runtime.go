// Package bootstrap wires process-wide runtime dependencies.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"simplesns/internal/backend"
	"simplesns/internal/cache"
	"simplesns/internal/config"
	"simplesns/internal/middleware"
	"simplesns/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Options control runtime initialization behavior.
type Options struct {
	ServiceName string
	// SkipTracing leaves the global tracer untouched, e.g. for one-shot commands.
	SkipTracing bool
}

// Runtime is what InitRuntime hands to the entry points.
type Runtime struct {
	Backend *backend.Service
	Redis   *redis.Client

	shutdownTracing func(context.Context) error
}

// InitRuntime configures logging and tracing, connects Redis (optional) and
// builds the process-wide backend for cfg.CloudProvider.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	middleware.ConfigureLogger(cfg.Env, cfg.LogLevel)

	name := opts.ServiceName
	if name == "" {
		name = "simplesns-api"
	}
	rt := &Runtime{shutdownTracing: func(context.Context) error { return nil }}
	if !opts.SkipTracing {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    name,
			ServiceVersion: cfg.Version,
			Environment:    cfg.Env,
			Enabled:        cfg.TracingEnabled,
			Exporter:       cfg.TracingExporter,
			OTLPEndpoint:   cfg.OTLPEndpoint,
			SamplerRatio:   cfg.TracingSampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("tracing initialization failed: %w", err)
		}
		rt.shutdownTracing = shutdown
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	rt.Redis = cache.GetClient()

	b, err := backend.Default(ctx, cfg,
		backend.WithLogger(middleware.Logger.With(slog.String("component", "backend"))),
		backend.WithProfileCache(cache.NewProfileCache(rt.Redis, cache.ProfileTTL)),
	)
	if err != nil {
		_ = rt.shutdownTracing(ctx)
		return nil, fmt.Errorf("backend initialization failed: %w", err)
	}
	rt.Backend = b
	return rt, nil
}

// ShutdownTracing flushes pending spans.
func (rt *Runtime) ShutdownTracing(ctx context.Context) error {
	return rt.shutdownTracing(ctx)
}
