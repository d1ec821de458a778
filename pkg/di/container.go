package di

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-freightsync/cache"
	"github.com/goliatone/go-freightsync/internal/config"
	"github.com/goliatone/go-freightsync/internal/metrics"
	"github.com/goliatone/go-freightsync/model"
	"github.com/goliatone/go-freightsync/query"
	"github.com/goliatone/go-freightsync/resource"
	"github.com/goliatone/go-freightsync/session"
	"github.com/goliatone/go-freightsync/transport"
)

// Option customizes the container.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	clock      clock.Clock
	registerer prometheus.Registerer
	httpClient *http.Client
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock used for TTLs and the session gate.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithRegisterer registers the metrics with reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithHTTPClient sets the HTTP client of the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// Resources groups the typed clients of every resource.
type Resources struct {
	Orders            *resource.Client[model.Order]
	Trucks            *resource.Client[model.Truck]
	Profiles          *resource.Client[model.Profile]
	Locations         *resource.Client[model.Location]
	LoadTypes         *resource.Client[model.LoadType]
	LoadPackages      *resource.Client[model.LoadPackage]
	TruckOptions      *resource.Client[model.TruckOption]
	TruckLoadTypes    *resource.Client[model.TruckLoadType]
	TruckPricingTypes *resource.Client[model.TruckPricingType]
}

// Container wires the client from one configuration. The store, the engine
// and the auth store are singletons shared by every resource client and by
// the session gate.
type Container struct {
	config   config.Config
	opts     options
	registry *prometheus.Registry
	metrics  *metrics.Recorder
	store    *cache.Store
	engine   *query.Engine
	auth     *session.MemoryAuthStore
	http     *transport.Client

	Resources

	gateOnce sync.Once
	gate     *session.Gate
}

// NewContainer validates cfg and builds every component.
func NewContainer(cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{config: cfg, opts: o}
	if o.registerer == nil {
		c.registry = prometheus.NewRegistry()
		o.registerer = c.registry
	}
	c.metrics = metrics.New(o.registerer)

	store, err := cache.NewStore(cfg.Cache,
		cache.WithClock(o.clock),
		cache.WithLogger(o.logger),
		cache.WithMetrics(c.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("cache store: %w", err)
	}
	c.store = store

	c.engine = query.New(store,
		query.WithClock(o.clock),
		query.WithLogger(o.logger),
		query.WithMetrics(c.metrics),
	)

	c.auth = session.NewMemoryAuthStore(cfg.Token)

	transportOpts := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithTokenSource(c.auth),
		transport.WithLogger(o.logger),
	}
	if o.httpClient != nil {
		transportOpts = append(transportOpts, transport.WithHTTPClient(o.httpClient))
	}
	if cfg.RequestsPerSecond > 0 {
		transportOpts = append(transportOpts, transport.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst))
	}
	c.http, err = transport.New(cfg.BaseURL, transportOpts...)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	c.Resources = Resources{
		Orders:            resource.NewClient[model.Order](resource.Order, c.engine, c.http),
		Trucks:            resource.NewClient[model.Truck](resource.Truck, c.engine, c.http),
		Profiles:          resource.NewClient[model.Profile](resource.Profile, c.engine, c.http),
		Locations:         resource.NewClient[model.Location](resource.Location, c.engine, c.http),
		LoadTypes:         resource.NewClient[model.LoadType](resource.LoadType, c.engine, c.http),
		LoadPackages:      resource.NewClient[model.LoadPackage](resource.LoadPackage, c.engine, c.http),
		TruckOptions:      resource.NewClient[model.TruckOption](resource.TruckOption, c.engine, c.http),
		TruckLoadTypes:    resource.NewClient[model.TruckLoadType](resource.TruckLoadType, c.engine, c.http),
		TruckPricingTypes: resource.NewClient[model.TruckPricingType](resource.TruckPricingType, c.engine, c.http),
	}

	o.logger.Debug("container ready", "base_url", cfg.BaseURL, "shards", cfg.Cache.NumShards)
	return c, nil
}

// NewContainerWithDefaults builds a container for baseURL with the default
// configuration.
func NewContainerWithDefaults(baseURL string, opts ...Option) (*Container, error) {
	cfg := config.Default()
	cfg.BaseURL = baseURL
	return NewContainer(cfg, opts...)
}

// Config returns the configuration of the container.
func (c *Container) Config() config.Config {
	return c.config
}

// Store returns the shared cache store.
func (c *Container) Store() *cache.Store {
	return c.store
}

// Engine returns the shared query engine.
func (c *Container) Engine() *query.Engine {
	return c.engine
}

// Auth returns the auth store. Its token is sent as bearer token.
func (c *Container) Auth() *session.MemoryAuthStore {
	return c.auth
}

// HTTP returns the REST transport.
func (c *Container) HTTP() *transport.Client {
	return c.http
}

// Metrics returns the metrics recorder.
func (c *Container) Metrics() *metrics.Recorder {
	return c.metrics
}

// Gatherer returns the private metrics registry, nil when metrics were
// registered with an external registerer.
func (c *Container) Gatherer() prometheus.Gatherer {
	if c.registry == nil {
		return nil
	}
	return c.registry
}

// Gate returns the session gate, starting it on first use.
func (c *Container) Gate() *session.Gate {
	c.gateOnce.Do(func() {
		c.gate = session.NewGate(c.engine, c.auth, c.Profiles.MeQuery(context.Background()),
			session.WithClock(c.opts.clock),
			session.WithResolveTimeout(c.config.Session.ResolveTimeout),
			session.WithEagerResolve(c.config.Session.EagerResolve),
			session.WithLogger(c.opts.logger),
			session.WithMetrics(c.metrics),
		)
	})
	return c.gate
}

// Close stops the session gate if it was started.
func (c *Container) Close() {
	c.gateOnce.Do(func() {})
	if c.gate != nil {
		c.gate.Close()
	}
}
