package container

import (
	"fmt"

	"github.com/lyzr/edgesync/cmd/edge-sync/coordinator"
	"github.com/lyzr/edgesync/cmd/edge-sync/dependency"
	"github.com/lyzr/edgesync/cmd/edge-sync/downlink"
	"github.com/lyzr/edgesync/cmd/edge-sync/emitter"
	"github.com/lyzr/edgesync/cmd/edge-sync/intake"
	"github.com/lyzr/edgesync/cmd/edge-sync/notify"
	"github.com/lyzr/edgesync/cmd/edge-sync/policy"
	"github.com/lyzr/edgesync/cmd/edge-sync/resolver"
	"github.com/lyzr/edgesync/common/bootstrap"
	"github.com/lyzr/edgesync/common/ratelimit"
	"github.com/lyzr/edgesync/common/repository"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	EdgeRepo      *repository.EdgeRepository
	RuleChainRepo *repository.RuleChainRepository
	DeviceRepo    *repository.DeviceRepository
	EdgeEventRepo *repository.EdgeEventRepository

	// Services
	Emitter     *emitter.Emitter
	Resolver    *resolver.EdgeResolver
	ScopeFilter *resolver.CustomerScopeFilter
	Walker      *dependency.Walker
	Router      *coordinator.NotificationRouter
	Downlinks   *downlink.Builder
	Broadcast   *policy.Broadcast
	Publisher   *intake.Publisher
	Consumer    *intake.Consumer

	// Nil when tenant rate limiting is off or redis is not configured
	RateLimiter *ratelimit.RateLimiter

	// Edge wake-up push; nil unless event signals are published to redis
	NotifyHub        *notify.Hub
	NotifyServer     *notify.Server
	NotifySubscriber *notify.RedisSubscriber
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	if components.DB == nil {
		return nil, fmt.Errorf("edge-sync requires a database")
	}
	if components.Queue == nil {
		return nil, fmt.Errorf("edge-sync requires a queue")
	}

	cfg := components.Config

	// Initialize repositories
	edgeRepo := repository.NewEdgeRepository(components.DB)
	ruleChainRepo := repository.NewRuleChainRepository(components.DB)
	deviceRepo := repository.NewDeviceRepository(components.DB)
	edgeEventRepo := repository.NewEdgeEventRepository(components.DB)

	broadcast, err := policy.NewBroadcast(cfg.Sync.BroadcastPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to compile broadcast policy: %w", err)
	}
	components.Logger.Info("broadcast policy compiled", "expression", broadcast.Expression())

	// Initialize services (bottom-up: dependencies first)
	emitterOpts := &emitter.Opts{
		Store:  edgeEventRepo,
		Logger: components.Logger,
	}
	if cfg.Sync.SignalEvents && components.Redis != nil {
		emitterOpts.Signaler = components.Redis
	}
	eventEmitter := emitter.New(emitterOpts)

	edgeResolver := resolver.NewEdgeResolver(edgeRepo)
	scopeFilter := resolver.NewCustomerScopeFilter(edgeRepo)
	walker := dependency.NewWalker(ruleChainRepo, cfg.Sync.PageSize, components.Logger)

	router := coordinator.NewNotificationRouter(&coordinator.RouterOpts{
		Resolver:    edgeResolver,
		ScopeFilter: scopeFilter,
		Walker:      walker,
		Emitter:     eventEmitter,
		EdgeLister:  edgeRepo,
		PageSize:    cfg.Sync.PageSize,
		Concurrency: cfg.Sync.FanoutConcurrency,
		Logger:      components.Logger,
	})

	consumerOpts := &intake.ConsumerOpts{
		Queue:  components.Queue,
		Topic:  cfg.Queue.Topic,
		Router: router,
		Policy: broadcast,
		Logger: components.Logger,
	}
	if components.Telemetry != nil {
		consumerOpts.Telemetry = components.Telemetry
	}

	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.TenantLimit > 0 && components.Redis != nil {
		rateLimiter = ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), components.Logger)
	}

	var (
		hub        *notify.Hub
		notifySrv  *notify.Server
		subscriber *notify.RedisSubscriber
	)
	if emitterOpts.Signaler != nil {
		hub = notify.NewHub(components.Logger)
		notifySrv = notify.NewServer(hub, edgeRepo, components.Logger)
		subscriber = notify.NewRedisSubscriber(components.Redis.GetUnderlying(), hub, components.Logger)
	}

	return &Container{
		Components:    components,
		EdgeRepo:      edgeRepo,
		RuleChainRepo: ruleChainRepo,
		DeviceRepo:    deviceRepo,
		EdgeEventRepo: edgeEventRepo,
		Emitter:       eventEmitter,
		Resolver:      edgeResolver,
		ScopeFilter:   scopeFilter,
		Walker:        walker,
		Router:        router,
		Downlinks:     downlink.NewBuilder(deviceRepo),
		Broadcast:     broadcast,
		Publisher:     intake.NewPublisher(components.Queue, cfg.Queue.Topic),
		Consumer:      intake.NewConsumer(consumerOpts),
		RateLimiter:   rateLimiter,

		NotifyHub:        hub,
		NotifyServer:     notifySrv,
		NotifySubscriber: subscriber,
	}, nil
}
