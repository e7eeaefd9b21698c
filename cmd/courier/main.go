package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/bmadcode/courier/pkg/config"
	"github.com/bmadcode/courier/pkg/delivery"
	"github.com/bmadcode/courier/pkg/delivery/pgstore"
	"github.com/bmadcode/courier/pkg/email"
	"github.com/bmadcode/courier/pkg/events"
	"github.com/bmadcode/courier/pkg/httpserver"
	"github.com/bmadcode/courier/pkg/logger"
	"github.com/bmadcode/courier/pkg/pg"
	"github.com/bmadcode/courier/pkg/redis"
	"github.com/bmadcode/courier/pkg/render"
	"github.com/bmadcode/courier/pkg/transport"
	"github.com/bmadcode/courier/pkg/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("courier stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var app appConfig
	if err := config.Load(&app); err != nil {
		return err
	}
	log := logger.New(
		logger.WithEnvironment(app.Env, app.Service),
		logger.WithContextValue("request_id", middleware.RequestIDKey),
	)
	logger.SetAsDefault(log)

	var (
		deliveryCfg delivery.Config
		emailCfg    email.Config
		smsCfg      transport.SMSConfig
		chatCfg     transport.ChatConfig
		webhookCfg  transport.WebhookConfig
		pgCfg       pg.Config
		redisCfg    redis.Config
		httpCfg     httpserver.Config
	)
	if err := errors.Join(
		config.Load(&deliveryCfg),
		config.Load(&emailCfg),
		config.Load(&smsCfg),
		config.Load(&chatCfg),
		config.Load(&webhookCfg),
		config.Load(&pgCfg),
		config.Load(&redisCfg),
		config.Load(&httpCfg),
	); err != nil {
		return err
	}

	var readiness []func(context.Context) error

	store, storeReady, closeStore, err := openStore(ctx, app, pgCfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	if storeReady != nil {
		readiness = append(readiness, storeReady)
	}

	bus := events.NewBus(app.EventBuffer)
	defer bus.Close()

	opts := []delivery.Option{delivery.WithLogger(log)}
	publisher := events.Publisher(bus)

	if redisCfg.ConnectionURL != "" {
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		readiness = append(readiness, redis.Healthcheck(client))
		opts = append(opts, delivery.WithLocker(redis.NewLocker(client, redisCfg)))
		publisher = events.Multi(bus, events.NewRedisPublisher(client, redisCfg.EventsChannel))
		log.InfoContext(ctx, "redis locker and event publisher enabled")
	}
	opts = append(opts, delivery.WithPublisher(publisher))

	channels, err := loadChannels(app.ChannelsFile)
	if err != nil {
		return err
	}
	opts = append(opts, delivery.WithChannelConfigs(channels))

	renderer, err := loadTemplates(app.TemplatesFile)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "templates loaded", slog.Int("count", len(renderer.IDs())))

	transports, err := buildTransports(emailCfg, smsCfg, chatCfg, webhookCfg, log)
	if err != nil {
		return err
	}

	orch := delivery.NewOrchestrator(store, renderer, transports, deliveryCfg, opts...)
	batches := delivery.NewBatchCoordinator(orch)

	sweeper, err := delivery.NewSweeper(orch)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := sweeper.Stop(stopCtx); err != nil {
			log.ErrorContext(stopCtx, "sweeper did not stop in time", logger.Error(err))
		}
	}()

	go logEvents(ctx, bus, log)

	srv := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))
	return srv.Run(ctx, routes(log, orch, batches, readiness))
}

// openStore returns the configured store, its readiness probe (nil when it
// has none) and a close function.
func openStore(ctx context.Context, app appConfig, cfg pg.Config, log *slog.Logger) (delivery.Store, func(context.Context) error, func(), error) {
	switch app.StoreDriver {
	case storeMemory:
		log.WarnContext(ctx, "using in-memory store; notifications are lost on restart")
		return delivery.NewMemoryStore(), nil, func() {}, nil
	case storePostgres:
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.Migrate(ctx, pool, pgstore.Migrations, cfg, log); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return pgstore.New(pool), pg.Healthcheck(pool), pool.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("%w: unknown store driver %q", delivery.ErrValidation, app.StoreDriver)
	}
}

func loadChannels(path string) (delivery.ChannelConfigs, error) {
	var file delivery.ChannelsFile
	err := config.LoadYAML(path, &file)
	switch {
	case errors.Is(err, config.ErrFileNotFound):
		return delivery.DefaultChannelConfigs(), nil
	case err != nil:
		return nil, err
	}
	return file.Channels, nil
}

func loadTemplates(path string) (*render.Store, error) {
	var defs render.Definitions
	if err := config.LoadYAML(path, &defs); err != nil && !errors.Is(err, config.ErrFileNotFound) {
		return nil, err
	}
	return render.NewStore(defs.Templates...)
}

func buildTransports(
	emailCfg email.Config,
	smsCfg transport.SMSConfig,
	chatCfg transport.ChatConfig,
	webhookCfg transport.WebhookConfig,
	log *slog.Logger,
) (transport.Set, error) {
	mailer, err := transport.NewEmailFromConfig(emailCfg, transport.WithEmailLogger(log))
	if err != nil {
		return transport.Set{}, err
	}
	sender := webhook.NewSender()
	return transport.Set{
		Email:   mailer,
		SMS:     transport.NewSMS(smsCfg, sender),
		Chat:    transport.NewChat(chatCfg, sender),
		Webhook: transport.NewWebhook(webhookCfg, transport.WithWebhookLogger(log)),
	}, nil
}

func logEvents(ctx context.Context, bus *events.Bus, log *slog.Logger) {
	for e := range bus.Subscribe(ctx) {
		log.DebugContext(ctx, "domain event",
			logger.Component("events"),
			slog.String("type", e.Type),
			slog.String("subject", e.Subject),
		)
	}
}
