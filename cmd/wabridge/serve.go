package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/wabridgehq/wabridge/internal/accounts"
	"github.com/wabridgehq/wabridge/internal/broadcast"
	"github.com/wabridgehq/wabridge/internal/config"
	"github.com/wabridgehq/wabridge/internal/db"
	"github.com/wabridgehq/wabridge/internal/groups"
	"github.com/wabridgehq/wabridge/internal/handlers"
	"github.com/wabridgehq/wabridge/internal/inbound"
	"github.com/wabridgehq/wabridge/internal/logger"
	"github.com/wabridgehq/wabridge/internal/media"
	"github.com/wabridgehq/wabridge/internal/media/providers/s3"
	"github.com/wabridgehq/wabridge/internal/message"
	"github.com/wabridgehq/wabridge/internal/outbound"
	"github.com/wabridgehq/wabridge/internal/server"
	"github.com/wabridgehq/wabridge/internal/settings"
	"github.com/wabridgehq/wabridge/internal/whatsapp"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideWhatsAppClient,
			provideObjectStore,
			provideMediaService,
			accounts.NewService,
			settings.NewService,
			groups.NewService,
			message.NewService,
			provideDispatcher,
			provideReceiverResolver,
			provideProcessor,
			provideBroadcastService,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewAuthHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(handlers.NewMessagesHandler),
			provideServerHandler(handlers.NewSettingsHandler),
			provideServerHandler(handlers.NewGroupsHandler),
			provideServerHandler(handlers.NewBroadcastsHandler),
			provideServerHandler(handlers.NewMediaHandler),
			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error {
		pool.Close()
		return nil
	}})
	return pool, nil
}

func provideWhatsAppClient(log *slog.Logger, cfg config.Config) *whatsapp.Client {
	timeout := time.Duration(cfg.WhatsApp.SendTimeoutSeconds) * time.Second
	return whatsapp.NewClient(log, cfg.WhatsApp.APIBase, cfg.WhatsApp.APIVersion, timeout)
}

func provideObjectStore(log *slog.Logger, cfg config.Config) (media.ObjectStore, error) {
	if cfg.Storage.Endpoint == "" {
		log.Warn("object storage not configured, media offload disabled")
		return nil, nil
	}
	return s3.New(context.Background(), cfg.Storage)
}

func provideMediaService(log *slog.Logger, store media.ObjectStore, client *whatsapp.Client) *media.Service {
	return media.NewService(log, store, client)
}

func provideDispatcher(log *slog.Logger, client *whatsapp.Client, messages *message.DBService) *outbound.Dispatcher {
	return outbound.NewDispatcher(log, client, messages)
}

func provideReceiverResolver(log *slog.Logger, settingsService *settings.Service, accountService *accounts.Service, cfg config.Config) inbound.ReceiverResolver {
	return inbound.NewPrecedenceResolver(log, settingsService, accountService, cfg.WhatsApp.BusinessOwnerID)
}

func provideProcessor(log *slog.Logger, accountService *accounts.Service, settingsService *settings.Service, mediaService *media.Service, messages *message.DBService, resolver inbound.ReceiverResolver) *inbound.Processor {
	return inbound.NewProcessor(log, accountService, settingsService, mediaService, messages, resolver)
}

func provideBroadcastService(log *slog.Logger, groupService *groups.Service, settingsService *settings.Service, dispatcher *outbound.Dispatcher) *broadcast.Service {
	return broadcast.NewService(log, groupService, settingsService, dispatcher)
}

func provideWebhookHandler(log *slog.Logger, processor *inbound.Processor, cfg config.Config) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, processor, cfg.WhatsApp.VerifyToken)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config, accountService *accounts.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Admin.PhoneNumber != "" {
				if err := accountService.EnsureAdmin(ctx, cfg.Admin.PhoneNumber, cfg.Admin.Password, cfg.Admin.DisplayName); err != nil {
					return err
				}
			}
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
