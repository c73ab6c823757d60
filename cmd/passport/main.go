package main

import (
	"context"
	"log/slog"
	"os"

	"passport/config"
	"passport/internal/delivery"
	"passport/internal/delivery/http"
	"passport/internal/delivery/http/middleware"
	"passport/internal/delivery/http/router/handler"
	"passport/internal/domain/lifecycle"
	"passport/internal/domain/repository"
	"passport/internal/domain/service"
	"passport/internal/errors"
	"passport/internal/infra/cache"
	"passport/internal/infra/identity"
	logs "passport/internal/infra/log"
	"passport/internal/infra/notification"
	"passport/internal/infra/persistence/postgres"
	"passport/internal/usecase"
	"passport/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startSessionManager,
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		postgres.New,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewProfileRepository,
			newRoleCache,
		),
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			newIdentityProvider,
			newNotifier,
		),
	)
}

// newRoleCache opens the durable role cache and ties its lifetime to the app.
func newRoleCache(lc fx.Lifecycle, cfg *config.Config) (repository.RoleCacheRepository, error) {
	roleCache, closeFn, err := cache.NewRoleCache(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open role cache")
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return closeFn()
		},
	})

	return roleCache, nil
}

func newIdentityProvider(cfg *config.Config, logger *slog.Logger) (service.IdentityProvider, error) {
	return identity.NewClient(cfg, logger)
}

// newNotifier selects the notification sink: Firebase when configured,
// otherwise the structured log.
func newNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.Notifier, error) {
	if cfg.Firebase == nil || cfg.Firebase.CredentialsPath == "" {
		return notification.NewSlogNotifier(logger), nil
	}

	notifier, err := notification.NewFirebaseNotifier(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Firebase notifier")
	}

	return notifier, nil
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewSessionManager,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			middleware.NewRequestIDMiddleware,
			middleware.NewErrorMiddleware,
			middleware.NewSessionMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewSessionHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				http.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

// startSessionManager begins session recovery when the app starts and tears
// the state machine down on shutdown.
func startSessionManager(lc fx.Lifecycle, session usecase.SessionUsecase) {
	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			ctx, cancel := context.WithTimeout(startCtx, lifecycle.DefaultTimeout)
			defer cancel()

			return session.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			session.Close()

			return nil
		},
	})
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
