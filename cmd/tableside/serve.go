package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tableside/internal/app"
	"tableside/internal/publish"
	"tableside/internal/server"
	"tableside/internal/session"
	"tableside/internal/stream"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	var devLogin, legacyHeader bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		Long: `Serve the table, menu and order API.
Kitchen status events are consumed from RabbitMQ when streaming.amqp_url is set, order
changes are mirrored to Kafka when kafka.brokers is set, and configured webhooks receive
every logged event.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withEnv(ctx, func(ctx context.Context, env *app.Env) error {
				log := env.Log
				orders, carts, err := env.Session(ctx)
				if err != nil {
					return err
				}
				stores, err := env.ArchiveStores(ctx)
				if err != nil {
					return err
				}
				cfg := env.Config

				var wg sync.WaitGroup
				defer wg.Wait()
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()

				if len(cfg.Kafka.Brokers) > 0 {
					k, err := publish.Dial(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Restaurant.ID, log)
					if err != nil {
						return fmt.Errorf("kafka: %w", err)
					}
					defer k.Close()
					fan := session.NewFanout("kafka", k.OnChange, 0, log)
					defer fan.Close()
					orders.Subscribe(fan.OnChange)
				}

				if cfg.Streaming.AMQPURL != "" {
					origin := uuid.NewString()
					pub, err := stream.NewPublisher(cfg.Streaming.AMQPURL, cfg.Streaming.Exchange, origin, log)
					if err != nil {
						return fmt.Errorf("amqp publisher: %w", err)
					}
					defer pub.Close()
					fan := session.NewFanout("amqp", pub.OnChange, 0, log)
					defer fan.Close()
					orders.Subscribe(fan.OnChange)
					consumer := stream.Consumer{
						URL:      cfg.Streaming.AMQPURL,
						Exchange: cfg.Streaming.Exchange,
						Queue:    cfg.Streaming.Queue,
						Origin:   origin,
						Sink:     orders,
						Log:      log,
					}
					wg.Add(1)
					go func() {
						defer wg.Done()
						_ = consumer.Run(ctx)
					}()
				}

				dispatcher := server.WebhookDispatcher{
					Repo:         env.Repo,
					RestaurantID: cfg.Restaurant.ID,
					Hooks:        cfg.Webhooks,
					Log:          log,
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = dispatcher.Run(ctx)
				}()

				authCfg := server.AuthConfig{
					JWTSecret:              viper.GetString("jwt-secret"),
					DevLogin:               devLogin,
					AllowLegacyActorHeader: legacyHeader,
					Log:                    log,
				}
				if authCfg.JWTSecret == "" {
					return fmt.Errorf("TABLESIDE_JWT_SECRET is required for bearer auth; run tableside init")
				}
				handler, err := server.New(server.Config{
					Orders:   orders,
					Carts:    carts,
					Menu:     env.Catalog(),
					Repo:     env.Repo,
					App:      cfg,
					Archive:  stores,
					BasePath: basePath,
					Auth:     authCfg,
					Log:      log,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				log.Infow("serving", "restaurant", cfg.Restaurant.ID, "addr", addr, "backend", cfg.Persistence.Backend,
					"queue", len(orders.Snapshot().Queue), "webhooks", len(cfg.Webhooks))
				fmt.Printf("Serving Tableside API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				err = srv.ListenAndServe()
				cancel()
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&devLogin, "dev-login", false, "enable POST /auth/dev/login for local testing")
	cmd.Flags().BoolVar(&legacyHeader, "allow-actor-header", false, "accept unauthenticated X-Actor-Id headers")
	return cmd
}
