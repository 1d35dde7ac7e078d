package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/Ramsey-B/docket/pkg/ingestion"
	"github.com/Ramsey-B/docket/pkg/kafka"
	"github.com/Ramsey-B/docket/pkg/middleware"
	"github.com/Ramsey-B/docket/pkg/redis"
	"github.com/Ramsey-B/docket/pkg/routes/health"
	ingestionroutes "github.com/Ramsey-B/docket/pkg/routes/ingestion"
	"github.com/Ramsey-B/docket/pkg/startup"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingestion API and the Kafka batch consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

// server is the long-running process: API, consumer and their dependencies.
type server struct {
	*app

	redis    *redis.Client
	consumer *kafka.Consumer
	service  *ingestion.Service
	checker  *health.Checker
	echo     *echo.Echo
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	s := &server{app: a}

	runner := startup.NewStartup(a.logger, a.cfg.StartupMaxAttempts)
	runner.AddDependency(a.databaseDependency())
	runner.AddDependency(a.migrationsDependency())
	runner.AddDependency(s.redisDependency())
	runner.AddDependency(a.producerDependency())
	runner.AddDependency(s.serviceDependency())
	runner.AddDependency(s.consumerDependency())
	runner.AddDependency(s.httpDependency())

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := runner.Stop(shutdownCtx); err != nil {
			a.logger.WithError(err).Error("Shutdown finished with errors")
		}
		a.close(shutdownCtx)
	}

	if err := runner.Start(ctx); err != nil {
		a.logger.WithError(err).Error("Failed to start docket")
		shutdown()
		return err
	}

	s.checker.SetReady(true)
	a.logger.Infof("%s %s ready on port %d", a.cfg.AppName, a.cfg.Version, a.cfg.Port)

	<-ctx.Done()
	a.logger.Info("Shutting down")
	s.checker.SetReady(false)
	shutdown()
	return nil
}

func (s *server) redisDependency() *startup.Dependency {
	return &startup.Dependency{
		Name: "redis",
		OnStart: func(ctx context.Context) error {
			if !s.cfg.RedisEnabled {
				s.logger.Info("Redis disabled, failed Kafka batches will only be logged")
				return nil
			}
			client, err := s.connectRedis(ctx)
			if err != nil {
				return err
			}
			s.redis = client
			return nil
		},
		OnStop: func(context.Context) error {
			if s.redis == nil {
				return nil
			}
			return s.redis.Close()
		},
	}
}

func (s *server) serviceDependency() *startup.Dependency {
	return &startup.Dependency{
		Name:     "ingestion",
		Requires: []string{"migrations", "kafka-producer"},
		OnStart: func(context.Context) error {
			service, err := s.newService()
			if err != nil {
				return err
			}
			s.service = service
			return nil
		},
	}
}

func (s *server) consumerDependency() *startup.Dependency {
	return &startup.Dependency{
		Name:     "kafka-consumer",
		Requires: []string{"ingestion", "redis"},
		OnStart: func(ctx context.Context) error {
			if !s.cfg.KafkaConsumerEnabled {
				s.logger.Info("Kafka consumer disabled")
				return nil
			}

			consumerCfg := kafka.DefaultConsumerConfig()
			consumerCfg.Brokers = s.cfg.KafkaBrokers
			consumerCfg.Topic = s.cfg.KafkaInputTopic
			consumerCfg.GroupID = s.cfg.KafkaConsumerGroup

			consumer, err := kafka.NewConsumer(consumerCfg, s.logger)
			if err != nil {
				return err
			}

			var dlq kafka.DeadLetterSink
			if s.redis != nil {
				dlq = redis.NewDeadLetterQueue(s.redis, s.cfg.RedisDLQStream, s.logger)
			}
			handler := kafka.NewBatchHandler(s.service, dlq, s.logger).WithRetry(kafka.RetryPolicy{
				MaxAttempts: s.cfg.KafkaRetryAttempts,
				BackoffUnit: time.Duration(s.cfg.KafkaRetryBackoff) * time.Millisecond,
			})

			// the consumer outlives startup, so it runs on a context of its own
			if err := consumer.Start(context.WithoutCancel(ctx), handler.Handle); err != nil {
				return err
			}
			s.consumer = consumer
			return nil
		},
		OnStop: func(context.Context) error {
			if s.consumer == nil {
				return nil
			}
			return s.consumer.Stop()
		},
	}
}

func (s *server) httpDependency() *startup.Dependency {
	return &startup.Dependency{
		Name:     "http",
		Requires: []string{"ingestion", "redis"},
		OnStart: func(context.Context) error {
			s.echo = s.newEcho()

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", s.cfg.Port),
				ReadTimeout:       time.Duration(s.cfg.HttpServerReadTimeoutSeconds) * time.Second,
				WriteTimeout:      time.Duration(s.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
				IdleTimeout:       time.Duration(s.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
				ReadHeaderTimeout: time.Duration(s.cfg.ReadHeaderTimeoutSeconds) * time.Second,
				MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
			}

			go func() {
				if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.logger.WithError(err).Fatal("HTTP server stopped unexpectedly")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if s.echo == nil {
				return nil
			}
			return s.echo.Shutdown(ctx)
		},
	}
}

func (s *server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(s.logger)

	e.Use(echomiddleware.Recover())
	e.Use(otelecho.Middleware(s.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(s.logger))
	e.Use(echomiddleware.BodyLimit(s.cfg.BodyLimit))
	e.Use(middleware.APIKey(s.cfg.APIKey))

	if s.redis != nil {
		s.checker = health.NewChecker(s.db, s.redis, s.cfg.Version)
	} else {
		s.checker = health.NewChecker(s.db, nil, s.cfg.Version)
	}
	s.checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ingestionroutes.Register(e.Group("/api/ingestion"), s.service)

	return e
}
