package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/designjam/countdown/go/clients"
	"github.com/designjam/countdown/go/internal/clock"
	"github.com/designjam/countdown/go/internal/configsource"
	"github.com/designjam/countdown/go/internal/dbconfig"
	"github.com/designjam/countdown/go/internal/gateway"
	"github.com/designjam/countdown/go/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := loadConfig(getEnv("GATEWAY_CONFIG", "gateway.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init("competition-gateway", cfg.Log.Level, cfg.Log.Console)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbCfg := dbconfig.NewConfigFromEnv()

	source, db, err := setupSource(ctx, cfg, dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up config source")
	}
	if db != nil {
		defer db.Close()
	}

	var cache configsource.Cache
	if cfg.Redis.Addr != "" {
		rdb, err := configsource.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		cache = configsource.NewRedisCache(rdb, cfg.Redis.Key)
	}

	provider := configsource.NewProvider(source, cache, configsource.ProviderConfig{
		FreshFor:   cfg.Source.FreshFor,
		RetryAfter: cfg.Source.RetryAfter,
	}, nil)

	var (
		publisher gateway.PhasePublisher
		natsState gateway.ConnectionReporter
		dbState   gateway.Pinger
	)
	if db != nil {
		dbState = db
	}
	if cfg.NATS.URL != "" {
		jsCfg := gateway.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATS.URL
		jsCfg.StreamName = cfg.NATS.Stream
		jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix

		jsPublisher, err := gateway.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create phase publisher")
		}
		publisher = jsPublisher
		natsState = jsPublisher
	}

	gatewayService := gateway.NewService(gateway.DefaultConfig(), publisher)
	runner := clock.NewRunner(provider, gatewayService.HandleSnapshot, clock.Config{
		TickInterval:  cfg.Clock.TickInterval,
		IdleInterval:  cfg.Clock.IdleInterval,
		RetryInterval: cfg.Source.RetryAfter,
	}, nil)
	provider.OnInvalidate(runner.Wake)

	log.Info().
		Str("source", cfg.Source.Kind).
		Bool("redis", cache != nil).
		Bool("nats", publisher != nil).
		Bool("listen", cfg.Source.Listen).
		Str("port", cfg.Port).
		Msg("starting competition gateway")

	var wg sync.WaitGroup

	if cfg.Source.Listen {
		listener, err := configsource.NewListener(provider, configsource.ListenerConfig{
			DatabaseURL:   dbCfg.DSN(),
			NotifyChannel: cfg.Source.NotifyChannel,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create config listener")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil {
				log.Error().Err(err).Msg("config listener stopped")
			}
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil {
			log.Error().Err(err).Msg("competition clock failed")
		}
	}()

	// the runner only re-evaluates once per idle interval after the competition ends
	healthChecker := gateway.NewHealthChecker(gatewayService, dbState, natsState, 2*cfg.Clock.IdleInterval, nil)
	server := setupServer(cfg, gatewayService, healthChecker)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	wg.Wait()

	log.Info().Msg("competition gateway shutdown complete")
}

// setupSource returns the configured source and, for postgres, the opened
// database handle the caller must close.
func setupSource(ctx context.Context, cfg *Config, dbCfg dbconfig.Config) (configsource.Source, *sql.DB, error) {
	switch cfg.Source.Kind {
	case sourcePostgres:
		db, err := sql.Open("postgres", dbCfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		log.Info().Str("database", dbCfg.Database).Msg("reading competition config from postgres")
		return configsource.NewPostgresSource(db), db, nil

	default:
		client := clients.NewCompetitionClient(cfg.Source.APIURL)
		log.Info().Str("api_url", cfg.Source.APIURL).Msg("reading competition config from API")
		return configsource.NewHTTPSource(client), nil, nil
	}
}

func setupServer(cfg *Config, gatewayService *gateway.Service, healthChecker http.Handler) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	gatewayService.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	mux.Handle("/health/details", healthChecker)

	return &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
}
