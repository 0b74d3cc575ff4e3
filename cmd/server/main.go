// Command server runs the chat relay: a WebSocket endpoint for room-scoped
// messaging plus HTTP gateways for file upload and download.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/quillhq/chatrelay/internal/server"
	"github.com/quillhq/chatrelay/internal/store"
)

var opts struct {
	Port            string
	PublicBaseURL   string
	DatabasePath    string
	AllowedOrigins  string
	MaxMessageSize  int64
	RateLimitBurst  int
	RateLimitRefill time.Duration
	ShutdownTimeout time.Duration
}

var flags = []cli.Flag{
	&cli.StringFlag{
		Name:        "port",
		Usage:       "address for the HTTP server to listen on",
		Value:       ":8080",
		EnvVars:     []string{"SERVER_PORT"},
		Destination: &opts.Port,
	},
	&cli.StringFlag{
		Name:        "base-url",
		Usage:       "public base URL used when building file download links",
		Value:       "http://localhost:8080",
		EnvVars:     []string{"PUBLIC_BASE_URL"},
		Destination: &opts.PublicBaseURL,
	},
	&cli.StringFlag{
		Name:        "db",
		Usage:       "path to the SQLite database file",
		Value:       "chatrelay.db",
		EnvVars:     []string{"DATABASE_PATH"},
		Destination: &opts.DatabasePath,
	},
	&cli.StringFlag{
		Name:        "allowed-origins",
		Usage:       "comma-separated list of origins allowed to open WebSocket connections",
		Value:       "http://localhost:8080",
		EnvVars:     []string{"ALLOWED_ORIGINS"},
		Destination: &opts.AllowedOrigins,
	},
	&cli.Int64Flag{
		Name:        "max-message-size",
		Usage:       "maximum inbound WebSocket frame size in bytes",
		Value:       4096,
		EnvVars:     []string{"MAX_MESSAGE_SIZE"},
		Destination: &opts.MaxMessageSize,
	},
	&cli.IntFlag{
		Name:        "rate-limit-burst",
		Usage:       "messages allowed per refill interval for each connection",
		Value:       5,
		EnvVars:     []string{"RATE_LIMIT_BURST"},
		Destination: &opts.RateLimitBurst,
	},
	&cli.DurationFlag{
		Name:        "rate-limit-refill",
		Usage:       "refill interval for the per-connection rate limiter",
		Value:       time.Second,
		EnvVars:     []string{"RATE_LIMIT_REFILL_INTERVAL"},
		Destination: &opts.RateLimitRefill,
	},
	&cli.DurationFlag{
		Name:        "shutdown-timeout",
		Usage:       "how long to wait for connections to drain on shutdown",
		Value:       10 * time.Second,
		EnvVars:     []string{"SHUTDOWN_TIMEOUT"},
		Destination: &opts.ShutdownTimeout,
	},
}

func main() {
	app := &cli.App{
		Name:   "chatrelay",
		Usage:  "real-time chat relay with file attachments",
		Flags:  flags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		zlog.Fatal().Err(err).Msg("server exited")
	}
}

func run(*cli.Context) error {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "chatrelay").
		Logger()
	zlog.Logger = logger

	server.SetConfig(&server.Config{
		Port:           opts.Port,
		PublicBaseURL:  opts.PublicBaseURL,
		DatabasePath:   opts.DatabasePath,
		AllowedOrigins: server.ParseOrigins(opts.AllowedOrigins),
		MaxMessageSize: opts.MaxMessageSize,
		RateLimit: server.RateLimitConfig{
			Burst:          opts.RateLimitBurst,
			RefillInterval: opts.RateLimitRefill,
		},
		ShutdownTimeout: opts.ShutdownTimeout,
	})

	st, err := store.Open(opts.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing store")
		}
	}()
	logger.Info().Str("path", opts.DatabasePath).Msg("store opened")

	hub := server.NewHub(st, logger)
	go hub.Run()

	routes := server.SetupRoutes(hub, st, logger)
	srv := server.CreateServer(opts.Port, routes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown signal received")
		if err := server.ShutdownServer(srv, opts.ShutdownTimeout); err != nil {
			logger.Warn().Err(err).Msg("HTTP shutdown did not complete cleanly")
		}
		return hub.Shutdown(opts.ShutdownTimeout)
	})

	return g.Wait()
}
