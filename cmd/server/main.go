package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	jwttoken "licita/internal/jwt_token"
	"licita/internal/ledger/backfill"
	ledgerhandler "licita/internal/ledger/handler"
	ledgermetrics "licita/internal/ledger/metrics"
	"licita/internal/ledger/publisher"
	"licita/internal/ledger/service"
	"licita/internal/platform/config"
	"licita/internal/platform/health"
	"licita/internal/platform/httpserver"
	"licita/internal/platform/kafka"
	"licita/internal/platform/logger"
	"licita/internal/platform/metrics"
	"licita/internal/platform/middleware"
)

const shutdownTimeout = 10 * time.Second

// main wires the ledger, its optional cache and receipt feed, and the HTTP
// surface. Business logic lives in internal/ledger.
//
//	server                   serve the ledger API
//	server backfill [file]   record JSON-line actions from file or stdin
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := "serve"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}
	switch mode {
	case "serve":
		err = run(ctx, cfg, log)
	case "backfill":
		err = runBackfill(ctx, cfg, log, os.Args[2:])
	default:
		err = fmt.Errorf("unknown command %q", mode)
	}
	if err != nil {
		log.Error("ledger stopped with error", "command", mode, "error", err)
		os.Exit(1)
	}
}

// app is the assembled ledger and the resources to release after use.
type app struct {
	ledger  *service.Service
	checks  *health.Handler
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp opens the store and the optional receipt feed. The feed worker runs
// in g until gctx ends.
func newApp(ctx context.Context, cfg config.Server, log *slog.Logger, g *errgroup.Group, gctx context.Context) (*app, error) {
	a := &app{checks: health.New(2 * time.Second)}

	st, err := openStore(ctx, cfg, log, a.checks)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.close)

	ledgerMetrics := ledgermetrics.New()
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(ledgerMetrics),
	}

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		a.close()
		return nil, err
	}
	if producer != nil {
		a.closers = append(a.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := producer.Close(closeCtx); err != nil {
				log.Warn("kafka producer close failed", "error", err)
			}
		})
		if err := producer.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("could not ensure receipt topic", "topic", producer.Topic(), "error", err)
		}
		a.checks.Add("kafka", producer.Health)

		sender, err := publisher.NewKafkaSender(producer)
		if err != nil {
			a.close()
			return nil, err
		}
		pub, err := publisher.New(sender,
			publisher.WithLogger(log),
			publisher.WithMetrics(ledgerMetrics),
			publisher.WithBufferSize(cfg.Kafka.BufferSize),
		)
		if err != nil {
			a.close()
			return nil, err
		}
		opts = append(opts, service.WithPublisher(pub))
		g.Go(func() error { return pub.Run(gctx) })
		log.Info("receipt feed enabled", "topic", producer.Topic(), "brokers", cfg.Kafka.Brokers)
	}

	a.ledger, err = service.New(st.store, opts...)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	a, err := newApp(ctx, cfg, log, g, gctx)
	if err != nil {
		return err
	}
	defer a.close()

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "")
	router := newRouter(a.ledger, log, jwttoken.NewJWTServiceAdapter(jwtService), a.checks)
	srv := httpserver.New(cfg.Addr, router)

	g.Go(func() error {
		log.Info("starting ledger server", "addr", cfg.Addr, "store", cfg.Store.Backend)
		defer log.Info("ledger server stopped")
		return httpserver.ListenAndServe(gctx, srv, shutdownTimeout)
	})

	return g.Wait()
}

// runBackfill records the actions in args[0] (stdin when absent) and prints
// one {linha, hash} receipt per recorded line. The receipt feed is drained
// before it returns.
func runBackfill(ctx context.Context, cfg config.Server, log *slog.Logger, args []string) error {
	in := io.Reader(os.Stdin)
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open backfill input: %w", err)
		}
		defer f.Close()
		in = f
	}

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	g, gctx := errgroup.WithContext(feedCtx)
	a, err := newApp(ctx, cfg, log, g, gctx)
	if err != nil {
		return err
	}
	defer a.close()

	stats, runErr := backfill.Run(ctx, in, os.Stdout, a.ledger, log)
	log.Info("backfill finished", "recorded", stats.Recorded, "failed", stats.Failed)

	stopFeed()
	return errors.Join(runErr, g.Wait())
}

func newRouter(ledger *service.Service, log *slog.Logger, validator middleware.JWTValidator, checks *health.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(log, metrics.New()))

	r.Method(http.MethodGet, "/health", checks)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	ledgerhandler.New(ledger, log, validator).Register(r)
	return r
}
