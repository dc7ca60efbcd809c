package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/amirsalarsafaei/sqlc-pgx-monitoring/dbtracer"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"payrelay/config"
	"payrelay/internal/messages"
	"payrelay/internal/payments"
	"payrelay/internal/payments/workers"
)

func main() {
	logger := setupLogger()

	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	if appConfig.Telemetry.Enabled {
		cleanup := config.InitTracer(appConfig.Telemetry)
		defer cleanup()
	}

	httpClient := setupHttpClient(appConfig)

	dbpool := setupDbPool(appConfig)
	defer dbpool.Close()

	pStore := payments.NewPaymentStore(dbpool, logger)
	go pStore.Run()
	defer pStore.Close()

	healthMonitor := workers.NewHealthMonitor(
		appConfig.Worker.DefaultProcessorURL,
		appConfig.Worker.FallbackProcessorURL,
		httpClient,
		logger,
	)
	go healthMonitor.StartMonitoring()
	defer healthMonitor.Stop()

	defaultProcessor := payments.NewPaymentProcessor(httpClient, appConfig.Worker.DefaultProcessorURL, payments.ProcessorTypeDefault, logger)
	fallbackProcessor := payments.NewPaymentProcessor(httpClient, appConfig.Worker.FallbackProcessorURL, payments.ProcessorTypeFallback, logger)

	workerPool := workers.NewWorkerPool(
		appConfig.Worker.NumWorkers,
		defaultProcessor,
		fallbackProcessor,
		pStore,
		healthMonitor,
		logger,
	)
	workerPool.Start()
	defer workerPool.Stop()

	receiver := messages.NewReceiver(appConfig.Worker.ListenPath, workerPool, logger)
	defer receiver.Stop()

	if err := receiver.Start(); err != nil {
		logger.Error("failed to start receiver", "error", err)
		os.Exit(1)
	}
}

func setupHttpClient(appConfig *config.AppConfig) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   100 * time.Millisecond,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 256,
		MaxConnsPerHost:     256,

		IdleConnTimeout:    90 * time.Second,
		DisableCompression: true,
		ForceAttemptHTTP2:  false,
	}

	var rt http.RoundTripper = transport
	if appConfig.Telemetry.Enabled {
		rt = otelhttp.NewTransport(transport)
	}

	return &http.Client{
		Transport: rt,
		Timeout:   10 * time.Second,
	}
}

func setupDbPool(appConfig *config.AppConfig) *pgxpool.Pool {
	dbConfig, err := pgxpool.ParseConfig(appConfig.Postgres.URL)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Invalid postgres URL: %v\n", err)
		os.Exit(1)
	}

	dbConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	if appConfig.Telemetry.Enabled {
		dbTracer, _ := dbtracer.NewDBTracer("payments")
		dbConfig.ConnConfig.Tracer = dbTracer
	}

	dbpool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	return dbpool
}

func setupLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})
	return slog.New(handler)
}
