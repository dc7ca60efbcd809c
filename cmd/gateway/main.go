package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/amirsalarsafaei/sqlc-pgx-monitoring/dbtracer"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"payrelay/config"
	"payrelay/internal/messages"
	"payrelay/internal/payments"
	"payrelay/internal/payments/handlers"
)

const publisherMaxConns = 1024

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

	dbpool := setupDbPool(appConfig)
	defer dbpool.Close()

	pStore := payments.NewPaymentStore(dbpool, logger)

	publisher := messages.NewPublisher(appConfig.Gateway.PublishSocket, publisherMaxConns, logger)

	e := echo.New()
	e.HideBanner = true

	if appConfig.Telemetry.Enabled {
		e.Use(otelecho.Middleware(appConfig.Telemetry.ServiceName))
	}

	paymentHandler := handlers.NewPaymentHandler(publisher)
	summaryHandler := handlers.NewSummaryHandler(pStore)
	purgeHandler := handlers.NewPurgeHandler(pStore)

	e.POST("/payments", paymentHandler.Handle)
	e.GET("/payments-summary", summaryHandler.Handle)
	e.POST("/purge-payments", purgeHandler.Handle)
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	socketPath := appConfig.Gateway.ListenSocket
	_ = os.Remove(socketPath)

	l, err := net.Listen("unix", socketPath)
	if err != nil {
		log.Fatal(err)
	}

	if err := os.Chmod(socketPath, 0o666); err != nil {
		log.Fatal(err)
	}

	e.Listener = l
	if err := e.Start(""); err != nil {
		log.Fatal(err)
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
