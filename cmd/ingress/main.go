package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"payrelay/config"
	"payrelay/internal/ingress"
)

const listenAddr = ":9999"

func main() {
	logger := setupLogger()

	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	backends := appConfig.Ingress.BackendPaths()
	if len(backends) == 0 {
		log.Fatal("no backends configured")
	}

	proxy := ingress.NewProxy(backends, logger)

	ln, err := ingress.Listen(listenAddr)
	if err != nil {
		log.Fatal(err)
	}

	logger.Info("ingress listening", "addr", listenAddr, "backends", len(backends))

	server := &http.Server{Handler: proxy}
	if err := server.Serve(ln); err != nil {
		log.Fatal(err)
	}
}

func setupLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})
	return slog.New(handler)
}
