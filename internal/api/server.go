package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// NewServer creates the configured *http.Server for the rewards API.
func NewServer(port uint16, svc Services, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewRouter(svc, logger),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}
