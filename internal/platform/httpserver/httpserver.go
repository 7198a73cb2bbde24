package httpserver

import (
	"net/http"

	"fieldcomply/internal/platform/config"
)

// New builds an HTTP server with the configured timeouts.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
