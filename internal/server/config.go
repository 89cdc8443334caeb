package server

import (
	"github.com/sentinelscan/sentinelscan/internal/app"
	"github.com/sentinelscan/sentinelscan/internal/logging"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// AppConfig configures the application the server fronts. Nil means
	// defaults.
	AppConfig *app.Config

	// Logger defaults to a stdout JSON logger when nil.
	Logger logging.Logger
}
