package observability

import (
	"github.com/danmuck/serialmux/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the runtime console logger and tags the global logger
// with app and the device it serves.
func InitLogger(app, devicePath string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().
		Str("app", app).
		Str("device", devicePath).
		Logger()
	log.Logger = logger
	return logger
}
