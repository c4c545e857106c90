package observability

import (
	"github.com/danmuck/motorctl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger installs the process logger tagged with app. The returned func
// flushes and closes any file sink.
func InitLogger(app string, cfg logging.Config) (zerolog.Logger, func() error) {
	logging.ApplyEnvOverrides(&cfg)
	base, closeFn := logging.Configure(cfg)
	logger := base.With().Str("app", app).Logger()
	log.Logger = logger
	return logger, closeFn
}
