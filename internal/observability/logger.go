package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sxccxs/robot-server/internal/logging"
)

func InitLogger(app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    logging.NoColor(),
	}
	builder := zerolog.New(output).With().Str("app", app)
	if logging.Timestamps() {
		builder = builder.Timestamp()
	}
	logger := builder.Logger()
	log.Logger = logger
	return logger
}
