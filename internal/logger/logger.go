// Package logger provides a zerolog logger constructor.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

func InitLog() *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	Logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	return &Logger
}
