// internal/logs/logs.go
package logs

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func New(logFilePath string, withConsole bool) zerolog.Logger {
	logFile, err := os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open log file")
	}

	zerolog.TimeFieldFormat = time.RFC3339

	var writer io.Writer = logFile
	if withConsole {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		writer = zerolog.MultiLevelWriter(logFile, consoleWriter)
	}

	logger := zerolog.New(writer).With().
		Timestamp().
		Caller().
		Logger()

	log.Logger = logger
	return logger
}
