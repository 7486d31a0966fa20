// Package logging builds the logrus logger used by the CLI.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Levels lists the accepted level names, quietest first.
var Levels = []string{"none", "error", "warn", "info", "debug", "trace"}

// Setup returns a logger writing to out at the named level. "none" discards
// all output. Level names are case-insensitive.
func Setup(level string, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		FullTimestamp:    true,
	})

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "none":
		log.SetOutput(io.Discard)
		log.SetLevel(logrus.PanicLevel)
		return log, nil
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	case "warn", "warning", "":
		log.SetLevel(logrus.WarnLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "trace":
		log.SetLevel(logrus.TraceLevel)
	default:
		return nil, fmt.Errorf("unknown log level %q (want one of %s)", level, strings.Join(Levels, ", "))
	}

	log.SetOutput(out)
	return log, nil
}
