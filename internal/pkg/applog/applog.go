package applog

import (
	"os"
	"strings"

	"github.com/paymirror/paymirror/internal/pkg/env"
	"github.com/sirupsen/logrus"
)

var logg *logrus.Logger

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetOutput(os.Stdout)
	logg.SetLevel(logrus.InfoLevel)
}

// Setup re-reads the configured log level. Call after env is loaded.
func Setup() {
	switch strings.ToUpper(env.GetEnv("LOG_LEVEL", "INFO")) {
	case "DEBUG":
		logg.SetLevel(logrus.DebugLevel)
	case "WARN":
		logg.SetLevel(logrus.WarnLevel)
	case "ERROR":
		logg.SetLevel(logrus.ErrorLevel)
	default:
		logg.SetLevel(logrus.InfoLevel)
	}
}

func GetLogger() *logrus.Logger {
	return logg
}

// WithComponent returns an entry tagged with the originating component.
func WithComponent(name string) *logrus.Entry {
	return logg.WithField("component", name)
}
