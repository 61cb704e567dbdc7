package mainboilerplate

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// LogConfig configures handling of application log events.
type LogConfig struct {
	Level  string `long:"level" env:"LEVEL" default:"info" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Logging level. Trace logs every produced price"`
	Format string `long:"format" env:"FORMAT" default:"text" choice:"json" choice:"text" choice:"color" description:"Logging output format"`
}

// InitLog configures the standard logger. Timestamps carry sub-second
// precision, as map updates of interest are often milliseconds apart.
func InitLog(cfg LogConfig) {
	switch cfg.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.StampMicro})
	case "color":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.StampMicro, ForceColors: true})
	}

	var lvl, err = log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithField("err", err).Fatal("unrecognized log level")
	}
	log.SetLevel(lvl)

	log.WithFields(log.Fields{
		"version":   Version,
		"buildDate": BuildDate,
		"level":     lvl.String(),
		"format":    cfg.Format,
	}).Debug("initialized logging")
}
