package utils

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"
)

var Log = logrus.New()

func SetLogLevel(level string) {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(log.DebugLevel)
	case "info":
		Log.SetLevel(log.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(log.WarnLevel)
	case "error":
		Log.SetLevel(log.ErrorLevel)
	case "fatal":
		Log.SetLevel(log.FatalLevel)
	default:
		log.Fatal("Bad error level string")
	}
}

// DateKey formats a time the way snapshot files and daily directories are
// named (2006_01_02).
func DateKey(t time.Time) string {
	return t.Format("2006_01_02")
}

// ParseDateKey accepts both the file form (2006_01_02) and the ISO form
// (2006-01-02) on CLI flags.
func ParseDateKey(s string) (time.Time, error) {
	return time.Parse("2006_01_02", strings.ReplaceAll(s, "-", "_"))
}
