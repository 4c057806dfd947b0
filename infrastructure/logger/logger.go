package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

const serviceName = "media-hub"

var logger = log.New()

func init() {
	logger.Out = os.Stdout
	// LOG_TO_FILE=true forces file logging; stdout plays better with
	// systemd/docker so it stays the default everywhere.
	if os.Getenv("LOG_TO_FILE") == "true" {
		if f, err := openLogFile(os.Getenv("ENV")); err != nil {
			log.Warnf("Failed to open log file: %v, falling back to stdout", err)
		} else {
			logger.Out = f
		}
	}

	logger.Formatter = &log.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	}
	logger.SetLevel(log.DebugLevel)
	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}
}

func openLogFile(env string) (*os.File, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	logsDir := filepath.Join(cwd, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s%s.log", time.Now().Format("2006-01-02"), env)
	return os.OpenFile(filepath.Join(logsDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
}

// GetLogger returns an entry stamped with the service name and the caller's
// location so log lines can be traced back to their origin.
func GetLogger() *log.Entry {
	pc, file, line, _ := runtime.Caller(1)
	return logger.WithFields(log.Fields{
		"service":  serviceName,
		"function": runtime.FuncForPC(pc).Name(),
		"file":     file,
		"line":     line,
	})
}
