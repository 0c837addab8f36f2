// Package logger builds the run logger: logrus teed to stdout and the
// operator's log file, so the file carries the full run trace.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout and, when logFile is non-empty, to
// that file as well. The caller closes the returned Closer when done; it is
// a no-op for stdout-only loggers.
func New(logFile string) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	log.SetLevel(logrus.InfoLevel)

	if logFile == "" {
		log.SetOutput(os.Stdout)
		return log, nopCloser{}, nil
	}

	f, err := os.Create(logFile)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	fmt.Fprintf(f, "Log started: %s\n", time.Now().UTC().Format(time.RFC3339))
	log.SetOutput(io.MultiWriter(os.Stdout, f))
	return log, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
