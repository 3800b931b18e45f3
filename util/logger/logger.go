package logger

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path"
	"path/filepath"

	"github.com/op/go-logging"
)

/*
InitLogger creates and returns a logger suitable for logging
human-readable message. Also returns the path to the log file.
*/
func InitLogger(logDir string, logLevel logging.Level) (*logging.Logger, string) {
	processName := path.Base(os.Args[0])
	filename := fmt.Sprintf("%s.log", processName)
	filename = filepath.Join(logDir, filename)
	writer, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open log file '%s': %v\n", filename, err)
		os.Exit(1)
	}
	log := logging.MustGetLogger(processName)
	format := logging.MustStringFormatter("[%{level}] %{message}")
	logging.SetFormatter(format)
	logging.SetLevel(logLevel, processName)
	logBackend := logging.NewLogBackend(writer, "", stdlog.LstdFlags|stdlog.LUTC)
	logging.SetBackend(logBackend)
	return log, filename
}

// StderrLogger returns a logger that writes to stderr. The one-shot
// verify command uses this so results show up in the terminal.
func StderrLogger(module string, logLevel logging.Level) *logging.Logger {
	return writerLogger(module, os.Stderr, logLevel)
}

// DiscardLogger returns a logger that writes nowhere. Use this in
// tests.
func DiscardLogger(module string) *logging.Logger {
	return writerLogger(module, io.Discard, logging.DEBUG)
}

func writerLogger(module string, writer io.Writer, logLevel logging.Level) *logging.Logger {
	log := logging.MustGetLogger(module)
	format := logging.MustStringFormatter("[%{level}] %{message}")
	backend := logging.NewBackendFormatter(logging.NewLogBackend(writer, "", 0), format)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(logLevel, module)
	log.SetBackend(leveled)
	return log
}
