package logger_test

import (
	"bytes"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gtixt/integrity-beacon/util/logger"
	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	logDir := t.TempDir()
	log, filename := logger.InitLogger(logDir, logging.INFO)
	require.NotNil(t, log)
	assert.Equal(t, filepath.Join(logDir, path.Base(os.Args[0])+".log"), filename)
	log.Info("pointer resolved")
	assert.FileExists(t, filename)
}

func TestDiscardLogger(t *testing.T) {
	log := logger.DiscardLogger("beacon_test")
	require.NotNil(t, log)
	log.Errorf("this goes %s", "nowhere")
}

func TestProgressLoggerPassesDataThrough(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 4096)
	log := logger.DiscardLogger("beacon_progress_test")
	reader := logger.NewProgressLogger(bytes.NewReader(data), log, "GET snapshot", int64(len(data)))
	copied, err := io.ReadAll(reader)
	require.Nil(t, err)
	assert.Equal(t, data, copied)
	assert.EqualValues(t, len(data), reader.BytesRead())
}

func TestProgressLoggerUnknownSize(t *testing.T) {
	log := logger.DiscardLogger("beacon_progress_test")
	reader := logger.NewProgressLogger(strings.NewReader("abc"), log, "GET snapshot", -1)
	copied, err := io.ReadAll(reader)
	require.Nil(t, err)
	assert.Equal(t, "abc", string(copied))
}
