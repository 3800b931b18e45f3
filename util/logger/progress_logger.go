package logger

import (
	"io"

	"github.com/dustin/go-humanize"
	"github.com/op/go-logging"
)

// ProgressLogger wraps the body of a large download and logs how
// much of it has been read, trying not to be too verbose.
type ProgressLogger struct {
	reader         io.Reader
	logger         *logging.Logger
	totalBytes     int64
	fileSize       int64
	lastPctPrinted float64
	prefix         string
}

const _10MB = int64(10485760)
const _100MB = int64(104857600)
const _1GB = int64(1073741824)

// NewProgressLogger creates a new ProgressLogger. Param fileSize is
// the expected size from the Content-Length header. Pass -1 if the
// size is unknown; nothing is logged in that case.
func NewProgressLogger(reader io.Reader, logger *logging.Logger, prefix string, fileSize int64) *ProgressLogger {
	return &ProgressLogger{
		reader:   reader,
		logger:   logger,
		prefix:   prefix,
		fileSize: fileSize,
	}
}

// Read fulfills io.Reader, passing reads through to the underlying
// reader.
func (p *ProgressLogger) Read(buf []byte) (n int, err error) {
	n, err = p.reader.Read(buf)
	p.totalBytes += int64(n)
	if p.fileSize > 0 {
		pctComplete := (float64(p.totalBytes) / float64(p.fileSize)) * 100
		if p.shouldPrint(pctComplete) {
			p.logger.Infof("%s : %s of %s, %3.2f%% complete",
				p.prefix, humanize.Bytes(uint64(p.totalBytes)),
				humanize.Bytes(uint64(p.fileSize)), pctComplete)
			p.lastPctPrinted = pctComplete
		}
	}
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (p *ProgressLogger) BytesRead() int64 {
	return p.totalBytes
}

// shouldPrint returns true if the logger should print a message.
// Small snapshots download quickly, so we don't log them at all.
func (p *ProgressLogger) shouldPrint(pctComplete float64) bool {
	diff := pctComplete - p.lastPctPrinted
	if p.fileSize > _1GB {
		return diff >= 5.0
	}
	if p.fileSize > _100MB {
		return diff >= 20.0
	}
	if p.fileSize > _10MB {
		return diff >= 50.0
	}
	return false
}
