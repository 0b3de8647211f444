package utils

import (
	"io"
	"sync"
)

// FlushingWriter makes buffered prompt output visible immediately by flushing after every write.
type FlushingWriter struct {
	innerWriter io.Writer
	writeLock   sync.Mutex
}

// NewFlushingWriter wraps the provided writer; writers that already flush are returned unchanged.
func NewFlushingWriter(writer io.Writer) io.Writer {
	if writer == nil {
		return nil
	}
	if _, alreadyWrapped := writer.(*FlushingWriter); alreadyWrapped {
		return writer
	}
	return &FlushingWriter{innerWriter: writer}
}

// Write forwards to the wrapped writer and flushes it when the writer supports flushing.
func (flushingWriter *FlushingWriter) Write(data []byte) (int, error) {
	if flushingWriter == nil || flushingWriter.innerWriter == nil {
		return 0, nil
	}

	flushingWriter.writeLock.Lock()
	defer flushingWriter.writeLock.Unlock()

	bytesWritten, writeError := flushingWriter.innerWriter.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}

	if flushableWriter, implementsFlush := flushingWriter.innerWriter.(interface{ Flush() error }); implementsFlush {
		if flushError := flushableWriter.Flush(); flushError != nil {
			return bytesWritten, flushError
		}
	}

	return bytesWritten, nil
}
