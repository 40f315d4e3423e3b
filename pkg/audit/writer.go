package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// WriterLogger writes events as JSON lines prefixed with "AUDIT: ".
type WriterLogger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewWriterLogger creates a logger writing to w, or os.Stdout when w is nil.
func NewWriterLogger(w io.Writer) *WriterLogger {
	if w == nil {
		w = os.Stdout
	}
	return &WriterLogger{writer: w}
}

func (l *WriterLogger) Record(_ context.Context, evt Event) error {
	bytes, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(bytes, '\n')...))
	return err
}
