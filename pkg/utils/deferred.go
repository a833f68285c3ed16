// Package utils holds small helpers shared by the CLI entrypoint.
package utils

import (
	"bytes"
	"io"
	"sync"
)

// DeferredWriter buffers log records while a full screen program owns the
// terminal, and replays them once it exits. Each Write is kept as one record
// so writers like zerolog.ConsoleWriter can parse them on Flush.
type DeferredWriter struct {
	mu      sync.Mutex
	records [][]byte
}

// Write stores a copy of p.
func (w *DeferredWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, bytes.Clone(p))
	return len(p), nil
}

// Len returns the number of buffered records.
func (w *DeferredWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

// Flush writes the buffered records to out, in order, and empties the buffer.
func (w *DeferredWriter) Flush(out io.Writer) error {
	w.mu.Lock()
	records := w.records
	w.records = nil
	w.mu.Unlock()

	for _, r := range records {
		if _, err := out.Write(r); err != nil {
			return err
		}
	}
	return nil
}
