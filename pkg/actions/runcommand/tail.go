package runcommand

import "sync"

// tailWriter keeps only the last maxBytes written to it, dropping the oldest
// data. It bounds memory no matter how chatty the subprocess is.
type tailWriter struct {
	mu       sync.Mutex
	buf      []byte
	maxBytes int
	dropped  bool
}

func newTailWriter(maxBytes int) *tailWriter {
	return &tailWriter{maxBytes: maxBytes}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	if len(w.buf) > w.maxBytes {
		w.buf = w.buf[len(w.buf)-w.maxBytes:]
		w.dropped = true
	}

	return len(p), nil
}

// String returns the captured tail, prefixed with a truncation marker when
// older output was dropped.
func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.dropped {
		return "...[truncated]...\n" + string(w.buf)
	}

	return string(w.buf)
}
