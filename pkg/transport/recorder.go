package transport

import "net/http"

// StatusRecorder wraps a ResponseWriter and remembers the status code and
// body size of the response. A handler that never calls WriteHeader is
// recorded as 200.
type StatusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

// NewStatusRecorder wraps w. If w is already a StatusRecorder it is
// returned as is, so stacked middleware share one recorder.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	if rec, ok := w.(*StatusRecorder); ok {
		return rec
	}
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

// Status returns the recorded status code.
func (w *StatusRecorder) Status() int { return w.status }

// BytesWritten returns the number of body bytes written.
func (w *StatusRecorder) BytesWritten() int { return w.bytes }

func (w *StatusRecorder) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *StatusRecorder) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *StatusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
