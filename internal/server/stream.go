package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// FrameSource supplies the latest preview JPEG.
type FrameSource interface {
	Watch() func()
	Next(ctx context.Context, after uint64) ([]byte, uint64, error)
}

// StreamHandler serves the camera preview as MJPEG.
type StreamHandler struct {
	source FrameSource
	log    *logrus.Entry
}

// NewStreamHandler creates a new StreamHandler reading from source.
func NewStreamHandler(source FrameSource, log *logrus.Entry) *StreamHandler {
	return &StreamHandler{source: source, log: log}
}

// ServeHTTP streams MJPEG frames until the client goes away. Only frames
// newer than the last one sent are written.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	release := h.source.Watch()
	defer release()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.log.WithField("remote", r.RemoteAddr).Debug("preview viewer connected")
	defer h.log.WithField("remote", r.RemoteAddr).Debug("preview viewer left")

	var seq uint64
	for {
		jpeg, next, err := h.source.Next(r.Context(), seq)
		if err != nil {
			return
		}
		seq = next

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
