package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ayusman/camrelay/internal/capture"
)

// FrameEncoder compresses a BGRA frame into a still image.
type FrameEncoder interface {
	Encode(f *capture.Frame) ([]byte, error)
}

// StreamHandler serves the preview as MJPEG.
type StreamHandler struct {
	preview *Preview
	encoder FrameEncoder
	logger  *slog.Logger
}

// NewStreamHandler creates a new StreamHandler over preview.
func NewStreamHandler(preview *Preview, encoder FrameEncoder, logger *slog.Logger) *StreamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandler{preview: preview, encoder: encoder, logger: logger}
}

// ServeHTTP streams each new preview frame until the client goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	var lastSeq uint64
	for {
		frame, next := h.preview.Latest()

		if frame != nil && frame.Seq != lastSeq {
			lastSeq = frame.Seq

			buf, err := h.encoder.Encode(frame)
			if err != nil {
				h.logger.Debug("Failed to encode preview frame", "seq", frame.Seq, "error", err)
			} else if err := writePart(w, buf); err != nil {
				return
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-next:
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
		return err
	}

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
