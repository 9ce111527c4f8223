package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/tellopilot/internal/capture"
)

const (
	framePeriod = 66 * time.Millisecond // ~15 FPS
	idlePeriod  = 100 * time.Millisecond
)

// StreamHandler serves MJPEG frames from a frame source, normally the
// pilot's annotated preview.
type StreamHandler struct {
	frames capture.Source
}

// NewStreamHandler creates a new StreamHandler over frames.
func NewStreamHandler(frames capture.Source) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP streams MJPEG frames until the client goes away or the
// source is closed.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		wait := framePeriod
		if err := h.writeFrame(w); err != nil {
			if errors.Is(err, capture.ErrClosed) {
				return
			}
			wait = idlePeriod
		}

		select {
		case <-r.Context().Done():
			return
		case <-time.After(wait):
		}
	}
}

func (h *StreamHandler) writeFrame(w http.ResponseWriter) error {
	frame, err := h.frames.ReadFrame()
	if err != nil {
		return err
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	frame.Close()
	if err != nil {
		return err
	}
	defer buf.Close()

	fmt.Fprintf(w, "--frame\r\n")
	fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
	fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", buf.Len())
	w.Write(buf.GetBytes())
	fmt.Fprintf(w, "\r\n")

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
