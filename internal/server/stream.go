package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/camerabridge/internal/capture"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// errFrameReleased is returned when a frame's storage was freed before it
// could be encoded.
var errFrameReleased = errors.New("frame released")

// EncodeJPEG encodes the current contents of buf as a JPEG image.
func EncodeJPEG(buf *capture.FrameBuffer) ([]byte, error) {
	rgb := buf.Snapshot()
	if rgb == nil {
		return nil, errFrameReleased
	}

	mat, err := gocv.NewMatFromBytes(buf.Height(), buf.Width(), gocv.MatTypeCV8UC3, rgb)
	if err != nil {
		return nil, fmt.Errorf("wrap frame: %w", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBToBGR)

	encoded, err := gocv.IMEncode(".jpg", bgr)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer encoded.Close()

	out := make([]byte, encoded.Len())
	copy(out, encoded.GetBytes())
	return out, nil
}

// handleStream serves the FrameBuffer as MJPEG. A part is written only when
// the tick has converted a new frame since the last one.
func (s *Server) handleStream(c *gin.Context) {
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	w := c.Writer
	ticker := time.NewTicker(time.Second / time.Duration(s.config.StreamFPS))
	defer ticker.Stop()

	var lastID string
	var lastFrames uint64
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}

		buf := s.config.Bridge.Frame()
		if buf == nil {
			continue
		}
		frames := buf.Frames()
		if id := buf.ID().String(); id != lastID || frames != lastFrames {
			lastID, lastFrames = id, frames
		} else {
			continue
		}

		jpg, err := EncodeJPEG(buf)
		if err != nil {
			s.logger.Debug("stream frame skipped", zap.Error(err))
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpg))
		if _, err := w.Write(jpg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")
		w.Flush()
	}
}
