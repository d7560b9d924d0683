package app

import (
	"github.com/ayusman/camerabridge/internal/capture"
	"github.com/ayusman/camerabridge/internal/extension"
	"github.com/ayusman/camerabridge/internal/journal"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// recorder writes dispatched lifecycle messages to the journal. A session
// row spans STARTED to STOPPED and is keyed by the frame handle ID; the
// counters come from the STOPPED message itself. It runs on the engine tick
// only, so it needs no lock.
type recorder struct {
	journal *journal.Journal
	logger  *zap.Logger
	current string
}

func newRecorder(j *journal.Journal, logger *zap.Logger) *recorder {
	return &recorder{journal: j, logger: logger}
}

func (r *recorder) observe(st extension.Status) {
	if st.Message == capture.MessageStarted {
		id := st.BufferID.String()
		err := r.journal.Sessions().Begin(&journal.Session{
			ID:        id,
			Camera:    st.Info.Type.String(),
			Width:     st.Info.Width,
			Height:    st.Info.Height,
			StartedAt: st.Time,
		})
		if err != nil {
			r.logger.Error("journal begin session", zap.String("session", id), zap.Error(err))
		} else {
			r.current = id
		}
	}

	sessionID := r.current
	if st.BufferID != uuid.Nil {
		sessionID = st.BufferID.String()
	}
	if err := r.journal.Events().Append(&journal.Event{
		SessionID: sessionID,
		Message:   st.Message.String(),
		CreatedAt: st.Time,
	}); err != nil {
		r.logger.Error("journal append event", zap.Stringer("message", st.Message), zap.Error(err))
	}

	if st.Message == capture.MessageStopped && sessionID != "" {
		s := st.Stats
		err := r.journal.Sessions().Finish(sessionID, journal.Counters{
			Delivered: s.Delivered,
			Dropped:   s.Dropped,
			Converted: s.Converted,
			Faults:    s.Faults,
		})
		if err != nil {
			r.logger.Error("journal finish session", zap.String("session", sessionID), zap.Error(err))
		}
		if sessionID == r.current {
			r.current = ""
		}
	}
}
