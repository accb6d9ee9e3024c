package servo

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Write is one angle command seen by a Recorder.
type Write struct {
	Channel int
	Angle   int
}

// Recorder is a Driver that keeps every write in memory instead of moving
// hardware. It backs dry runs and tests.
type Recorder struct {
	logger logrus.FieldLogger

	mu       sync.Mutex
	attached map[int]AttachConfig
	writes   []Write
	closed   bool
}

// NewRecorder returns an empty Recorder. A nil logger uses the standard logger.
func NewRecorder(logger logrus.FieldLogger) *Recorder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Recorder{
		logger:   logger.WithField("driver", "recorder"),
		attached: make(map[int]AttachConfig),
	}
}

func (r *Recorder) Attach(_ context.Context, channel int, cfg AttachConfig) (Servo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attached[channel]; ok {
		return nil, fmt.Errorf("attach channel %d: %w", channel, ErrChannelInUse)
	}
	r.attached[channel] = cfg.withDefaults()
	return &recordedServo{recorder: r, channel: channel}, nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Attached returns the configuration a channel was attached with.
func (r *Recorder) Attached(channel int) (AttachConfig, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.attached[channel]
	return cfg, ok
}

// Writes returns a copy of every write so far, in order.
func (r *Recorder) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write(nil), r.writes...)
}

// WritesTo returns the angles written to one channel, in order.
func (r *Recorder) WritesTo(channel int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var angles []int
	for _, w := range r.writes {
		if w.Channel == channel {
			angles = append(angles, w.Angle)
		}
	}
	return angles
}

// Last returns the last angle written to a channel.
func (r *Recorder) Last(channel int) (int, bool) {
	angles := r.WritesTo(channel)
	if len(angles) == 0 {
		return 0, false
	}
	return angles[len(angles)-1], true
}

// Reset forgets recorded writes but keeps attachments.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = nil
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type recordedServo struct {
	recorder *Recorder
	channel  int
}

func (s *recordedServo) Write(_ context.Context, angle int) error {
	r := s.recorder
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrNotAttached
	}
	r.writes = append(r.writes, Write{Channel: s.channel, Angle: angle})
	r.logger.WithFields(logrus.Fields{"channel": s.channel, "angle": angle}).Debug("write")
	return nil
}
