package hls

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aminofox/swift-hls-kit/pkg/errors"
	"github.com/aminofox/swift-hls-kit/pkg/logger"
)

// Transform wraps a segment's raw concatenated frame bytes into a
// wire format (fMP4 via IsoBmffWriter, MPEG-TS via TsMuxer) before
// emission. Segmenter itself is agnostic to the wire format; the
// caller supplies transform at construction.
type Transform func(frames []EncodedFrame) ([]byte, error)

// SegmenterConfig is the closed set of construction-time options for a
// single-track Segmenter; all fields are frozen after construction.
type SegmenterConfig struct {
	TargetDuration       float64
	MaxDuration          float64 // default 1.5 * TargetDuration when zero
	RingBufferSize       int     // 0 = none, Unbounded = no eviction
	KeyframeAligned      bool    // true for video, false for audio
	StartIndex           int
	TrackProgramDateTime bool
	NamingPattern        string // e.g. "segment_%d.ts"
	Clock                Clock
	Transform            Transform
	Logger               logger.Logger // nil-safe; no logging when unset
}

func (c SegmenterConfig) effectiveMaxDuration() float64 {
	if c.MaxDuration > 0 {
		return c.MaxDuration
	}
	return 1.5 * c.TargetDuration
}

func (c SegmenterConfig) filename(index int) string {
	pattern := c.NamingPattern
	if pattern == "" {
		pattern = "segment_%d.ts"
	}
	return fmt.Sprintf(pattern, index)
}

// Segmenter is a single-writer actor-style state machine: it
// accumulates EncodedFrame values and cuts them into Segment records
// under duration constraints. All mutating operations execute under
// its exclusive lock; there is no internal concurrency. Emitted
// segments are published on Out, a channel buffered to 64 segments and
// closed exactly once by Finish; once the buffer is full, emitting a
// segment blocks until the consumer reads from Out.
type Segmenter struct {
	cfg      SegmenterConfig
	streamID string // uuid, correlates this instance's log lines
	mu       chan struct{} // 1-buffered channel used as a non-reentrant mutex

	currentFrames    []EncodedFrame
	currentDuration  float64
	currentTimestamp Timestamp
	currentStartDate time.Time
	hasStartDate     bool
	currentCodecs    map[Codec]struct{}

	nextIndex     int
	lastTimestamp Timestamp
	hasLast       bool
	finished      bool
	totalEmitted  int

	ring *RingBuffer
	out  chan *Segment
}

// NewSegmenter constructs a Segmenter from cfg. Out is pre-buffered so
// Ingest never blocks on a slow consumer in the common case; callers
// should still drain it promptly.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	s := &Segmenter{
		cfg:           cfg,
		streamID:      uuid.NewString(),
		mu:            make(chan struct{}, 1),
		currentCodecs: make(map[Codec]struct{}),
		nextIndex:     cfg.StartIndex,
		ring:          NewRingBuffer(cfg.RingBufferSize),
		out:           make(chan *Segment, 64),
	}
	s.mu <- struct{}{}
	return s
}

func (s *Segmenter) lock()   { <-s.mu }
func (s *Segmenter) unlock() { s.mu <- struct{}{} }

// Out is the stream of emitted segments. It is closed exactly once,
// by Finish.
func (s *Segmenter) Out() <-chan *Segment { return s.out }

// RingBuffer exposes the DVR retention window for lookup by index.
func (s *Segmenter) RingBuffer() *RingBuffer { return s.ring }

// TotalEmitted returns the number of segments emitted so far.
func (s *Segmenter) TotalEmitted() int {
	s.lock()
	defer s.unlock()
	return s.totalEmitted
}

// shouldCut reports whether frame is eligible to start a new segment:
// always true for duration-aligned tracks, or true for a video
// keyframe when keyframe-aligned.
func (s *Segmenter) shouldCut(frame EncodedFrame) bool {
	if !s.cfg.KeyframeAligned {
		return true
	}
	return frame.IsKeyframe && frame.Codec.IsVideo()
}

// Ingest appends frame to the current segment, cutting before or after
// the append per the target/max duration rules.
func (s *Segmenter) Ingest(frame EncodedFrame) error {
	s.lock()
	defer s.unlock()

	if s.finished {
		return errors.NotActive()
	}
	if s.hasLast && frame.Timestamp < s.lastTimestamp {
		err := errors.NonMonotonicTimestamp(fmt.Sprintf("frame timestamp %.6f precedes last timestamp %.6f", float64(frame.Timestamp), float64(s.lastTimestamp)))
		if s.cfg.Logger != nil {
			s.cfg.Logger.Warn("rejected frame", logger.StreamID(s.streamID), logger.ErrorCode(err), logger.Err(err))
		}
		return err
	}
	s.lastTimestamp = frame.Timestamp
	s.hasLast = true

	if len(s.currentFrames) == 0 {
		s.currentTimestamp = frame.Timestamp
		s.markStartDateLocked()
	}

	wouldExceedTarget := s.currentDuration+float64(frame.Duration) >= s.cfg.TargetDuration
	wouldExceedMax := s.currentDuration+float64(frame.Duration) >= s.cfg.effectiveMaxDuration()

	if wouldExceedTarget && s.shouldCut(frame) {
		if err := s.emitLocked(false, false); err != nil {
			return err
		}
		s.currentTimestamp = frame.Timestamp
		s.markStartDateLocked()
	} else if wouldExceedMax && len(s.currentFrames) > 0 {
		s.appendLocked(frame)
		return s.emitLocked(false, true)
	}

	s.appendLocked(frame)
	return nil
}

// markStartDateLocked captures wall-clock time for the segment that is
// about to start accumulating, at the moment its first frame is
// ingested rather than when the segment is later cut.
func (s *Segmenter) markStartDateLocked() {
	if !s.cfg.TrackProgramDateTime {
		return
	}
	s.currentStartDate = s.cfg.Clock.Now()
	s.hasStartDate = true
}

func (s *Segmenter) appendLocked(frame EncodedFrame) {
	s.currentFrames = append(s.currentFrames, frame)
	s.currentDuration += float64(frame.Duration)
	s.currentCodecs[frame.Codec] = struct{}{}
}

// ForceSegmentBoundary emits the current segment even if it has not
// reached target_duration. Fails NoFramesPending against an empty
// current segment.
func (s *Segmenter) ForceSegmentBoundary() error {
	s.lock()
	defer s.unlock()

	if s.finished {
		return errors.NotActive()
	}
	if len(s.currentFrames) == 0 {
		return errors.NoFramesPending()
	}
	return s.emitLocked(false, false)
}

// Finish idempotently flushes any pending frames as a final segment
// and closes Out. Calling Finish more than once is a no-op.
func (s *Segmenter) Finish() (*Segment, error) {
	s.lock()
	defer s.unlock()

	if s.finished {
		return nil, nil
	}
	s.finished = true

	var final *Segment
	if len(s.currentFrames) > 0 {
		var err error
		final, err = s.buildSegmentLocked(false, false)
		if err != nil {
			close(s.out)
			return nil, err
		}
		s.publishLocked(final)
	}
	close(s.out)
	return final, nil
}

// emitLocked builds and publishes the current segment, then resets
// accumulation state. isGap marks the emitted segment as a gap;
// forced marks a max-duration cut that fired without reaching a
// keyframe boundary, which always yields is_independent=false
// regardless of the first frame's own keyframe flag.
func (s *Segmenter) emitLocked(isGap, forced bool) error {
	seg, err := s.buildSegmentLocked(isGap, forced)
	if err != nil {
		return err
	}
	s.publishLocked(seg)
	return nil
}

func (s *Segmenter) buildSegmentLocked(isGap, forced bool) (*Segment, error) {
	var payload []byte
	if s.cfg.Transform != nil {
		var err error
		payload, err = s.cfg.Transform(s.currentFrames)
		if err != nil {
			return nil, err
		}
	} else {
		for _, f := range s.currentFrames {
			payload = append(payload, f.Data...)
		}
	}

	isIndependent := true
	if forced {
		isIndependent = false
	} else if len(s.currentFrames) > 0 {
		first := s.currentFrames[0]
		isIndependent = first.IsKeyframe || !first.Codec.IsVideo()
	}

	codecs := make(map[Codec]struct{}, len(s.currentCodecs))
	for c := range s.currentCodecs {
		codecs[c] = struct{}{}
	}

	seg := &Segment{
		Index:         s.nextIndex,
		Data:          payload,
		Duration:      s.currentDuration,
		Timestamp:     s.currentTimestamp,
		IsIndependent: isIndependent,
		IsGap:         isGap,
		Filename:      s.cfg.filename(s.nextIndex),
		FrameCount:    len(s.currentFrames),
		Codecs:        codecs,
	}

	if s.cfg.TrackProgramDateTime && s.hasStartDate {
		t := s.currentStartDate
		seg.ProgramDateTime = &t
	}

	return seg, nil
}

func (s *Segmenter) publishLocked(seg *Segment) {
	s.nextIndex++
	s.totalEmitted++
	s.ring.Append(seg)
	s.out <- seg

	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug("emitted segment",
			logger.StreamID(s.streamID),
			logger.SegmentIndex(seg.Index),
			logger.Field{Key: "duration", Value: seg.Duration},
			logger.Field{Key: "frame_count", Value: seg.FrameCount})
	}

	s.currentFrames = nil
	s.currentDuration = 0
	s.hasStartDate = false
	s.currentCodecs = make(map[Codec]struct{})
}
