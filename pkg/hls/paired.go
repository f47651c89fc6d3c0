package hls

import (
	"github.com/google/uuid"

	"github.com/aminofox/swift-hls-kit/pkg/errors"
	"github.com/aminofox/swift-hls-kit/pkg/logger"
)

// PairedSegmenterConfig configures a video/audio-synchronised
// PairedSegmenter. Audio is optional: a video-only stream omits
// AudioConfig entirely.
type PairedSegmenterConfig struct {
	VideoConfig SegmenterConfig
	AudioConfig *SegmenterConfig
	Logger      logger.Logger
}

// PairedSegmenter drives a keyframe-aligned video Segmenter and an
// optional duration-aligned audio Segmenter as one unit: every video
// cut forces a matching audio cut, so the two never drift apart by
// more than one pending frame.
type PairedSegmenter struct {
	pairID string
	video  *Segmenter
	audio  *Segmenter
	log    logger.Logger
	out    chan *SegmentOutput
	nextIx int
}

// NewPairedSegmenter constructs the video sub-segmenter (and the audio
// one, if AudioConfig is set) and wires them together.
func NewPairedSegmenter(cfg PairedSegmenterConfig) *PairedSegmenter {
	p := &PairedSegmenter{
		pairID: uuid.NewString(),
		video:  NewSegmenter(cfg.VideoConfig),
		log:    cfg.Logger,
		out:    make(chan *SegmentOutput, 64),
	}
	if cfg.AudioConfig != nil {
		audio := NewSegmenter(*cfg.AudioConfig)
		p.audio = audio
	}
	return p
}

// Out is the stream of paired segment outputs.
func (p *PairedSegmenter) Out() <-chan *SegmentOutput { return p.out }

// IngestVideo appends a video frame, rejecting non-video codecs. Each
// video cut it produces is mirrored by a forced audio cut (if an audio
// sub-segmenter is configured) before the pair is published.
func (p *PairedSegmenter) IngestVideo(frame EncodedFrame) error {
	if !frame.Codec.IsVideo() {
		return errors.InvalidConfiguration("ingest_video requires a video codec")
	}

	before := p.video.TotalEmitted()
	if err := p.video.Ingest(frame); err != nil {
		return err
	}
	if p.video.TotalEmitted() > before {
		return p.drainAndPublish()
	}
	return nil
}

// IngestAudio appends an audio frame, rejecting non-audio codecs and
// failing if no audio sub-segmenter was configured.
func (p *PairedSegmenter) IngestAudio(frame EncodedFrame) error {
	if p.audio == nil {
		return errors.InvalidConfiguration("no audio sub-segmenter configured")
	}
	if frame.Codec.IsVideo() {
		return errors.InvalidConfiguration("ingest_audio requires an audio codec")
	}
	return p.audio.Ingest(frame)
}

// drainAndPublish is called immediately after a video cut: it forces
// the audio side to cut in lockstep (swallowing NoFramesPending, which
// just means no audio arrived since the last boundary), pulls the
// newly emitted video segment off video.Out, and publishes the pair.
func (p *PairedSegmenter) drainAndPublish() error {
	var audioSeg *Segment
	if p.audio != nil {
		if err := p.audio.ForceSegmentBoundary(); err != nil && !errors.IsErrorCode(err, errors.CodeNoFramesPending) {
			if p.log != nil {
				p.log.Error("audio force-cut failed", logger.PairID(p.pairID), logger.ErrorCode(err), logger.Err(err))
			}
			return err
		}
		select {
		case seg := <-p.audio.Out():
			audioSeg = seg
		default:
		}
	}

	videoSeg := <-p.video.Out()

	out := &SegmentOutput{Index: p.nextIx, Video: videoSeg, Audio: audioSeg}
	p.nextIx++
	if p.log != nil {
		p.log.Debug("published paired segment",
			logger.PairID(p.pairID),
			logger.SegmentIndex(out.Index),
			logger.Field{Key: "video_duration", Value: videoSeg.Duration})
	}
	p.out <- out
	return nil
}

// Finish flushes both sub-segmenters and publishes a final pair if
// either produced trailing data. Idempotent: a second call returns nil.
func (p *PairedSegmenter) Finish() error {
	p.video.lock()
	alreadyFinished := p.video.finished
	p.video.unlock()
	if alreadyFinished {
		return nil
	}

	videoFinal, err := p.video.Finish()
	if err != nil {
		return err
	}

	var audioFinal *Segment
	if p.audio != nil {
		audioFinal, err = p.audio.Finish()
		if err != nil {
			return err
		}
	}

	if videoFinal != nil || audioFinal != nil {
		out := &SegmentOutput{Index: p.nextIx, Video: videoFinal, Audio: audioFinal}
		p.nextIx++
		p.out <- out
	}
	close(p.out)
	return nil
}

// VideoRingBuffer exposes the video sub-segmenter's DVR window.
func (p *PairedSegmenter) VideoRingBuffer() *RingBuffer { return p.video.RingBuffer() }

// AudioRingBuffer exposes the audio sub-segmenter's DVR window, or nil
// when no audio track is configured.
func (p *PairedSegmenter) AudioRingBuffer() *RingBuffer {
	if p.audio == nil {
		return nil
	}
	return p.audio.RingBuffer()
}
