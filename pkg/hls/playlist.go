package hls

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aminofox/swift-hls-kit/pkg/crypto"
)

// PlaylistDecorator injects #EXT-X-KEY lines into an already-rendered
// media playlist at each rotation boundary, given the EncryptionPlan
// that produced the segments. It does not render playlists itself;
// the caller supplies the #EXTINF/URI text and this type only inserts
// key lines ahead of the right segments.
type PlaylistDecorator struct {
	plan *crypto.EncryptionPlan
}

// NewPlaylistDecorator builds a decorator bound to plan.
func NewPlaylistDecorator(plan *crypto.EncryptionPlan) *PlaylistDecorator {
	return &PlaylistDecorator{plan: plan}
}

// Decorate walks playlist line by line, inserting an #EXT-X-KEY tag
// immediately before the #EXTINF of the segment at each rotation
// boundary (startIndex 0 is always a boundary, so an encrypted
// playlist always opens with a key tag). segmentIndexOf maps the
// ordinal position of each #EXTINF line (0-based) to its segment's
// sequence index, letting callers pass a playlist whose first segment
// is not index 0 (e.g. after a DVR trim). method = NONE passes the
// input through unchanged.
func (d *PlaylistDecorator) Decorate(playlist string, segmentIndexOf func(ordinal int) int) string {
	if d.plan == nil || d.plan.Method == crypto.MethodNone {
		return playlist
	}

	var out strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(playlist))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ordinal := 0
	lastStart := -1
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#EXTINF:") {
			idx := segmentIndexOf(ordinal)
			start := d.plan.RotationPointForIndex(idx)
			if start != lastStart {
				out.WriteString(d.keyTag(idx))
				out.WriteByte('\n')
				lastStart = start
			}
			ordinal++
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.String()
}

// keyTag renders the #EXT-X-KEY line in effect for the segment at idx.
func (d *PlaylistDecorator) keyTag(idx int) string {
	attrs := []string{
		fmt.Sprintf("METHOD=%s", d.plan.Method),
		fmt.Sprintf("URI=%q", d.plan.KeyURI),
	}
	if d.plan.IV != nil {
		attrs = append(attrs, fmt.Sprintf("IV=0x%s", hex.EncodeToString(d.plan.IV)))
	}
	if d.plan.KeyFormat != "" {
		attrs = append(attrs, fmt.Sprintf("KEYFORMAT=%q", d.plan.KeyFormat))
	}
	if d.plan.KeyFormatVersions != "" {
		attrs = append(attrs, fmt.Sprintf("KEYFORMATVERSIONS=%q", d.plan.KeyFormatVersions))
	}
	return "#EXT-X-KEY:" + strings.Join(attrs, ",")
}

// RenderExtinf renders the standard #EXTINF + filename pair for seg,
// the minimal per-segment text a caller assembles into a full playlist
// before passing it through Decorate.
func RenderExtinf(seg *Segment) string {
	var b strings.Builder
	if seg.Discontinuity {
		b.WriteString("#EXT-X-DISCONTINUITY\n")
	}
	if seg.ProgramDateTime != nil {
		fmt.Fprintf(&b, "#EXT-X-PROGRAM-DATE-TIME:%s\n", seg.ProgramDateTime.Format("2006-01-02T15:04:05.000Z07:00"))
	}
	if seg.IsGap {
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n#EXT-X-GAP\n%s", seg.Duration, seg.Filename)
	} else {
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n%s", seg.Duration, seg.Filename)
	}
	return b.String()
}
