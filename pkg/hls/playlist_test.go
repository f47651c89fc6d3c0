package hls

import (
	"strconv"
	"strings"
	"testing"

	"github.com/aminofox/swift-hls-kit/pkg/crypto"
)

func buildPlaylist(n int) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n#EXT-X-MEDIA-SEQUENCE:0\n")
	for i := 0; i < n; i++ {
		b.WriteString("#EXTINF:6.000,\n")
		b.WriteString("segment_" + strconv.Itoa(i) + ".ts\n")
	}
	return b.String()
}

// S5: key rotation — 6 segments, rotation = 2, three distinct
// #EXT-X-KEY tags injected before segments 0, 2, 4.
func TestSeedS5KeyRotationInjectsThreeTags(t *testing.T) {
	plan, err := crypto.NewEncryptionPlan(crypto.EncryptionConfig{
		Method:           crypto.MethodAes128Cbc,
		Key:              make([]byte, 16),
		RotationInterval: 2,
		KeyURI:           "https://example.com/key",
	})
	if err != nil {
		t.Fatalf("NewEncryptionPlan: %v", err)
	}

	d := NewPlaylistDecorator(plan)
	out := d.Decorate(buildPlaylist(6), func(ordinal int) int { return ordinal })

	count := strings.Count(out, "#EXT-X-KEY:")
	if count != 3 {
		t.Fatalf("expected 3 #EXT-X-KEY tags, got %d:\n%s", count, out)
	}

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "#EXT-X-KEY:") {
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "#EXTINF:") {
				t.Fatalf("#EXT-X-KEY not immediately followed by #EXTINF at line %d", i)
			}
		}
	}
}

func TestPlaylistDecoratorPassthroughOnMethodNone(t *testing.T) {
	plan, err := crypto.NewEncryptionPlan(crypto.EncryptionConfig{Method: crypto.MethodNone})
	if err != nil {
		t.Fatalf("NewEncryptionPlan: %v", err)
	}
	d := NewPlaylistDecorator(plan)
	in := buildPlaylist(3)
	out := d.Decorate(in, func(ordinal int) int { return ordinal })
	if out != in {
		t.Fatal("MethodNone should pass the playlist through unchanged")
	}
}

func TestPlaylistDecoratorOmitsIVWhenSequenceDerived(t *testing.T) {
	plan, err := crypto.NewEncryptionPlan(crypto.EncryptionConfig{
		Method: crypto.MethodAes128Cbc,
		Key:    make([]byte, 16),
		KeyURI: "https://example.com/key",
	})
	if err != nil {
		t.Fatalf("NewEncryptionPlan: %v", err)
	}
	d := NewPlaylistDecorator(plan)
	out := d.Decorate(buildPlaylist(1), func(ordinal int) int { return ordinal })
	if strings.Contains(out, "IV=") {
		t.Fatalf("sequence-derived IV should be omitted from the tag:\n%s", out)
	}
}

func TestPlaylistDecoratorIncludesExplicitIV(t *testing.T) {
	iv := make([]byte, 16)
	iv[15] = 0x07
	plan, err := crypto.NewEncryptionPlan(crypto.EncryptionConfig{
		Method: crypto.MethodAes128Cbc,
		Key:    make([]byte, 16),
		IV:     iv,
		KeyURI: "https://example.com/key",
	})
	if err != nil {
		t.Fatalf("NewEncryptionPlan: %v", err)
	}
	d := NewPlaylistDecorator(plan)
	out := d.Decorate(buildPlaylist(1), func(ordinal int) int { return ordinal })
	if !strings.Contains(out, "IV=0x00000000000000000000000000000007") {
		t.Fatalf("expected explicit IV attribute:\n%s", out)
	}
}
