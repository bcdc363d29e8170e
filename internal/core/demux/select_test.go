package demux

import (
	"fmt"
	"testing"
)

func TestForContentType(t *testing.T) {
	cases := []struct {
		contentType string
		want        string
	}{
		{"video/mp2t", "*demux.MPEGTSDemuxer"},
		{"video/MP2T; codecs=\"avc1\"", "*demux.MPEGTSDemuxer"},
		{"application/ogg", "*demux.OggDemuxer"},
		{"audio/ogg", "*demux.OggDemuxer"},
		{"video/webm", "*demux.WebMDemuxer"},
		{"audio/mpeg", "demux.RawDemuxer"},
		{"", "demux.RawDemuxer"},
	}

	for _, c := range cases {
		got := ForContentType(c.contentType)
		gotType := fmt.Sprintf("%T", got)
		if gotType != c.want {
			t.Errorf("ForContentType(%q) = %s, want %s", c.contentType, gotType, c.want)
		}
	}
}
