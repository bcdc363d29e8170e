package demux

import "relaycast/internal/core/bus"

// RawDemuxer passes upstream bytes through untouched, one Feed call
// producing one Chunk. Every chunk is marked as a keyframe since a raw
// byte stream carries no recognizable frame boundaries a late
// subscriber could align to -- this is the "demuxer does not support
// keyframe alignment" case.
type RawDemuxer struct{}

// NewRawDemuxer creates a passthrough demuxer.
func NewRawDemuxer() RawDemuxer {
	return RawDemuxer{}
}

// Feed returns buf as a single keyframe-marked chunk, or nil for an
// empty buffer.
func (RawDemuxer) Feed(buf []byte) []bus.Chunk {
	if len(buf) == 0 {
		return nil
	}
	return []bus.Chunk{{
		Type:     bus.TypeAudio,
		Keyframe: true,
		Data:     append([]byte(nil), buf...),
	}}
}
