package demux

import (
	"bytes"
	"encoding/binary"

	"relaycast/internal/core/bus"
)

var oggCapturePattern = []byte("OggS")

const oggHeaderMinSize = 27

// OggDemuxer frames raw bytes into whole Ogg pages on the "OggS"
// capture pattern. A page is marked as a keyframe boundary when its
// header_type_flags carries the beginning-of-stream bit, or when its
// granule position is lower than the previous page's (a discontinuity
// -- typically a stream restart or chained logical bitstream).
type OggDemuxer struct {
	carry       []byte
	lastGranule int64
	sawFirst    bool
}

// NewOggDemuxer creates an Ogg page demuxer.
func NewOggDemuxer() *OggDemuxer {
	return &OggDemuxer{}
}

// Feed appends buf to any carried partial page and emits one Chunk per
// complete page found.
func (d *OggDemuxer) Feed(buf []byte) []bus.Chunk {
	data := buf
	if len(d.carry) > 0 {
		data = append(d.carry, buf...)
		d.carry = nil
	}

	var chunks []bus.Chunk
	offset := 0
	for {
		idx := bytes.Index(data[offset:], oggCapturePattern)
		if idx < 0 {
			break
		}
		start := offset + idx
		if len(data)-start < oggHeaderMinSize {
			break
		}

		headerType := data[start+5]
		granule := int64(binary.LittleEndian.Uint64(data[start+6 : start+14]))
		numSegments := int(data[start+26])
		if len(data)-start < oggHeaderMinSize+numSegments {
			break
		}
		segmentTable := data[start+oggHeaderMinSize : start+oggHeaderMinSize+numSegments]

		payloadLen := 0
		for _, segLen := range segmentTable {
			payloadLen += int(segLen)
		}
		pageLen := oggHeaderMinSize + numSegments + payloadLen
		if len(data)-start < pageLen {
			break
		}

		page := data[start : start+pageLen]
		keyframe := headerType&0x02 != 0
		if d.sawFirst && granule < d.lastGranule {
			keyframe = true
		}
		d.sawFirst = true
		d.lastGranule = granule

		chunks = append(chunks, bus.Chunk{
			Type:     bus.TypeAudio,
			Keyframe: keyframe,
			Data:     append([]byte(nil), page...),
		})
		offset = start + pageLen
	}

	if offset < len(data) {
		d.carry = append(d.carry, data[offset:]...)
	}
	return chunks
}
