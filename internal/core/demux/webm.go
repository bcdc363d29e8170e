package demux

import (
	"bytes"

	"relaycast/internal/core/bus"
)

// webmClusterID is the 4-byte EBML element ID for a Matroska/WebM
// Cluster, marker bits included.
var webmClusterID = []byte{0x1F, 0x43, 0xB6, 0x75}

const webmSimpleBlockID = 0xA3

// WebMDemuxer frames raw bytes on EBML Cluster element boundaries.
// Keyframe status is read from the flags byte of the first SimpleBlock
// found inside the cluster (bit 0x80). This is a simplification of
// full EBML parsing: it does not track element trees below Cluster,
// so a BlockGroup-wrapped Block (rather than a bare SimpleBlock) is
// not inspected and the cluster falls back to non-keyframe unless it
// is the very first cluster seen.
type WebMDemuxer struct {
	carry    []byte
	sawFirst bool
}

// NewWebMDemuxer creates a WebM/Matroska cluster demuxer.
func NewWebMDemuxer() *WebMDemuxer {
	return &WebMDemuxer{}
}

// Feed appends buf to any carried partial cluster and emits one Chunk
// per complete cluster found. Bytes preceding the first cluster
// (EBML header, Segment/Info/Tracks elements) are held back until a
// cluster boundary makes their length determinable, then emitted
// together with the first cluster as a single leading chunk.
func (d *WebMDemuxer) Feed(buf []byte) []bus.Chunk {
	data := buf
	if len(d.carry) > 0 {
		data = append(d.carry, buf...)
		d.carry = nil
	}

	var chunks []bus.Chunk
	offset := 0
	for {
		idx := bytes.Index(data[offset:], webmClusterID)
		if idx < 0 {
			break
		}
		clusterStart := offset + idx

		// Find the next cluster to bound this one's length; if there
		// isn't one yet, wait for more data.
		nextIdx := bytes.Index(data[clusterStart+len(webmClusterID):], webmClusterID)
		if nextIdx < 0 {
			break
		}
		clusterEnd := clusterStart + len(webmClusterID) + nextIdx

		chunkStart := offset
		body := data[clusterStart:clusterEnd]
		keyframe := !d.sawFirst || hasKeyframeSimpleBlock(body)
		d.sawFirst = true

		chunks = append(chunks, bus.Chunk{
			Type:     bus.TypeVideo,
			Keyframe: keyframe,
			Data:     append([]byte(nil), data[chunkStart:clusterEnd]...),
		})
		offset = clusterEnd
	}

	if offset < len(data) {
		d.carry = append(d.carry, data[offset:]...)
	}
	return chunks
}

func hasKeyframeSimpleBlock(cluster []byte) bool {
	for i := 0; i+4 < len(cluster); i++ {
		if cluster[i] != webmSimpleBlockID {
			continue
		}
		size, n, ok := readEBMLVint(cluster[i+1:])
		if !ok || size < 3 {
			continue
		}
		content := cluster[i+1+n:]
		_, trackLen, ok := readEBMLVint(content)
		if !ok || trackLen+3 > len(content) {
			continue
		}
		flags := content[trackLen+2]
		return flags&0x80 != 0
	}
	return false
}

// readEBMLVint reads an EBML variable-length integer (used for both
// element IDs and element sizes; the marker bit in the leading byte
// gives the encoded length) and returns its value with the marker bit
// stripped, the number of bytes consumed, and whether the read
// succeeded.
func readEBMLVint(b []byte) (value uint64, length int, ok bool) {
	if len(b) == 0 {
		return 0, 0, false
	}
	first := b[0]
	length = 1
	mask := byte(0x80)
	for mask != 0 && first&mask == 0 {
		mask >>= 1
		length++
	}
	if length > 8 || len(b) < length {
		return 0, 0, false
	}
	value = uint64(first &^ mask)
	for i := 1; i < length; i++ {
		value = value<<8 | uint64(b[i])
	}
	return value, length, true
}
