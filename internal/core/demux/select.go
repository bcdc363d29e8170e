package demux

import (
	"strings"

	"relaycast/internal/core/bus"
)

// ForContentType selects a Demuxer from an HTTP Content-Type (or a
// relay/mount config's configured content type), used by the HTTP
// relay's response handling and by push-publish ingress (spec §4.4,
// §4.6) to agree on one content-type-to-demuxer mapping regardless of
// which path created the Publisher. Unrecognized or absent content
// types fall back to RawDemuxer.
func ForContentType(contentType string) bus.Demuxer {
	ct := strings.ToLower(contentType)
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	ct = strings.TrimSpace(ct)

	switch {
	case strings.Contains(ct, "mp2t") || strings.Contains(ct, "mpegts"):
		return NewMPEGTSDemuxer()
	case strings.Contains(ct, "ogg"):
		return NewOggDemuxer()
	case strings.Contains(ct, "webm"):
		return NewWebMDemuxer()
	default:
		return NewRawDemuxer()
	}
}
