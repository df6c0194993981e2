// Package rtpingest depacketizes H.264-over-RTP (RFC 6184) into NAL unit
// spans and assembles them into mkv.Packets suitable for mux.Muxer.Write.
// It is this repository's concrete instance of the "async I/O adapter ...
// glue" the core engine treats as an external collaborator: live RTP has no
// analogue of Matroska's length-prefixed block framing, so something has to
// sit between a *rtp.Packet stream and the container muxer.
package rtpingest

import (
	"fmt"

	"github.com/pion/rtp"

	"github.com/Azunyan1111/mkvengine/internal/mkv"
	"github.com/Azunyan1111/mkvengine/internal/nal"
	"github.com/Azunyan1111/mkvengine/internal/pool"
)

// RTP NAL unit type octet values per RFC 6184 §5.2.
const (
	nalTypeSTAPA = 24
	nalTypeFUA   = 28
)

// ClockRateH264 is the RTP clock rate RFC 6184 mandates for H.264: 90kHz,
// regardless of the stream's actual frame rate.
const ClockRateH264 = 90000

// Reassembler turns a sequence of H.264 RTP packets into complete NAL
// units. It is narrowed to H.264 only (VP8/VP9/Opus RTP depacketization has
// no container-engine collaborator in this repository to hand frames to)
// and returns pool.Span instead of a raw [][]byte so its output composes
// directly with internal/nal's framer without a further copy.
type Reassembler struct {
	fragment []byte
}

// Push feeds one RTP packet. It returns the complete NAL units the packet
// contributed (zero for a non-terminal FU-A fragment, one for a single-NAL
// or FU-A-terminating packet, possibly several for a STAP-A aggregate) and
// whether packet.Marker closed the current access unit.
func (r *Reassembler) Push(packet *rtp.Packet) ([]pool.Span, bool, error) {
	if packet == nil || len(packet.Payload) == 0 {
		return nil, false, nil
	}
	payload := packet.Payload
	nalType := payload[0] & 0x1F

	var units []pool.Span
	switch {
	case nalType >= 1 && nalType <= 23:
		units = append(units, pool.Owned(cloneBytes(payload)))
	case nalType == nalTypeSTAPA:
		aggregated, err := splitSTAPA(payload)
		if err != nil {
			return nil, false, err
		}
		units = append(units, aggregated...)
	case nalType == nalTypeFUA:
		if complete := r.pushFUA(payload); complete != nil {
			units = append(units, pool.Owned(complete))
		}
	default:
		return nil, false, fmt.Errorf("rtpingest: unsupported H.264 RTP NAL type %d", nalType)
	}
	return units, packet.Marker, nil
}

// pushFUA accumulates one FU-A fragmentation-unit packet, returning the
// reassembled NAL bytes once the terminal fragment (FU header end bit) has
// arrived, or nil while more fragments are still expected.
func (r *Reassembler) pushFUA(payload []byte) []byte {
	if len(payload) < 2 {
		return nil
	}
	indicator := payload[0]
	header := payload[1]
	isStart := header&0x80 != 0
	isEnd := header&0x40 != 0

	if isStart {
		nalHeader := (indicator & 0xE0) | (header & 0x1F)
		r.fragment = append([]byte{nalHeader}, payload[2:]...)
	} else if r.fragment != nil {
		r.fragment = append(r.fragment, payload[2:]...)
	}

	if isEnd && r.fragment != nil {
		complete := r.fragment
		r.fragment = nil
		return complete
	}
	return nil
}

// splitSTAPA splits a STAP-A aggregation packet into its constituent NAL
// units. Each aggregated unit already carries its own NAL header byte, so
// no header reconstruction is needed (unlike FU-A).
func splitSTAPA(payload []byte) ([]pool.Span, error) {
	var units []pool.Span
	offset := 1
	for offset+2 <= len(payload) {
		size := int(payload[offset])<<8 | int(payload[offset+1])
		offset += 2
		if offset+size > len(payload) {
			return nil, fmt.Errorf("rtpingest: STAP-A aggregated NAL size overruns packet")
		}
		units = append(units, pool.Owned(cloneBytes(payload[offset:offset+size])))
		offset += size
	}
	return units, nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Track returns a synthetic mkv.Track describing an RTP-ingested H.264
// stream: RTP itself carries no Matroska TrackNumber/TrackUID, CodecID, or
// CodecPrivate, so a caller wiring a live stream into the muxer supplies
// them once up front (typically parsed from the stream's SDP or from its
// first in-band SPS/PPS via internal/nal's codec-info extraction).
func Track(id uint64, width, height int, codecPrivate []byte) mkv.Track {
	return mkv.Track{
		ID: id,
		Info: mkv.MediaInfo{
			Codec: mkv.CodecH264,
			Kind:  mkv.MediaKindVideo,
			Video: mkv.VideoInfo{
				Width:            width,
				Height:           height,
				CodecPrivate:     codecPrivate,
				BitstreamFraming: "length-prefixed",
			},
		},
		Timebase: mkv.NewFraction(1, ClockRateH264),
	}
}

// Session accumulates RTP packets for one H.264 track into mkv.Packets.
// Each access unit's NAL units are framed as a single four-byte
// length-prefixed run, matching the framing Matroska expects for in-band
// H.264 samples.
type Session struct {
	track       mkv.Track
	reassembler Reassembler
	pending     []pool.Span
	firstTS     uint32
	haveFirstTS bool
}

// NewSession returns a Session that assembles packets for track.
func NewSession(track mkv.Track) *Session {
	return &Session{track: track}
}

// Push feeds one RTP packet. When packet.Marker closes the current access
// unit and at least one NAL unit has been accumulated, it returns the
// assembled Packet and ok=true; otherwise ok is false and the caller should
// keep feeding packets.
func (s *Session) Push(packet *rtp.Packet) (pkt mkv.Packet, ok bool, err error) {
	units, boundary, err := s.reassembler.Push(packet)
	if err != nil {
		return mkv.Packet{}, false, err
	}
	s.pending = append(s.pending, units...)
	if !boundary || len(s.pending) == 0 {
		return mkv.Packet{}, false, nil
	}

	if !s.haveFirstTS {
		s.firstTS = packet.Timestamp
		s.haveFirstTS = true
	}
	pts := uint64(packet.Timestamp - s.firstTS)
	key := isKeyFrameAccessUnit(s.pending)
	body := nal.FrameNALUnits(s.pending, nal.FourByteLength)
	s.pending = nil

	return mkv.Packet{
		Time:  mkv.MediaTime{PTS: pts, Timebase: s.track.Timebase},
		Track: s.track,
		Key:   key,
		Data:  body,
	}, true, nil
}

// isKeyFrameAccessUnit reports whether any NAL unit in the access unit is
// an IDR slice (type 5), the standard H.264 keyframe marker.
func isKeyFrameAccessUnit(units []pool.Span) bool {
	for _, u := range units {
		b := u.ToContiguous()
		if len(b) > 0 && b[0]&0x1F == 5 {
			return true
		}
	}
	return false
}
