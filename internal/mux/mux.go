// Package mux implements the Matroska/WebM muxer state machine: it tears a
// Movie and a stream of Packets back down into an EBML element tree and
// serializes that tree through a pool.Scratch, mirroring in reverse what
// internal/mkv's demuxer builds. Like the demuxer, it knows nothing about
// where its output bytes end up; internal/pipeline drives it against a
// concrete writer.
package mux

import (
	"encoding/binary"
	"fmt"

	"github.com/Azunyan1111/mkvengine/internal/ebml"
	"github.com/Azunyan1111/mkvengine/internal/mkv"
	"github.com/Azunyan1111/mkvengine/internal/pool"
	"github.com/google/uuid"
)

// Config tunes the muxer's output. Every field has a sensible zero-ish
// default applied by DefaultConfig; a caller who only cares about one knob
// can start from DefaultConfig() and override it.
type Config struct {
	// ClusterBlockLimit bounds how many SimpleBlocks a Cluster holds
	// before the next Write opens a fresh one. The Matroska spec leaves
	// this a quality-of-output knob; 30 is a conservative default shared
	// with many real-world muxers.
	ClusterBlockLimit int
	// WriteCues tracks one CuePoint per keyframe on the first video track
	// and emits a Cues master at Stop.
	WriteCues bool
	// WritingApp and MuxingApp populate Info's WritingApp/MuxingApp
	// string elements.
	WritingApp string
	MuxingApp  string
}

// DefaultConfig returns the muxer's default tuning.
func DefaultConfig() Config {
	return Config{
		ClusterBlockLimit: 30,
		WriteCues:         true,
		WritingApp:        "mkvengine",
		MuxingApp:         "mkvengine",
	}
}

// CuePoint is one entry the muxer has recorded for the trailing Cues
// master, naming a keyframe's presentation time and the byte offset
// (relative to the Segment's first content byte) of the Cluster that
// contains it.
type CuePoint struct {
	Time            uint64
	Track           uint64
	ClusterPosition uint64
}

// Muxer writes one Matroska stream per instance. Start must be called
// exactly once before any Write, and Stop exactly once after the last
// Write.
type Muxer struct {
	cfg Config

	started     bool
	cueTrack    uint64
	hasCueTrack bool
	clusterOpen bool
	clusterPTS  uint64
	clusterLen  int
	clusterOffset uint64

	// segmentDataOffset is how many bytes Start wrote before the Segment
	// element's own content begins (the EBMLHeader plus the Segment
	// element's ID/size bytes). Cue positions are relative to the
	// Segment's first content byte, not the stream's first byte, so a
	// caller translating a cumulative byte count into a CueClusterPosition
	// must subtract this.
	segmentDataOffset uint64

	cues []CuePoint
}

// SegmentDataOffset returns the number of bytes Start wrote before the
// Segment element's content began. Valid only after Start has returned
// successfully.
func (m *Muxer) SegmentDataOffset() uint64 {
	return m.segmentDataOffset
}

// NewMuxer returns a Muxer configured by cfg.
func NewMuxer(cfg Config) *Muxer {
	return &Muxer{cfg: cfg}
}

// Start writes the EBMLHeader, the Segment header (unknown length), Info,
// and Tracks, returning the exact bytes to emit. It must be called before
// any Write or Stop.
func (m *Muxer) Start(scratch *pool.Scratch, movie mkv.Movie) (pool.Span, error) {
	if m.started {
		return pool.Span{}, fmt.Errorf("mux: Start called twice")
	}

	ebmlHeader := ebml.Master(ebml.EBML,
		ebml.Leaf(ebml.EBMLVersion, ebml.EncodeUint(1)),
		ebml.Leaf(ebml.EBMLReadVersion, ebml.EncodeUint(1)),
		ebml.Leaf(ebml.EBMLMaxIDLength, ebml.EncodeUint(4)),
		ebml.Leaf(ebml.EBMLMaxSizeLength, ebml.EncodeUint(8)),
		ebml.Leaf(ebml.DocType, ebml.EncodeString("matroska")),
		ebml.Leaf(ebml.DocTypeVersion, ebml.EncodeUint(1)),
		ebml.Leaf(ebml.DocTypeReadVersion, ebml.EncodeUint(1)),
	)

	info := ebml.Master(ebml.Info,
		ebml.Leaf(ebml.TimestampScale, ebml.EncodeUint(1_000_000)),
		ebml.Leaf(ebml.WritingApp, ebml.EncodeString(m.cfg.WritingApp)),
		ebml.Leaf(ebml.MuxingApp, ebml.EncodeString(m.cfg.MuxingApp)),
	)

	tracks := ebml.Master(ebml.Tracks, buildTrackEntries(movie.Tracks)...)

	m.pickCueTrack(movie.Tracks)

	ebmlHeaderBytes := ebmlHeader.AppendTo(nil)
	segmentHeader := append(ebml.Segment.Encode(), ebml.UnknownLength(8).Encode()...)
	m.segmentDataOffset = uint64(len(ebmlHeaderBytes) + len(segmentHeader))

	return scratch.WriteSpan(func(w *pool.Scratch) error {
		if _, err := w.Write(ebmlHeaderBytes); err != nil {
			return err
		}
		if _, err := w.Write(segmentHeader); err != nil {
			return err
		}
		if _, err := w.Write(info.AppendTo(nil)); err != nil {
			return err
		}
		if _, err := w.Write(tracks.AppendTo(nil)); err != nil {
			return err
		}
		m.started = true
		return nil
	})
}

// pickCueTrack selects the first video track (or, absent one, the first
// track) as the one CuePoints are recorded against, matching the
// single-video-track-indexed Cues convention most Matroska muxers use.
func (m *Muxer) pickCueTrack(tracks []mkv.Track) {
	for _, t := range tracks {
		if t.Info.Kind == mkv.MediaKindVideo {
			m.cueTrack, m.hasCueTrack = t.ID, true
			return
		}
	}
	if len(tracks) > 0 {
		m.cueTrack, m.hasCueTrack = tracks[0].ID, true
	}
}

func buildTrackEntries(tracks []mkv.Track) []ebml.Element {
	entries := make([]ebml.Element, 0, len(tracks))
	for _, t := range tracks {
		entries = append(entries, buildTrackEntry(t))
	}
	return entries
}

func buildTrackEntry(t mkv.Track) ebml.Element {
	children := []ebml.Element{
		ebml.Leaf(ebml.TrackNumber, ebml.EncodeUint(t.ID)),
		ebml.Leaf(ebml.TrackUID, ebml.EncodeUint(trackUID(t.ID))),
		ebml.Leaf(ebml.TrackType, ebml.EncodeUint(trackTypeOf(t.Info.Kind))),
	}
	if codecIDStr, ok := t.Info.Codec.MatroskaString(); ok {
		children = append(children, ebml.Leaf(ebml.CodecID, ebml.EncodeString(codecIDStr)))
	}

	switch t.Info.Kind {
	case mkv.MediaKindVideo:
		if len(t.Info.Video.CodecPrivate) > 0 {
			children = append(children, ebml.Leaf(ebml.CodecPrivate, t.Info.Video.CodecPrivate))
		}
		children = append(children, ebml.Master(ebml.Video,
			ebml.Leaf(ebml.PixelWidth, ebml.EncodeUint(uint64(t.Info.Video.Width))),
			ebml.Leaf(ebml.PixelHeight, ebml.EncodeUint(uint64(t.Info.Video.Height))),
			ebml.Leaf(ebml.FlagInterlaced, ebml.EncodeUint(2)),
		))
	case mkv.MediaKindAudio:
		if len(t.Info.Audio.CodecPrivate) > 0 {
			children = append(children, ebml.Leaf(ebml.CodecPrivate, t.Info.Audio.CodecPrivate))
		}
		children = append(children, ebml.Master(ebml.Audio,
			ebml.Leaf(ebml.SamplingFrequency, ebml.EncodeFloat64(float64(t.Info.Audio.SampleRate))),
			ebml.Leaf(ebml.Channels, ebml.EncodeUint(channelCount(t.Info.Audio.SoundType))),
			ebml.Leaf(ebml.BitDepth, ebml.EncodeUint(uint64(t.Info.Audio.SampleBPP))),
		))
	case mkv.MediaKindSubtitle:
		if header := t.Info.Subtitle.Header; header != "" {
			children = append(children, ebml.Leaf(ebml.CodecPrivate, []byte(header)))
		}
	}

	return ebml.Master(ebml.TrackEntry, children...)
}

func channelCount(t mkv.SoundType) uint64 {
	if t == mkv.SoundStereo {
		return 2
	}
	return 1
}

func trackTypeOf(kind mkv.MediaKind) uint64 {
	switch kind {
	case mkv.MediaKindVideo:
		return ebml.TrackTypeVideo
	case mkv.MediaKindAudio:
		return ebml.TrackTypeAudio
	case mkv.MediaKindSubtitle:
		return ebml.TrackTypeSubtitle
	default:
		return ebml.TrackTypeVideo
	}
}

// trackUID derives a stable 64-bit TrackUID from the track's own number by
// feeding it through a UUIDv5 (namespace: the fixed UUID
// mkvengineNamespace) rather than minting a fresh random UUID per Start call, so that
// remuxing the same Movie repeatedly produces the same TrackUID — useful
// for tests and for callers that diff muxer output across runs.
func trackUID(trackID uint64) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], trackID)
	id := uuid.NewSHA1(mkvengineNamespace, buf[:])
	return binary.BigEndian.Uint64(id[:8])
}

var mkvengineNamespace = uuid.MustParse("6f9fae3b-0a38-4f7c-9d8e-2a6b9c7f1a20")
