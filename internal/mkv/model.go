// Package mkv implements the Matroska/WebM demuxer and the data model
// (Movie, Track, Packet) shared with the muxer in internal/mux: elements
// decoded by internal/ebml are assembled into Tracks and Packets on read.
// It knows nothing about how bytes reach it; internal/pipeline supplies
// that.
package mkv

import (
	"fmt"

	"github.com/Azunyan1111/mkvengine/internal/pool"
)

// CodecId identifies a track's codec. Tracks whose CodecID string does not
// match a known mapping are still emitted, as CodecUnknown, rather than
// dropped — a caller further down the pipeline may still want to know a
// track exists even if it cannot decode it.
type CodecId int

const (
	CodecUnknown CodecId = iota
	CodecH264
	CodecAac
	CodecWebVTT
	CodecAss
)

func (c CodecId) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecAac:
		return "aac"
	case CodecWebVTT:
		return "webvtt"
	case CodecAss:
		return "ass"
	default:
		return "unknown"
	}
}

// codecIdStrings maps a Matroska CodecID element string to a CodecId.
var codecIdStrings = map[string]CodecId{
	"V_MPEG4/ISO/AVC": CodecH264,
	"A_AAC":           CodecAac,
	"S_TEXT/WEBVTT":   CodecWebVTT,
	"S_TEXT/ASS":      CodecAss,
}

// mkvCodecIdStrings is the inverse mapping, used by the muxer.
var mkvCodecIdStrings = map[CodecId]string{
	CodecH264:   "V_MPEG4/ISO/AVC",
	CodecAac:    "A_AAC",
	CodecWebVTT: "S_TEXT/WEBVTT",
	CodecAss:    "S_TEXT/ASS",
}

func codecIdFromString(s string) CodecId {
	if c, ok := codecIdStrings[s]; ok {
		return c
	}
	return CodecUnknown
}

// MatroskaString returns c's Matroska CodecID string (the inverse of
// codecIdFromString), used by the muxer when writing a TrackEntry.
func (c CodecId) MatroskaString() (string, bool) {
	s, ok := mkvCodecIdStrings[c]
	return s, ok
}

// SoundType is the channel layout of an audio track, used only to pick a
// sensible default when a CodecPrivate blob does not encode it directly.
type SoundType int

const (
	SoundMono SoundType = iota
	SoundStereo
)

// Fraction is a timebase or frame-rate expressed as a ratio, matching how
// Matroska's TimestampScale and a codec's frame-rate are both naturally
// ratios rather than floats.
type Fraction struct {
	Numerator   uint32
	Denominator uint32
}

// NewFraction builds a Fraction, panicking on a zero denominator: a
// denominator of zero is always a programming error at every call site in
// this engine (it is never read from untrusted input directly).
func NewFraction(num, den uint32) Fraction {
	if den == 0 {
		panic("mkv: fraction with zero denominator")
	}
	return Fraction{Numerator: num, Denominator: den}
}

// VideoInfo describes a video track's dimensions and codec-specific data.
type VideoInfo struct {
	Width          int
	Height         int
	CodecPrivate   []byte
	BitstreamFraming string // "annexb" or "length-prefixed"; informational only
}

// AudioInfo describes an audio track's format.
type AudioInfo struct {
	SampleRate   uint32
	SampleBPP    uint32
	SoundType    SoundType
	CodecPrivate []byte
}

// SubtitleInfo describes a subtitle/caption track's format.
type SubtitleInfo struct {
	Header string // the ASS/SSA "[Script Info]"... header block, when present
}

// MediaKind discriminates which of VideoInfo/AudioInfo/SubtitleInfo a
// MediaInfo carries.
type MediaKind int

const (
	MediaKindUnknown MediaKind = iota
	MediaKindVideo
	MediaKindAudio
	MediaKindSubtitle
)

// MediaInfo is a track's codec and format description.
type MediaInfo struct {
	Codec    CodecId
	Kind     MediaKind
	Video    VideoInfo
	Audio    AudioInfo
	Subtitle SubtitleInfo
}

// Track is one elementary stream within a Movie.
type Track struct {
	ID       uint64
	Info     MediaInfo
	Timebase Fraction
}

// Attachment is a file embedded in the container (a font, cover art, or
// similar), carried by the Attachments master element.
type Attachment struct {
	UID      uint64
	Filename string
	MimeType string
	Data     []byte
}

// Movie is the demuxer's parsed header result: every track plus any
// attachments, before the first packet is read.
type Movie struct {
	Tracks      []Track
	Attachments []Attachment
	Duration    *MediaDuration
}

// TrackByID returns the track with the given ID, and whether it was found.
func (m Movie) TrackByID(id uint64) (Track, bool) {
	for _, t := range m.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

// MediaDuration is a duration expressed against a specific timebase.
type MediaDuration struct {
	Duration uint64
	Timebase Fraction
}

// MediaTime is a packet's presentation time, optional decode time, and
// optional duration, all expressed against the same timebase.
type MediaTime struct {
	PTS      uint64
	DTS      *uint64
	Duration *uint64
	Timebase Fraction
}

// InBase converts t's PTS into the given target timebase.
func (t MediaTime) InBase(target Fraction) uint64 {
	return convertTimebase(t.PTS, t.Timebase, target)
}

// Since returns t minus other's PTS, both converted to t's own timebase.
func (t MediaTime) Since(other MediaTime) int64 {
	otherPTS := convertTimebase(other.PTS, other.Timebase, t.Timebase)
	return int64(t.PTS) - int64(otherPTS)
}

// convertTimebase rescales a timestamp from one timebase to another:
// time * newDenominator / originalDenominator, matching the ratio
// convention where a Fraction's Denominator carries the "ticks per second"
// count (numerator is conventionally 1).
func convertTimebase(time uint64, original, target Fraction) uint64 {
	return time * uint64(target.Denominator) / uint64(original.Denominator)
}

// Packet is one demuxed (or about-to-be-muxed) access unit. Data is a
// zero-copy rope: a packet read from a Demuxer aliases the buffered
// reader's scratch memory until the pipeline realizes it into a pool
// buffer, and a packet built for a Muxer may alias the same pool memory a
// prior Demuxer realized it into, so remuxing a demuxed packet does not
// copy its bytes a second time.
type Packet struct {
	Time  MediaTime
	Track Track
	Key   bool
	Data  pool.Span
}

// wrappedErr wraps a detail string into an error carrying a fixed, comparable
// sentinel as its cause, matching how the rest of this engine distinguishes
// structural errors via errors.Is.
type wrappedErr struct {
	sentinel error
	detail   string
}

func (e *wrappedErr) Error() string { return fmt.Sprintf("%s: %s", e.sentinel, e.detail) }
func (e *wrappedErr) Unwrap() error { return e.sentinel }
