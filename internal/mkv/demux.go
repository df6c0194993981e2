package mkv

import (
	"errors"
	"fmt"

	"github.com/Azunyan1111/mkvengine/internal/bufreader"
	"github.com/Azunyan1111/mkvengine/internal/ebml"
	"github.com/Azunyan1111/mkvengine/internal/logging"
	"github.com/Azunyan1111/mkvengine/internal/pool"
	"github.com/Azunyan1111/mkvengine/internal/stepio"
)

type demuxState int

const (
	stateLookingForEbmlHeader demuxState = iota
	stateLookingForSegment
	stateParseUntilFirstCluster
	stateParseClusters
)

// Demuxer incrementally parses a Matroska/WebM byte stream into a Movie
// (via ReadHeaders) and then a sequence of Packets (via ReadPacket). It
// drives its own retry loop against the bufreader.Reader it's handed: a
// partially-buffered element causes it to grow the buffer and read more,
// never returning control to the caller mid-element. What reaches the
// caller is an I/O error, io.EOF, or a structural error
// (ErrUnexpectedElement, ErrMissingRequiredElement, or an EBML decode
// error); a need-more-bytes condition never does.
type Demuxer struct {
	state            demuxState
	movie            Movie
	timebase         Fraction
	currentClusterTS uint64
	pending          []Packet
}

// NewDemuxer returns a Demuxer ready to read from the start of a stream.
func NewDemuxer() *Demuxer {
	return &Demuxer{timebase: NewFraction(1, 1000)}
}

// ReadHeaders parses the EBML header, locates the Segment, and parses
// every Info/Tracks element up to (but not including) the first Cluster,
// returning the assembled Movie. It must be called exactly once, before
// any ReadPacket call.
func (d *Demuxer) ReadHeaders(r *bufreader.Reader) (Movie, error) {
	for {
		switch d.state {
		case stateLookingForEbmlHeader:
			if err := d.readEbmlHeader(r); err != nil {
				return Movie{}, err
			}
			d.state = stateLookingForSegment
		case stateLookingForSegment:
			if err := d.readUntilSegment(r); err != nil {
				return Movie{}, err
			}
			d.state = stateParseUntilFirstCluster
		case stateParseUntilFirstCluster:
			done, err := d.parseUntilFirstCluster(r)
			if err != nil {
				return Movie{}, err
			}
			if done {
				d.state = stateParseClusters
				return d.movie, nil
			}
		default:
			return Movie{}, errors.New("mkv: ReadHeaders called after headers were already read")
		}
	}
}

// ReadPacket returns the next packet in the order its block appears in the
// container (no reordering by timestamp), or io.EOF at the end of the
// stream. ReadHeaders must have completed first. The returned Packet's Data
// aliases r's buffer and is valid only until the next call that reads
// from r.
func (d *Demuxer) ReadPacket(r *bufreader.Reader) (Packet, error) {
	if d.state != stateParseClusters {
		return Packet{}, errors.New("mkv: ReadPacket called before ReadHeaders completed")
	}

	for {
		if len(d.pending) > 0 {
			pkt := d.pending[0]
			d.pending = d.pending[1:]
			return pkt, nil
		}

		h, hw, err := peekHeader(r)
		if err != nil {
			return Packet{}, err
		}

		switch h.ID {
		case ebml.Cluster:
			r.Consume(hw)
		case ebml.Timestamp:
			total, err := boundedElement(r, hw, h)
			if err != nil {
				return Packet{}, err
			}
			d.currentClusterTS = ebml.DecodeUint(r.Data()[hw:total])
			r.Consume(total)
		case ebml.SimpleBlock:
			total, err := boundedElement(r, hw, h)
			if err != nil {
				return Packet{}, err
			}
			body := r.Data()[hw:total]
			r.Consume(total)
			if err := d.emitBlock(body, nil); err != nil {
				return Packet{}, err
			}
		case ebml.BlockGroup:
			total, err := boundedElement(r, hw, h)
			if err != nil {
				return Packet{}, err
			}
			group := r.Data()[hw:total]
			r.Consume(total)
			if err := d.emitBlockGroup(group); err != nil {
				return Packet{}, err
			}
		default:
			if h.Length.IsUnknown() {
				return Packet{}, unexpected(fmt.Sprintf("unexpected unknown-length element 0x%X in cluster", uint32(h.ID)))
			}
			if err := skipElement(r, h, hw); err != nil {
				return Packet{}, err
			}
		}
	}
}

func (d *Demuxer) emitBlockGroup(group []byte) error {
	var blockBody []byte
	var duration *uint64

	err := ebml.WalkChildren(group, func(c ebml.Child) error {
		switch c.Header.ID {
		case ebml.Block:
			blockBody = c.Body
		case ebml.BlockDuration:
			v := ebml.DecodeUint(c.Body)
			duration = &v
		}
		return nil
	})
	if err != nil {
		return err
	}
	if blockBody == nil {
		return nil
	}
	return d.emitBlock(blockBody, duration)
}

func (d *Demuxer) emitBlock(body []byte, duration *uint64) error {
	block, err := decodeBlock(body)
	if err != nil {
		return err
	}
	track, ok := d.movie.TrackByID(block.trackNumber)
	if !ok {
		return nil
	}

	pts := d.currentClusterTS
	rel := int64(block.relativeTS)
	if rel >= 0 {
		pts += uint64(rel)
	} else if uint64(-rel) <= pts {
		pts -= uint64(-rel)
	} else {
		pts = 0
	}

	var perFrameDuration *uint64
	if duration != nil && len(block.frames) > 0 {
		per := *duration / uint64(len(block.frames))
		perFrameDuration = &per
	}

	for _, frame := range block.frames {
		d.pending = append(d.pending, Packet{
			Time: MediaTime{
				PTS:      pts,
				Duration: perFrameDuration,
				Timebase: track.Timebase,
			},
			Track: track,
			Key:   block.keyframe,
			Data:  pool.Borrowed(frame),
		})
	}
	return nil
}

// boundedElement ensures an element's full (header+body) bytes are
// buffered and returns the total byte count.
func boundedElement(r *bufreader.Reader, hw int, h ebml.Header) (int, error) {
	if h.Length.IsUnknown() {
		return 0, unexpected(fmt.Sprintf("element 0x%X has unexpected unknown length", uint32(h.ID)))
	}
	total := hw + int(h.Length.Value())
	if err := ensureBuffered(r, total); err != nil {
		return 0, err
	}
	return total, nil
}

func discardElement(r *bufreader.Reader, total int) error {
	have := r.Len()
	if total <= have {
		r.Consume(total)
		return nil
	}
	r.Consume(have)
	return r.Discard(total - have)
}

// skipElement logs and discards an element the demuxer does not recognize
// in its current context, per the "unknown elements are skipped, logged at
// debug level" propagation policy.
func skipElement(r *bufreader.Reader, h ebml.Header, hw int) error {
	logging.Logger().Debug("mkv: skipping unrecognized element", "id", fmt.Sprintf("0x%X", uint32(h.ID)))
	return discardElement(r, hw+int(h.Length.Value()))
}

func (d *Demuxer) readEbmlHeader(r *bufreader.Reader) error {
	h, hw, err := peekHeader(r)
	if err != nil {
		return err
	}
	if h.ID != ebml.EBML {
		return unexpected(fmt.Sprintf("expected EBML header, found id 0x%X", uint32(h.ID)))
	}
	total, err := boundedElement(r, hw, h)
	if err != nil {
		return err
	}
	body := r.Data()[hw:total]
	if err := ebml.WalkChildren(body, func(ebml.Child) error { return nil }); err != nil {
		return err
	}
	r.Consume(total)
	return nil
}

func (d *Demuxer) readUntilSegment(r *bufreader.Reader) error {
	for {
		h, hw, err := peekHeader(r)
		if err != nil {
			return err
		}
		if h.ID == ebml.Segment {
			r.Consume(hw)
			return nil
		}
		if h.Length.IsUnknown() {
			return unexpected("found element with unknown length before segment")
		}
		if err := skipElement(r, h, hw); err != nil {
			return err
		}
	}
}

func (d *Demuxer) parseUntilFirstCluster(r *bufreader.Reader) (bool, error) {
	h, hw, err := peekHeader(r)
	if err != nil {
		return false, err
	}

	switch h.ID {
	case ebml.Cluster:
		return true, nil
	case ebml.Info:
		total, err := boundedElement(r, hw, h)
		if err != nil {
			return false, err
		}
		body := r.Data()[hw:total]
		if err := d.parseInfo(body); err != nil {
			return false, err
		}
		r.Consume(total)
		return false, nil
	case ebml.Tracks:
		total, err := boundedElement(r, hw, h)
		if err != nil {
			return false, err
		}
		body := r.Data()[hw:total]
		if err := d.parseTracks(body); err != nil {
			return false, err
		}
		r.Consume(total)
		return false, nil
	default:
		if h.Length.IsUnknown() {
			return false, unexpected("unexpected unknown-length element before first cluster")
		}
		if err := skipElement(r, h, hw); err != nil {
			return false, err
		}
		return false, nil
	}
}

func (d *Demuxer) parseInfo(body []byte) error {
	return ebml.WalkChildren(body, func(c ebml.Child) error {
		switch c.Header.ID {
		case ebml.TimestampScale:
			scale := ebml.DecodeUint(c.Body)
			d.timebase = timebaseFromScale(scale)
		case ebml.Duration:
			v, err := ebml.DecodeFloat(c.Body)
			if err != nil {
				return err
			}
			dur := uint64(v)
			d.movie.Duration = &MediaDuration{Duration: dur, Timebase: d.timebase}
		}
		return nil
	})
}

func timebaseFromScale(scale uint64) Fraction {
	den := uint32(scale / 1000)
	if den == 0 {
		den = 1
	}
	return NewFraction(1, den)
}

func (d *Demuxer) parseTracks(body []byte) error {
	return ebml.WalkChildren(body, func(c ebml.Child) error {
		if c.Header.ID != ebml.TrackEntry {
			return nil
		}
		track, err := d.parseTrackEntry(c.Body)
		if err != nil {
			return err
		}
		d.movie.Tracks = append(d.movie.Tracks, track)
		return nil
	})
}

func (d *Demuxer) parseTrackEntry(body []byte) (Track, error) {
	var (
		trackNumber  *uint64
		trackType    *uint64
		codecIDStr   *string
		codecPrivate []byte
		videoBody    []byte
		audioBody    []byte
	)

	err := ebml.WalkChildren(body, func(c ebml.Child) error {
		switch c.Header.ID {
		case ebml.TrackNumber:
			v := ebml.DecodeUint(c.Body)
			trackNumber = &v
		case ebml.TrackType:
			v := ebml.DecodeUint(c.Body)
			trackType = &v
		case ebml.CodecID:
			s, err := ebml.DecodeString(c.Body)
			if err != nil {
				return err
			}
			codecIDStr = &s
		case ebml.CodecPrivate:
			codecPrivate = c.Body
		case ebml.Video:
			videoBody = c.Body
		case ebml.Audio:
			audioBody = c.Body
		}
		return nil
	})
	if err != nil {
		return Track{}, err
	}
	if trackNumber == nil {
		return Track{}, missing("TrackNumber")
	}
	if trackType == nil {
		return Track{}, missing("TrackType")
	}
	if codecIDStr == nil {
		return Track{}, missing("CodecID")
	}

	codec := codecIdFromString(*codecIDStr)
	info := MediaInfo{Codec: codec}
	kind := mediaKindFromTrackType(*trackType)

	switch {
	case codec == CodecH264 && kind == MediaKindVideo:
		width, height, err := parseVideoMaster(videoBody)
		if err != nil {
			return Track{}, err
		}
		info.Kind = MediaKindVideo
		info.Video = VideoInfo{Width: width, Height: height, CodecPrivate: codecPrivate}
	case codec == CodecAac && kind == MediaKindAudio:
		sampleRate, channels, bitDepth, err := parseAudioMaster(audioBody)
		if err != nil {
			return Track{}, err
		}
		soundType := SoundMono
		if channels > 1 {
			soundType = SoundStereo
		}
		bpp := uint32(8)
		if bitDepth != nil {
			bpp = uint32(*bitDepth)
		}
		info.Kind = MediaKindAudio
		info.Audio = AudioInfo{SampleRate: uint32(sampleRate), SampleBPP: bpp, SoundType: soundType, CodecPrivate: codecPrivate}
	case (codec == CodecAss || codec == CodecWebVTT) && kind == MediaKindSubtitle:
		info.Kind = MediaKindSubtitle
		info.Subtitle = SubtitleInfo{Header: string(codecPrivate)}
	default:
		// Either an unrecognized CodecID or one that doesn't match its
		// declared TrackType; TrackType is what the container asserts
		// about the track, so it - not the codec string - decides Kind
		// whenever the two disagree or the codec is unknown.
		logging.Logger().Warn("mkv: unrecognized or TrackType-mismatched codec, preserving by TrackType", "codec", *codecIDStr, "trackType", *trackType)
		info.Kind = kind
		switch kind {
		case MediaKindVideo:
			width, height, verr := parseVideoMaster(videoBody)
			if verr == nil {
				info.Video = VideoInfo{Width: width, Height: height, CodecPrivate: codecPrivate}
			}
		case MediaKindAudio:
			sampleRate, channels, bitDepth, aerr := parseAudioMaster(audioBody)
			if aerr == nil {
				soundType := SoundMono
				if channels > 1 {
					soundType = SoundStereo
				}
				bpp := uint32(8)
				if bitDepth != nil {
					bpp = uint32(*bitDepth)
				}
				info.Audio = AudioInfo{SampleRate: uint32(sampleRate), SampleBPP: bpp, SoundType: soundType, CodecPrivate: codecPrivate}
			}
		case MediaKindSubtitle:
			info.Subtitle = SubtitleInfo{Header: string(codecPrivate)}
		}
	}

	return Track{ID: *trackNumber, Info: info, Timebase: d.timebase}, nil
}

// mediaKindFromTrackType maps the Matroska TrackType element's enumerated
// value to this engine's MediaKind, per the element's documented values
// (1=video, 2=audio, 17=subtitle among others this engine doesn't model).
func mediaKindFromTrackType(trackType uint64) MediaKind {
	switch trackType {
	case ebml.TrackTypeVideo:
		return MediaKindVideo
	case ebml.TrackTypeAudio:
		return MediaKindAudio
	case ebml.TrackTypeSubtitle:
		return MediaKindSubtitle
	default:
		return MediaKindUnknown
	}
}

func parseVideoMaster(body []byte) (width, height int, err error) {
	if body == nil {
		return 0, 0, missing("Video")
	}
	gotWidth, gotHeight := false, false
	err = ebml.WalkChildren(body, func(c ebml.Child) error {
		switch c.Header.ID {
		case ebml.PixelWidth:
			width = int(ebml.DecodeUint(c.Body))
			gotWidth = true
		case ebml.PixelHeight:
			height = int(ebml.DecodeUint(c.Body))
			gotHeight = true
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	if !gotWidth {
		return 0, 0, missing("PixelWidth")
	}
	if !gotHeight {
		return 0, 0, missing("PixelHeight")
	}
	return width, height, nil
}

func parseAudioMaster(body []byte) (sampleRate float64, channels uint64, bitDepth *uint64, err error) {
	if body == nil {
		return 0, 0, nil, missing("Audio")
	}
	gotSampleRate := false
	gotChannels := false
	err = ebml.WalkChildren(body, func(c ebml.Child) error {
		switch c.Header.ID {
		case ebml.SamplingFrequency:
			v, ferr := ebml.DecodeFloat(c.Body)
			if ferr != nil {
				return ferr
			}
			sampleRate = v
			gotSampleRate = true
		case ebml.Channels:
			channels = ebml.DecodeUint(c.Body)
			gotChannels = true
		case ebml.BitDepth:
			v := ebml.DecodeUint(c.Body)
			bitDepth = &v
		}
		return nil
	})
	if err != nil {
		return 0, 0, nil, err
	}
	if !gotSampleRate {
		return 0, 0, nil, missing("SamplingFrequency")
	}
	if !gotChannels {
		return 0, 0, nil, missing("Channels")
	}
	return sampleRate, channels, bitDepth, nil
}

// peekHeader decodes the next element header at the reader's current
// position, growing and refilling the buffer as needed, without consuming
// it. The caller consumes exactly the header width once it has decided how
// to handle the element.
func peekHeader(r *bufreader.Reader) (ebml.Header, int, error) {
	for {
		h, hw, err := ebml.DecodeHeader(r.Data())
		if err == nil {
			return h, hw, nil
		}
		var needMore *stepio.NeedMore
		if errors.As(err, &needMore) {
			r.EnsureAdditional(needMore.N)
			if ferr := r.Fill(); ferr != nil {
				return ebml.Header{}, 0, ferr
			}
			continue
		}
		return ebml.Header{}, 0, err
	}
}

// ensureBuffered grows and refills r until at least `total` bytes are
// buffered from the current position, or returns the Fill error (including
// io.EOF) if the stream ends first.
func ensureBuffered(r *bufreader.Reader, total int) error {
	for r.Len() < total {
		r.EnsureAdditional(total - r.Len())
		if err := r.Fill(); err != nil {
			return err
		}
	}
	return nil
}
