package mkv

import (
	"encoding/binary"
	"fmt"

	"github.com/Azunyan1111/mkvengine/internal/ebml"
)

// lacing identifies how a Block's payload packs more than one frame.
type lacing int

const (
	lacingNone lacing = iota
	lacingXiph
	lacingFixed
	lacingEBML
)

// decodedBlock is a Block or SimpleBlock's header fields plus its frames,
// still undivided by presentation time: the caller assigns PTS/duration
// once it knows whether a BlockDuration followed.
type decodedBlock struct {
	trackNumber uint64
	relativeTS  int16
	keyframe    bool
	frames      [][]byte
}

// decodeBlock parses a Matroska Block/SimpleBlock payload: the leading
// track-number VINT, a 2-byte signed relative timestamp, a flags byte
// (keyframe bit plus a 2-bit lacing mode), and then one or more frames per
// the lacing mode.
func decodeBlock(body []byte) (decodedBlock, error) {
	trackLen, consumed, err := ebml.DecodeLength(body)
	if err != nil {
		return decodedBlock{}, err
	}
	if trackLen.IsUnknown() {
		return decodedBlock{}, unexpected("block track number decodes to the unknown-length sentinel")
	}
	body = body[consumed:]

	if len(body) < 3 {
		return decodedBlock{}, unexpected("block shorter than its fixed header")
	}
	relativeTS := int16(binary.BigEndian.Uint16(body[:2]))
	flags := body[2]
	body = body[3:]

	keyframe := flags&0x80 != 0
	mode := lacing((flags >> 1) & 0x3)

	frames, err := splitLacedFrames(body, mode)
	if err != nil {
		return decodedBlock{}, err
	}

	return decodedBlock{
		trackNumber: trackLen.Value(),
		relativeTS:  relativeTS,
		keyframe:    keyframe,
		frames:      frames,
	}, nil
}

func splitLacedFrames(body []byte, mode lacing) ([][]byte, error) {
	switch mode {
	case lacingNone:
		return [][]byte{body}, nil
	case lacingFixed:
		return splitFixedLacing(body)
	case lacingXiph:
		return splitXiphLacing(body)
	case lacingEBML:
		return splitEBMLLacing(body)
	default:
		return nil, unexpected(fmt.Sprintf("unknown lacing mode %d", mode))
	}
}

func splitFixedLacing(body []byte) ([][]byte, error) {
	if len(body) == 0 {
		return nil, unexpected("fixed-laced block missing frame count byte")
	}
	count := int(body[0]) + 1
	body = body[1:]
	if count <= 0 || len(body)%count != 0 {
		return nil, unexpected("fixed-laced block size not evenly divisible by frame count")
	}
	frameSize := len(body) / count
	frames := make([][]byte, count)
	for i := 0; i < count; i++ {
		frames[i] = body[i*frameSize : (i+1)*frameSize]
	}
	return frames, nil
}

func splitXiphLacing(body []byte) ([][]byte, error) {
	if len(body) == 0 {
		return nil, unexpected("Xiph-laced block missing frame count byte")
	}
	count := int(body[0]) + 1
	body = body[1:]

	sizes := make([]int, count-1)
	for i := 0; i < count-1; i++ {
		size := 0
		for {
			if len(body) == 0 {
				return nil, unexpected("Xiph-laced block truncated in size run")
			}
			b := body[0]
			body = body[1:]
			size += int(b)
			if b != 0xFF {
				break
			}
		}
		sizes[i] = size
	}

	frames := make([][]byte, count)
	offset := 0
	for i, size := range sizes {
		if offset+size > len(body) {
			return nil, unexpected("Xiph-laced block frame size overruns payload")
		}
		frames[i] = body[offset : offset+size]
		offset += size
	}
	frames[count-1] = body[offset:]
	return frames, nil
}

func splitEBMLLacing(body []byte) ([][]byte, error) {
	if len(body) == 0 {
		return nil, unexpected("EBML-laced block missing frame count byte")
	}
	count := int(body[0]) + 1
	body = body[1:]

	sizes := make([]int, count-1)
	if count > 1 {
		first, consumed, err := ebml.DecodeLength(body)
		if err != nil {
			return nil, err
		}
		if first.IsUnknown() {
			return nil, unexpected("EBML-laced first frame size is the unknown-length sentinel")
		}
		body = body[consumed:]
		sizes[0] = int(first.Value())

		prev := int64(first.Value())
		for i := 1; i < count-1; i++ {
			delta, dconsumed, err := decodeSignedLacingDelta(body)
			if err != nil {
				return nil, err
			}
			body = body[dconsumed:]
			prev += delta
			if prev < 0 {
				return nil, unexpected("EBML-laced frame size delta underflows")
			}
			sizes[i] = int(prev)
		}
	}

	frames := make([][]byte, count)
	offset := 0
	for i, size := range sizes {
		if offset+size > len(body) {
			return nil, unexpected("EBML-laced block frame size overruns payload")
		}
		frames[i] = body[offset : offset+size]
		offset += size
	}
	frames[count-1] = body[offset:]
	return frames, nil
}

// decodeSignedLacingDelta reads an EBML-laced size delta: an unsigned VINT
// whose value is offset by the maximum value representable in one fewer
// bit, per the Matroska spec's "signed VINT" convention used only here.
func decodeSignedLacingDelta(body []byte) (int64, int, error) {
	length, consumed, err := ebml.DecodeLength(body)
	if err != nil {
		return 0, 0, err
	}
	if length.IsUnknown() {
		return 0, 0, unexpected("EBML-laced size delta is the unknown-length sentinel")
	}
	width := consumed
	bias := int64(1)<<(uint(7*width)-1) - 1
	return int64(length.Value()) - bias, consumed, nil
}
